package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	WorkerToken string `yaml:"worker_token"` // empty means open access
	WorkerName  string `yaml:"worker_name"`  // claimed_by tag on owned jobs
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty disables the rate limiter
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// RateLimit allows this many enqueue calls per caller per window.
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type StorageConfig struct {
	URL           string `yaml:"url"` // Supabase project base URL
	ServiceKey    string `yaml:"service_key"`
	OutputsBucket string `yaml:"outputs_bucket"`
	VideosBucket  string `yaml:"videos_bucket"`
}

type TranscriptionConfig struct {
	OpenAIKey string        `yaml:"openai_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	// MaxConcurrent caps simultaneous pipeline runs process-wide.
	MaxConcurrent int `yaml:"max_concurrent"`
	// ExtractAudio sends a mono 16kHz wav to the transcriber instead of
	// the full video. Requires ffmpeg on PATH at startup.
	ExtractAudio   bool          `yaml:"extract_audio"`
	RetryCount     int           `yaml:"retry_count"`
	RetryBase      time.Duration `yaml:"retry_base"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	TotalTimeout   time.Duration `yaml:"total_timeout"`
	// SignedURLTTL is the validity window of published artifact URLs.
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Storage.URL == "" || cfg.Storage.ServiceKey == "" {
		return nil, errors.New("storage.url and storage.service_key are required")
	}
	if cfg.Transcription.OpenAIKey == "" {
		return nil, errors.New("transcription.openai_key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ApplyDefaults fills zero values in place. Exposed so tests can build
// configs without a yaml file.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 10000
	}
	if cfg.Server.WorkerName == "" {
		cfg.Server.WorkerName = "captionworker"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.RateLimit <= 0 {
		cfg.Redis.RateLimit = 60
	}
	if cfg.Redis.RateWindow <= 0 {
		cfg.Redis.RateWindow = time.Minute
	}
	if cfg.Storage.OutputsBucket == "" {
		cfg.Storage.OutputsBucket = "outputs"
	}
	if cfg.Storage.VideosBucket == "" {
		cfg.Storage.VideosBucket = "videos"
	}
	if cfg.Transcription.BaseURL == "" {
		cfg.Transcription.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = "whisper-1"
	}
	if cfg.Transcription.Timeout <= 0 {
		cfg.Transcription.Timeout = 300 * time.Second
	}
	if cfg.Pipeline.MaxConcurrent <= 0 {
		cfg.Pipeline.MaxConcurrent = 1
	}
	if cfg.Pipeline.RetryCount <= 0 {
		cfg.Pipeline.RetryCount = 3
	}
	if cfg.Pipeline.RetryBase <= 0 {
		cfg.Pipeline.RetryBase = 500 * time.Millisecond
	}
	if cfg.Pipeline.ConnectTimeout <= 0 {
		cfg.Pipeline.ConnectTimeout = 30 * time.Second
	}
	if cfg.Pipeline.TotalTimeout <= 0 {
		cfg.Pipeline.TotalTimeout = 900 * time.Second
	}
	if cfg.Pipeline.SignedURLTTL <= 0 {
		cfg.Pipeline.SignedURLTTL = 7 * 24 * time.Hour
	}
}
