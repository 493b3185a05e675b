package model

import "time"

// InputRef locates the source media for a run. Exactly one of the
// resolution paths in the executor fills URL; ExpectedBytes and
// ContentType are hints from the enqueue request and may be zero.
type InputRef struct {
	URL           string
	StorageKey    string
	ExpectedBytes int64
	ContentType   string
}

// PipelineRun is the ephemeral per-claim working state. It is owned by
// exactly one goroutine and never shared; Cleanup removes its local
// artifacts on every exit path.
type PipelineRun struct {
	Job       *Job
	Input     InputRef
	VideoPath string
	AudioPath string
	StartedAt time.Time
	Metrics   Metrics
}
