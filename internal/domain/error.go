package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	// ErrNotClaimable is returned when the conditional claim update
	// matched no row: the job is missing or not in the queued status.
	ErrNotClaimable = errors.New("job not claimable")
)

// Pipeline stage names, used to attribute failures on the job record.
const (
	StageDownload   = "download"
	StageExtract    = "extract"
	StageTranscribe = "transcribe"
	StagePublish    = "publish"
)

// StageError tags an underlying failure with the pipeline stage it
// occurred in. The ledger stores it as "<stage>: <message>".
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the failing stage name.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
