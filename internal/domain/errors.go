package domain

import (
	"errors"
	"fmt"
)

// Stage identifies which pipeline stage an error originated from.
type Stage string

const (
	StageAuth       Stage = "auth"
	StageFetch      Stage = "fetch"
	StageTranscode  Stage = "transcode"
	StageTranscribe Stage = "transcribe"
	StageQuery      Stage = "query"
)

// StageError tags an error with its originating pipeline stage. The pipeline
// converts it into a single user-facing message; the full detail is only
// ever logged.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the given stage. If err already carries a
// stage tag, the inner tag wins so the originating stage is preserved across
// layers (e.g. a token failure inside a fetch stays an auth error).
func NewStageError(stage Stage, err error) error {
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage reports the stage tag of err, or "" if it carries none.
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
