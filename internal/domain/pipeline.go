package domain

import (
	"fmt"
	"time"
)

type Stage string

const (
	StageProcess Stage = "process"
	StageScan    Stage = "scan"
	StageSync    Stage = "sync"
	StageClean   Stage = "clean"
)

// StageError tags a failure with the pipeline stage that produced it, so the
// exit path can name the failing stage instead of masking it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

type StageResult struct {
	Stage    Stage
	Skipped  bool
	Duration time.Duration
	Err      error
}

// RunReport records one pipeline run end to end.
type RunReport struct {
	StartedAt    time.Time
	Duration     time.Duration
	Stages       []StageResult
	FilesSynced  int
	FilesRemoved int
	BytesSynced  int64
	Err          error
}

func (r *RunReport) Succeeded() bool {
	return r.Err == nil
}
