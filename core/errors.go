package core

import (
	"errors"
	"fmt"
)

// Stage names the pipeline stage an error came from.
type Stage string

const (
	StageAcquire    Stage = "acquisition"
	StageTranscribe Stage = "transcription"
	StageChunk      Stage = "chunking"
	StageIndex      Stage = "indexing"
	StageAnswer     Stage = "generation"
	StagePipeline   Stage = "pipeline"
)

// StageError is the uniform error shape the orchestrator returns. A raw
// engine error never escapes the pipeline without being wrapped in one.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is matches two stage errors by stage, so callers can probe with
// errors.Is(err, &StageError{Stage: StageAcquire}).
func (e *StageError) Is(target error) bool {
	var se *StageError
	if !errors.As(target, &se) {
		return false
	}
	return se.Stage == e.Stage
}

func NewAcquisitionError(err error) *StageError {
	return &StageError{Stage: StageAcquire, Err: err}
}

func NewTranscriptionError(err error) *StageError {
	return &StageError{Stage: StageTranscribe, Err: err}
}

func NewChunkingError(err error) *StageError {
	return &StageError{Stage: StageChunk, Err: err}
}

func NewIndexBuildError(err error) *StageError {
	return &StageError{Stage: StageIndex, Err: err}
}

func NewGenerationError(err error) *StageError {
	return &StageError{Stage: StageAnswer, Err: err}
}

func NewPipelineError(err error) *StageError {
	return &StageError{Stage: StagePipeline, Err: err}
}

// AsStageError converts any error to a stage error, tagging untyped
// errors with the pipeline stage so handlers always see the taxonomy.
func AsStageError(err error) *StageError {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return NewPipelineError(err)
}

// StageOf reports the stage an error belongs to, or StagePipeline for
// untyped errors.
func StageOf(err error) Stage {
	if se := AsStageError(err); se != nil {
		return se.Stage
	}
	return StagePipeline
}
