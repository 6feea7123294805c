package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind separates the failure classes a service run can end with.
type ErrorKind string

const (
	// KindPreprocessing marks a failed tokenisation or input preparation step.
	KindPreprocessing ErrorKind = "preprocessing failure"
	// KindProcessing marks a failed main tool run or output collection.
	KindProcessing ErrorKind = "processing failure"
)

// ErrDuplicateUnit is returned when two per-unit files share a sequence number.
var ErrDuplicateUnit = errors.New("duplicate unit sequence number")

// PipelineError is a stage-aware hard failure with optional command context.
// Any PipelineError aborts the whole job.
type PipelineError struct {
	Kind       ErrorKind  `json:"kind"`
	Stage      string     `json:"stage"`
	Input      string     `json:"input,omitempty"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and the status file.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	prefix := string(e.Kind)
	if e.Input != "" {
		prefix += " (" + e.Input + ")"
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s: %s (cmd=%s exit=%d)",
		prefix,
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func preprocessingError(input, stage, msg string, log CommandLog, err error) *PipelineError {
	return &PipelineError{Kind: KindPreprocessing, Stage: stage, Input: input, Message: msg, CommandLog: log, Err: err}
}

func processingError(input, stage, msg string, log CommandLog, err error) *PipelineError {
	return &PipelineError{Kind: KindProcessing, Stage: stage, Input: input, Message: msg, CommandLog: log, Err: err}
}
