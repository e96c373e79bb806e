package transfer

import (
	"errors"
	"fmt"
)

type Stage string

const (
	StageList     Stage = "list"
	StageDownload Stage = "download"
	StageConnect  Stage = "connect"
	StageUpload   Stage = "upload"
	StageIngest   Stage = "ingest"
)

var (
	ErrList     = errors.New("list failed")
	ErrDownload = errors.New("download failed")
	ErrConnect  = errors.New("connect failed")
	ErrUpload   = errors.New("upload failed")
	ErrIngest   = errors.New("ingest failed")
)

// Error is a run-fatal failure in one pipeline stage. errors.Is matches it
// against the stage sentinel (ErrList, ErrDownload, ...).
type Error struct {
	Stage Stage
	RunID string
	Key   string
	Err   error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return sentinelFor(e.Stage) == target
}

func sentinelFor(stage Stage) error {
	switch stage {
	case StageList:
		return ErrList
	case StageDownload:
		return ErrDownload
	case StageConnect:
		return ErrConnect
	case StageUpload:
		return ErrUpload
	case StageIngest:
		return ErrIngest
	}
	return nil
}

func stageError(runID string, stage Stage, key string, err error) error {
	return &Error{Stage: stage, RunID: runID, Key: key, Err: err}
}

// StageOf returns the stage that failed, or "" when err is not a stage error.
func StageOf(err error) Stage {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// RunIDOf returns the run a stage error belongs to, or "".
func RunIDOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.RunID
	}
	return ""
}
