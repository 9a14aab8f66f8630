// Package errs defines common error variables used across the application.
package errs

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidRequestBody indicates that the request body is invalid or cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
)

// Batch errors.
var (
	// ErrNoInput indicates that a submission contained no usable URL.
	ErrNoInput = errors.New("no input")
	// ErrMissingTool indicates that a required external tool is not installed.
	ErrMissingTool = errors.New("required tool missing")
	// ErrBatchInProgress indicates that the session is already running a batch.
	ErrBatchInProgress = errors.New("batch already in progress")
)

// Result store errors.
var (
	// ErrEntryNotFound indicates that no stored result has the requested ID.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrEntryIDEmpty indicates that the entry ID is empty.
	ErrEntryIDEmpty = errors.New("entry id is empty")
)

// Downloader errors.
var (
	// ErrDownloadFailed indicates that the downloader exited with a non-zero status.
	ErrDownloadFailed = errors.New("download failed")
	// ErrDownloadTimeout indicates that the downloader exceeded the per-item timeout.
	ErrDownloadTimeout = errors.New("download timed out")
	// ErrLaunchFailed indicates that the downloader process could not be started.
	ErrLaunchFailed = errors.New("downloader launch failed")
	// ErrBinaryNotFound indicates that the required binary was not found.
	ErrBinaryNotFound = errors.New("binary not found")
	// ErrUnsupportedPlatform indicates that the current platform is not supported.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// PreconditionError reports required tools that are absent. It aborts a batch
// before any download is attempted.
type PreconditionError struct {
	Missing []string
}

func (e *PreconditionError) Error() string {
	return "missing required tools: " + strings.Join(e.Missing, ", ")
}

// Unwrap lets callers match the error with errors.Is(err, ErrMissingTool).
func (e *PreconditionError) Unwrap() error {
	return ErrMissingTool
}
