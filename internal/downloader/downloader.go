// Package downloader runs the external downloader for a single URL and
// classifies the result.
package downloader

import (
	"context"
	"errors"

	"vidbatch/internal/entity"
)

// Executor downloads one URL into destination. Every failure mode is reported
// as a failure Outcome; Execute never returns an error.
type Executor interface {
	Execute(ctx context.Context, url, destination string) entity.Outcome
}

func classifyProcessingError(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "process"
	}
}
