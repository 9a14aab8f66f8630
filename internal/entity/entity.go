// Package entity defines the core entities used in the application.
package entity

import (
	"log/slog"
	"time"
)

// OutcomeStatus represents the classified result of downloading one URL.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates that the downloader produced the output file.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailure indicates that the download failed or could not be started.
	OutcomeFailure OutcomeStatus = "failure"
)

// Outcome is the result of one download attempt. A batch yields exactly one
// Outcome per normalized URL, in input order.
type Outcome struct {
	Ordinal     int           `json:"ordinal"`
	URL         string        `json:"url"`
	Status      OutcomeStatus `json:"status"`
	OutputPath  string        `json:"-"`
	DisplayName string        `json:"displayName,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Succeeded reports whether the outcome is a success.
func (o Outcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (o Outcome) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("ordinal", o.Ordinal),
		slog.String("url", o.URL),
		slog.String("status", string(o.Status)),
		slog.String("output_path", o.OutputPath),
		slog.String("display_name", o.DisplayName),
		slog.String("error", o.Error),
	)
}

// Entry is a successful download kept by the result store.
type Entry struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	OutputPath  string    `json:"-"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LogValue implements the slog.LogValuer interface for structured logging.
func (e Entry) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", e.ID),
		slog.String("url", e.URL),
		slog.String("output_path", e.OutputPath),
		slog.String("display_name", e.DisplayName),
	)
}

// CapabilityCheck reports whether a required external tool can be resolved.
type CapabilityCheck struct {
	Tool    string `json:"tool"`
	Present bool   `json:"present"`
	Path    string `json:"path,omitempty"`
}
