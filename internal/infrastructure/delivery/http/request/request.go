// Package request defines HTTP request bodies.
package request

// Batch is the body of a batch submission.
type Batch struct {
	// URLs is free-form multi-line text, one URL per line.
	URLs string `json:"urls"`
}
