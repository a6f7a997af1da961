package transport

import (
	"context"

	"qupload/internal/queue"
)

// Result is the backend's reply for one successfully uploaded file.
type Result struct {
	ID       string            `json:"id"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ProgressFunc receives percent ticks in [0, 100]. Ticks for one upload are
// non-decreasing; the queue clamps and drops anything arriving after a
// terminal transition.
type ProgressFunc func(percent int)

// Adapter performs the actual network call for one file. The scheduler only
// reacts to its three outcomes: progress ticks, success, classified failure.
// Implementations must honor ctx cancellation as the best-effort cancel path.
type Adapter interface {
	Upload(ctx context.Context, file queue.FileRef, progress ProgressFunc) (*Result, error)
}

// BatchFileResult is one entry of a bulk upload reply.
type BatchFileResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Error    string `json:"error,omitempty"`
}

// BatchResult is the backend's reply for a bulk upload call.
type BatchResult struct {
	Uploaded int               `json:"uploaded"`
	Failed   int               `json:"failed"`
	Results  []BatchFileResult `json:"results"`
}
