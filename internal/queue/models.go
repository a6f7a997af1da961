package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an upload task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusComplete,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further automatic transitions.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// FileRef describes the payload of one upload task. The task holds a
// reference to the caller's file, never a copy of its contents.
type FileRef struct {
	Name string
	Path string
	Size int64
	MIME string
}

// Task is one file's upload unit of work and its lifecycle state.
type Task struct {
	ID         string
	File       FileRef
	Status     Status
	Progress   int
	URL        string
	ErrMessage string
	RetryCount int
	EnqueuedAt time.Time

	// seq preserves insertion order for FIFO admission; assigned by the Queue.
	seq uint64
}

// SetUploading transitions the task into the in-flight state and resets
// attempt-scoped fields.
func (t *Task) SetUploading() {
	t.Status = StatusUploading
	t.Progress = 0
	t.ErrMessage = ""
}

// SetComplete marks the task complete with its stored URL and full progress.
func (t *Task) SetComplete(url string) {
	t.Status = StatusComplete
	t.Progress = 100
	t.URL = url
	t.ErrMessage = ""
}

// SetFailed marks the task failed with the given message. The last-known
// progress is preserved for the aggregate view.
func (t *Task) SetFailed(message string) {
	t.Status = StatusError
	t.ErrMessage = message
	t.URL = ""
}

// SetPendingRetry returns a failed task to the pending state and counts the
// attempt. Validation does not re-run on retry.
func (t *Task) SetPendingRetry() {
	t.Status = StatusPending
	t.Progress = 0
	t.ErrMessage = ""
	t.RetryCount++
}
