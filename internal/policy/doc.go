// Package policy implements the validation gate applied to stimulus files
// before enqueue: accepted MIME types and a maximum file size.
//
// Rejected files never mutate the queue; the rejection message is surfaced to
// the caller's error callback instead.
package policy
