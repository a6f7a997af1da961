// Package queue holds the in-memory upload task collection and its derived
// aggregate views.
//
// Tasks move through pending, uploading, complete, and error states; the
// transition methods enforce legal moves so callers cannot, for example,
// resurrect a completed task. Insertion order is preserved for FIFO admission
// and every snapshot handed out is a copy.
//
// The queue lives for one upload session and is never persisted; terminal
// outcomes are recorded separately by the history package.
//
// Treat this package as the single source of truth for task semantics; when
// you add a status, update the transition methods and the aggregate counts
// together.
package queue
