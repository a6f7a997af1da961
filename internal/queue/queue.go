package queue

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is an insertion-ordered, in-memory collection of upload tasks. All
// mutation goes through its methods; snapshots returned to callers are copies
// and never alias live state.
type Queue struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	nextSeq uint64
}

// New constructs an empty queue.
func New() *Queue {
	return &Queue{tasks: make(map[string]*Task)}
}

// Enqueue creates a new pending task for the file and returns its snapshot.
// IDs are uuids and are never reused, even after removal.
func (q *Queue) Enqueue(file FileRef) Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	task := &Task{
		ID:         uuid.NewString(),
		File:       file,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
		seq:        q.nextSeq,
	}
	q.nextSeq++
	q.tasks[task.ID] = task
	return *task
}

// Remove deletes a task by identifier and returns its last snapshot. Removing
// an unknown id is a no-op, not an error.
func (q *Queue) Remove(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	delete(q.tasks, id)
	return *task, true
}

// Clear removes every task and returns their last snapshots in insertion
// order, so callers can cancel whatever was in flight.
func (q *Queue) Clear() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := q.orderedLocked()
	q.tasks = make(map[string]*Task)
	return removed
}

// Get returns a snapshot of the task with the given id.
func (q *Queue) Get(id string) (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	task, ok := q.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// All returns snapshots of every task in insertion order.
func (q *Queue) All() []Task {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.orderedLocked()
}

// Len reports the number of tasks currently in the queue.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// NextPending returns the earliest-enqueued pending task, FIFO by insertion
// order, never by file size or name.
func (q *Queue) NextPending() (Task, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var best *Task
	for _, task := range q.tasks {
		if task.Status != StatusPending {
			continue
		}
		if best == nil || task.seq < best.seq {
			best = task
		}
	}
	if best == nil {
		return Task{}, false
	}
	return *best, true
}

// UpdateProgress sets progress on an in-flight task, clamped to [0, 100].
// Updates to unknown or terminal tasks are ignored.
func (q *Queue) UpdateProgress(id string, value int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || task.Status != StatusUploading {
		return false
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	task.Progress = value
	return true
}

// MarkUploading transitions a pending task into the in-flight state.
func (q *Queue) MarkUploading(id string) bool {
	return q.transition(id, StatusPending, func(task *Task) { task.SetUploading() })
}

// MarkComplete transitions an in-flight task to complete with its URL.
func (q *Queue) MarkComplete(id, url string) bool {
	return q.transition(id, StatusUploading, func(task *Task) { task.SetComplete(url) })
}

// MarkFailed transitions an in-flight task to the error state.
func (q *Queue) MarkFailed(id, message string) bool {
	return q.transition(id, StatusUploading, func(task *Task) { task.SetFailed(message) })
}

// MarkPendingRetry returns a failed task to pending and counts the attempt.
func (q *Queue) MarkPendingRetry(id string) bool {
	return q.transition(id, StatusError, func(task *Task) { task.SetPendingRetry() })
}

func (q *Queue) transition(id string, from Status, apply func(*Task)) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || task.Status != from {
		return false
	}
	apply(task)
	return true
}

func (q *Queue) orderedLocked() []Task {
	ordered := make([]Task, 0, len(q.tasks))
	for _, task := range q.tasks {
		ordered = append(ordered, *task)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })
	return ordered
}
