package queue

import "math"

// Counts summarizes the queue per lifecycle state. Derived on demand, never
// stored, so it cannot drift from the tasks themselves.
type Counts struct {
	Total     int
	Pending   int
	Uploading int
	Complete  int
	Failed    int
}

// Counts tallies the queue by status.
func (q *Queue) Counts() Counts {
	q.mu.RLock()
	defer q.mu.RUnlock()

	counts := Counts{Total: len(q.tasks)}
	for _, task := range q.tasks {
		switch task.Status {
		case StatusPending:
			counts.Pending++
		case StatusUploading:
			counts.Uploading++
		case StatusComplete:
			counts.Complete++
		case StatusError:
			counts.Failed++
		}
	}
	return counts
}

// OverallProgress is the unweighted mean of per-task progress across every
// task in the queue, rounded to the nearest integer. Complete tasks contribute
// 100 and failed tasks their last-known progress. An empty queue yields 0.
func (q *Queue) OverallProgress() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if len(q.tasks) == 0 {
		return 0
	}
	sum := 0
	for _, task := range q.tasks {
		sum += task.Progress
	}
	return int(math.Round(float64(sum) / float64(len(q.tasks))))
}

// AllSettled reports whether every task has reached a terminal state, success
// or failure. An empty queue counts as settled.
func (q *Queue) AllSettled() bool {
	counts := q.Counts()
	return counts.Pending == 0 && counts.Uploading == 0
}

// ByStatus returns snapshots of tasks in the given status, insertion ordered.
func (q *Queue) ByStatus(status Status) []Task {
	all := q.All()
	filtered := make([]Task, 0, len(all))
	for _, task := range all {
		if task.Status == status {
			filtered = append(filtered, task)
		}
	}
	return filtered
}
