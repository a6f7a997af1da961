package queue_test

import (
	"testing"

	"qupload/internal/queue"
)

func TestOverallProgressIsUnweightedMean(t *testing.T) {
	t.Parallel()

	q := queue.New()
	a := enqueue(t, q, "a.png")
	b := q.Enqueue(queue.FileRef{Name: "b.mp4", Size: 900 * 1024 * 1024, MIME: "video/mp4"})

	q.MarkUploading(a.ID)
	q.MarkUploading(b.ID)
	q.UpdateProgress(a.ID, 60)
	q.UpdateProgress(b.ID, 40)

	// Per-item average, not weighted by file size.
	if got := q.OverallProgress(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestOverallProgressEmptyQueue(t *testing.T) {
	t.Parallel()

	if got := queue.New().OverallProgress(); got != 0 {
		t.Fatalf("expected 0 for empty queue, got %d", got)
	}
}

func TestOverallProgressIncludesTerminalTasks(t *testing.T) {
	t.Parallel()

	q := queue.New()
	done := enqueue(t, q, "done.png")
	failed := enqueue(t, q, "failed.png")
	idle := enqueue(t, q, "idle.png")

	q.MarkUploading(done.ID)
	q.MarkComplete(done.ID, "https://cdn.example.org/done.png")
	q.MarkUploading(failed.ID)
	q.UpdateProgress(failed.ID, 70)
	q.MarkFailed(failed.ID, "server error")
	_ = idle

	// (100 + 70 + 0) / 3 rounds to 57.
	if got := q.OverallProgress(); got != 57 {
		t.Fatalf("expected 57, got %d", got)
	}
}

func TestCountsAndAllSettled(t *testing.T) {
	t.Parallel()

	q := queue.New()
	a := enqueue(t, q, "a.png")
	b := enqueue(t, q, "b.png")
	c := enqueue(t, q, "c.png")

	q.MarkUploading(a.ID)
	counts := q.Counts()
	if counts.Total != 3 || counts.Pending != 2 || counts.Uploading != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if q.AllSettled() {
		t.Fatal("queue with pending work must not be settled")
	}

	q.MarkComplete(a.ID, "u1")
	q.MarkUploading(b.ID)
	q.MarkFailed(b.ID, "boom")
	q.MarkUploading(c.ID)
	q.MarkComplete(c.ID, "u2")

	counts = q.Counts()
	if counts.Complete != 2 || counts.Failed != 1 || counts.Pending != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	if !q.AllSettled() {
		t.Fatal("queue with only terminal tasks must be settled")
	}
	if !queue.New().AllSettled() {
		t.Fatal("empty queue counts as settled")
	}
}

func TestByStatusFilters(t *testing.T) {
	t.Parallel()

	q := queue.New()
	a := enqueue(t, q, "a.png")
	enqueue(t, q, "b.png")
	q.MarkUploading(a.ID)
	q.MarkFailed(a.ID, "boom")

	failed := q.ByStatus(queue.StatusError)
	if len(failed) != 1 || failed[0].ID != a.ID {
		t.Fatalf("unexpected failed set: %v", failed)
	}
	if len(q.ByStatus(queue.StatusPending)) != 1 {
		t.Fatal("expected one pending task")
	}
}
