package uploader_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qupload/internal/config"
	"qupload/internal/logging"
	"qupload/internal/queue"
	"qupload/internal/services"
	"qupload/internal/transport"
	"qupload/internal/uploader"
)

func testConfig(maxConcurrent, autoRetries int) *config.Config {
	return &config.Config{
		Upload: config.Upload{
			Endpoint:      "http://backend.test/stimuli",
			MaxConcurrent: maxConcurrent,
			AutoRetries:   autoRetries,
		},
	}
}

func stimulus(name string) queue.FileRef {
	return queue.FileRef{Name: name, Path: "/tmp/" + name, Size: 1024, MIME: "image/png"}
}

// fakeAdapter stands in for the HTTP transport. Each call waits for a value
// on release (when set), tracks the peak number of concurrent calls, and
// fails according to failFor. When cancelHold is set, a canceled call does
// not return until the channel is closed, imitating a transport that is slow
// to observe cancellation.
type fakeAdapter struct {
	mu         sync.Mutex
	running    int
	peak       int
	order      []string
	calls      map[string]int
	failFor    func(file queue.FileRef, attempt int) error
	release    chan struct{}
	started    chan string
	cancelHold chan struct{}
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{calls: make(map[string]int)}
}

func (a *fakeAdapter) Upload(ctx context.Context, file queue.FileRef, progress transport.ProgressFunc) (*transport.Result, error) {
	a.mu.Lock()
	a.running++
	if a.running > a.peak {
		a.peak = a.running
	}
	a.order = append(a.order, file.Name)
	a.calls[file.Name]++
	attempt := a.calls[file.Name]
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.running--
		a.mu.Unlock()
	}()

	if a.started != nil {
		a.started <- file.Name
	}
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			if a.cancelHold != nil {
				<-a.cancelHold
			}
			return nil, services.Wrap(services.ErrCanceled, "transport", "upload", file.Name, nil)
		}
	}
	if a.failFor != nil {
		if err := a.failFor(file, attempt); err != nil {
			return nil, err
		}
	}
	if progress != nil {
		progress(100)
	}
	return &transport.Result{ID: file.Name, URL: "https://cdn.test/" + file.Name}, nil
}

func waitSettled(t *testing.T, m *uploader.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestConcurrencyNeverExceedsBound(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.release = make(chan struct{})
	m := uploader.NewManager(testConfig(2, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	for i := 0; i < 6; i++ {
		if _, err := m.Enqueue(stimulus(fmt.Sprintf("face-%d.png", i))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	close(adapter.release)
	waitSettled(t, m)

	adapter.mu.Lock()
	peak := adapter.peak
	adapter.mu.Unlock()
	if peak > 2 {
		t.Fatalf("peak concurrency = %d, want at most 2", peak)
	}
	counts := m.Counts()
	if counts.Complete != 6 {
		t.Fatalf("complete = %d, want 6", counts.Complete)
	}
}

func TestAdmissionIsFIFO(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.started = make(chan string, 8)
	adapter.release = make(chan struct{})
	m := uploader.NewManager(testConfig(1, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	names := []string{"first.png", "second.png", "third.png"}
	if _, err := m.Enqueue(stimulus(names[0])); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-adapter.started
	for _, name := range names[1:] {
		if _, err := m.Enqueue(stimulus(name)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	close(adapter.release)
	waitSettled(t, m)

	adapter.mu.Lock()
	order := append([]string(nil), adapter.order...)
	adapter.mu.Unlock()
	for i, name := range names {
		if order[i] != name {
			t.Fatalf("admission order = %v, want %v", order, names)
		}
	}
	for range names[1:] {
		<-adapter.started
	}
}

func TestRejectedFileNeverEntersQueue(t *testing.T) {
	t.Parallel()

	cfg := testConfig(3, 0)
	cfg.Policy.AcceptedTypes = []string{"image/png"}

	var rejected atomic.Int32
	var message string
	var mu sync.Mutex
	m := uploader.NewManager(cfg, newFakeAdapter(), logging.NewNop(), uploader.Callbacks{
		OnError: func(task queue.Task, err error) {
			rejected.Add(1)
			mu.Lock()
			message = task.ErrMessage
			mu.Unlock()
		},
	})

	file := queue.FileRef{Name: "report.exe", Path: "/tmp/report.exe", Size: 10, MIME: "application/x-msdownload"}
	_, err := m.Enqueue(file)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !strings.Contains(err.Error(), "File type not allowed") {
		t.Fatalf("rejection reason = %v", err)
	}
	if got := len(m.Tasks()); got != 0 {
		t.Fatalf("queue length = %d, want 0", got)
	}
	if rejected.Load() != 1 {
		t.Fatalf("OnError fired %d times, want 1", rejected.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(message, "File type not allowed") {
		t.Fatalf("task message = %q", message)
	}
}

func TestManualRetryAfterFailure(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.failFor = func(file queue.FileRef, attempt int) error {
		if attempt == 1 {
			return services.Wrap(services.ErrTransient, "transport", "upload", "backend offline", nil)
		}
		return nil
	}

	var failures atomic.Int32
	m := uploader.NewManager(testConfig(2, 0), adapter, logging.NewNop(), uploader.Callbacks{
		OnError: func(task queue.Task, err error) { failures.Add(1) },
	})

	task, err := m.Enqueue(stimulus("tone.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)

	got, ok := m.Task(task.ID)
	if !ok || got.Status != queue.StatusError {
		t.Fatalf("status = %v, want error", got.Status)
	}
	if failures.Load() != 1 {
		t.Fatalf("OnError fired %d times, want 1", failures.Load())
	}

	if !m.Retry(task.ID) {
		t.Fatal("Retry returned false")
	}
	waitSettled(t, m)

	got, _ = m.Task(task.ID)
	if got.Status != queue.StatusComplete {
		t.Fatalf("status after retry = %v, want complete", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", got.RetryCount)
	}
	if got.URL == "" {
		t.Fatal("completed task missing URL")
	}
}

func TestRetryIgnoresNonFailedTasks(t *testing.T) {
	t.Parallel()

	m := uploader.NewManager(testConfig(2, 0), newFakeAdapter(), logging.NewNop(), uploader.Callbacks{})
	task, err := m.Enqueue(stimulus("grid.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)

	if m.Retry(task.ID) {
		t.Fatal("Retry succeeded on a completed task")
	}
	if m.Retry("no-such-task") {
		t.Fatal("Retry succeeded on an unknown task")
	}
}

func TestAutoRetryWithinBudget(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.failFor = func(file queue.FileRef, attempt int) error {
		if attempt <= 2 {
			return services.Wrap(services.ErrTransient, "transport", "upload", "flaky network", nil)
		}
		return nil
	}

	var failures atomic.Int32
	m := uploader.NewManager(testConfig(1, 2), adapter, logging.NewNop(), uploader.Callbacks{
		OnError: func(task queue.Task, err error) { failures.Add(1) },
	})

	task, err := m.Enqueue(stimulus("clip.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)

	got, _ := m.Task(task.ID)
	if got.Status != queue.StatusComplete {
		t.Fatalf("status = %v, want complete", got.Status)
	}
	if got.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", got.RetryCount)
	}
	if failures.Load() != 0 {
		t.Fatalf("OnError fired %d times during auto retry, want 0", failures.Load())
	}
}

func TestTerminalFailureIsNotAutoRetried(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.failFor = func(file queue.FileRef, attempt int) error {
		return services.Wrap(services.ErrRejected, "transport", "upload", "unsupported stimulus", nil)
	}

	m := uploader.NewManager(testConfig(1, 3), adapter, logging.NewNop(), uploader.Callbacks{})
	task, err := m.Enqueue(stimulus("doc.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)

	got, _ := m.Task(task.ID)
	if got.Status != queue.StatusError {
		t.Fatalf("status = %v, want error", got.Status)
	}
	adapter.mu.Lock()
	attempts := adapter.calls["doc.png"]
	adapter.mu.Unlock()
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestOnAllCompleteFiresOncePerBatch(t *testing.T) {
	t.Parallel()

	var completions atomic.Int32
	m := uploader.NewManager(testConfig(2, 0), newFakeAdapter(), logging.NewNop(), uploader.Callbacks{
		OnAllComplete: func() { completions.Add(1) },
	})

	for i := 0; i < 3; i++ {
		if _, err := m.Enqueue(stimulus(fmt.Sprintf("batch-%d.png", i))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	waitSettled(t, m)
	first := completions.Load()
	if first < 1 {
		t.Fatalf("OnAllComplete fired %d times, want at least 1", first)
	}

	if _, err := m.Enqueue(stimulus("late.png")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)
	if completions.Load() != first+1 {
		t.Fatalf("OnAllComplete fired %d times after second batch, want %d", completions.Load(), first+1)
	}
}

func TestPartialBatchFailure(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.failFor = func(file queue.FileRef, attempt int) error {
		if strings.HasPrefix(file.Name, "bad") {
			return services.Wrap(services.ErrRejected, "transport", "upload", "unsupported stimulus", nil)
		}
		return nil
	}

	var completions atomic.Int32
	m := uploader.NewManager(testConfig(3, 0), adapter, logging.NewNop(), uploader.Callbacks{
		OnAllComplete: func() { completions.Add(1) },
	})

	names := []string{"good-1.png", "bad-2.png", "good-3.png", "bad-4.png", "good-5.png"}
	for _, name := range names {
		if _, err := m.Enqueue(stimulus(name)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	waitSettled(t, m)

	counts := m.Counts()
	if counts.Complete != 3 || counts.Failed != 2 {
		t.Fatalf("complete=%d failed=%d, want 3/2", counts.Complete, counts.Failed)
	}
	if got := len(m.CompletedUploads()); got != 3 {
		t.Fatalf("completed snapshots = %d, want 3", got)
	}
	if got := len(m.FailedUploads()); got != 2 {
		t.Fatalf("failed snapshots = %d, want 2", got)
	}
	if got := len(m.ActiveUploads()); got != 0 {
		t.Fatalf("active snapshots = %d, want 0", got)
	}
	if completions.Load() == 0 {
		t.Fatal("OnAllComplete did not fire for a batch with failures")
	}
	if !m.AllSettled() {
		t.Fatal("queue should be settled")
	}
}

func TestRemoveCancelsInFlightUpload(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.started = make(chan string, 4)
	adapter.release = make(chan struct{})
	m := uploader.NewManager(testConfig(1, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	first, err := m.Enqueue(stimulus("slow.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-adapter.started
	second, err := m.Enqueue(stimulus("next.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, ok := m.Remove(first.ID); !ok {
		t.Fatal("Remove returned false for in-flight task")
	}
	// The vacated slot admits the waiting task once the canceled transfer
	// drains.
	name := <-adapter.started
	if name != "next.png" {
		t.Fatalf("admitted %q after removal, want next.png", name)
	}
	close(adapter.release)
	waitSettled(t, m)

	if _, ok := m.Task(first.ID); ok {
		t.Fatal("removed task still present")
	}
	got, _ := m.Task(second.ID)
	if got.Status != queue.StatusComplete {
		t.Fatalf("status = %v, want complete", got.Status)
	}
}

func TestRemoveFreesSlotBeforeCancelAcknowledged(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.started = make(chan string, 4)
	adapter.release = make(chan struct{})
	adapter.cancelHold = make(chan struct{})
	m := uploader.NewManager(testConfig(1, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	first, err := m.Enqueue(stimulus("evicted.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-adapter.started
	second, err := m.Enqueue(stimulus("replacement.png"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, ok := m.Remove(first.ID); !ok {
		t.Fatal("Remove returned false for in-flight task")
	}

	// The slot is free the moment the task is evicted; the waiting task must
	// be admitted while the canceled transfer is still draining.
	select {
	case name := <-adapter.started:
		if name != "replacement.png" {
			t.Fatalf("admitted %q, want replacement.png", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("replacement admission waited for cancellation acknowledgment")
	}
	got, ok := m.Task(second.ID)
	if !ok || got.Status != queue.StatusUploading {
		t.Fatalf("replacement status = %v, want uploading", got.Status)
	}

	close(adapter.cancelHold)
	close(adapter.release)
	waitSettled(t, m)

	got, _ = m.Task(second.ID)
	if got.Status != queue.StatusComplete {
		t.Fatalf("replacement status after settle = %v, want complete", got.Status)
	}
	if _, ok := m.Task(first.ID); ok {
		t.Fatal("evicted task still present")
	}
}

func TestClearCancelsEverything(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	adapter.started = make(chan string, 4)
	adapter.release = make(chan struct{})
	m := uploader.NewManager(testConfig(2, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	for i := 0; i < 4; i++ {
		if _, err := m.Enqueue(stimulus(fmt.Sprintf("bulk-%d.png", i))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	<-adapter.started
	<-adapter.started

	removed := m.Clear()
	if len(removed) != 4 {
		t.Fatalf("cleared %d tasks, want 4", len(removed))
	}
	waitSettled(t, m)
	if got := len(m.Tasks()); got != 0 {
		t.Fatalf("queue length after clear = %d, want 0", got)
	}
}

func TestOverallProgressMeansAcrossTasks(t *testing.T) {
	t.Parallel()

	adapter := newFakeAdapter()
	m := uploader.NewManager(testConfig(2, 0), adapter, logging.NewNop(), uploader.Callbacks{})

	if _, err := m.Enqueue(stimulus("one.png")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := m.Enqueue(stimulus("two.png")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	waitSettled(t, m)

	if got := m.OverallProgress(); got != 100 {
		t.Fatalf("overall progress = %d, want 100", got)
	}
}
