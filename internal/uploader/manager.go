package uploader

import (
	"context"
	"log/slog"
	"sync"

	"qupload/internal/config"
	"qupload/internal/logging"
	"qupload/internal/policy"
	"qupload/internal/queue"
	"qupload/internal/services"
	"qupload/internal/transport"
)

// Callbacks are the manager's outbound notifications. Both fields are
// optional; a nil callback is simply skipped. Callbacks are invoked without
// the manager lock held, so they may call back into the manager.
type Callbacks struct {
	// OnError fires when a task settles in the error state, and when a file
	// is rejected before entering the queue. Rejected files carry an empty
	// task ID.
	OnError func(task queue.Task, err error)

	// OnAllComplete fires once each time the queue transitions into the
	// all-settled state. Enqueueing new work re-arms it.
	OnAllComplete func()
}

// Manager admits queued uploads into a bounded set of in-flight transfers.
// Admission is FIFO by enqueue order; a vacated slot immediately pulls the
// oldest pending task. All state changes funnel through one mutex, so the
// in-flight count can never exceed the configured bound.
type Manager struct {
	cfg       *config.Config
	queue     *queue.Queue
	gate      *policy.Gate
	adapter   transport.Adapter
	logger    *slog.Logger
	callbacks Callbacks

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	wg      sync.WaitGroup
	armed   bool
	closing bool
}

// NewManager constructs an upload manager from configuration.
func NewManager(cfg *config.Config, adapter transport.Adapter, logger *slog.Logger, callbacks Callbacks) *Manager {
	return &Manager{
		cfg:       cfg,
		queue:     queue.New(),
		gate:      policy.NewGate(cfg.Policy),
		adapter:   adapter,
		logger:    logging.NewComponentLogger(logger, "uploader"),
		callbacks: callbacks,
		active:    make(map[string]context.CancelFunc),
	}
}

// Enqueue validates one file and, on acceptance, adds it to the queue and
// starts it immediately when a slot is free. Rejected files never enter the
// queue; the error carries the rejection reason and OnError fires.
func (m *Manager) Enqueue(file queue.FileRef) (queue.Task, error) {
	if err := m.gate.Validate(file); err != nil {
		m.logger.Warn("file rejected",
			logging.String("file", file.Name),
			logging.String(logging.FieldEventType, "upload_rejected"),
			logging.Error(err),
		)
		rejected := queue.Task{File: file, Status: queue.StatusError, ErrMessage: services.Message(err)}
		m.notifyError(rejected, err)
		return queue.Task{}, err
	}

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return queue.Task{}, services.Wrap(services.ErrCanceled, "uploader", "enqueue", "manager is shutting down", nil)
	}
	task := m.queue.Enqueue(file)
	m.armed = true
	m.admitLocked()
	m.mu.Unlock()

	m.logger.Info("file queued",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("file", file.Name),
		logging.String(logging.FieldEventType, "upload_queued"),
	)
	return task, nil
}

// EnqueueAll validates and enqueues a set of files, returning the accepted
// tasks and the per-file rejection errors.
func (m *Manager) EnqueueAll(files []queue.FileRef) ([]queue.Task, []error) {
	tasks := make([]queue.Task, 0, len(files))
	var rejections []error
	for _, file := range files {
		task, err := m.Enqueue(file)
		if err != nil {
			rejections = append(rejections, err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, rejections
}

// Retry returns one failed task to the pending state and admits it when a
// slot is free. Retrying a task that is not in the error state is a no-op.
func (m *Manager) Retry(id string) bool {
	m.mu.Lock()
	ok := m.queue.MarkPendingRetry(id)
	if ok {
		m.armed = true
		m.admitLocked()
	}
	m.mu.Unlock()

	if ok {
		if task, found := m.queue.Get(id); found {
			m.logger.Info("retry requested",
				logging.String(logging.FieldTaskID, id),
				logging.String("file", task.File.Name),
				logging.Int(logging.FieldAttempt, task.RetryCount),
				logging.String(logging.FieldEventType, "upload_retry"),
			)
		}
	}
	return ok
}

// Remove takes one task out of the queue. An in-flight upload is canceled
// best-effort and its slot is freed immediately; the manager does not wait
// for the transport to acknowledge the cancellation before admitting
// replacement work.
func (m *Manager) Remove(id string) (queue.Task, bool) {
	m.mu.Lock()
	if cancel, running := m.active[id]; running {
		cancel()
		delete(m.active, id)
	}
	task, ok := m.queue.Remove(id)
	m.admitLocked()
	settled := m.settledLocked()
	m.mu.Unlock()

	if ok {
		m.logger.Info("task removed",
			logging.String(logging.FieldTaskID, id),
			logging.String("file", task.File.Name),
			logging.String(logging.FieldEventType, "upload_removed"),
		)
	}
	if settled {
		m.notifyAllComplete()
	}
	return task, ok
}

// Clear empties the queue and cancels every in-flight upload best-effort,
// freeing all slots without waiting for the transports to drain.
func (m *Manager) Clear() []queue.Task {
	m.mu.Lock()
	for id, cancel := range m.active {
		cancel()
		delete(m.active, id)
	}
	removed := m.queue.Clear()
	settled := m.settledLocked()
	m.mu.Unlock()

	if len(removed) > 0 {
		m.logger.Info("queue cleared",
			logging.Int("removed", len(removed)),
			logging.String(logging.FieldEventType, "queue_cleared"),
		)
	}
	if settled {
		m.notifyAllComplete()
	}
	return removed
}

// Close cancels all in-flight uploads and waits for their goroutines to
// drain. The manager accepts no new work afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closing = true
	for _, cancel := range m.active {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Wait blocks until every queued task has settled or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task returns a snapshot of one task.
func (m *Manager) Task(id string) (queue.Task, bool) {
	return m.queue.Get(id)
}

// Tasks returns snapshots of every task in enqueue order.
func (m *Manager) Tasks() []queue.Task {
	return m.queue.All()
}

// Counts returns per-status totals.
func (m *Manager) Counts() queue.Counts {
	return m.queue.Counts()
}

// ActiveUploads returns snapshots of the in-flight tasks.
func (m *Manager) ActiveUploads() []queue.Task {
	return m.queue.ByStatus(queue.StatusUploading)
}

// CompletedUploads returns snapshots of the finished tasks.
func (m *Manager) CompletedUploads() []queue.Task {
	return m.queue.ByStatus(queue.StatusComplete)
}

// FailedUploads returns snapshots of the failed tasks.
func (m *Manager) FailedUploads() []queue.Task {
	return m.queue.ByStatus(queue.StatusError)
}

// OverallProgress returns the mean progress across all tasks.
func (m *Manager) OverallProgress() int {
	return m.queue.OverallProgress()
}

// AllSettled reports whether no task is pending or in flight.
func (m *Manager) AllSettled() bool {
	return m.queue.AllSettled()
}

// admitLocked fills vacant slots from the pending backlog in FIFO order.
// Callers must hold m.mu.
func (m *Manager) admitLocked() {
	if m.closing {
		return
	}
	for len(m.active) < m.cfg.Upload.MaxConcurrent {
		task, ok := m.queue.NextPending()
		if !ok {
			return
		}
		if !m.queue.MarkUploading(task.ID) {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		ctx = services.WithTaskID(ctx, task.ID)
		m.active[task.ID] = cancel
		m.wg.Add(1)
		go m.run(ctx, task)
	}
}

// run performs one upload attempt and applies its outcome.
func (m *Manager) run(ctx context.Context, task queue.Task) {
	defer m.wg.Done()

	logger := logging.WithContext(ctx, m.logger)
	logger.Info("upload started",
		logging.String("file", task.File.Name),
		logging.Int(logging.FieldAttempt, task.RetryCount),
		logging.String(logging.FieldEventType, "upload_started"),
	)

	result, err := m.adapter.Upload(ctx, task.File, func(percent int) {
		m.queue.UpdateProgress(task.ID, percent)
	})

	m.mu.Lock()
	if cancel, ok := m.active[task.ID]; ok {
		cancel()
		delete(m.active, task.ID)
	}

	var settledErr error
	switch {
	case err == nil:
		m.queue.MarkComplete(task.ID, result.URL)
		logger.Info("upload complete",
			logging.String("file", task.File.Name),
			logging.String("url", result.URL),
			logging.String(logging.FieldEventType, "upload_complete"),
		)
	case services.IsCanceled(err):
		// Removal already took the task out of the queue; a shutdown cancel
		// leaves it behind, so record the interruption.
		m.queue.MarkFailed(task.ID, "Upload canceled")
		logger.Info("upload canceled",
			logging.String("file", task.File.Name),
			logging.String(logging.FieldEventType, "upload_canceled"),
		)
	case services.IsTransient(err) && task.RetryCount < m.cfg.Upload.AutoRetries:
		m.queue.MarkFailed(task.ID, services.Message(err))
		m.queue.MarkPendingRetry(task.ID)
		logger.Warn("upload failed, retrying",
			logging.String("file", task.File.Name),
			logging.Int(logging.FieldAttempt, task.RetryCount+1),
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_auto_retry"),
		)
	default:
		m.queue.MarkFailed(task.ID, services.Message(err))
		settledErr = err
		logger.Error("upload failed",
			logging.String("file", task.File.Name),
			logging.Error(err),
			logging.String(logging.FieldEventType, "upload_failed"),
		)
	}

	m.admitLocked()
	settled := m.settledLocked()
	m.mu.Unlock()

	if settledErr != nil {
		if failed, ok := m.queue.Get(task.ID); ok {
			m.notifyError(failed, settledErr)
		}
	}
	if settled {
		m.notifyAllComplete()
	}
}

// settledLocked disarms and reports the all-complete edge exactly once per
// transition into the settled state. Callers must hold m.mu.
func (m *Manager) settledLocked() bool {
	if !m.armed || len(m.active) > 0 || !m.queue.AllSettled() {
		return false
	}
	m.armed = false
	return true
}

func (m *Manager) notifyError(task queue.Task, err error) {
	if m.callbacks.OnError != nil {
		m.callbacks.OnError(task, err)
	}
}

func (m *Manager) notifyAllComplete() {
	if m.callbacks.OnAllComplete != nil {
		m.callbacks.OnAllComplete()
	}
}
