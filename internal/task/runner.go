package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunnerNotStarted is returned by Stop when Start was never called.
var ErrRunnerNotStarted = errors.New("task runner not started")

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// TaskTimeout bounds a single Execute call. Zero means no limit.
	TaskTimeout time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount: 2,
		QueueSize:   100,
		TaskTimeout: 30 * time.Second,
	}
}

// TaskRunner executes submitted tasks on a fixed pool of workers.
type TaskRunner struct {
	queue      *TaskQueue
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewTaskRunner creates a new TaskRunner. Workers are not started until Start.
func NewTaskRunner(config TaskRunnerConfig, logger *slog.Logger) *TaskRunner {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}

	logger = logger.With("component", "task_runner")
	ctx, cancel := context.WithCancel(context.Background())

	return &TaskRunner{
		queue:  NewTaskQueue(config.QueueSize, logger),
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
	}
}

// SetErrorHandler replaces the handler called when a task returns an error.
// It must be called before Start.
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit queues task without blocking. It fails with ErrQueueFull or
// ErrQueueClosed; ctx is used only for logging.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	if err := r.queue.Enqueue(task); err != nil {
		r.logger.WarnContext(ctx, "task rejected",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
		return err
	}
	return nil
}

// Start launches the workers. Calling Start twice has no effect.
func (r *TaskRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.logger.Info("task runner started", "workers", r.config.WorkerCount, "queue_size", r.config.QueueSize)
}

// Stop closes the queue and waits for the workers to finish the tasks
// already accepted. If ctx ends first, running tasks are cancelled and
// Stop returns ctx.Err() once the workers exit.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	r.queue.Close()
	if !started {
		r.cancel()
		return ErrRunnerNotStarted
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		r.logger.Warn("task runner stopped before draining the queue", "error", ctx.Err())
		return ctx.Err()
	}
}

func (r *TaskRunner) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("starting worker", "worker_id", id)

	for task := range r.queue.Channel() {
		r.processTask(task, id)
	}
	r.logger.Debug("task channel closed, stopping worker", "worker_id", id)
}

func (r *TaskRunner) processTask(task Task, workerID int) {
	log := r.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	ctx := r.ctx
	if r.config.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.TaskTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error("task panicked", "panic", p)
			r.errHandler(task, errors.New("task panicked"))
		}
	}()

	start := time.Now()
	if err := task.Execute(ctx); err != nil {
		r.errHandler(task, err)
		return
	}
	log.Debug("task completed", "duration_ms", time.Since(start).Milliseconds())
}
