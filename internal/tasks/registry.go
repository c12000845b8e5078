package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Status is the lifecycle position of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Task is a snapshot of one launched search run.
type Task struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Runner executes the work behind a task.
type Runner interface {
	Run(ctx context.Context, taskID, prompt string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, taskID, prompt string) error

func (f RunnerFunc) Run(ctx context.Context, taskID, prompt string) error {
	return f(ctx, taskID, prompt)
}

// Recorder receives every task once it reaches a terminal status.
type Recorder interface {
	RecordTask(ctx context.Context, t Task) error
}

// ErrShutdown is recorded on tasks launched after Shutdown.
var ErrShutdown = fmt.Errorf("task registry is shut down")

const recordTimeout = 10 * time.Second

// Registry owns every detached search run and its status.
type Registry struct {
	runner   Runner
	logger   *zap.Logger
	recorder Recorder
	sem      *semaphore.Weighted
	now      func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	tasks  map[string]*Task
	order  []string
	closed bool
}

// Option is a function that configures a Registry.
type Option func(*Registry)

// WithMaxConcurrent caps the number of runs executing at once. Zero means unbounded.
func WithMaxConcurrent(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRecorder archives finished tasks.
func WithRecorder(rec Recorder) Option {
	return func(r *Registry) {
		r.recorder = rec
	}
}

// NewRegistry creates a registry whose runs derive from parent but are not
// cancelled by any individual request.
func NewRegistry(parent context.Context, runner Runner, logger *zap.Logger, opts ...Option) *Registry {
	base, cancel := context.WithCancel(context.WithoutCancel(parent))
	r := &Registry{
		runner: runner,
		logger: logger.Named("tasks"),
		now:    time.Now,
		base:   base,
		cancel: cancel,
		tasks:  make(map[string]*Task),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Launch records a new task and starts it in the background. It never blocks
// on the run itself.
func (r *Registry) Launch(prompt string) string {
	t := &Task{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Status:    StatusPending,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.order = append(r.order, t.ID)
	if r.closed {
		r.mu.Unlock()
		r.finish(t.ID, ErrShutdown)
		return t.ID
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.logger.Info("Task launched", zap.String("task_id", t.ID))
	go r.run(t.ID, prompt)
	return t.ID
}

func (r *Registry) run(id, prompt string) {
	defer r.wg.Done()

	if r.sem != nil {
		if err := r.sem.Acquire(r.base, 1); err != nil {
			r.finish(id, fmt.Errorf("task cancelled while queued: %w", err))
			return
		}
		defer r.sem.Release(1)
	}

	r.mu.Lock()
	if t, ok := r.tasks[id]; ok {
		t.Status = StatusRunning
		t.StartedAt = r.now()
	}
	r.mu.Unlock()

	r.finish(id, r.safeRun(id, prompt))
}

func (r *Registry) safeRun(id, prompt string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Task panicked",
				zap.String("task_id", id),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return r.runner.Run(r.base, id, prompt)
}

func (r *Registry) finish(id string, runErr error) {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	t.FinishedAt = r.now()
	if runErr != nil {
		t.Status = StatusFailed
		t.Error = runErr.Error()
	} else {
		t.Status = StatusSucceeded
	}
	snapshot := *t
	r.mu.Unlock()

	if runErr != nil {
		r.logger.Error("Task failed", zap.String("task_id", id), zap.Error(runErr))
	} else {
		r.logger.Info("Task succeeded", zap.String("task_id", id),
			zap.Duration("duration", snapshot.FinishedAt.Sub(snapshot.CreatedAt)))
	}

	if r.recorder != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.base), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordTask(ctx, snapshot); err != nil {
			r.logger.Warn("Failed to record task", zap.String("task_id", id), zap.Error(err))
		}
	}
}

// Get returns a snapshot of the task.
func (r *Registry) Get(id string) (Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns snapshots of every task, newest first.
func (r *Registry) List() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Task, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.tasks[r.order[i]])
	}
	return out
}

// Shutdown cancels every run and waits for them to return or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for tasks to stop: %w", ctx.Err())
	}
}
