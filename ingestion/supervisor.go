package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
)

// submitRetryInterval is how often Run retries a full pool.
const submitRetryInterval = 10 * time.Millisecond

// Supervisor runs tasks on a bounded worker pool. A task may outlive the
// call that started it: once the caller stops waiting the task is detached
// and its result is only logged.
type Supervisor struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// antsLogger adapts slog.Logger to the ants.Logger interface.
type antsLogger struct {
	logger *slog.Logger
}

func (l antsLogger) Printf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// NewSupervisor creates a supervisor with size workers.
func NewSupervisor(size int, logger *slog.Logger) (*Supervisor, error) {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "supervisor")

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{logger: logger}),
		ants.WithPanicHandler(func(v any) {
			logger.Error("task panicked", "panic", v)
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Supervisor{pool: pool, logger: logger}, nil
}

// handoff decides, once, whether a task's result goes back to the waiting
// caller or to the log.
type handoff struct {
	name   string
	logger *slog.Logger

	mu       sync.Mutex
	finished bool
	detached bool
	done     chan error
}

func (h *handoff) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = true
	if !h.detached {
		h.done <- err
		return
	}
	if err != nil {
		h.logger.Error("background task failed", "task", h.name, "err", err)
		return
	}
	h.logger.Info("background task finished", "task", h.name)
}

// detach reports false when the task already finished and its result is
// waiting in done.
func (h *handoff) detach() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished {
		return false
	}
	h.detached = true
	return true
}

// Run executes task and waits for it up to timeout. The task receives a
// context that keeps ctx's values but not its cancellation.
//
// The timeout also bounds the wait for a free worker. If none frees up in
// time Run returns ErrSupervisorBusy, and if ctx is done first it returns
// ctx's error; the task never starts in either case.
//
// Once started, a task that finishes in time has its error returned with
// detached false. If timeout passes first, Run returns detached true and a
// nil error. If ctx is done first, Run returns detached true and ctx's
// error. In both detached cases the task keeps running.
func (s *Supervisor) Run(ctx context.Context, name string, timeout time.Duration, task func(ctx context.Context) error) (detached bool, err error) {
	h := &handoff{name: name, logger: s.logger, done: make(chan error, 1)}
	taskCtx := context.WithoutCancel(ctx)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if err := s.submit(ctx, timer.C, func() { h.finish(task(taskCtx)) }); err != nil {
		return false, fmt.Errorf("submit %s: %w", name, err)
	}

	var reason error
	select {
	case err := <-h.done:
		return false, err
	case <-timer.C:
	case <-ctx.Done():
		reason = ctx.Err()
	}

	if !h.detach() {
		return false, <-h.done
	}
	s.logger.Warn("task detached, continuing in background", "task", name, "timeout", timeout, "reason", reason)
	return true, reason
}

// submit retries a full pool until expired fires or ctx is done.
func (s *Supervisor) submit(ctx context.Context, expired <-chan time.Time, fn func()) error {
	retry := time.NewTicker(submitRetryInterval)
	defer retry.Stop()
	for {
		err := s.pool.Submit(fn)
		if !errors.Is(err, ants.ErrPoolOverload) {
			return err
		}
		select {
		case <-retry.C:
		case <-expired:
			return ErrSupervisorBusy
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Running returns the number of tasks currently executing.
func (s *Supervisor) Running() int {
	return s.pool.Running()
}

// Release stops accepting tasks and waits up to timeout for running ones.
func (s *Supervisor) Release(timeout time.Duration) error {
	return s.pool.ReleaseTimeout(timeout)
}
