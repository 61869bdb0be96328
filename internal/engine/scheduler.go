package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/freezewatch/internal/metrics"
)

// DefaultWorkers is the default size of the scheduler worker pool.
const DefaultWorkers = 4

// ErrSchedulerStopped is returned by RunAfter once Stop has been called.
var ErrSchedulerStopped = errors.New("scheduler stopped")

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers sets the worker pool size. Values below 1 are ignored.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithAfterFunc replaces the timer source, typically with a fake in tests.
func WithAfterFunc(f AfterFunc) SchedulerOption {
	return func(s *Scheduler) { s.afterFunc = f }
}

// WithSchedulerMetrics records scheduling counters in m.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// Scheduler runs tasks after a delay on a fixed pool of workers.
//
// RunAfter never blocks: it arms a timer whose callback moves the task onto
// the ready queue. Workers started by Run drain the queue in FIFO order.
// Pending timers are dropped by Stop; tasks cannot be cancelled.
type Scheduler struct {
	clock     *Clock
	queue     *taskQueue
	afterFunc AfterFunc
	workers   int
	metrics   *metrics.Metrics

	mu      sync.Mutex
	timers  map[int64]func() bool
	stopped bool
}

// NewScheduler creates a Scheduler. Call Run to start the workers.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		clock:     NewClock(),
		queue:     newTaskQueue(),
		afterFunc: RealAfterFunc,
		workers:   DefaultWorkers,
		timers:    make(map[int64]func() bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunAfter schedules fn to run after d. A non-positive d makes the task
// ready immediately. Returns the task seq.
func (s *Scheduler) RunAfter(name string, d time.Duration, fn Task) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrSchedulerStopped
	}

	t := task{seq: s.clock.Next(), name: name, fn: fn}
	s.metrics.IncScheduled()

	if d <= 0 {
		s.queue.Enqueue(t)
		s.reportPending()
		return t.seq, nil
	}

	s.timers[t.seq] = s.afterFunc(d, func() { s.fire(t) })
	s.reportPending()
	slog.Debug("task scheduled", "seq", t.seq, "task", name, "delay", d)
	return t.seq, nil
}

// fire runs on the timer goroutine.
func (s *Scheduler) fire(t task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.timers, t.seq)
	if s.stopped {
		return
	}
	s.queue.Enqueue(t)
	s.reportPending()
}

// Pending returns the number of tasks waiting on a timer or in the queue.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers) + s.queue.Len()
}

// Busy returns the number of tasks that are ready or running. Tasks still
// waiting on a timer are not counted.
func (s *Scheduler) Busy() int {
	return s.queue.Busy()
}

// WaitIdle blocks until no task is ready or running.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()
	for s.Busy() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

const idlePoll = 5 * time.Millisecond

func (s *Scheduler) reportPending() {
	s.metrics.SetPending(len(s.timers) + s.queue.Len())
}

// Run starts the worker pool and blocks until the context is cancelled or
// Stop is called and the ready queue has drained.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("scheduler starting", "workers", s.workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		id := i
		g.Go(func() error {
			return s.work(gctx, id)
		})
	}

	err := g.Wait()
	s.Stop()
	if errors.Is(err, context.Canceled) {
		slog.Info("scheduler stopping: context cancelled")
	}
	return err
}

func (s *Scheduler) work(ctx context.Context, id int) error {
	for {
		t, ok := s.queue.TryDequeue()
		if ok {
			s.execute(ctx, id, t)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.queue.Wait():
			if s.queue.Drained() {
				return nil
			}
		}
	}
}

// execute runs one task. Panics are logged and the worker keeps going.
func (s *Scheduler) execute(ctx context.Context, worker int, t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked",
				"seq", t.seq,
				"task", t.name,
				"worker", worker,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
		s.queue.Done()
		s.mu.Lock()
		s.reportPending()
		s.mu.Unlock()
	}()

	slog.Debug("task running", "seq", t.seq, "task", t.name, "worker", worker)
	t.fn(ctx)
}

// Stop drops pending timers and closes the ready queue. Tasks already
// queued still run if workers are alive.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	dropped := 0
	for seq, stop := range s.timers {
		if stop() {
			dropped++
		}
		delete(s.timers, seq)
	}
	s.queue.Close()
	s.reportPending()
	if dropped > 0 {
		slog.Warn("scheduler stopped with pending tasks", "dropped", dropped)
	}
}
