package engine

import (
	"context"
	"sync"
)

// Task is a unit of deferred work run by a scheduler worker.
type Task func(ctx context.Context)

// task is a ready task stamped with its scheduling seq.
type task struct {
	seq  int64
	name string
	fn   Task
}

// taskQueue is a thread-safe FIFO of ready tasks.
//
// The queue is unbounded so that timer callbacks never block. Timers
// enqueue from their own goroutines while scheduler workers dequeue.
//
// The signal channel lets workers wait with a context in the same select.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	active int // dequeued and not yet Done
	closed bool
	signal chan struct{} // buffered, size 1
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)
	q.notify()
	return true
}

// TryDequeue removes the front task without blocking and counts it as
// active until Done. Returns (task{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}

	t := q.tasks[0]
	q.active++

	// Clear the slot so the closure can be collected.
	q.tasks[0] = task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
		// Signals coalesce; pass one on so an idle worker picks up the rest.
		if !q.closed {
			q.notify()
		}
	}

	return t, true
}

// notify must be called with mu held and the queue open.
func (q *taskQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Wait returns a channel that signals when tasks may be available.
// The channel is closed once the queue is closed.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Done marks one dequeued task as finished.
func (q *taskQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active > 0 {
		q.active--
	}
}

// Busy returns the number of queued plus running tasks.
func (q *taskQueue) Busy() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks) + q.active
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drained reports whether the queue is closed and empty.
func (q *taskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Close signals that no more tasks will be enqueued and wakes all waiters.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
