package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/freezewatch/internal/testutil"
)

func startScheduler(t *testing.T, opts ...SchedulerOption) (*Scheduler, context.CancelFunc, <-chan error) {
	t.Helper()
	s := NewScheduler(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(cancel)
	return s, cancel, done
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
		return ""
	}
}

func TestScheduler_RunAfter_WaitsForTimer(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	s, _, _ := startScheduler(t, WithAfterFunc(clock.AfterFunc), WithWorkers(2))

	ran := make(chan string, 1)
	seq, err := s.RunAfter("ACE/UI_BLOCK_6S", 3*time.Second, func(context.Context) { ran <- "ran" })
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, 1, s.Pending())

	clock.Advance(2 * time.Second)
	select {
	case <-ran:
		t.Fatal("task ran before its delay")
	case <-time.After(20 * time.Millisecond):
	}

	clock.Advance(time.Second)
	assert.Equal(t, "ran", waitFor(t, ran))
}

func TestScheduler_ZeroDelayRunsImmediately(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	s, _, _ := startScheduler(t, WithAfterFunc(clock.AfterFunc))

	ran := make(chan string, 1)
	_, err := s.RunAfter("AAFWK/LIFECYCLE_TIMEOUT", 0, func(context.Context) { ran <- "now" })
	require.NoError(t, err)

	assert.Equal(t, "now", waitFor(t, ran))
	assert.Equal(t, 0, clock.Pending(), "no timer armed for zero delay")
}

func TestScheduler_FIFOOnSingleWorker(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	s, _, _ := startScheduler(t, WithAfterFunc(clock.AfterFunc), WithWorkers(1))

	ran := make(chan string, 3)
	for _, d := range []time.Duration{3 * time.Second, time.Second, 2 * time.Second} {
		name := d.String()
		_, err := s.RunAfter(name, d, func(context.Context) { ran <- name })
		require.NoError(t, err)
	}

	clock.Advance(5 * time.Second)
	assert.Equal(t, "1s", waitFor(t, ran))
	assert.Equal(t, "2s", waitFor(t, ran))
	assert.Equal(t, "3s", waitFor(t, ran))
}

func TestScheduler_PanicDoesNotKillWorker(t *testing.T) {
	s, _, _ := startScheduler(t, WithWorkers(1))

	_, err := s.RunAfter("boom", 0, func(context.Context) { panic("boom") })
	require.NoError(t, err)

	ran := make(chan string, 1)
	_, err = s.RunAfter("after", 0, func(context.Context) { ran <- "after" })
	require.NoError(t, err)

	assert.Equal(t, "after", waitFor(t, ran))
}

func TestScheduler_StopDropsPendingTimers(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	s, _, done := startScheduler(t, WithAfterFunc(clock.AfterFunc))

	_, err := s.RunAfter("dropped", time.Minute, func(context.Context) { t.Error("dropped task ran") })
	require.NoError(t, err)

	s.Stop()
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, 0, s.Pending())

	_, err = s.RunAfter("late", 0, func(context.Context) {})
	assert.ErrorIs(t, err, ErrSchedulerStopped)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestScheduler_RunReturnsOnCancel(t *testing.T) {
	_, cancel, done := startScheduler(t)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_ConcurrentRunAfter(t *testing.T) {
	s, _, _ := startScheduler(t, WithWorkers(4))

	const tasks = 200
	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	wg.Add(tasks)
	for i := 0; i < tasks; i++ {
		go func() {
			_, err := s.RunAfter("t", 0, func(context.Context) {
				mu.Lock()
				count++
				mu.Unlock()
				wg.Done()
			})
			assert.NoError(t, err)
		}()
	}

	finished := make(chan struct{})
	go func() { wg.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("not all tasks ran")
	}
	assert.Equal(t, tasks, count)
}

func TestScheduler_WaitIdle(t *testing.T) {
	clock := testutil.NewFakeClock(time.Unix(0, 0))
	s, _, _ := startScheduler(t, WithAfterFunc(clock.AfterFunc), WithWorkers(1))

	release := make(chan struct{})
	var ran sync.WaitGroup
	ran.Add(1)
	_, err := s.RunAfter("slow", 0, func(context.Context) {
		<-release
		ran.Done()
	})
	require.NoError(t, err)
	_, err = s.RunAfter("later", time.Minute, func(context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.WaitIdle(ctx), context.DeadlineExceeded, "running task keeps the scheduler busy")

	close(release)
	ran.Wait()
	require.NoError(t, s.WaitIdle(context.Background()))
	assert.Equal(t, 1, s.Pending(), "timer-bound tasks do not block WaitIdle")
}
