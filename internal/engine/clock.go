package engine

import (
	"sync/atomic"
	"time"
)

// Clock hands out strictly increasing task sequence numbers.
//
// Task seqs identify scheduled work in logs; they are unrelated to event
// store seqs.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// AfterFunc arms a one-shot timer calling f after d and returns a stop
// function reporting whether the call was prevented.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// RealAfterFunc uses the runtime timers.
func RealAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}
