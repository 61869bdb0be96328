// Package procstate tracks whether application processes are in the
// foreground, fed by lifecycle events from the event source.
package procstate

import (
	"log/slog"
	"sync"

	"github.com/roach88/freezewatch/internal/watch"
)

// Lifecycle event defaults.
const (
	DefaultDomain          = "AAFWK"
	DefaultForegroundEvent = "ABILITY_ONFOREGROUND"
	DefaultBackgroundEvent = "ABILITY_ONBACKGROUND"
)

// Option configures a Registry.
type Option func(*Registry)

// WithDomain sets the domain carrying lifecycle events.
func WithDomain(domain string) Option {
	return func(r *Registry) {
		if domain != "" {
			r.domain = domain
		}
	}
}

// WithEvents sets the event IDs marking foreground and background
// transitions. Empty values keep the defaults.
func WithEvents(foreground, background string) Option {
	return func(r *Registry) {
		if foreground != "" {
			r.foregroundEvent = foreground
		}
		if background != "" {
			r.backgroundEvent = background
		}
	}
}

type process struct {
	state          watch.Foreground
	lastForeground int64
	updated        int64
}

// Registry holds the last known foreground state per pid.
type Registry struct {
	domain          string
	foregroundEvent string
	backgroundEvent string

	mu    sync.RWMutex
	procs map[int64]*process
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		domain:          DefaultDomain,
		foregroundEvent: DefaultForegroundEvent,
		backgroundEvent: DefaultBackgroundEvent,
		procs:           make(map[int64]*process),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe applies a lifecycle event. Returns true if the event changed
// the registry; other events are ignored.
func (r *Registry) Observe(domain, eventID string, pid, timestamp int64) bool {
	if domain != r.domain || pid == 0 {
		return false
	}

	var state watch.Foreground
	switch eventID {
	case r.foregroundEvent:
		state = watch.ForegroundYes
	case r.backgroundEvent:
		state = watch.ForegroundNo
	default:
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.procs[pid]
	if !ok {
		p = &process{}
		r.procs[pid] = p
	}
	// Out-of-order deliveries must not roll state back.
	if timestamp < p.updated {
		return false
	}
	p.state = state
	p.updated = timestamp
	if state == watch.ForegroundYes {
		p.lastForeground = timestamp
	}

	slog.Debug("process state changed", "pid", pid, "foreground", state.String(), "timestamp", timestamp)
	return true
}

// ForegroundState returns the last observed state of pid.
func (r *Registry) ForegroundState(pid int64) watch.Foreground {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.procs[pid]; ok {
		return p.state
	}
	return watch.ForegroundUnknown
}

// LastForegroundTimestamp returns when pid last entered the foreground,
// or 0 if it never did.
func (r *Registry) LastForegroundTimestamp(pid int64) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.procs[pid]; ok {
		return p.lastForeground
	}
	return 0
}

// Prune forgets processes not updated since before. Returns the number
// of entries removed.
func (r *Registry) Prune(before int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for pid, p := range r.procs {
		if p.updated < before {
			delete(r.procs, pid)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked processes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.procs)
}
