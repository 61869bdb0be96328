// Package ingest feeds raw events into the event store and the
// correlation plugin.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/freezewatch/internal/engine"
	"github.com/roach88/freezewatch/internal/store"
)

// ErrInvalidEvent is returned for payloads that cannot be ingested.
var ErrInvalidEvent = errors.New("invalid event")

// EventStore persists events.
type EventStore interface {
	Append(ctx context.Context, rec store.Record) (int64, error)
}

// Dispatcher receives stored events.
type Dispatcher interface {
	OnEvent(ctx context.Context, ev engine.RawEvent) bool
}

// StateObserver tracks process lifecycle events.
type StateObserver interface {
	Observe(domain, eventID string, pid, timestamp int64) bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStateObserver forwards every event to obs before dispatch.
func WithStateObserver(obs StateObserver) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithNow replaces the clock used to stamp events without a timestamp.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline stores an event, updates process state, then dispatches it.
// Dispatch happens after the append so that the principal is visible to
// its own window query.
type Pipeline struct {
	store      EventStore
	dispatcher Dispatcher
	observer   StateObserver
	now        func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(s EventStore, d Dispatcher, opts ...Option) *Pipeline {
	p := &Pipeline{store: s, dispatcher: d, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode parses a JSON event.
func Decode(data []byte) (engine.RawEvent, error) {
	var ev engine.RawEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return engine.RawEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.Domain == "" || ev.EventID == "" {
		return engine.RawEvent{}, fmt.Errorf("%w: domain and event_id are required", ErrInvalidEvent)
	}
	return ev, nil
}

// Handle decodes and ingests one JSON payload. It satisfies
// messaging.Handler.
func (p *Pipeline) Handle(ctx context.Context, data []byte) error {
	ev, err := Decode(data)
	if err != nil {
		return err
	}
	_, _, err = p.Ingest(ctx, ev)
	return err
}

// Ingest stores ev and dispatches it. Returns the event as stored (seq
// assigned) and whether a resolution was scheduled.
func (p *Pipeline) Ingest(ctx context.Context, ev engine.RawEvent) (engine.RawEvent, bool, error) {
	ev = p.Normalize(ev)

	seq, err := p.store.Append(ctx, Record(ev))
	if err != nil {
		return ev, false, fmt.Errorf("store event %s/%s: %w", ev.Domain, ev.EventID, err)
	}
	ev.Seq = seq

	if p.observer != nil {
		p.observer.Observe(ev.Domain, ev.EventID, ev.Pid, ev.Timestamp)
	}

	scheduled := p.dispatcher.OnEvent(ctx, ev)
	slog.Debug("event ingested",
		"seq", ev.Seq,
		"domain", ev.Domain,
		"event_id", ev.EventID,
		"scheduled", scheduled,
	)
	return ev, scheduled, nil
}

// Normalize stamps missing timestamps, falls back to header pid and uid,
// and folds an explicit log path into the info string, where stored
// companions carry it.
func (p *Pipeline) Normalize(ev engine.RawEvent) engine.RawEvent {
	if ev.Timestamp == 0 {
		ev.Timestamp = p.now().UnixMilli()
	}
	if ev.Pid == 0 {
		ev.Pid = ev.HeaderPid
	}
	if ev.Uid == 0 {
		ev.Uid = ev.HeaderUid
	}
	if ev.LogPath != "" && !strings.Contains(ev.Info, "logPath:") {
		if ev.Info == "" {
			ev.Info = "logPath:" + ev.LogPath
		} else {
			ev.Info = "logPath:" + ev.LogPath + "," + ev.Info
		}
	}
	return ev
}

// Record converts ev to its stored form.
func Record(ev engine.RawEvent) store.Record {
	return store.Record{
		Seq:         ev.Seq,
		Domain:      ev.Domain,
		EventID:     ev.EventID,
		Timestamp:   ev.Timestamp,
		Pid:         ev.Pid,
		Tid:         ev.Tid,
		Uid:         ev.Uid,
		PackageName: ev.PackageName,
		ProcessName: ev.ProcessName,
		Message:     ev.Message,
		Info:        ev.Info,
		HitraceTime: ev.HitraceTime,
		SysrqTime:   ev.SysrqTime,
	}
}
