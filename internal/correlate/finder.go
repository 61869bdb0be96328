// Package correlate locates companion events for a principal inside the
// time window of a rule edge.
package correlate

import (
	"context"
	"log/slog"

	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/store"
	"github.com/roach88/freezewatch/internal/watch"
)

// EventStore is the chronological event log queried for companions.
// *store.Store implements it.
type EventStore interface {
	Query(ctx context.Context, domain string, eventIDs []string, start, end int64) ([]store.Record, error)
}

// Finder resolves one edge against the event store. It holds no state
// between calls and is safe for concurrent use.
type Finder struct {
	store EventStore
}

// NewFinder creates a Finder over the given store.
func NewFinder(s EventStore) *Finder {
	return &Finder{store: s}
}

// Window returns the inclusive [start, end] range searched for edge around
// timestamp t. A zero window yields [t, t].
func Window(edge rules.Edge, t int64) (start, end int64) {
	if edge.Window >= 0 {
		return t, t + edge.Window
	}
	return t + edge.Window, t
}

// Find returns the companion points satisfying edge for principal.
//
// A zero window returns the principal itself without touching the store.
// Otherwise the store is queried for edge.To() inside Window; candidates
// already consumed by the same result are skipped, the same-package policy
// is applied, and what remains is deduplicated keeping the newest record.
// The result holds at most one point per key, ordered by timestamp.
//
// A store error is logged and yields an empty result.
func (f *Finder) Find(ctx context.Context, edge rules.Edge, principal watch.Point) []watch.Point {
	if edge.Window == 0 {
		return []watch.Point{principal}
	}

	start, end := Window(edge, principal.Timestamp())
	records, err := f.store.Query(ctx, edge.ToDomain, []string{edge.ToEventID}, start, end)
	if err != nil {
		slog.Warn("companion query failed",
			"edge", edge.To().String(),
			"principal", principal.Key().String(),
			"start", start,
			"end", end,
			"error", err)
		return []watch.Point{}
	}

	candidates := make([]watch.Point, 0, len(records))
	for _, rec := range records {
		if rec.IsConsumedBy(edge.ResultID) {
			continue
		}
		p := PointFromRecord(rec)
		if edge.SamePackage && !p.SameProcess(principal) {
			continue
		}
		candidates = append(candidates, p)
	}

	found := watch.Dedupe(candidates)
	slog.Debug("companion lookup",
		"edge", edge.To().String(),
		"principal", principal.Key().String(),
		"start", start,
		"end", end,
		"records", len(records),
		"found", len(found))
	return found
}

// PointFromRecord converts a stored event into a Point. The log path is
// read from the record's info string.
func PointFromRecord(rec store.Record) watch.Point {
	return watch.New(watch.Fields{
		Seq:         rec.Seq,
		Domain:      rec.Domain,
		EventID:     rec.EventID,
		Timestamp:   rec.Timestamp,
		Pid:         rec.Pid,
		Tid:         rec.Tid,
		Uid:         rec.Uid,
		PackageName: rec.PackageName,
		ProcessName: rec.ProcessName,
		Message:     rec.Message,
		LogPath:     watch.ParseLogPath(rec.Info),
		HitraceTime: rec.HitraceTime,
		SysrqTime:   rec.SysrqTime,
	})
}
