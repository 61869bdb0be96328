// Package resolver judges whether a principal event completes a freeze
// rule and, when it does, composes the report and claims the evidence.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/freezewatch/internal/metrics"
	"github.com/roach88/freezewatch/internal/report"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/sink"
	"github.com/roach88/freezewatch/internal/watch"
)

// EdgeSource returns the edges configured for a principal.
type EdgeSource interface {
	Resolve(domain, eventID string) []rules.Edge
}

// Finder locates the companions satisfying one edge.
type Finder interface {
	Find(ctx context.Context, edge rules.Edge, principal watch.Point) []watch.Point
}

// Composer writes the report for a completed group.
type Composer interface {
	Compose(ctx context.Context, principal watch.Point, matched []watch.Point, group rules.Group) (string, error)
}

// Marker writes consumption marks back to the event store.
type Marker interface {
	MarkConsumed(ctx context.Context, seq int64, resultID uint64) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMetrics records outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// Resolver runs the per-principal state machine. It holds no per-call
// state and is safe for concurrent use.
type Resolver struct {
	edges    EdgeSource
	finder   Finder
	composer Composer
	marker   Marker
	metrics  *metrics.Metrics
}

// New creates a Resolver.
func New(edges EdgeSource, finder Finder, composer Composer, marker Marker, opts ...Option) *Resolver {
	r := &Resolver{
		edges:    edges,
		finder:   finder,
		composer: composer,
		marker:   marker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Process resolves principal and returns the terminal outcome.
//
// Errors never escape: a compose failure degrades its group to incomplete
// and a failed consumption mark is logged.
func (r *Resolver) Process(ctx context.Context, principal watch.Point) Outcome {
	start := time.Now()
	out := Outcome{State: StateNew, Principal: principal}
	defer func() {
		r.metrics.IncResolution(out.State.String())
		r.metrics.ObserveResolve(time.Since(start))
	}()

	edges := r.edges.Resolve(principal.Domain(), principal.EventID())
	if len(edges) == 0 {
		out.State = StateNoRule
		slog.Debug("no rule for event", "principal", principal.Key().String())
		return out
	}
	out.State = StateResolving

	complete := false
	for _, group := range rules.GroupByResult(edges) {
		gr := r.resolveGroup(ctx, principal, group)
		if gr.Complete {
			complete = true
		}
		out.Groups = append(out.Groups, gr)
	}

	if complete {
		out.State = StateComplete
	} else {
		out.State = StateIncomplete
	}
	return out
}

func (r *Resolver) resolveGroup(ctx context.Context, principal watch.Point, group rules.Group) GroupResult {
	gr := GroupResult{ResultID: group.ResultID, Expected: group.Expected(), Matched: []watch.Point{}}
	for _, edge := range group.Edges {
		gr.Matched = append(gr.Matched, r.finder.Find(ctx, edge, principal)...)
	}

	if !Judge(principal, group, gr.Matched) {
		slog.Debug("freeze pattern incomplete",
			"principal", principal.Key().String(),
			"result_id", group.ResultID,
			"matched", len(gr.Matched),
			"expected", gr.Expected)
		return gr
	}

	path, err := r.composer.Compose(ctx, principal, gr.Matched, group)
	if err != nil {
		gr.Err = err
		if errors.Is(err, report.ErrNothingToCompose) {
			slog.Debug("complete group has nothing in scope", "principal", principal.Key().String(), "result_id", group.ResultID)
		} else {
			slog.Warn("report composition failed",
				"principal", principal.Key().String(),
				"result_id", group.ResultID,
				"error", err)
		}
		return gr
	}
	gr.Complete = true
	gr.Report = path
	if group.IsApplication() {
		r.metrics.IncReport(string(sink.KindAppFreeze))
	} else {
		r.metrics.IncReport(string(sink.KindSystemFreeze))
	}

	for _, p := range gr.Matched {
		if p.Seq() == 0 {
			continue
		}
		if err := r.marker.MarkConsumed(ctx, p.Seq(), group.ResultID); err != nil {
			slog.Warn("failed to mark event consumed", "seq", p.Seq(), "result_id", group.ResultID, "error", err)
		}
	}
	return gr
}
