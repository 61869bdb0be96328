package rules

import (
	"sort"

	"github.com/roach88/freezewatch/internal/watch"
)

// Key identifies an event type by (domain, eventId).
type Key = watch.Key

// ScopeApp marks application-scoped results. Any other scope is system.
const ScopeApp = "app"

// Result actions.
const (
	ActionAnd = "and"
	ActionOr  = "or"
)

// Edge links a principal event to one companion event.
type Edge struct {
	FromDomain  string
	FromEventID string
	ToDomain    string
	ToEventID   string

	// Window is a signed offset in milliseconds from the principal's
	// timestamp: 0 is the principal itself, >0 searches [t, t+W],
	// <0 searches [t+W, t].
	Window int64

	ResultID    uint64
	Scope       string
	SamePackage bool
	Action      string
}

// From returns the principal key of the edge.
func (e Edge) From() Key { return Key{Domain: e.FromDomain, EventID: e.FromEventID} }

// To returns the companion key of the edge.
func (e Edge) To() Key { return Key{Domain: e.ToDomain, EventID: e.ToEventID} }

// IsPrincipal reports whether the edge points back at its own rule.
func (e Edge) IsPrincipal() bool { return e.From() == e.To() }

// IsApplication reports whether the edge is application-scoped.
func (e Edge) IsApplication() bool { return e.Scope == ScopeApp }

// Rule is a read-only copy of one rule and its edges in file order.
type Rule struct {
	Key   Key
	Edges []Edge
}

// Group is the set of edges sharing one result code.
type Group struct {
	ResultID uint64
	Edges    []Edge
}

// Expected is the number of edges that must match for the group to be
// complete under the default policy.
func (g Group) Expected() int { return len(g.Edges) }

// IsApplication reports the scope of the group. The principal edge
// decides; without one the first edge does.
func (g Group) IsApplication() bool {
	for _, e := range g.Edges {
		if e.IsPrincipal() {
			return e.IsApplication()
		}
	}
	if len(g.Edges) == 0 {
		return false
	}
	return g.Edges[0].IsApplication()
}

// Action returns ActionOr when any edge of the group carries it.
func (g Group) Action() string {
	for _, e := range g.Edges {
		if e.Action == ActionOr {
			return ActionOr
		}
	}
	return ActionAnd
}

// GroupByResult partitions edges by ResultID. Groups are ordered by
// ascending ResultID; edges keep their input order inside a group.
func GroupByResult(edges []Edge) []Group {
	index := make(map[uint64]int)
	var groups []Group
	for _, e := range edges {
		i, ok := index[e.ResultID]
		if !ok {
			i = len(groups)
			index[e.ResultID] = i
			groups = append(groups, Group{ResultID: e.ResultID})
		}
		groups[i].Edges = append(groups[i].Edges, e)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].ResultID < groups[j].ResultID
	})
	return groups
}

// Delay returns the widest forward window of any result group in edges,
// in milliseconds: the time after which every group's window has closed.
// Returns 0 when no edge looks forward in time.
func Delay(edges []Edge) int64 {
	var broadest int64
	for _, g := range GroupByResult(edges) {
		if w := g.Window(); w > broadest {
			broadest = w
		}
	}
	return broadest
}

// Window returns the largest positive window in the group, or 0.
func (g Group) Window() int64 {
	var max int64
	for _, e := range g.Edges {
		if e.Window > max {
			max = e.Window
		}
	}
	return max
}
