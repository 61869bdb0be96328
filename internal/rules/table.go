package rules

import (
	"log/slog"
	"sort"
	"strings"
)

// Classifier answers membership queries against the loaded rules.
// *Table implements it.
type Classifier interface {
	IsTracked(domain, eventID string) bool
	IsApplicationEvent(domain, eventID string) bool
	IsSystemEvent(domain, eventID string) bool
}

// Resolver returns the edges configured for a principal.
// *Table implements it.
type Resolver interface {
	Resolve(domain, eventID string) []Edge
}

// Table is the immutable set of loaded rules.
type Table struct {
	order []Key
	rules map[Key][]Edge

	// classification sets: key -> appears as a principal somewhere
	application map[Key]bool
	system      map[Key]bool
}

func newTable() *Table {
	return &Table{
		order:       []Key{},
		rules:       make(map[Key][]Edge),
		application: make(map[Key]bool),
		system:      make(map[Key]bool),
	}
}

// Empty returns a table with no rules.
func Empty() *Table {
	return newTable()
}

// Resolve returns every edge of the rule keyed by (domain, eventID) in
// file order. Returns an empty slice when the key has no rule.
func (t *Table) Resolve(domain, eventID string) []Edge {
	edges := t.rules[Key{Domain: domain, EventID: eventID}]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

// IsTracked reports whether the event appears anywhere in the rules.
func (t *Table) IsTracked(domain, eventID string) bool {
	return t.IsApplicationEvent(domain, eventID) || t.IsSystemEvent(domain, eventID)
}

// IsApplicationEvent reports whether the event is linked with app scope.
func (t *Table) IsApplicationEvent(domain, eventID string) bool {
	_, ok := t.application[Key{Domain: domain, EventID: eventID}]
	return ok
}

// IsSystemEvent reports whether the event is linked with system scope.
func (t *Table) IsSystemEvent(domain, eventID string) bool {
	_, ok := t.system[Key{Domain: domain, EventID: eventID}]
	return ok
}

// Principals returns every key that is the principal edge of some rule,
// sorted by domain then event id.
func (t *Table) Principals() []Key {
	set := make(map[Key]struct{})
	for k, principal := range t.application {
		if principal {
			set[k] = struct{}{}
		}
	}
	for k, principal := range t.system {
		if principal {
			set[k] = struct{}{}
		}
	}

	out := make([]Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].EventID < out[j].EventID
	})
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.order)
}

// EdgeCount returns the number of edges across all rules.
func (t *Table) EdgeCount() int {
	n := 0
	for _, edges := range t.rules {
		n += len(edges)
	}
	return n
}

// Rules returns copies of all rules in file order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Rule{Key: k, Edges: t.Resolve(k.Domain, k.EventID)})
	}
	return out
}

// addRule records a rule. Duplicate rule keys and duplicate links inside a
// rule are dropped with a warning; the first occurrence wins.
func (t *Table) addRule(source string, rd ruleDoc) {
	if rd.Domain == "" || rd.EventID == "" {
		slog.Warn("skip rule with empty key", "source", source, "domain", rd.Domain, "event_id", rd.EventID)
		return
	}
	key := Key{Domain: rd.Domain, EventID: rd.EventID}
	if _, dup := t.rules[key]; dup {
		slog.Warn("skip duplicated rule", "source", source, "rule", key.String())
		return
	}

	edges := make([]Edge, 0, len(rd.Links))
	seen := make(map[Key]bool, len(rd.Links))
	for _, ld := range rd.Links {
		if ld.Domain == "" || ld.EventID == "" {
			slog.Warn("skip link with empty key", "source", source, "rule", key.String())
			continue
		}
		to := Key{Domain: ld.Domain, EventID: ld.EventID}
		if seen[to] {
			slog.Warn("skip duplicated link", "source", source, "rule", key.String(), "link", to.String())
			continue
		}
		seen[to] = true

		e := Edge{
			FromDomain:  key.Domain,
			FromEventID: key.EventID,
			ToDomain:    to.Domain,
			ToEventID:   to.EventID,
			Window:      ld.Window,
			ResultID:    ld.Result.Code,
			Scope:       ld.Result.Scope,
			SamePackage: ld.Result.SamePackage,
			Action:      normalizeAction(source, key, ld.Result.Action),
		}
		edges = append(edges, e)
		t.classify(to, e.IsApplication(), to == key)
	}

	t.rules[key] = edges
	t.order = append(t.order, key)
}

// classify records the key in the scope's set. The principal flag is
// sticky across rules.
func (t *Table) classify(k Key, application, principal bool) {
	set := t.system
	if application {
		set = t.application
	}
	set[k] = set[k] || principal
}

func normalizeAction(source string, rule Key, action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "", ActionAnd:
		return ActionAnd
	case ActionOr:
		return ActionOr
	default:
		slog.Warn("unknown result action, using and", "source", source, "rule", rule.String(), "action", action)
		return ActionAnd
	}
}
