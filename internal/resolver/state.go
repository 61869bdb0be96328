package resolver

import (
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/watch"
)

// State is a resolver state.
type State int

const (
	StateNew State = iota
	StateResolving
	StateComplete
	StateIncomplete
	StateNoRule
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateResolving:
		return "RESOLVING"
	case StateComplete:
		return "COMPLETE"
	case StateIncomplete:
		return "INCOMPLETE"
	case StateNoRule:
		return "NO_RULE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateIncomplete || s == StateNoRule
}

// GroupResult is the judgement for one result group.
type GroupResult struct {
	ResultID uint64
	Expected int
	Matched  []watch.Point
	Complete bool
	Report   string
	Err      error
}

// Outcome is the terminal result of one Process call.
type Outcome struct {
	State     State
	Principal watch.Point
	Groups    []GroupResult
}

// Reports returns the paths of every composed report.
func (o Outcome) Reports() []string {
	var out []string
	for _, g := range o.Groups {
		if g.Report != "" {
			out = append(out, g.Report)
		}
	}
	return out
}

// The UI_BLOCK_6S pattern on ACE counts a fully matched group as UI jank,
// which is reported elsewhere.
const (
	aceDomain         = "ACE"
	aceBlock6S        = "UI_BLOCK_6S"
	aceBlockRecovered = "UI_BLOCK_RECOVERED"
)

// minOrMatches is the completeness threshold for groups using the or action.
const minOrMatches = 2

// Judge reports whether matched completes group for principal.
//
// Default: every edge matched. Groups with an or edge need at least two
// matches. ACE/UI_BLOCK_6S is complete only with exactly one edge missing
// and no UI_BLOCK_RECOVERED among the matches.
func Judge(principal watch.Point, group rules.Group, matched []watch.Point) bool {
	expected := group.Expected()

	if principal.Domain() == aceDomain && principal.EventID() == aceBlock6S {
		if len(matched) == expected {
			return false
		}
		if len(matched) != expected-1 {
			return false
		}
		for _, p := range matched {
			if p.EventID() == aceBlockRecovered {
				return false
			}
		}
		return true
	}

	if group.Action() == rules.ActionOr {
		return len(matched) >= minOrMatches
	}
	return len(matched) == expected
}
