package harness

import (
	"fmt"
	"os"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(ev))
	}
	return buf.String()
}

func describe(ev TraceEvent) string {
	switch ev.Type {
	case TypeEvent:
		return fmt.Sprintf("event %s seq=%d scheduled=%t", ev.Key, ev.Seq, ev.Scheduled)
	case TypeAdvance:
		return fmt.Sprintf("advance to %d", ev.At)
	case TypeResolve:
		return fmt.Sprintf("resolve %s seq=%d %s", ev.Key, ev.Seq, ev.State)
	case TypeReport:
		return fmt.Sprintf("report %s %s", ev.Kind, ev.Report)
	default:
		return ev.Type
	}
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertResolution:
		return assertResolution(result, a)
	case AssertReport:
		return assertReport(result, a)
	case AssertReportCount:
		return assertReportCount(result, a)
	case AssertTraceOrder:
		return assertTraceOrder(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertResolution passes if any resolution of the principal reached the
// state.
func assertResolution(result *Result, a Assertion) error {
	var seen []string
	for _, ev := range result.Resolutions() {
		if ev.Key != a.Principal {
			continue
		}
		if ev.State == a.State {
			return nil
		}
		seen = append(seen, ev.State)
	}

	actual := "never resolved"
	if len(seen) > 0 {
		actual = "resolved to " + strings.Join(seen, ", ")
	}
	return &AssertionError{
		Type:     AssertResolution,
		Expected: fmt.Sprintf("%s resolved to %s", a.Principal, a.State),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// assertReport passes if a report matches kind and name, where given, and
// contains every listed substring.
func assertReport(result *Result, a Assertion) error {
	var mismatch string
	for _, r := range result.Reports {
		if a.Kind != "" && r.Kind != a.Kind {
			continue
		}
		if a.Name != "" && r.Name != a.Name {
			continue
		}

		body, err := os.ReadFile(r.Path)
		if err != nil {
			mismatch = fmt.Sprintf("%s unreadable: %v", r.Name, err)
			continue
		}
		missing := missingSubstrings(string(body), a.Contains)
		if len(missing) == 0 {
			return nil
		}
		mismatch = fmt.Sprintf("%s lacks %q", r.Name, missing)
	}

	if mismatch == "" {
		mismatch = fmt.Sprintf("no matching report among %d", len(result.Reports))
	}
	return &AssertionError{
		Type:     AssertReport,
		Expected: fmt.Sprintf("report kind=%q name=%q containing %q", a.Kind, a.Name, a.Contains),
		Actual:   mismatch,
		Trace:    result.Trace,
	}
}

func missingSubstrings(body string, want []string) []string {
	var missing []string
	for _, s := range want {
		if !strings.Contains(body, s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func assertReportCount(result *Result, a Assertion) error {
	if len(result.Reports) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertReportCount,
		Expected: fmt.Sprintf("%d reports", a.Count),
		Actual:   fmt.Sprintf("%d reports", len(result.Reports)),
		Trace:    result.Trace,
	}
}

// assertTraceOrder checks that principals first resolved in the listed
// order. Other resolutions may come in between.
func assertTraceOrder(result *Result, a Assertion) error {
	positions := make(map[string]int)
	for i, ev := range result.Resolutions() {
		if _, ok := positions[ev.Key]; !ok {
			positions[ev.Key] = i + 1
		}
	}

	for _, p := range a.Principals {
		if positions[p] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all principals resolved: %v", a.Principals),
				Actual:   fmt.Sprintf("missing resolution: %s", p),
				Trace:    result.Trace,
			}
		}
	}

	for i := 1; i < len(a.Principals); i++ {
		prev, curr := a.Principals[i-1], a.Principals[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("resolutions in order: %v", a.Principals),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: result.Trace,
			}
		}
	}
	return nil
}
