package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/freezewatch/internal/engine"
)

// Scenario defines one correlation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the rule file path, relative to the scenario file.
	Rules string `yaml:"rules,omitempty"`

	// RulesInline is a YAML rule document used when Rules is empty.
	RulesInline string `yaml:"rules_inline,omitempty"`

	// Start is the fake clock start, in ms since the epoch.
	Start int64 `yaml:"start,omitempty"`

	// Logs are evidence files by name. Events refer to them with log.
	Logs map[string]string `yaml:"logs,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is either an event or a clock advance.
type Step struct {
	Event   *EventStep `yaml:"event,omitempty"`
	Advance string     `yaml:"advance,omitempty"`
}

// EventStep is a raw event. Log names an entry of Scenario.Logs and
// becomes the event's log path.
type EventStep struct {
	Domain      string `yaml:"domain"`
	EventID     string `yaml:"event_id"`
	Timestamp   int64  `yaml:"timestamp"`
	Pid         int64  `yaml:"pid,omitempty"`
	Tid         int64  `yaml:"tid,omitempty"`
	Uid         int64  `yaml:"uid,omitempty"`
	PackageName string `yaml:"package_name,omitempty"`
	ProcessName string `yaml:"process_name,omitempty"`
	Message     string `yaml:"msg,omitempty"`
	Log         string `yaml:"log,omitempty"`
	LogPath     string `yaml:"log_path,omitempty"`
}

// RawEvent converts the step, resolving Log against logDir.
func (e EventStep) RawEvent(logDir string) engine.RawEvent {
	ev := engine.RawEvent{
		Domain:      e.Domain,
		EventID:     e.EventID,
		Timestamp:   e.Timestamp,
		Pid:         e.Pid,
		Tid:         e.Tid,
		Uid:         e.Uid,
		PackageName: e.PackageName,
		ProcessName: e.ProcessName,
		Message:     e.Message,
		LogPath:     e.LogPath,
	}
	if e.Log != "" {
		ev.LogPath = filepath.Join(logDir, e.Log)
	}
	return ev
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Principal is "DOMAIN/EVENT_ID" (resolution).
	Principal string `yaml:"principal,omitempty"`

	// State is the expected resolver state (resolution).
	State string `yaml:"state,omitempty"`

	// Kind is the expected fault kind (report).
	Kind string `yaml:"kind,omitempty"`

	// Name is the expected report file name (report).
	Name string `yaml:"name,omitempty"`

	// Contains lists substrings the report must contain (report).
	Contains []string `yaml:"contains,omitempty"`

	// Count is the expected number of reports (report_count).
	Count int `yaml:"count,omitempty"`

	// Principals is the expected resolution order (trace_order).
	Principals []string `yaml:"principals,omitempty"`
}

// Assertion type constants.
const (
	AssertResolution  = "resolution"
	AssertReport      = "report"
	AssertReportCount = "report_count"
	AssertTraceOrder  = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and the rule path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) {
		scenario.Rules = filepath.Join(filepath.Dir(path), scenario.Rules)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Rules == "" && s.RulesInline == "":
		return fmt.Errorf("one of rules or rules_inline is required")
	case s.Rules != "" && s.RulesInline != "":
		return fmt.Errorf("rules and rules_inline are mutually exclusive")
	case s.Rules != "":
		if _, err := os.Stat(s.Rules); err != nil {
			return fmt.Errorf("rule file not found: %s", s.Rules)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Logs); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, logs map[string]string) error {
	switch {
	case step.Event != nil && step.Advance != "":
		return fmt.Errorf("steps[%d]: event and advance are mutually exclusive", index)
	case step.Event != nil:
		if step.Event.Domain == "" || step.Event.EventID == "" {
			return fmt.Errorf("steps[%d]: event needs domain and event_id", index)
		}
		if step.Event.Log != "" {
			if _, ok := logs[step.Event.Log]; !ok {
				return fmt.Errorf("steps[%d]: unknown log %q", index, step.Event.Log)
			}
		}
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: bad advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	default:
		return fmt.Errorf("steps[%d]: one of event or advance is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertResolution:
		if a.Principal == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: principal and state are required for resolution", index)
		}
	case AssertReport:
		if a.Kind == "" && a.Name == "" {
			return fmt.Errorf("assertions[%d]: kind or name is required for report", index)
		}
	case AssertReportCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for report_count", index)
		}
	case AssertTraceOrder:
		if len(a.Principals) == 0 {
			return fmt.Errorf("assertions[%d]: principals list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
