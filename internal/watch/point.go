package watch

import (
	"regexp"
	"strings"
)

// NoLog is the log path sentinel for events that carry no evidence file.
const NoLog = "nolog"

// Foreground is the tri-state foreground status of the reporting process.
type Foreground int

const (
	ForegroundUnknown Foreground = iota
	ForegroundYes
	ForegroundNo
)

// String returns the header representation used in composed reports.
func (f Foreground) String() string {
	switch f {
	case ForegroundYes:
		return "Yes"
	case ForegroundNo:
		return "No"
	default:
		return "Unknown"
	}
}

// Key identifies an event type by (domain, eventId).
type Key struct {
	Domain  string
	EventID string
}

// String returns "DOMAIN/EVENT_ID".
func (k Key) String() string {
	return k.Domain + "/" + k.EventID
}

// Fields carries the values used to construct a Point.
type Fields struct {
	Seq         int64
	Domain      string
	EventID     string
	Timestamp   int64
	Pid         int64
	Tid         int64
	Uid         int64
	PackageName string
	ProcessName string
	Foreground  Foreground
	Message     string
	LogPath     string
	HitraceTime string
	SysrqTime   string
}

// Point is one observed diagnostic event.
type Point struct {
	f Fields
}

// New builds a Point. Message escapes are expanded and the package and
// process names are trimmed.
func New(f Fields) Point {
	f.PackageName = strings.TrimSpace(f.PackageName)
	f.ProcessName = strings.TrimSpace(f.ProcessName)
	f.Message = ExpandNewlines(f.Message)
	return Point{f: f}
}

func (p Point) Seq() int64             { return p.f.Seq }
func (p Point) Domain() string         { return p.f.Domain }
func (p Point) EventID() string        { return p.f.EventID }
func (p Point) Timestamp() int64       { return p.f.Timestamp }
func (p Point) Pid() int64             { return p.f.Pid }
func (p Point) Tid() int64             { return p.f.Tid }
func (p Point) Uid() int64             { return p.f.Uid }
func (p Point) PackageName() string    { return p.f.PackageName }
func (p Point) ProcessName() string    { return p.f.ProcessName }
func (p Point) Foreground() Foreground { return p.f.Foreground }
func (p Point) Message() string        { return p.f.Message }
func (p Point) LogPath() string        { return p.f.LogPath }
func (p Point) HitraceTime() string    { return p.f.HitraceTime }
func (p Point) SysrqTime() string      { return p.f.SysrqTime }

// Fields returns a copy of the values the point was built from.
func (p Point) Fields() Fields { return p.f }

// Key returns the (domain, eventId) pair of the point.
func (p Point) Key() Key {
	return Key{Domain: p.f.Domain, EventID: p.f.EventID}
}

// IsZero reports whether the point was never constructed.
func (p Point) IsZero() bool {
	return p.f.Domain == "" && p.f.EventID == ""
}

// HasEvidence reports whether the point names a log file that may be read.
func (p Point) HasEvidence() bool {
	return p.f.LogPath != "" && p.f.LogPath != NoLog
}

// Identity returns the name used for same-package comparisons: the package
// name, or the process name when the event carried no package.
func (p Point) Identity() string {
	if p.f.PackageName != "" {
		return p.f.PackageName
	}
	return p.f.ProcessName
}

// SameProcess reports whether both points come from the same package
// identity and pid.
func (p Point) SameProcess(other Point) bool {
	return p.Identity() == other.Identity() && p.f.Pid == other.f.Pid
}

// Newer reports whether p supersedes other under last-write-wins: later
// timestamp first, higher seq on ties.
func (p Point) Newer(other Point) bool {
	if p.f.Timestamp != other.f.Timestamp {
		return p.f.Timestamp > other.f.Timestamp
	}
	return p.f.Seq > other.f.Seq
}

// Less orders points by timestamp, then domain, then event id.
func Less(a, b Point) bool {
	if a.f.Timestamp != b.f.Timestamp {
		return a.f.Timestamp < b.f.Timestamp
	}
	if a.f.Domain != b.f.Domain {
		return a.f.Domain < b.f.Domain
	}
	return a.f.EventID < b.f.EventID
}

var logPathPattern = regexp.MustCompile(`logPath:([^,]+)`)

// ParseLogPath extracts the value following "logPath:" in an info string,
// up to the next comma. Returns "" when absent.
func ParseLogPath(info string) string {
	m := logPathPattern.FindStringSubmatch(info)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimRight(m[1], "\n")
}

// ExpandNewlines replaces literal "\n" escape sequences with newlines.
func ExpandNewlines(s string) string {
	if !strings.Contains(s, `\n`) {
		return s
	}
	return strings.ReplaceAll(s, `\n`, "\n")
}
