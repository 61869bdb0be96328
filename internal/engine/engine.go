package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/freezewatch/internal/metrics"
	"github.com/roach88/freezewatch/internal/resolver"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/watch"
)

// DefaultSettleDelay is applied to principals with several edges when
// none of them looks forward in time, so that companions reported at the
// same moment reach the store first.
const DefaultSettleDelay = 10 * time.Second

// RawEvent is an event as delivered by the event source.
type RawEvent struct {
	Seq         int64  `json:"seq,omitempty"`
	Domain      string `json:"domain"`
	EventID     string `json:"event_id"`
	Timestamp   int64  `json:"timestamp"`
	Pid         int64  `json:"pid,omitempty"`
	Tid         int64  `json:"tid,omitempty"`
	Uid         int64  `json:"uid,omitempty"`
	PackageName string `json:"package_name,omitempty"`
	ProcessName string `json:"process_name,omitempty"`
	Message     string `json:"msg,omitempty"`
	LogPath     string `json:"log_path,omitempty"`
	Info        string `json:"info,omitempty"`
	HitraceTime string `json:"hitrace_time,omitempty"`
	SysrqTime   string `json:"sysrq_time,omitempty"`

	// Header values of the emitting process, used when Pid or Uid is 0.
	HeaderPid int64 `json:"header_pid,omitempty"`
	HeaderUid int64 `json:"header_uid,omitempty"`
}

// ResolvedLogPath returns the explicit log path, else the one embedded in
// the info string.
func (e RawEvent) ResolvedLogPath() string {
	if e.LogPath != "" {
		return e.LogPath
	}
	return watch.ParseLogPath(e.Info)
}

// ProcessState answers foreground questions about a process.
type ProcessState interface {
	ForegroundState(pid int64) watch.Foreground
	// LastForegroundTimestamp is the last time pid entered the foreground,
	// or 0 if unknown.
	LastForegroundTimestamp(pid int64) int64
}

// RuleSet is the subset of the rule table the plugin consults.
type RuleSet interface {
	rules.Classifier
	rules.Resolver
}

// Processor resolves a principal.
type Processor interface {
	Process(ctx context.Context, principal watch.Point) resolver.Outcome
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithProcessState enables foreground lookup for application events.
func WithProcessState(ps ProcessState) Option {
	return func(p *Plugin) { p.procs = ps }
}

// WithMetrics records event counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Plugin) { p.metrics = m }
}

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(p *Plugin) { p.settle = d }
}

// Plugin receives raw events, filters them through the rule table and
// schedules delayed resolution of principals.
//
// OnEvent is called on the dispatching goroutine and never blocks on I/O.
type Plugin struct {
	rules     RuleSet
	processor Processor
	scheduler *Scheduler
	procs     ProcessState
	metrics   *metrics.Metrics
	settle    time.Duration
}

// New creates a Plugin.
func New(rs RuleSet, processor Processor, scheduler *Scheduler, opts ...Option) *Plugin {
	p := &Plugin{
		rules:     rs,
		processor: processor,
		scheduler: scheduler,
		settle:    DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnEvent handles one raw event. Returns true if a resolution task was
// scheduled.
func (p *Plugin) OnEvent(ctx context.Context, ev RawEvent) bool {
	tracked := p.rules.IsTracked(ev.Domain, ev.EventID)
	p.metrics.IncEventReceived(tracked)
	if !tracked {
		slog.Debug("event not tracked", "domain", ev.Domain, "event_id", ev.EventID)
		return false
	}

	point := p.Point(ev)
	if point.LogPath() == "" {
		slog.Debug("event has no log path", "domain", ev.Domain, "event_id", ev.EventID, "seq", ev.Seq)
		return false
	}

	edges := p.rules.Resolve(ev.Domain, ev.EventID)
	if len(edges) == 0 {
		slog.Debug("event is not a principal", "domain", ev.Domain, "event_id", ev.EventID)
		return false
	}

	delay := p.Delay(edges)
	seq, err := p.scheduler.RunAfter(point.Key().String(), delay, func(ctx context.Context) {
		p.resolve(ctx, point)
	})
	if err != nil {
		slog.Warn("failed to schedule resolution", "principal", point.Key().String(), "error", err)
		return false
	}

	slog.Info("watchpoint scheduled",
		"task", seq,
		"principal", point.Key().String(),
		"seq", point.Seq(),
		"pid", point.Pid(),
		"uid", point.Uid(),
		"package", point.PackageName(),
		"process", point.ProcessName(),
		"log_path", point.LogPath(),
		"delay", delay,
	)
	return true
}

// Delay returns how long to wait before resolving a principal with edges:
// the widest forward window across its result groups, else the settle
// delay when the principal has companions, else zero.
func (p *Plugin) Delay(edges []rules.Edge) time.Duration {
	window := rules.Delay(edges)
	if window > 0 {
		return time.Duration(window) * time.Millisecond
	}
	if len(edges) > 1 {
		return p.settle
	}
	return 0
}

// Point builds the watch point for ev.
func (p *Plugin) Point(ev RawEvent) watch.Point {
	return watch.New(watch.Fields{
		Seq:         ev.Seq,
		Domain:      ev.Domain,
		EventID:     ev.EventID,
		Timestamp:   ev.Timestamp,
		Pid:         ev.Pid,
		Tid:         ev.Tid,
		Uid:         ev.Uid,
		PackageName: ev.PackageName,
		ProcessName: ev.ProcessName,
		Foreground:  p.foreground(ev),
		Message:     ev.Message,
		LogPath:     ev.ResolvedLogPath(),
		HitraceTime: ev.HitraceTime,
		SysrqTime:   ev.SysrqTime,
	})
}

// foreground counts a process as foreground when it is now, or when it
// entered the foreground at or after the event.
func (p *Plugin) foreground(ev RawEvent) watch.Foreground {
	if p.procs == nil || ev.Pid == 0 || !p.rules.IsApplicationEvent(ev.Domain, ev.EventID) {
		return watch.ForegroundUnknown
	}
	state := p.procs.ForegroundState(ev.Pid)
	if state == watch.ForegroundNo {
		if last := p.procs.LastForegroundTimestamp(ev.Pid); last > 0 && last >= ev.Timestamp {
			return watch.ForegroundYes
		}
	}
	return state
}

func (p *Plugin) resolve(ctx context.Context, point watch.Point) {
	out := p.processor.Process(ctx, point)
	slog.Info("watchpoint resolved",
		"principal", point.Key().String(),
		"seq", point.Seq(),
		"state", out.State.String(),
		"reports", out.Reports(),
	)
}
