package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/freezewatch/internal/correlate"
	"github.com/roach88/freezewatch/internal/engine"
	"github.com/roach88/freezewatch/internal/ingest"
	"github.com/roach88/freezewatch/internal/logstore"
	"github.com/roach88/freezewatch/internal/procstate"
	"github.com/roach88/freezewatch/internal/report"
	"github.com/roach88/freezewatch/internal/resolver"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/sink"
	"github.com/roach88/freezewatch/internal/store"
	"github.com/roach88/freezewatch/internal/testutil"
	"github.com/roach88/freezewatch/internal/watch"
)

// idleTimeout bounds how long a step may keep the scheduler busy.
const idleTimeout = 5 * time.Second

// recorder collects trace entries produced on the scheduler worker. They
// are flushed into the trace after the step that caused them.
type recorder struct {
	mu      sync.Mutex
	pending []TraceEvent
	reports []ReportRecord
}

func (r *recorder) add(ev TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, ev)
}

func (r *recorder) flush(result *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result.Trace = append(result.Trace, r.pending...)
	result.Reports = append(result.Reports, r.reports...)
	r.pending = nil
	r.reports = nil
}

// Submit implements sink.Sink.
func (r *recorder) Submit(_ context.Context, rec sink.Record) error {
	name := filepath.Base(rec.ReportPath)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, TraceEvent{
		Type:     TypeReport,
		Kind:     string(rec.Kind),
		Report:   name,
		ResultID: rec.ResultID,
	})
	r.reports = append(r.reports, ReportRecord{
		Name:     name,
		Path:     rec.ReportPath,
		Kind:     string(rec.Kind),
		ResultID: rec.ResultID,
	})
	return nil
}

// tracingProcessor records every resolution.
type tracingProcessor struct {
	next *resolver.Resolver
	rec  *recorder
}

func (p *tracingProcessor) Process(ctx context.Context, principal watch.Point) resolver.Outcome {
	out := p.next.Process(ctx, principal)
	p.rec.add(TraceEvent{
		Type:  TypeResolve,
		Key:   principal.Key().String(),
		Seq:   principal.Seq(),
		State: out.State.String(),
	})
	return out
}

// Run executes a scenario in dir, which must be empty and writable.
func Run(ctx context.Context, scenario *Scenario, dir string) (*Result, error) {
	table, err := loadRules(scenario)
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	for name, content := range scenario.Logs {
		if err := os.WriteFile(filepath.Join(logDir, name), []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write log %s: %w", name, err)
		}
	}

	st, err := store.Open(filepath.Join(dir, "events.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	logs, err := logstore.Open(filepath.Join(dir, "reports"))
	if err != nil {
		return nil, fmt.Errorf("failed to create report store: %w", err)
	}

	rec := &recorder{}
	clock := testutil.NewFakeClock(time.UnixMilli(scenario.Start))
	composer := report.New(table, logs, rec, report.WithLocation(time.UTC))
	res := resolver.New(table, correlate.NewFinder(st), composer, st)

	sched := engine.NewScheduler(engine.WithAfterFunc(clock.AfterFunc), engine.WithWorkers(1))
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sched.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	procs := procstate.New()
	plugin := engine.New(table, &tracingProcessor{next: res, rec: rec}, sched,
		engine.WithProcessState(procs))
	pipeline := ingest.NewPipeline(st, plugin,
		ingest.WithStateObserver(procs),
		ingest.WithNow(clock.Now))

	result := NewResult()
	for i, step := range scenario.Steps {
		if step.Event != nil {
			ev, scheduled, err := pipeline.Ingest(ctx, step.Event.RawEvent(logDir))
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{
				Type:      TypeEvent,
				Key:       ev.Domain + "/" + ev.EventID,
				Seq:       ev.Seq,
				Scheduled: scheduled,
			})
		} else {
			d, err := time.ParseDuration(step.Advance)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{
				Type: TypeAdvance,
				At:   clock.Now().Add(d).UnixMilli(),
			})
			clock.Advance(d)
		}

		if err := waitIdle(ctx, sched); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		rec.flush(result)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func waitIdle(ctx context.Context, sched *engine.Scheduler) error {
	ctx, cancel := context.WithTimeout(ctx, idleTimeout)
	defer cancel()
	if err := sched.WaitIdle(ctx); err != nil {
		return fmt.Errorf("scheduler did not go idle: %w", err)
	}
	return nil
}

func loadRules(s *Scenario) (*rules.Table, error) {
	if s.Rules != "" {
		table, err := rules.Load(s.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		return table, nil
	}
	table, err := rules.Parse(s.Name+".yaml", []byte(s.RulesInline))
	if err != nil {
		return nil, fmt.Errorf("failed to parse inline rules: %w", err)
	}
	return table, nil
}
