package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/freezewatch/internal/admin"
	"github.com/roach88/freezewatch/internal/config"
	"github.com/roach88/freezewatch/internal/correlate"
	"github.com/roach88/freezewatch/internal/engine"
	"github.com/roach88/freezewatch/internal/logstore"
	"github.com/roach88/freezewatch/internal/messaging"
	"github.com/roach88/freezewatch/internal/metrics"
	"github.com/roach88/freezewatch/internal/procstate"
	"github.com/roach88/freezewatch/internal/report"
	"github.com/roach88/freezewatch/internal/resolver"
	"github.com/roach88/freezewatch/internal/rules"
	"github.com/roach88/freezewatch/internal/sink"
	"github.com/roach88/freezewatch/internal/store"
)

// app holds the wired daemon components.
type app struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	table     *rules.Table
	store     *store.Store
	logs      *logstore.Store
	nats      *messaging.Client
	sink      sink.Sink
	procs     *procstate.Registry
	resolver  *resolver.Resolver
	scheduler *engine.Scheduler
	plugin    *engine.Plugin

	closers []func() error
}

// newApp opens every component named by cfg. On error, whatever was
// opened is closed again.
func newApp(cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	// A broken rule file leaves an empty table; the daemon still runs.
	a.table, _ = rules.Load(cfg.Rules.Path, rules.WithMaxSize(cfg.Rules.MaxSize))

	if dir := filepath.Dir(cfg.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	a.store, err = store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open event store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	a.logs, err = logstore.Open(cfg.Reports.Dir,
		logstore.WithMaxFiles(cfg.Reports.MaxFiles),
		logstore.WithMaxBytes(cfg.Reports.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}

	if cfg.NATSNeeded() {
		ncfg := messaging.DefaultConfig()
		ncfg.URL = cfg.Ingest.NATS.URL
		a.nats, err = messaging.NewClient(ncfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.nats.Close)
	}

	a.sink, err = a.buildSink()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Reports.Location()
	if err != nil {
		return nil, err
	}

	a.procs = procstate.New(
		procstate.WithDomain(cfg.ProcState.Domain),
		procstate.WithEvents(cfg.ProcState.ForegroundEvent, cfg.ProcState.BackgroundEvent))

	composer := report.New(a.table, a.logs, a.sink, report.WithLocation(loc))
	a.resolver = resolver.New(a.table, correlate.NewFinder(a.store), composer, a.store,
		resolver.WithMetrics(a.metrics))
	a.scheduler = engine.NewScheduler(
		engine.WithWorkers(cfg.Scheduler.Workers),
		engine.WithSchedulerMetrics(a.metrics))
	a.plugin = engine.New(a.table, a.resolver, a.scheduler,
		engine.WithProcessState(a.procs),
		engine.WithMetrics(a.metrics),
		engine.WithSettleDelay(cfg.Scheduler.SettleDelay))

	return a, nil
}

// buildSink fans fault records out to every configured sink. The log
// sink is always present.
func (a *app) buildSink() (sink.Sink, error) {
	sinks := sink.Multi{sink.Log{}}

	if path := a.cfg.Sink.File.Path; path != "" {
		f, err := sink.NewFile(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, f.Close)
		sinks = append(sinks, f)
	}

	if a.cfg.Sink.NATS.Enabled {
		sinks = append(sinks, sink.NewNATS(a.nats, a.cfg.Sink.NATS.Subject))
	}

	if rc := a.cfg.Sink.Redis; rc.Enabled {
		opts, err := redis.ParseURL(rc.URL)
		if err != nil {
			return nil, fmt.Errorf("sink.redis.url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		sinks = append(sinks, sink.NewRedis(client, rc.Stream, rc.MaxLen))
	}

	return sinks, nil
}

// healthChecks returns the dependency checks served on /healthz.
func (a *app) healthChecks() map[string]admin.Check {
	checks := map[string]admin.Check{
		"store": func(ctx context.Context) error { return a.store.DB().PingContext(ctx) },
	}
	if a.nats != nil {
		checks["nats"] = func(context.Context) error {
			if !a.nats.IsConnected() {
				return errors.New("nats: not connected")
			}
			return nil
		}
	}
	return checks
}

// prune drops stored events and process state older than the retention.
func (a *app) prune(ctx context.Context, now time.Time) {
	cutoff := now.Add(-a.cfg.Store.Retention).UnixMilli()
	n, err := a.store.Prune(ctx, cutoff)
	if err != nil {
		slog.Warn("event prune failed", "error", err)
		return
	}
	procs := a.procs.Prune(cutoff)
	if n > 0 || procs > 0 {
		slog.Info("pruned expired state", "events", n, "processes", procs, "before", cutoff)
	}
}

// pruneLoop runs prune every store.prune_interval until ctx is done.
func (a *app) pruneLoop(ctx context.Context) error {
	if a.cfg.Store.PruneInterval <= 0 || a.cfg.Store.Retention <= 0 {
		return nil
	}
	ticker := time.NewTicker(a.cfg.Store.PruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			a.prune(ctx, now)
		}
	}
}

// Close releases components in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
