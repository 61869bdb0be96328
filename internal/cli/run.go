package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/freezewatch/internal/admin"
	"github.com/roach88/freezewatch/internal/config"
	"github.com/roach88/freezewatch/internal/ingest"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the correlation daemon",
		Long: `Start the freezewatch daemon.

The daemon loads the rule table, opens the event store and report
directory, subscribes to the configured event subject and resolves
principal events after their correlation window has elapsed.

Example:
  freezewatch run --config /etc/freezewatch/config.yaml
  FREEZEWATCH_INGEST_NATS_ENABLED=true freezewatch run --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(rootOpts, cmd)
		},
	}
	return cmd
}

func runDaemon(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	a, err := newApp(cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error during shutdown", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.scheduler.Run(gctx) })
	g.Go(func() error { return a.pruneLoop(gctx) })

	if cfg.Admin.Addr != "" {
		handler := admin.NewHandler(a.table, a.registry, a.healthChecks())
		srv := admin.NewServer(cfg.Admin.Addr, handler.Router())
		g.Go(func() error { return admin.Serve(gctx, srv) })
	}

	pipeline := ingest.NewPipeline(a.store, a.plugin, ingest.WithStateObserver(a.procs))
	if cfg.Ingest.NATS.Enabled {
		if err := ingest.Subscribe(gctx, a.nats, cfg.Ingest.NATS.Subject, pipeline); err != nil {
			cancel()
			_ = g.Wait()
			return WrapExitError(ExitCommandError, "failed to subscribe", err)
		}
	} else {
		slog.Warn("no event source enabled; set ingest.nats.enabled to receive events")
	}

	notify(daemon.SdNotifyReady)
	slog.Info("freezewatch started",
		"rules", a.table.Len(),
		"edges", a.table.EdgeCount(),
		"store", cfg.Store.Path,
		"reports", cfg.Reports.Dir,
		"workers", cfg.Scheduler.Workers)
	fmt.Fprintln(cmd.OutOrStdout(), "freezewatch started. Press Ctrl-C to stop.")

	err = g.Wait()
	notify(daemon.SdNotifyStopping)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "daemon error", err)
	}

	slog.Info("freezewatch stopped gracefully", "dropped_tasks", a.scheduler.Pending())
	return nil
}

// notify reports state to systemd when running under it.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		slog.Debug("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		slog.Debug("systemd notified", "state", state)
	}
}
