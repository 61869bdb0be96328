package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/freezewatch/internal/config"
	"github.com/roach88/freezewatch/internal/engine"
	"github.com/roach88/freezewatch/internal/ingest"
	"github.com/roach88/freezewatch/internal/resolver"
)

// InjectResult is the output of the inject command.
type InjectResult struct {
	Seq       int64         `json:"seq"`
	Principal string        `json:"principal"`
	State     string        `json:"state"`
	Groups    []GroupResult `json:"groups"`
	Reports   []string      `json:"reports"`
}

// GroupResult summarizes one result group.
type GroupResult struct {
	Code     uint64 `json:"code"`
	Matched  int    `json:"matched"`
	Expected int    `json:"expected"`
	Complete bool   `json:"complete"`
	Report   string `json:"report,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RenderText implements TextRenderer.
func (r InjectResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s (seq %d): %s\n", r.Principal, r.Seq, r.State)
	for _, g := range r.Groups {
		status := "incomplete"
		if g.Complete {
			status = "complete"
		}
		fmt.Fprintf(w, "  code %d: %d/%d %s", g.Code, g.Matched, g.Expected, status)
		if g.Error != "" {
			fmt.Fprintf(w, " (%s)", g.Error)
		}
		fmt.Fprintln(w)
	}
	for _, path := range r.Reports {
		fmt.Fprintf(w, "  report: %s\n", path)
	}
}

// NewInjectCommand creates the inject command.
func NewInjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject <event.json>",
		Short: "Store an event and resolve it immediately",
		Long: `Append one JSON event to the event store and resolve it synchronously,
skipping the correlation delay. Use "-" to read the event from stdin.

Example:
  freezewatch inject --config ./config.yaml event.json
  echo '{"domain":"AAFWK","event_id":"LIFECYCLE_TIMEOUT","log_path":"/tmp/log"}' | freezewatch inject -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInject(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

// syncDispatcher resolves events on the caller's goroutine.
type syncDispatcher struct {
	plugin   *engine.Plugin
	resolver *resolver.Resolver
	outcome  resolver.Outcome
}

func (d *syncDispatcher) OnEvent(ctx context.Context, ev engine.RawEvent) bool {
	d.outcome = d.resolver.Process(ctx, d.plugin.Point(ev))
	return true
}

func runInject(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read event", err)
	}
	ev, err := ingest.Decode(data)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid event", err)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	setupLogging(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	a, err := newApp(cfg)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	d := &syncDispatcher{plugin: a.plugin, resolver: a.resolver}
	stored, _, err := ingest.NewPipeline(a.store, d, ingest.WithStateObserver(a.procs)).Ingest(ctx, ev)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to store event", err)
	}

	return formatter.Success(injectResult(stored.Seq, d.outcome))
}

func injectResult(seq int64, out resolver.Outcome) InjectResult {
	res := InjectResult{
		Seq:       seq,
		Principal: out.Principal.Key().String(),
		State:     out.State.String(),
		Groups:    []GroupResult{},
		Reports:   out.Reports(),
	}
	if res.Reports == nil {
		res.Reports = []string{}
	}
	for _, g := range out.Groups {
		gr := GroupResult{
			Code:     g.ResultID,
			Matched:  len(g.Matched),
			Expected: g.Expected,
			Complete: g.Complete,
			Report:   g.Report,
		}
		if g.Err != nil {
			gr.Error = g.Err.Error()
		}
		res.Groups = append(res.Groups, gr)
	}
	return res
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
