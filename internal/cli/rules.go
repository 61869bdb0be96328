package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/freezewatch/internal/rules"
)

// RuleListing is the output of the rules command.
type RuleListing struct {
	Path  string     `json:"path"`
	Rules []RuleView `json:"rules"`
}

// RuleView is one principal and its edges.
type RuleView struct {
	Principal string     `json:"principal"`
	Delay     int64      `json:"delay_ms"`
	Edges     []EdgeView `json:"edges"`
}

// EdgeView is one edge in listing form.
type EdgeView struct {
	To          string `json:"to"`
	Window      int64  `json:"window"`
	Code        uint64 `json:"code"`
	Scope       string `json:"scope"`
	SamePackage bool   `json:"same_package"`
	Action      string `json:"action"`
}

// RenderText implements TextRenderer.
func (l RuleListing) RenderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range l.Rules {
		fmt.Fprintf(tw, "%s\t(delay %dms)\n", r.Principal, r.Delay)
		for _, e := range r.Edges {
			same := ""
			if e.SamePackage {
				same = "same-package"
			}
			fmt.Fprintf(tw, "  -> %s\t%+d\tcode=%d\t%s\t%s\t%s\n", e.To, e.Window, e.Code, e.Scope, e.Action, same)
		}
	}
	tw.Flush()
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rules <rules-file>",
		Short:         "List principals and their correlation edges",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runRules(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	setQuietLogging(opts, cmd.ErrOrStderr())

	table, err := rules.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeInput, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to load rules", err)
	}
	return formatter.Success(listRules(path, table))
}

func listRules(path string, table *rules.Table) RuleListing {
	listing := RuleListing{Path: path, Rules: []RuleView{}}
	for _, k := range table.Principals() {
		edges := table.Resolve(k.Domain, k.EventID)
		view := RuleView{Principal: k.String(), Delay: rules.Delay(edges), Edges: []EdgeView{}}
		for _, e := range edges {
			action := e.Action
			if action == "" {
				action = rules.ActionAnd
			}
			view.Edges = append(view.Edges, EdgeView{
				To:          e.To().String(),
				Window:      e.Window,
				Code:        e.ResultID,
				Scope:       e.Scope,
				SamePackage: e.SamePackage,
				Action:      action,
			})
		}
		listing.Rules = append(listing.Rules, view)
	}
	return listing
}
