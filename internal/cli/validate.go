package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/freezewatch/internal/rules"
)

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Path  string `json:"path"`
	Rules int    `json:"rules"`
	Edges int    `json:"edges"`
}

// RenderText implements TextRenderer.
func (r ValidationResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s is valid: %d rules, %d edges\n", r.Path, r.Rules, r.Edges)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "validate <rules-file>",
		Short: "Validate a freeze rule file",
		Long: `Load a freeze rule file (YAML, CUE or XML) and report its rule and
edge counts, or the reason it would load as an empty table.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], maxSize, cmd)
		},
	}

	cmd.Flags().Int64Var(&maxSize, "max-size", rules.DefaultMaxSize, "maximum rule file size in bytes")
	return cmd
}

func runValidate(opts *RootOptions, path string, maxSize int64, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	setQuietLogging(opts, cmd.ErrOrStderr())

	table, err := rules.Load(path, rules.WithMaxSize(maxSize))
	if err != nil {
		var loadErr *rules.LoadError
		if errors.As(err, &loadErr) {
			var details any
			if loadErr.Err != nil {
				details = loadErr.Err.Error()
			}
			_ = formatter.Error(string(loadErr.Code), loadErr.Path+": "+loadErr.Message, details)
			return WrapExitError(ExitFailure, string(loadErr.Code), loadErr)
		}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "validation failed", err)
	}

	formatter.VerboseLog("principals: %v", table.Principals())
	return formatter.Success(ValidationResult{
		Valid: true,
		Path:  path,
		Rules: table.Len(),
		Edges: table.EdgeCount(),
	})
}
