package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/printer"
)

// NormalizeResult is the JSON payload of the normalize command.
type NormalizeResult struct {
	Expr string `json:"expr"`
	Type string `json:"type"`
}

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	var alpha bool

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Evaluate a document to its normal form",
		Long: `Resolve, type-check, and normalize a document, then print the
normal form.

Example:
  dhall normalize ./config.dhall
  echo '\(x : Bool) -> x' | dhall normalize --alpha`,
		Args: commandArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, cmd, inputArg(args), alpha)
		},
	}

	cmd.Flags().BoolVar(&alpha, "alpha", false, "rename every bound variable to _")

	return cmd
}

func runNormalize(opts *RootOptions, cmd *cobra.Command, path string, alpha bool) error {
	formatter := opts.formatter(cmd)

	ev, err := opts.evaluatePath(cmd, path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	nf := ev.Normal
	if alpha {
		nf = ir.AlphaNormalize(nf)
	}

	if formatter.Format == "json" {
		return formatter.Success(NormalizeResult{Expr: printer.Print(nf), Type: printer.Print(ev.Type)})
	}
	return formatter.Success(printer.Print(nf))
}
