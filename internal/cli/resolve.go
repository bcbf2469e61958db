package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/printer"
)

// ResolveResult is the JSON payload of the resolve command.
type ResolveResult struct {
	Expr         string          `json:"expr"`
	Imports      []ImportSummary `json:"imports"`
	ResolutionID string          `json:"resolution_id"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var listImports bool

	cmd := &cobra.Command{
		Use:   "resolve [file]",
		Short: "Replace every import with its contents",
		Long: `Resolve all imports of a document and print the result without
normalizing it. The result is type-checked.

Example:
  dhall resolve ./config.dhall
  dhall resolve --imports ./config.dhall`,
		Args: commandArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, cmd, inputArg(args), listImports)
		},
	}

	cmd.Flags().BoolVar(&listImports, "imports", false, "list the resolved imports instead of the expression")

	return cmd
}

func runResolve(opts *RootOptions, cmd *cobra.Command, path string, listImports bool) error {
	formatter := opts.formatter(cmd)

	ev, err := opts.evaluatePath(cmd, path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	summary := summarizeImports(ev.Resolved)
	formatter.VerboseLog("resolved %d import(s) (resolution %s)", len(summary), ev.Resolved.ID)

	if formatter.Format == "json" {
		return formatter.Success(ResolveResult{
			Expr:         printer.Print(ev.Resolved.Expr),
			Imports:      summary,
			ResolutionID: ev.Resolved.ID,
		})
	}

	if listImports {
		var b strings.Builder
		for _, imp := range summary {
			b.WriteString(imp.Target)
			if imp.Mode != "code" {
				fmt.Fprintf(&b, " as %s", imp.Mode)
			}
			if imp.Hash != "" {
				fmt.Fprintf(&b, " %s", imp.Hash)
			}
			b.WriteByte('\n')
		}
		fmt.Fprint(cmd.OutOrStdout(), b.String())
		return nil
	}
	return formatter.Success(printer.Print(ev.Resolved.Expr))
}
