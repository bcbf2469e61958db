package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/export"
)

// ExportFormats lists the targets of the export command.
var ExportFormats = []string{"json", "yaml", "toml"}

// ExportResult is the JSON payload of the export command.
type ExportResult struct {
	Format string `json:"format"`
	Output string `json:"output"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var to string
	var compact bool

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Convert a document to JSON, YAML, or TOML",
		Long: `Evaluate a document and render its value in another format.

Records become objects with sorted keys, lists of { mapKey, mapValue }
records become objects in list order, None becomes null, and union
alternatives are unwrapped. Functions and types cannot be exported.

Example:
  dhall export ./config.dhall
  dhall export --to yaml ./config.dhall
  dhall export --to toml ./config.dhall`,
		Args: commandArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, cmd, inputArg(args), to, compact)
		},
	}

	cmd.Flags().StringVar(&to, "to", "json", "output format (json|yaml|toml)")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact JSON output")

	return cmd
}

func runExport(opts *RootOptions, cmd *cobra.Command, path, to string, compact bool) error {
	formatter := opts.formatter(cmd)

	render, err := exporter(to, compact)
	if err != nil {
		return err
	}

	ev, err := opts.evaluatePath(cmd, path)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}
	out, err := render(ev)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(ExportResult{Format: to, Output: string(out)})
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}

// exporter returns a renderer for the named format.
func exporter(to string, compact bool) (func(*evaluation) ([]byte, error), error) {
	var render func(export.Value) ([]byte, error)
	switch to {
	case "json":
		indent := "  "
		if compact {
			indent = ""
		}
		render = func(v export.Value) ([]byte, error) {
			out, err := export.JSON(v, indent)
			if err == nil && compact {
				out = append(out, '\n')
			}
			return out, err
		}
	case "yaml":
		render = export.YAML
	case "toml":
		render = export.TOML
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid export format %q: must be one of %v", to, ExportFormats))
	}

	return func(ev *evaluation) ([]byte, error) {
		v, err := export.ToValue(ev.Normal)
		if err != nil {
			return nil, err
		}
		return render(v)
	}, nil
}
