package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/printer"
)

// NewTypeCommand creates the type command.
func NewTypeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type [file...]",
		Short: "Infer the type of one or more documents",
		Long: `Resolve and type-check documents and print their types.

With several files, they are checked concurrently and share one import
cache; each line of output is prefixed with its file name.

Example:
  dhall type ./config.dhall
  dhall type ./a.dhall ./b.dhall`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, cmd, args, func(ev *evaluation) (string, error) {
				return printer.Print(ev.Type), nil
			})
		},
	}

	return cmd
}
