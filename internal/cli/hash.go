package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/ir"
)

// NewHashCommand creates the hash command.
func NewHashCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash [file...]",
		Short: "Print the semantic hash of one or more documents",
		Long: `Print the sha256 hash of each document's normal form. Documents
that differ only in formatting, variable names, or how their imports are
written hash the same. Use the result to pin an import:

  ./package.dhall sha256:<hex>

Example:
  dhall hash ./package.dhall
  dhall hash ./a.dhall ./b.dhall`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(rootOpts, cmd, args, func(ev *evaluation) (string, error) {
				h, _, err := ir.SemanticHash(ev.Normal)
				if err != nil {
					return "", err
				}
				return h.String(), nil
			})
		},
	}

	return cmd
}
