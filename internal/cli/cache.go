package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/store"
)

// CacheStatsResult is the JSON payload of "cache stats".
type CacheStatsResult struct {
	Entries int64 `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// CacheVerifyResult is the JSON payload of "cache verify".
type CacheVerifyResult struct {
	Checked int      `json:"checked"`
	Removed []string `json:"removed"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the persistent semantic cache",
		Long: `The semantic cache stores the normalized, encoded contents of
hash-pinned imports, keyed by their hash. Entries are verified whenever
they are read, so the cache can always be deleted safely.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show the number and total size of cached entries",
		Args:  commandArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(rootOpts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Re-hash every entry and remove the ones that do not match",
		Args:  commandArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheVerify(rootOpts, cmd)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune <keep>",
		Short: "Remove all but the most recently added entries",
		Args:  commandArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			keep, err := strconv.Atoi(args[0])
			if err != nil || keep < 0 {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid entry count %q", args[0]))
			}
			return runCachePrune(rootOpts, cmd, keep)
		},
	})

	return cmd
}

func (o *RootOptions) requireStore() (*store.Store, error) {
	if o.store == nil {
		return nil, NewExitError(ExitCommandError, "persistent cache is disabled or could not be opened")
	}
	return o.store, nil
}

func runCacheStats(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := opts.requireStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	stats, err := st.Stats(commandContext(cmd))
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(CacheStatsResult{Entries: stats.Entries, Bytes: stats.Bytes})
	}
	return formatter.Success(fmt.Sprintf("entries: %d\nbytes: %d", stats.Entries, stats.Bytes))
}

func runCacheVerify(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	st, err := opts.requireStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	ctx := commandContext(cmd)

	entries, err := st.Entries(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	bad, err := st.Verify(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	removed := make([]string, 0, len(bad))
	for _, h := range bad {
		if err := st.Delete(ctx, h); err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		removed = append(removed, h.String())
	}

	if formatter.Format == "json" {
		return formatter.Success(CacheVerifyResult{Checked: len(entries), Removed: removed})
	}
	for _, h := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", WarningStyle.Render("removed"), h)
	}
	return formatter.Success(SuccessStyle.Render(fmt.Sprintf("%d entries checked, %d removed", len(entries), len(removed))))
}

func runCachePrune(opts *RootOptions, cmd *cobra.Command, keep int) error {
	formatter := opts.formatter(cmd)
	st, err := opts.requireStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	n, err := st.Prune(commandContext(cmd), keep)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]int64{"removed": n})
	}
	return formatter.Success(fmt.Sprintf("removed %d entries", n))
}
