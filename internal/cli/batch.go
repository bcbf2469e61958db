package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// FileResult is one file's outcome in a multi-file command.
type FileResult struct {
	File   string `json:"file"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// runBatch evaluates every path concurrently with one shared resolver and
// reports results in argument order. A failing file does not stop the
// others; the command fails if any file did.
func runBatch(opts *RootOptions, cmd *cobra.Command, paths []string, render func(*evaluation) (string, error)) error {
	formatter := opts.formatter(cmd)

	if len(paths) <= 1 {
		path := ""
		if len(paths) == 1 {
			path = inputArg(paths)
		}
		ev, err := opts.evaluatePath(cmd, path)
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		out, err := render(ev)
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		return formatter.Success(out)
	}

	// Stdin can be read only once.
	for _, p := range paths {
		if p == "-" {
			return NewExitError(ExitCommandError, "standard input cannot be combined with other files")
		}
	}

	results := make([]FileResult, len(paths))
	opts.Resolver() // build before the goroutines share it

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			results[i] = FileResult{File: path}
			ev, err := opts.evaluatePath(cmd, path)
			if err == nil {
				results[i].Result, err = render(ev)
			}
			if err != nil {
				results[i].Error = err.Error()
				results[i].Code = ErrorCode(err)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	if formatter.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, r := range results {
			if r.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ErrorStyle.Render("Error:"), r.Error)
				continue
			}
			fmt.Fprintf(out, "%s %s\n", MutedStyle.Render(r.File+":"), r.Result)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d files failed", failed, len(paths)))
	}
	return nil
}
