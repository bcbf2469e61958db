package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/printer"
)

// defaultDebounce is the quiet period after the last filesystem event
// before the document is evaluated again.
const defaultDebounce = 200 * time.Millisecond

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var to string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-evaluate a document whenever it or its local imports change",
		Long: `Evaluate a document, print the result, and evaluate it again each
time the file or one of the local files it imports is written. The set of
watched files follows the imports of the latest successful evaluation.

Errors are reported and watching continues; press Ctrl-C to stop.

Example:
  dhall watch ./config.dhall
  dhall watch --to yaml ./config.dhall`,
		Args: commandArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(rootOpts, cmd, args[0], to, debounce)
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "export format (json|yaml|toml); default prints the normal form")
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before re-evaluating")

	return cmd
}

func runWatch(opts *RootOptions, cmd *cobra.Command, path, to string, debounce time.Duration) error {
	render := func(ev *evaluation) ([]byte, error) {
		return []byte(printer.Print(ev.Normal) + "\n"), nil
	}
	if to != "" {
		var err error
		if render, err = exporter(to, false); err != nil {
			return err
		}
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "create file watcher", err)
	}
	defer fsw.Close() //nolint:errcheck // best-effort cleanup

	w := &docWatcher{
		opts:   opts,
		cmd:    cmd,
		path:   path,
		files:  map[string]bool{abs: true},
		dirs:   make(map[string]bool),
		fsw:    fsw,
		render: render,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}
	w.evaluate()
	if err := w.watchDirs(); err != nil {
		return WrapExitError(ExitCommandError, "", err)
	}
	fmt.Fprintf(w.stderr, "%s watching %d file(s) (Ctrl-C to stop)\n", HighlightStyle.Render("→"), len(w.files))

	return w.run(commandContext(cmd), debounce)
}

// docWatcher re-evaluates one document when any file it depends on
// changes. It runs on a single goroutine.
type docWatcher struct {
	opts   *RootOptions
	cmd    *cobra.Command
	path   string
	files  map[string]bool // absolute paths of the document and its local imports
	dirs   map[string]bool // directories registered with fsw
	fsw    *fsnotify.Watcher
	render func(*evaluation) ([]byte, error)
	stdout io.Writer
	stderr io.Writer
}

func (w *docWatcher) run(ctx context.Context, debounce time.Duration) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: event channel closed unexpectedly")
			}
			if !w.relevant(evt) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			fmt.Fprintf(w.stderr, "%s change detected, evaluating %s\n", HighlightStyle.Render("→"), w.path)
			w.evaluate()
			if err := w.watchDirs(); err != nil {
				fmt.Fprintf(w.stderr, "%s %v\n", WarningStyle.Render("Warning:"), err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: error channel closed unexpectedly")
			}
			fmt.Fprintf(w.stderr, "%s %v\n", WarningStyle.Render("Warning:"), err)
		}
	}
}

// relevant reports whether evt touches a watched file's content.
func (w *docWatcher) relevant(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) && !evt.Has(fsnotify.Remove) {
		return false
	}
	abs, err := filepath.Abs(evt.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

// evaluate prints the document's current value, or the error. On success
// the watched file set is replaced by the document and its local imports.
func (w *docWatcher) evaluate() {
	ev, err := w.opts.evaluatePath(w.cmd, w.path)
	var out []byte
	if err == nil {
		out, err = w.render(ev)
	}
	if err != nil {
		fmt.Fprintf(w.stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return
	}
	if _, err := w.stdout.Write(out); err != nil {
		fmt.Fprintf(w.stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}

	abs, _ := filepath.Abs(w.path)
	files := map[string]bool{abs: true}
	for _, imp := range ev.Resolved.Imports {
		if imp.Target.Kind != ir.TargetLocal {
			continue
		}
		p, err := w.opts.Resolver().LocalPath(imp.Target)
		if err != nil {
			continue
		}
		if p, err = filepath.Abs(p); err == nil {
			files[p] = true
		}
	}
	w.files = files
}

// watchDirs registers the directory of every watched file with fsw.
func (w *docWatcher) watchDirs() error {
	for f := range w.files {
		dir := filepath.Dir(f)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	return nil
}
