package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/config"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/store"
)

// Version is the version reported by --version. Release builds override
// it with -ldflags "-X github.com/roach88/dhall/internal/cli.Version=...".
var Version = ir.EngineVersion

// RootOptions holds global flags for all commands, and the collaborators
// built from them before a command runs.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	CachePath   string
	NoCache     bool
	Timeout     time.Duration
	MetricsFile string
	Explain     bool

	// Remote overrides the HTTP fetcher (for testing).
	Remote imports.RemoteFetcher

	cfg      *config.Config
	logger   *slog.Logger
	metrics  *imports.Metrics
	store    *store.Store
	resolver *imports.Resolver
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the dhall CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dhall",
		Short: "Evaluate, type-check, and hash typed configuration files",
		Long: `A total, typed configuration language.

Commands read a file argument, or standard input when the argument is
omitted or "-". Imports are resolved relative to the file, checked against
the configured sandbox, and pinned imports are verified against their
semantic hash and cached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.cue (default: user config directory)")
	cmd.PersistentFlags().StringVar(&opts.CachePath, "cache", "", "path to the semantic cache database")
	cmd.PersistentFlags().BoolVar(&opts.NoCache, "no-cache", false, "do not use the persistent semantic cache")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", imports.DefaultFetchTimeout, "timeout for each remote import")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "write resolver metrics to this file on exit")
	cmd.PersistentFlags().BoolVar(&opts.Explain, "explain", false, "explain errors in detail")

	// Add subcommands
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewTypeCommand(opts))
	cmd.AddCommand(NewNormalizeCommand(opts))
	cmd.AddCommand(NewHashCommand(opts))
	cmd.AddCommand(NewEncodeCommand(opts))
	cmd.AddCommand(NewDecodeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd, opts
}

// setup loads configuration, applies flag overrides, and builds the
// logger, metrics, and persistent cache shared by the subcommands.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, cfgPath, err := config.Load(ctx, config.LoadOptions{ConfigFilePath: o.ConfigPath})
	if err != nil {
		return WrapExitError(ExitCommandError, "", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("format") {
		o.Format = cfg.Output.Format
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if flags.Changed("timeout") {
		if o.Timeout <= 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid timeout %s: must be positive", o.Timeout))
		}
		cfg.Imports.Timeout = o.Timeout
	}
	if flags.Changed("cache") {
		cfg.Cache.Path = o.CachePath
	}
	if o.NoCache {
		cfg.Cache.Enabled = false
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.cfg = cfg

	o.logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "", err)
	}
	if cfgPath != "" {
		o.logger.Debug("configuration loaded", "path", cfgPath)
	}

	if o.MetricsFile != "" {
		o.metrics = imports.NewMetrics("dhall")
	}

	if cfg.Cache.Enabled {
		path := cfg.Cache.Path
		if path == "" {
			if path, err = store.DefaultPath(); err != nil {
				o.logger.Warn("persistent cache unavailable", "error", err)
				return nil
			}
		}
		st, err := store.Open(path)
		if err != nil {
			// Resolution still works with the in-memory cache.
			o.logger.Warn("persistent cache unavailable", "path", path, "error", err)
			return nil
		}
		o.store = st
		o.logger.Debug("persistent cache opened", "path", path)
	}
	return nil
}

// newLogger returns an slog logger backed by a charmbracelet/log handler.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Level:  lvl,
		Prefix: "dhall",
	})
	return slog.New(handler), nil
}

// Resolver returns the import resolver configured for this invocation. It
// is built once and shared by every file a command processes.
func (o *RootOptions) Resolver() *imports.Resolver {
	if o.resolver != nil {
		return o.resolver
	}
	cfg := o.cfg
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	resolverOpts := []imports.Option{
		imports.WithLogger(logger),
		imports.WithMetrics(o.metrics),
		imports.WithPolicy(cfg.Imports.Policy()),
		imports.WithFetchTimeout(cfg.Imports.Timeout),
	}
	if o.store != nil {
		resolverOpts = append(resolverOpts, imports.WithCache(o.store))
	}
	if o.Remote != nil {
		resolverOpts = append(resolverOpts, imports.WithRemote(o.Remote))
	}
	o.resolver = imports.New(resolverOpts...)
	return o.resolver
}

// formatter returns the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
		Explain:   o.Explain,
	}
}

// Close writes the metrics file, if requested, and closes the persistent
// cache.
func (o *RootOptions) Close() error {
	var errs []error
	if o.MetricsFile != "" && o.metrics != nil {
		if err := prometheus.WriteToTextfile(o.MetricsFile, o.metrics.Registry()); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if o.store != nil {
		if err := o.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		o.store = nil
	}
	return errors.Join(errs...)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// commandArgs wraps a positional argument validator so that its failures
// exit with ExitCommandError.
func commandArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "", err)
		}
		return nil
	}
}

// Run executes the CLI with explicit streams and returns the process exit
// code. Errors are printed to stderr.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if closeErr := opts.Close(); err == nil && closeErr != nil {
		err = WrapExitError(ExitCommandError, "", closeErr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("Error:"), err.Error())
		if opts.Explain {
			printExplanation(stderr, err)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}

// printExplanation writes the --explain text for err. Errors without a
// diagnostic code, such as usage errors, have nothing to explain.
func printExplanation(w io.Writer, err error) {
	if ex := Explain(err); ex.Code != "ERROR" {
		fmt.Fprint(w, ex.String())
	}
}

// Main runs the CLI against the process streams with fang styling and
// returns the exit code.
func Main() int {
	cmd, opts := newRootCommand()
	err := fang.Execute(
		context.Background(),
		cmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	)
	if closeErr := opts.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", WarningStyle.Render("Warning:"), closeErr)
	}
	if err != nil {
		if opts.Explain {
			printExplanation(os.Stderr, err)
		}
		return GetExitCode(err)
	}
	return ExitSuccess
}
