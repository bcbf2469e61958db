package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/printer"
	"github.com/roach88/dhall/internal/typecheck"
)

const (
	replPrompt      = "⊢ "
	replHistoryFile = "repl_history"
)

const replHelp = `Enter an expression to evaluate it, or one of:
  :type <expr>        print the type of an expression
  :hash <expr>        print the semantic hash of an expression
  :let <name> = <expr> bind a name for the rest of the session
  :help               show this help
  :quit               leave the REPL`

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Evaluate expressions interactively",
		Long: `Start an interactive session. Each line is resolved relative to the
working directory, type-checked, and normalized. Bindings made with :let
stay in scope for later lines.

` + replHelp,
		Args: commandArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(rootOpts, cmd)
		},
	}

	return cmd
}

func runRepl(opts *RootOptions, cmd *cobra.Command) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := ""
	if dir, err := os.UserCacheDir(); err == nil {
		histPath = filepath.Join(dir, "dhall", replHistoryFile)
		if f, err := os.Open(histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	defer func() {
		if histPath == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(histPath), 0o755); err != nil {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	session := newReplSession(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	fmt.Fprintln(cmd.OutOrStdout(), TitleStyle.Render("dhall repl")+MutedStyle.Render("  :help for commands, :quit to leave"))

	ctx := commandContext(cmd)
	for {
		line, err := ln.Prompt(replPrompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "read input", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		ln.AppendHistory(line)
		if session.Handle(ctx, line) {
			return nil
		}
	}
}

// replBinding is a name bound with :let. Value is closed and normal.
type replBinding struct {
	Name  string
	Value ir.Expr
	Type  ir.Expr
}

// replSession holds the state of an interactive session.
type replSession struct {
	opts     *RootOptions
	out      io.Writer
	errOut   io.Writer
	bindings []replBinding
}

func newReplSession(opts *RootOptions, out, errOut io.Writer) *replSession {
	return &replSession{opts: opts, out: out, errOut: errOut}
}

// Handle runs one line of input and reports whether the session should end.
func (s *replSession) Handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	cmd, rest, _ := strings.Cut(line, " ")
	if !strings.HasPrefix(cmd, ":") {
		cmd, rest = "", line
	}
	rest = strings.TrimSpace(rest)

	var err error
	switch cmd {
	case ":quit", ":q":
		return true
	case ":help":
		fmt.Fprintln(s.out, replHelp)
	case ":type", ":t":
		err = s.printType(ctx, rest)
	case ":hash":
		err = s.printHash(ctx, rest)
	case ":let":
		err = s.let(ctx, rest)
	case "":
		err = s.print(ctx, rest)
	default:
		err = fmt.Errorf("unknown command %s; try :help", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.errOut, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}
	return false
}

func (s *replSession) print(ctx context.Context, src string) error {
	nf, _, err := s.eval(ctx, src)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, printer.Print(nf))
	return nil
}

func (s *replSession) printType(ctx context.Context, src string) error {
	_, typ, err := s.eval(ctx, src)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, printer.Print(typ))
	return nil
}

func (s *replSession) printHash(ctx context.Context, src string) error {
	nf, _, err := s.eval(ctx, src)
	if err != nil {
		return err
	}
	h, _, err := ir.SemanticHash(nf)
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, h.String())
	return nil
}

func (s *replSession) let(ctx context.Context, def string) error {
	name, src, ok := strings.Cut(def, "=")
	if !ok {
		return fmt.Errorf("usage: :let <name> = <expr>")
	}
	name = strings.TrimSpace(name)
	v, err := parser.Parse(name, "(repl)")
	if err != nil {
		return fmt.Errorf("invalid name %q", name)
	}
	if x, ok := ir.StripNote(v).(ir.Var); !ok || x.Index != 0 {
		return fmt.Errorf("invalid name %q", name)
	}

	nf, typ, err := s.eval(ctx, src)
	if err != nil {
		return err
	}
	s.bindings = append(s.bindings, replBinding{Name: name, Value: nf, Type: typ})
	fmt.Fprintf(s.out, "%s : %s\n", printer.Label(name), printer.Print(typ))
	return nil
}

// eval resolves src, wraps it in the session's bindings, and returns its
// normal form and type.
func (s *replSession) eval(ctx context.Context, src string) (ir.Expr, ir.Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, nil, fmt.Errorf("expected an expression")
	}
	e, err := parser.Parse(src, "(repl)")
	if err != nil {
		return nil, nil, err
	}
	e, err = s.opts.Resolver().Resolve(ctx, e, imports.StdinOrigin())
	if err != nil {
		return nil, nil, err
	}
	for i := len(s.bindings) - 1; i >= 0; i-- {
		b := s.bindings[i]
		e = ir.Let{Label: b.Name, Annot: b.Type, Value: b.Value, Body: e}
	}
	typ, err := typecheck.TypeOf(e)
	if err != nil {
		return nil, nil, err
	}
	return eval.Normalize(e), typ, nil
}
