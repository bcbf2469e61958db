package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/typecheck"
)

// stdinName is how standard input appears in diagnostics.
const stdinName = "(stdin)"

// source is a parsed input document.
type source struct {
	Name   string
	Expr   ir.Expr
	Origin ir.Target
}

// inputArg returns the single optional file argument, "" meaning stdin.
func inputArg(args []string) string {
	if len(args) == 0 || args[0] == "-" {
		return ""
	}
	return args[0]
}

// readInput reads a file, or standard input when path is "".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read standard input", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "", err)
	}
	return data, nil
}

// loadSource reads and parses the document at path ("" for stdin).
func loadSource(cmd *cobra.Command, path string) (*source, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	name, origin := stdinName, imports.StdinOrigin()
	if path != "" {
		name, origin = path, imports.FileOrigin(path)
	}
	e, err := parser.Parse(string(data), name)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "", err)
	}
	return &source{Name: name, Expr: e, Origin: origin}, nil
}

// evaluation is a document taken through resolution, type inference, and
// normalization.
type evaluation struct {
	Source   *source
	Resolved *imports.Result
	Type     ir.Expr
	Normal   ir.Expr
}

// evaluate resolves, type-checks, and normalizes src.
func (o *RootOptions) evaluate(ctx context.Context, src *source) (*evaluation, error) {
	res, err := o.Resolver().ResolveWithImports(ctx, src.Expr, src.Origin)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "", err)
	}
	typ, err := typecheck.TypeOf(res.Expr)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "", withSource(src.Name, err))
	}
	return &evaluation{
		Source:   src,
		Resolved: res,
		Type:     typ,
		Normal:   eval.Normalize(res.Expr),
	}, nil
}

// evaluatePath loads and evaluates the document at path ("" for stdin).
func (o *RootOptions) evaluatePath(cmd *cobra.Command, path string) (*evaluation, error) {
	src, err := loadSource(cmd, path)
	if err != nil {
		return nil, err
	}
	return o.evaluate(commandContext(cmd), src)
}

// withSource prefixes a type error with the file it was found in. Parse
// errors already carry the name.
func withSource(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ImportSummary describes a resolved import in command output.
type ImportSummary struct {
	Target string `json:"target"`
	Mode   string `json:"mode"`
	Hash   string `json:"hash,omitempty"`
	Cached bool   `json:"cached,omitempty"`
}

func summarizeImports(res *imports.Result) []ImportSummary {
	out := make([]ImportSummary, 0, len(res.Imports))
	for _, imp := range res.Imports {
		s := ImportSummary{Target: imp.Target.String(), Mode: imp.Mode.String(), Cached: imp.Cached}
		if imp.Pinned != nil {
			s.Hash = imp.Pinned.String()
		}
		out = append(out, s)
	}
	return out
}
