package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/export"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/printer"
	"github.com/roach88/dhall/internal/testutil"
	"github.com/roach88/dhall/internal/typecheck"
)

// Root is the directory scenario files live under.
const Root = "/scenario"

// ResolutionID is the resolution ID used for every scenario.
const ResolutionID = "scenario-resolution"

// Harness evaluates documents of one scenario against in-memory backends.
type Harness struct {
	scenario *Scenario
	files    *testutil.MemFS
	resolver *imports.Resolver
}

// New creates a harness for s. Each harness has its own resolver, so
// cache state never leaks between scenarios.
func New(s *Scenario) *Harness {
	files := testutil.NewMemFS(Root, s.Files)
	return &Harness{
		scenario: s,
		files:    files,
		resolver: imports.New(
			imports.WithFileReader(files),
			imports.WithEnv(testutil.Env(s.Env)),
			imports.WithRemote(remoteDocs(s.Remote)),
			imports.WithPolicy(s.Policy.Policy()),
			imports.WithBaseDir(Root),
			imports.WithHomeDir(path.Join(Root, "home")),
			imports.WithIDGenerator(testutil.FixedID(ResolutionID)),
			imports.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		),
	}
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Evaluate the entry document
//  2. Compare the outcome with the scenario's expectations
//  3. Check the principles of a successful evaluation
//  4. Compare hashes with the same_hash_as documents
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	h := New(s)
	result := NewResult()

	ev, err := h.Evaluate(ctx, s.Entry)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	result.Outcome = ev.Outcome(err)

	for _, msg := range CheckExpectations(s.Expect, result.Outcome) {
		result.AddError(msg)
	}
	if err != nil {
		return result, nil
	}

	for _, v := range CheckPrinciples(ev) {
		result.AddError(v.String())
	}
	for _, other := range s.Expect.SameHashAs {
		oev, err := h.Evaluate(ctx, other)
		if err != nil {
			result.AddError(fmt.Sprintf("same_hash_as %s: %v", other, err))
			continue
		}
		if oev.Hash != ev.Hash {
			result.AddError(fmt.Sprintf("same_hash_as %s: hash %s, entry has %s", other, oev.Hash, ev.Hash))
		}
	}
	return result, nil
}

// Evaluation is a fully evaluated document.
type Evaluation struct {
	Resolved *imports.Result
	Type     ir.Expr
	Normal   ir.Expr
	Hash     ir.Hash
}

// Evaluate parses, resolves, type-checks, normalizes, and hashes the
// scenario file at name. The returned evaluation is partially filled when
// a later stage fails.
func (h *Harness) Evaluate(ctx context.Context, name string) (*Evaluation, error) {
	ev := &Evaluation{}
	src, ok := h.scenario.Files[name]
	if !ok {
		return ev, fmt.Errorf("no scenario file %q", name)
	}

	e, err := parser.Parse(src, name)
	if err != nil {
		return ev, err
	}
	if ev.Resolved, err = h.resolver.ResolveWithImports(ctx, e, imports.FileOrigin(name)); err != nil {
		return ev, err
	}
	if ev.Type, err = typecheck.TypeOf(ev.Resolved.Expr); err != nil {
		return ev, err
	}
	ev.Normal = eval.Normalize(ev.Resolved.Expr)
	if ev.Hash, _, err = ir.SemanticHash(ev.Normal); err != nil {
		return ev, err
	}
	return ev, nil
}

// Outcome summarizes the evaluation, or err when it failed.
func (ev *Evaluation) Outcome(err error) Outcome {
	if err != nil {
		return Outcome{Error: ErrorCode(err), ErrorMessage: err.Error()}
	}

	out := Outcome{
		Type:    printer.Print(ev.Type),
		Normal:  printer.Print(ev.Normal),
		Hash:    ev.Hash.String(),
		Imports: importLines(ev.Resolved.Imports),
	}
	if v, err := export.ToValue(ev.Normal); err == nil {
		if b, err := export.JSON(v, ""); err == nil {
			out.JSON = string(b)
		}
	}
	return out
}

func importLines(imps []imports.ResolvedImport) []string {
	if len(imps) == 0 {
		return nil
	}
	lines := make([]string, len(imps))
	for i, imp := range imps {
		lines[i] = imp.Target.String()
		if imp.Mode != ir.ModeCode {
			lines[i] += " as " + imp.Mode.String()
		}
	}
	return lines
}

// ErrorCode returns the stable code of an evaluation error.
func ErrorCode(err error) string {
	if code := imports.CodeOf(err); code != "" {
		return string(code)
	}
	if code := typecheck.CodeOf(err); code != "" {
		return string(code)
	}
	if parser.IsParseError(err) {
		return "PARSE_ERROR"
	}
	return "ERROR"
}

// remoteDocs serves a scenario's remote map.
type remoteDocs map[string]RemoteDoc

func (r remoteDocs) Fetch(ctx context.Context, url string) (*imports.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := r[url]
	switch {
	case !ok:
		return nil, &imports.StatusError{URL: url, StatusCode: http.StatusNotFound}
	case doc.Status != 0:
		return nil, &imports.StatusError{URL: url, StatusCode: doc.Status}
	}
	header := http.Header{}
	if doc.CORS != "" {
		header.Set("Access-Control-Allow-Origin", doc.CORS)
	}
	return &imports.Response{Body: []byte(doc.Body), Header: header}, nil
}
