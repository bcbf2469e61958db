package imports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/typecheck"
)

// Parser turns source text into an unresolved expression.
type Parser interface {
	Parse(src, name string) (ir.Expr, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(src, name string) (ir.Expr, error)

// Parse implements Parser.
func (f ParserFunc) Parse(src, name string) (ir.Expr, error) {
	return f(src, name)
}

// errWaitCycle is returned by the flight table when waiting for another
// resolution would deadlock.
var errWaitCycle = errors.New("concurrent resolutions wait on each other")

// Resolver replaces imports with the normal forms of the expressions they
// denote.
//
// A Resolver is shared process-wide: its cache and single-flight table are
// common to every top-level resolution, so a pinned hash is fetched at most
// once at a time no matter how many resolutions need it. Each call to
// Resolve gets its own import stack and already-resolved set.
//
// Thread-safety: Resolve may be called from any number of goroutines.
type Resolver struct {
	parser  Parser
	files   FileReader
	env     EnvReader
	remote  RemoteFetcher
	cache   Cache
	policy  Policy
	metrics *Metrics
	logger  *slog.Logger
	ids     IDGenerator
	timeout time.Duration
	baseDir string
	homeDir string

	flights *flightTable
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithParser sets the parser used for code imports.
func WithParser(p Parser) Option {
	return func(r *Resolver) { r.parser = p }
}

// WithFileReader sets the local file backend.
func WithFileReader(f FileReader) Option {
	return func(r *Resolver) { r.files = f }
}

// WithEnv sets the environment backend.
func WithEnv(e EnvReader) Option {
	return func(r *Resolver) { r.env = e }
}

// WithRemote sets the remote fetch backend.
func WithRemote(f RemoteFetcher) Option {
	return func(r *Resolver) { r.remote = f }
}

// WithCache sets the semantic cache for pinned imports.
func WithCache(c Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithPolicy sets the import sandbox.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithIDGenerator sets the resolution ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Resolver) { r.ids = g }
}

// WithFetchTimeout bounds each remote fetch.
//
// Default: 30s (DefaultFetchTimeout)
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// WithBaseDir sets the directory that here- and parent-relative paths are
// read from. Default: the working directory.
func WithBaseDir(dir string) Option {
	return func(r *Resolver) { r.baseDir = dir }
}

// WithHomeDir sets the directory ~/ refers to. Default: os.UserHomeDir.
func WithHomeDir(dir string) Option {
	return func(r *Resolver) { r.homeDir = dir }
}

// New creates a Resolver. Without options it reads the real file system,
// environment, and network, caches in memory, and allows every import.
func New(opts ...Option) *Resolver {
	fetcher := NewHTTPFetcher(nil)
	r := &Resolver{
		parser:  ParserFunc(parser.Parse),
		files:   OSFileReader{},
		env:     OSEnv{},
		remote:  fetcher,
		cache:   NewMemoryCache(),
		policy:  DefaultPolicy(),
		logger:  slog.Default(),
		ids:     UUIDv7Generator{},
		timeout: DefaultFetchTimeout,
		baseDir: ".",
		flights: newFlightTable(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if f, ok := r.remote.(*HTTPFetcher); ok && f == fetcher {
		fetcher.Timeout = r.timeout
	}
	return r
}

// ResolvedImport describes one import resolved during a call.
type ResolvedImport struct {
	// Target is the chained, canonical location.
	Target ir.Target

	// Mode is how the content was interpreted.
	Mode ir.ImportMode

	// Pinned is the hash the import was pinned to, if any.
	Pinned *ir.Hash

	// Cached is true when a pinned import was served from the cache.
	Cached bool
}

// Result is the outcome of ResolveWithImports.
type Result struct {
	// Expr is the input with every import replaced.
	Expr ir.Expr

	// Imports lists each distinct import in the order it was first resolved.
	Imports []ResolvedImport

	// ID identifies the resolution in log output.
	ID string
}

// Resolve replaces every import in e. origin is the target of the document
// e was read from; relative imports are chained to it.
func (r *Resolver) Resolve(ctx context.Context, e ir.Expr, origin ir.Target) (ir.Expr, error) {
	res, err := r.ResolveWithImports(ctx, e, origin)
	if err != nil {
		return nil, err
	}
	return res.Expr, nil
}

// ResolveWithImports is like Resolve and also reports the imports that
// were resolved.
func (r *Resolver) ResolveWithImports(ctx context.Context, e ir.Expr, origin ir.Target) (*Result, error) {
	id := r.ids.Generate()
	s := &resolution{
		r:        r,
		id:       id,
		logger:   r.logger.With("resolution_id", id),
		resolved: make(map[string]ir.Expr),
		owned:    make(map[ir.Hash]bool),
	}

	start := time.Now()
	s.logger.Debug("resolution started", "origin", origin.String())

	out, err := s.walk(ctx, e, Canonicalize(origin))
	if err != nil {
		s.logger.Debug("resolution failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	s.logger.Debug("resolution finished", "imports", len(s.imports), "duration", time.Since(start))
	return &Result{Expr: out, Imports: s.imports, ID: id}, nil
}

// resolution is the state of one top-level Resolve call. It is confined to
// the calling goroutine.
type resolution struct {
	r      *Resolver
	id     string
	logger *slog.Logger

	// stack holds the identities of the imports being resolved, outermost
	// first; chain holds the same imports rendered for error messages.
	stack []string
	chain []string

	resolved map[string]ir.Expr
	imports  []ResolvedImport

	// owned is the set of pinned hashes this resolution holds a flight for.
	owned map[ir.Hash]bool
}

func (s *resolution) walk(ctx context.Context, e ir.Expr, origin ir.Target) (ir.Expr, error) {
	switch x := e.(type) {
	case ir.Import:
		return s.resolveImport(ctx, x, origin)
	case ir.Op:
		if x.Kind == ir.OpImportAlt {
			return s.fallback(ctx, x, origin)
		}
	}
	return ir.Traverse(e, func(child ir.Expr, _ *string) (ir.Expr, error) {
		return s.walk(ctx, child, origin)
	})
}

// fallback resolves l ? r: any failure of l is recovered by resolving r,
// except cancellation and fatal errors raised beneath another import.
func (s *resolution) fallback(ctx context.Context, x ir.Op, origin ir.Target) (ir.Expr, error) {
	l, err := s.walk(ctx, x.L, origin)
	if err == nil {
		return l, nil
	}
	if ctx.Err() != nil || fatalBeneath(err) {
		return nil, err
	}
	s.logger.Debug("import failed, trying alternative", "error", err)
	return s.walk(ctx, x.R, origin)
}

func (s *resolution) resolveImport(ctx context.Context, imp ir.Import, origin ir.Target) (ir.Expr, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", imp.Target, err)
	}

	target, err := Chain(origin, imp.Target)
	if err != nil {
		return nil, s.fail(ErrCodeImportFailure, imp.Target.String(), "cannot locate import", err, false)
	}
	if err := referentialCheck(origin, target); err != nil {
		return nil, s.fail(ErrCodeSecurityViolation, target.String(), err.Error(), nil, false)
	}
	if err := s.r.policy.Check(target); err != nil {
		return nil, s.fail(ErrCodeSecurityViolation, target.String(), err.Error(), nil, false)
	}

	if imp.Mode == ir.ModeLocation {
		loc := Location(target)
		if err := s.verify(loc, imp.Hash, target); err != nil {
			return nil, err
		}
		s.record(target, imp, false)
		return loc, nil
	}

	id := identity(target, imp.Mode)
	if slices.Contains(s.stack, id) {
		return nil, s.fail(ErrCodeImportCycle, target.String(), "import cycle", nil, false)
	}
	if done, ok := s.resolved[id]; ok {
		if err := s.verify(done, imp.Hash, target); err != nil {
			return nil, err
		}
		return done, nil
	}

	s.stack = append(s.stack, id)
	s.chain = append(s.chain, target.String())
	defer func() {
		s.stack = s.stack[:len(s.stack)-1]
		s.chain = s.chain[:len(s.chain)-1]
	}()

	var (
		out    ir.Expr
		cached bool
	)
	if imp.Hash != nil {
		out, cached, err = s.resolvePinned(ctx, imp, target, origin)
	} else {
		out, err = s.load(ctx, imp.Mode, target, origin)
	}
	if err != nil {
		return nil, err
	}

	s.resolved[id] = out
	s.record(target, imp, cached)
	s.logger.Debug("import resolved",
		"target", target.String(),
		"mode", imp.Mode.String(),
		"cached", cached,
		"depth", len(s.stack))
	return out, nil
}

func (s *resolution) record(target ir.Target, imp ir.Import, cached bool) {
	s.imports = append(s.imports, ResolvedImport{Target: target, Mode: imp.Mode, Pinned: imp.Hash, Cached: cached})
	s.r.metrics.RecordResolved(target.Kind.String(), imp.Mode.String())
}

// resolvePinned serves a hash-pinned import from the cache, or fetches it
// under the single-flight table and stores it.
func (s *resolution) resolvePinned(ctx context.Context, imp ir.Import, target, origin ir.Target) (ir.Expr, bool, error) {
	h := *imp.Hash

	// A pinned import nested inside content pinned to the same hash is
	// resolved directly; the flight is already ours.
	if s.owned[h] {
		out, _, err := s.fetchAndVerify(ctx, imp.Mode, h, target, origin)
		return out, false, err
	}

	for {
		if out, ok := s.fromCache(ctx, h); ok {
			s.r.metrics.RecordCacheHit()
			return out, true, nil
		}
		s.r.metrics.RecordCacheMiss()

		f, owned, err := s.r.flights.acquire(s.id, h)
		if errors.Is(err, errWaitCycle) {
			return nil, false, s.fail(ErrCodeImportCycle, target.String(), "import cycle across concurrent resolutions", err, false)
		}
		if err != nil {
			return nil, false, err
		}

		if !owned {
			encoded, err := s.r.flights.wait(ctx, s.id, f)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, false, fmt.Errorf("resolve %s: %w", target, ctxErr)
			}
			if err == nil {
				out, err := ir.Decode(encoded)
				if err == nil {
					return out, true, nil
				}
			}
			// The owner failed, possibly for reasons specific to its own
			// origin. Try again, which usually makes us the owner.
			s.logger.Debug("pinned import owner failed, retrying", "hash", h.String(), "error", err)
			continue
		}

		s.owned[h] = true
		out, encoded, err := s.fetchAndVerify(ctx, imp.Mode, h, target, origin)
		delete(s.owned, h)
		s.r.flights.release(h, f, encoded, err)
		return out, false, err
	}
}

func (s *resolution) fromCache(ctx context.Context, h ir.Hash) (ir.Expr, bool) {
	encoded, ok, err := s.r.cache.Get(ctx, h)
	if err != nil {
		s.logger.Warn("semantic cache read failed", "hash", h.String(), "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if ir.HashBytes(encoded) != h {
		s.logger.Warn("semantic cache entry is corrupt, ignoring it", "hash", h.String())
		return nil, false
	}
	out, err := ir.Decode(encoded)
	if err != nil {
		s.logger.Warn("semantic cache entry does not decode, ignoring it", "hash", h.String(), "error", err)
		return nil, false
	}
	return out, true
}

func (s *resolution) fetchAndVerify(ctx context.Context, mode ir.ImportMode, h ir.Hash, target, origin ir.Target) (ir.Expr, []byte, error) {
	out, err := s.load(ctx, mode, target, origin)
	if err != nil {
		return nil, nil, err
	}
	got, encoded, err := ir.SemanticHash(out)
	if err != nil {
		return nil, nil, s.fail(ErrCodeImportFailure, target.String(), "content cannot be hashed", err, false)
	}
	if got != h {
		return nil, nil, s.fail(ErrCodeHashMismatch, target.String(),
			fmt.Sprintf("expected %s, got %s", h, got), nil, false)
	}
	if err := s.r.cache.Put(ctx, h, encoded); err != nil {
		s.logger.Warn("semantic cache write failed", "hash", h.String(), "error", err)
	}
	return out, encoded, nil
}

// verify checks a pinned hash against an already available expression.
func (s *resolution) verify(e ir.Expr, pinned *ir.Hash, target ir.Target) error {
	if pinned == nil {
		return nil
	}
	got, _, err := ir.SemanticHash(e)
	if err != nil {
		return s.fail(ErrCodeImportFailure, target.String(), "content cannot be hashed", err, false)
	}
	if got != *pinned {
		return s.fail(ErrCodeHashMismatch, target.String(), fmt.Sprintf("expected %s, got %s", *pinned, got), nil, false)
	}
	return nil
}

// load reads the import's source and interprets it according to mode. Code
// is parsed, its own imports are resolved relative to target, and the
// result is type-checked and normalized.
func (s *resolution) load(ctx context.Context, mode ir.ImportMode, target, origin ir.Target) (ir.Expr, error) {
	src, err := s.read(ctx, target, origin)
	if err != nil {
		return nil, err
	}
	if mode == ir.ModeRawText {
		return ir.PlainText(src), nil
	}

	parsed, err := s.r.parser.Parse(src, target.String())
	if err != nil {
		return nil, s.fail(ErrCodeImportFailure, target.String(), "content does not parse", err, false)
	}
	resolved, err := s.walk(ctx, parsed, target)
	if err != nil {
		return nil, s.nested(target, err)
	}
	if _, err := typecheck.TypeOf(resolved); err != nil {
		return nil, s.fail(ErrCodeImportFailure, target.String(), "content does not type-check", err, false)
	}
	return eval.Normalize(resolved), nil
}

// read fetches the raw source of target.
func (s *resolution) read(ctx context.Context, target, origin ir.Target) (string, error) {
	start := time.Now()
	defer func() {
		s.r.metrics.ObserveFetch(target.Kind.String(), time.Since(start))
	}()

	switch target.Kind {
	case ir.TargetLocal:
		path, err := s.r.LocalPath(target)
		if err != nil {
			return "", s.fail(ErrCodeImportFailure, target.String(), "cannot locate file", err, false)
		}
		b, err := s.r.files.ReadFile(ctx, path)
		if err != nil {
			return "", s.fail(ErrCodeImportFailure, target.String(), "cannot read file", err, false)
		}
		return string(b), nil

	case ir.TargetEnv:
		v, ok := s.r.env.LookupEnv(target.Name)
		if !ok {
			return "", s.fail(ErrCodeImportFailure, target.String(), "environment variable is not set", nil, false)
		}
		return v, nil

	case ir.TargetRemote:
		fetchCtx, cancel := context.WithTimeout(ctx, s.r.timeout)
		defer cancel()
		resp, err := s.r.remote.Fetch(fetchCtx, target.URL)
		if err != nil {
			return "", s.fail(ErrCodeImportFailure, target.String(), "cannot fetch", err, transient(err))
		}
		if err := corsCheck(origin, target.URL, resp); err != nil {
			return "", s.fail(ErrCodeSecurityViolation, target.String(), err.Error(), nil, false)
		}
		return string(resp.Body), nil
	}
	return "", s.fail(ErrCodeImportFailure, target.String(), "missing import", nil, false)
}

// fail builds an ImportError at the current stack position and counts it.
func (s *resolution) fail(code ErrorCode, target, msg string, cause error, retryable bool) *ImportError {
	chain := slices.Clone(s.chain)
	if len(chain) == 0 || chain[len(chain)-1] != target || code == ErrCodeImportCycle {
		chain = append(chain, target)
	}
	s.r.metrics.RecordFailure(code)
	return &ImportError{
		Code:      code,
		Message:   msg,
		Target:    target,
		Chain:     chain,
		Retryable: retryable,
		Err:       cause,
	}
}

// nested wraps an error raised while resolving the imports of target's own
// content. The code is kept so callers see what went wrong at the bottom.
func (s *resolution) nested(target ir.Target, err error) error {
	var ie *ImportError
	if !errors.As(err, &ie) {
		return err
	}
	return &ImportError{
		Code:    ie.Code,
		Message: "cannot resolve the imports of " + target.String(),
		Target:  target.String(),
		Chain:   slices.Clone(s.chain),
		Nested:  true,
		Err:     err,
	}
}

// LocalPath maps a local target onto the file system, relative to the
// resolver's base directory.
func (r *Resolver) LocalPath(t ir.Target) (string, error) {
	switch t.Prefix {
	case ir.PrefixAbsolute:
		return filepath.Join(append([]string{string(filepath.Separator)}, t.Path...)...), nil
	case ir.PrefixHome:
		home := r.homeDir
		if home == "" {
			var err error
			if home, err = os.UserHomeDir(); err != nil {
				return "", err
			}
		}
		return filepath.Join(append([]string{home}, t.Path...)...), nil
	case ir.PrefixParent:
		return filepath.Join(append([]string{r.baseDir, ".."}, t.Path...)...), nil
	}
	return filepath.Join(append([]string{r.baseDir}, t.Path...)...), nil
}
