package imports

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/testutil"
)

type remoteDoc struct {
	body  string
	allow string // Access-Control-Allow-Origin
}

// fakeRemote serves fixed documents. When gate is set, every fetch signals
// started and then blocks until gate is closed.
type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string]remoteDoc
	calls   map[string]int
	gate    chan struct{}
	started chan struct{}
	err     error
}

func newFakeRemote(docs map[string]remoteDoc) *fakeRemote {
	return &fakeRemote{docs: docs, calls: make(map[string]int)}
}

func (f *fakeRemote) Fetch(ctx context.Context, url string) (*Response, error) {
	f.mu.Lock()
	f.calls[url]++
	doc, ok := f.docs[url]
	gate, started, failWith := f.gate, f.started, f.err
	f.mu.Unlock()

	if gate != nil {
		started <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failWith != nil {
		return nil, failWith
	}
	if !ok {
		return nil, &StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	header := http.Header{}
	if doc.allow != "" {
		header.Set("Access-Control-Allow-Origin", doc.allow)
	}
	return &Response{Body: []byte(doc.body), Header: header}, nil
}

func (f *fakeRemote) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

// hangingRemote blocks until the fetch context is done.
type hangingRemote struct{}

func (hangingRemote) Fetch(ctx context.Context, _ string) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(files *testutil.MemFS, opts ...Option) *Resolver {
	base := []Option{
		WithFileReader(files),
		WithEnv(testutil.Env{}),
		WithRemote(newFakeRemote(nil)),
		WithLogger(quietLogger()),
		WithBaseDir("/work"),
		WithHomeDir("/home/user"),
	}
	return New(append(base, opts...)...)
}

var mainOrigin = ir.LocalTarget(ir.PrefixHere, "main.dhall")

func resolveSource(t *testing.T, r *Resolver, src string) (ir.Expr, error) {
	t.Helper()
	e, err := parser.Parse(src, "main.dhall")
	require.NoError(t, err)
	return r.Resolve(context.Background(), e, mainOrigin)
}

func requireResolvesTo(t *testing.T, r *Resolver, src string, want ir.Expr) {
	t.Helper()
	got, err := resolveSource(t, r, src)
	require.NoError(t, err)
	assert.True(t, ir.Equal(want, eval.Normalize(got)), "got %#v, want %#v", eval.Normalize(got), want)
}

func TestResolver_LocalImport(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "1 + 1",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "./a.dhall + 1", ir.NaturalLit(3))
}

func TestResolver_RelativeToImportingFile(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"dir/a.dhall":   "./b.dhall * 2",
		"dir/b.dhall":   "../c.dhall",
		"c.dhall":       "21",
		"dir/c.dhall":   "0",
		"other/b.dhall": "0",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "./dir/a.dhall", ir.NaturalLit(42))
	assert.Equal(t, 1, files.Reads("c.dhall"))
	assert.Equal(t, 0, files.Reads("dir/c.dhall"))
}

func TestResolver_ImportedCodeIsNormalized(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"f.dhall": `\(x : Natural) -> x + 1`,
	})
	r := newTestResolver(files)

	got, err := resolveSource(t, r, "./f.dhall")
	require.NoError(t, err)
	want := ir.Lambda{Label: "x", Type: ir.Builtin("Natural"), Body: ir.Op{
		Kind: ir.OpPlus, L: ir.Var{Name: "x"}, R: ir.NaturalLit(1),
	}}
	assert.True(t, ir.AlphaEquivalent(want, got))
}

func TestResolver_Env(t *testing.T) {
	files := testutil.NewMemFS("/work", nil)
	r := newTestResolver(files, WithEnv(testutil.Env{"PORT": "8000 + 80"}))

	requireResolvesTo(t, r, "env:PORT", ir.NaturalLit(8080))
}

func TestResolver_EnvUnset(t *testing.T) {
	r := newTestResolver(testutil.NewMemFS("/work", nil))

	_, err := resolveSource(t, r, "env:NOPE")
	require.Error(t, err)
	assert.True(t, IsImportFailure(err))
	assert.False(t, IsRetryable(err))
}

func TestResolver_AsText(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"motd.txt": "hello ${world}\n",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "./motd.txt as Text", ir.PlainText("hello ${world}\n"))
}

func TestResolver_AsLocation(t *testing.T) {
	files := testutil.NewMemFS("/work", nil)
	r := newTestResolver(files)

	tests := []struct {
		src   string
		label string
		text  string
	}{
		{"./dir/../a.dhall as Location", "Local", "./a.dhall"},
		{"env:HOME as Location", "Environment", "HOME"},
		{"https://example.com/a.dhall as Location", "Remote", "https://example.com/a.dhall"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := resolveSource(t, r, tt.src)
			require.NoError(t, err)
			want := ir.App{Fn: ir.Field{Record: locationType, Label: tt.label}, Arg: ir.PlainText(tt.text)}
			assert.True(t, ir.Equal(want, got))
		})
	}

	got, err := resolveSource(t, r, "missing as Location")
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Field{Record: locationType, Label: "Missing"}, got))

	// Nothing is read for a location.
	assert.Zero(t, files.Reads("a.dhall"))
}

func TestResolver_DeduplicatesWithinResolution(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "1",
	})
	r := newTestResolver(files)

	e := parser.MustParse("./a.dhall + ./a.dhall")
	res, err := r.ResolveWithImports(context.Background(), e, mainOrigin)
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.NaturalLit(2), eval.Normalize(res.Expr)))
	assert.Equal(t, 1, files.Reads("a.dhall"))
	require.Len(t, res.Imports, 1)
	assert.Equal(t, "./a.dhall", res.Imports[0].Target.String())
	assert.Equal(t, ir.ModeCode, res.Imports[0].Mode)
	assert.NotEmpty(t, res.ID)
}

func TestResolver_ResolvedSetNotSharedAcrossCalls(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "1",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "./a.dhall", ir.NaturalLit(1))
	requireResolvesTo(t, r, "./a.dhall", ir.NaturalLit(1))
	assert.Equal(t, 2, files.Reads("a.dhall"))
}

func TestResolver_ResolutionIDs(t *testing.T) {
	r := newTestResolver(testutil.NewMemFS("/work", nil), WithIDGenerator(NewFixedGenerator("res-1", "res-2")))

	for _, want := range []string{"res-1", "res-2"} {
		res, err := r.ResolveWithImports(context.Background(), ir.NaturalLit(1), mainOrigin)
		require.NoError(t, err)
		assert.Equal(t, want, res.ID)
	}
}

func TestResolver_Cycle(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "./b.dhall",
		"b.dhall": "./a.dhall",
		"c.dhall": "./a.dhall + 1",
	})

	tests := []struct {
		entry string
		chain string
	}{
		{"./a.dhall", "./a.dhall -> ./b.dhall -> ./a.dhall"},
		{"./b.dhall", "./b.dhall -> ./a.dhall -> ./b.dhall"},
		{"./c.dhall", "./a.dhall -> ./b.dhall -> ./a.dhall"},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			r := newTestResolver(files)
			_, err := resolveSource(t, r, tt.entry)
			require.Error(t, err)
			assert.True(t, IsImportCycle(err))
			assert.Equal(t, ErrCodeImportCycle, CodeOf(err))
			assert.Contains(t, err.Error(), tt.chain)
		})
	}
}

func TestResolver_SelfImportCycle(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "./a.dhall",
	})
	r := newTestResolver(files)

	_, err := resolveSource(t, r, "./a.dhall")
	assert.True(t, IsImportCycle(err))
}

func TestResolver_SameFileInAnotherModeIsNotACycle(t *testing.T) {
	// A file reading its own source as text is not a cycle.
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "./a.dhall as Text",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "./a.dhall", ir.PlainText("./a.dhall as Text"))
}

func TestResolver_ImportedContentMustTypeCheck(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"bad.dhall":   "1 + True",
		"parse.dhall": "{ x = ",
	})
	r := newTestResolver(files)

	for _, src := range []string{"./bad.dhall", "./parse.dhall", "./nope.dhall"} {
		t.Run(src, func(t *testing.T) {
			_, err := resolveSource(t, r, src)
			require.Error(t, err)
			assert.True(t, IsImportFailure(err))
		})
	}
}

func TestResolver_HashPinning(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": `{ b = 2, a = "x" }`,
	})
	want := ir.RecordLit{Fields: []ir.Entry{
		{Label: "a", Value: ir.PlainText("x")},
		{Label: "b", Value: ir.NaturalLit(2)},
	}}
	h := ir.MustSemanticHash(want)

	t.Run("match", func(t *testing.T) {
		cache := NewMemoryCache()
		r := newTestResolver(files, WithCache(cache))

		requireResolvesTo(t, r, "./a.dhall "+h.String(), want)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("mismatch", func(t *testing.T) {
		other := ir.MustSemanticHash(ir.NaturalLit(2))
		cache := NewMemoryCache()
		r := newTestResolver(files, WithCache(cache))

		_, err := resolveSource(t, r, "./a.dhall "+other.String())
		require.Error(t, err)
		assert.True(t, IsHashMismatch(err))
		assert.Contains(t, err.Error(), h.String())
		assert.Zero(t, cache.Len())
	})
}

func TestResolver_PinnedServedFromCache(t *testing.T) {
	h, encoded, err := ir.SemanticHash(ir.NaturalLit(7))
	require.NoError(t, err)

	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), h, encoded))

	files := testutil.NewMemFS("/work", nil)
	r := newTestResolver(files, WithCache(cache))

	e := parser.MustParse("./gone.dhall " + h.String())
	res, err := r.ResolveWithImports(context.Background(), e, mainOrigin)
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.NaturalLit(7), res.Expr))
	assert.Zero(t, files.Reads("gone.dhall"))
	require.Len(t, res.Imports, 1)
	assert.True(t, res.Imports[0].Cached)
}

func TestResolver_CorruptCacheEntryIgnored(t *testing.T) {
	h := ir.MustSemanticHash(ir.NaturalLit(7))
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), h, ir.MustEncode(ir.NaturalLit(8))))

	files := testutil.NewMemFS("/work", map[string]string{"seven.dhall": "7"})
	r := newTestResolver(files, WithCache(cache))

	requireResolvesTo(t, r, "./seven.dhall "+h.String(), ir.NaturalLit(7))
	assert.Equal(t, 1, files.Reads("seven.dhall"))
}

func TestResolver_Fallback(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{
		"ok.dhall": "2",
	})
	r := newTestResolver(files)

	requireResolvesTo(t, r, "missing ? 1", ir.NaturalLit(1))
	requireResolvesTo(t, r, "env:NOPE ? ./ok.dhall", ir.NaturalLit(2))
	requireResolvesTo(t, r, "./nope.dhall ? env:NOPE ? 3", ir.NaturalLit(3))
	requireResolvesTo(t, r, "./ok.dhall ? ./nope.dhall", ir.NaturalLit(2))
}

func TestResolver_FallbackBothFailReportsRight(t *testing.T) {
	r := newTestResolver(testutil.NewMemFS("/work", nil))

	_, err := resolveSource(t, r, "./nope.dhall ? env:NOPE")
	require.Error(t, err)
	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "env:NOPE", ie.Target)
}

func TestResolver_FallbackOnNetworkError(t *testing.T) {
	remote := newFakeRemote(nil)
	remote.err = &StatusError{URL: "https://example.com/a.dhall", StatusCode: http.StatusServiceUnavailable}
	r := newTestResolver(testutil.NewMemFS("/work", nil), WithRemote(remote))

	requireResolvesTo(t, r, "https://example.com/a.dhall ? 5", ir.NaturalLit(5))

	_, err := resolveSource(t, r, "https://example.com/a.dhall")
	require.Error(t, err)
	assert.True(t, IsImportFailure(err))
	assert.True(t, IsRetryable(err))
}

func TestResolver_FallbackWrapsDirectFatalError(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{"a.dhall": "1"})
	r := newTestResolver(files)

	wrong := ir.MustSemanticHash(ir.NaturalLit(2))
	requireResolvesTo(t, r, "./a.dhall "+wrong.String()+" ? 9", ir.NaturalLit(9))
}

func TestResolver_FallbackDoesNotHideNestedFatalError(t *testing.T) {
	wrong := ir.MustSemanticHash(ir.NaturalLit(2))
	files := testutil.NewMemFS("/work", map[string]string{
		"a.dhall": "./b.dhall " + wrong.String(),
		"b.dhall": "1",
	})
	r := newTestResolver(files)

	_, err := resolveSource(t, r, "./a.dhall ? 9")
	require.Error(t, err)
	assert.True(t, IsHashMismatch(err))

	remote := newFakeRemote(map[string]remoteDoc{
		"https://example.com/a.dhall": {body: "/etc/secret.dhall"},
	})
	r = newTestResolver(files, WithRemote(remote))

	_, err = resolveSource(t, r, "https://example.com/a.dhall ? 9")
	require.Error(t, err)
	assert.True(t, IsSecurityViolation(err))
}

func TestResolver_RemoteMayNotImportLocal(t *testing.T) {
	remote := newFakeRemote(map[string]remoteDoc{
		"https://example.com/abs.dhall":  {body: "/etc/secret.dhall as Text"},
		"https://example.com/home.dhall": {body: "~/.ssh/id_rsa as Text"},
		"https://example.com/env.dhall":  {body: "env:AWS_SECRET_ACCESS_KEY as Text"},
	})
	files := testutil.NewMemFS("/work", nil)
	r := newTestResolver(files, WithRemote(remote), WithEnv(testutil.Env{"AWS_SECRET_ACCESS_KEY": "hunter2"}))

	for _, url := range []string{
		"https://example.com/abs.dhall",
		"https://example.com/home.dhall",
		"https://example.com/env.dhall",
	} {
		t.Run(url, func(t *testing.T) {
			_, err := resolveSource(t, r, url)
			require.Error(t, err)
			assert.True(t, IsSecurityViolation(err))
		})
	}
	assert.Zero(t, files.TotalReads(), "a remote document must not read local files")
}

func TestResolver_RemoteRelativeImportStaysRemote(t *testing.T) {
	remote := newFakeRemote(map[string]remoteDoc{
		"https://example.com/pkg/a.dhall": {body: "./b.dhall + ../c.dhall"},
		"https://example.com/pkg/b.dhall": {body: "1"},
		"https://example.com/c.dhall":     {body: "2"},
		"https://example.com/pkg/c.dhall": {body: "100"},
	})
	files := testutil.NewMemFS("/work", map[string]string{"b.dhall": "100"})
	r := newTestResolver(files, WithRemote(remote))

	requireResolvesTo(t, r, "https://example.com/pkg/a.dhall", ir.NaturalLit(3))
	assert.Zero(t, files.Reads("b.dhall"))
}

func TestResolver_CORS(t *testing.T) {
	remote := newFakeRemote(map[string]remoteDoc{
		"https://a.example/main.dhall":  {body: "https://b.example/x.dhall"},
		"https://a.example/open.dhall":  {body: "https://c.example/x.dhall"},
		"https://a.example/named.dhall": {body: "https://d.example/x.dhall"},
		"https://a.example/wrong.dhall": {body: "https://e.example/x.dhall"},
		"https://a.example/same.dhall":  {body: "https://a.example/x.dhall"},
		"https://a.example/x.dhall":     {body: "0"},
		"https://b.example/x.dhall":     {body: "1"},
		"https://c.example/x.dhall":     {body: "2", allow: "*"},
		"https://d.example/x.dhall":     {body: "3", allow: "https://a.example"},
		"https://e.example/x.dhall":     {body: "4", allow: "https://evil.example"},
	})
	r := newTestResolver(testutil.NewMemFS("/work", nil), WithRemote(remote))

	_, err := resolveSource(t, r, "https://a.example/main.dhall")
	assert.True(t, IsSecurityViolation(err))

	requireResolvesTo(t, r, "https://a.example/open.dhall", ir.NaturalLit(2))
	requireResolvesTo(t, r, "https://a.example/named.dhall", ir.NaturalLit(3))
	requireResolvesTo(t, r, "https://a.example/same.dhall", ir.NaturalLit(0))

	_, err = resolveSource(t, r, "https://a.example/wrong.dhall")
	assert.True(t, IsSecurityViolation(err))

	// A local document may import any remote without CORS.
	requireResolvesTo(t, r, "https://b.example/x.dhall", ir.NaturalLit(1))
}

func TestResolver_Policy(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{"a.dhall": "1"})
	remote := newFakeRemote(map[string]remoteDoc{
		"https://good.example/a.dhall":     {body: "1"},
		"https://cdn.good.example/a.dhall": {body: "1"},
		"https://bad.example/a.dhall":      {body: "1"},
	})

	tests := []struct {
		name    string
		policy  Policy
		src     string
		allowed bool
	}{
		{"zero policy allows relative", Policy{}, "./a.dhall", true},
		{"zero policy denies env", Policy{}, "env:HOME as Text", false},
		{"zero policy denies remote", Policy{}, "https://good.example/a.dhall", false},
		{"zero policy denies absolute", Policy{}, "/work/a.dhall", false},
		{"zero policy denies home", Policy{}, "~/a.dhall", false},
		{"absolute allowed", Policy{AllowAbsolute: true}, "/work/a.dhall", true},
		{"host allowed", Policy{AllowRemote: true, AllowedHosts: []string{"good.example"}}, "https://good.example/a.dhall", true},
		{"host denied", Policy{AllowRemote: true, AllowedHosts: []string{"good.example"}}, "https://bad.example/a.dhall", false},
		{"wildcard host", Policy{AllowRemote: true, AllowedHosts: []string{"*.good.example"}}, "https://cdn.good.example/a.dhall", true},
		{"wildcard excludes apex", Policy{AllowRemote: true, AllowedHosts: []string{"*.good.example"}}, "https://good.example/a.dhall", false},
		{"location is still checked", Policy{}, "env:HOME as Location", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(files, WithRemote(remote), WithPolicy(tt.policy), WithEnv(testutil.Env{"HOME": "/home/user"}))
			_, err := resolveSource(t, r, tt.src)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsSecurityViolation(err))
		})
	}
}

func TestResolver_FetchTimeoutIsRetryable(t *testing.T) {
	r := newTestResolver(testutil.NewMemFS("/work", nil), WithRemote(hangingRemote{}), WithFetchTimeout(10*time.Millisecond))

	_, err := resolveSource(t, r, "https://example.com/slow.dhall")
	require.Error(t, err)
	assert.True(t, IsImportFailure(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_DefaultFetcherUsesFetchTimeout(t *testing.T) {
	r := New(WithFetchTimeout(5 * time.Second))
	f, ok := r.remote.(*HTTPFetcher)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, f.Timeout)

	custom := NewHTTPFetcher(nil)
	New(WithRemote(custom), WithFetchTimeout(5*time.Second))
	assert.Zero(t, custom.Timeout, "a caller-supplied fetcher keeps its own timeout")
}

func TestResolver_CancelledContext(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{"a.dhall": "1"})
	r := newTestResolver(files)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, parser.MustParse("./a.dhall ? 2"), mainOrigin)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, files.Reads("a.dhall"))
}

func TestResolver_SingleFlightPerHash(t *testing.T) {
	const url = "https://example.com/shared.dhall"
	h := ir.MustSemanticHash(ir.NaturalLit(5))

	remote := newFakeRemote(map[string]remoteDoc{url: {body: "2 + 3"}})
	remote.gate = make(chan struct{})
	remote.started = make(chan struct{}, 4)

	cache := NewMemoryCache()
	r := newTestResolver(testutil.NewMemFS("/work", nil), WithRemote(remote), WithCache(cache))
	e := parser.MustParse(url + " " + h.String())

	type outcome struct {
		res *Result
		err error
	}
	results := make(chan outcome, 2)
	resolve := func() {
		res, err := r.ResolveWithImports(context.Background(), e, mainOrigin)
		results <- outcome{res, err}
	}

	go resolve()
	<-remote.started
	go resolve()

	require.Eventually(t, func() bool {
		r.flights.mu.Lock()
		defer r.flights.mu.Unlock()
		return len(r.flights.waitsFor) == 1
	}, time.Second, time.Millisecond)

	close(remote.gate)

	cached := 0
	for range 2 {
		out := <-results
		require.NoError(t, out.err)
		assert.True(t, ir.Equal(ir.NaturalLit(5), out.res.Expr))
		if out.res.Imports[0].Cached {
			cached++
		}
	}
	assert.Equal(t, 1, remote.callCount(url))
	assert.Equal(t, 1, cached)
	assert.Zero(t, r.flights.inFlight())
	assert.Equal(t, 1, cache.Len())
}

func TestResolver_WaiterTakesOverWhenOwnerFails(t *testing.T) {
	const url = "https://example.com/shared.dhall"
	h := ir.MustSemanticHash(ir.NaturalLit(5))

	remote := newFakeRemote(map[string]remoteDoc{url: {body: "5"}})
	remote.gate = make(chan struct{})
	remote.started = make(chan struct{}, 4)

	r := newTestResolver(testutil.NewMemFS("/work", nil), WithRemote(remote))
	e := parser.MustParse(url + " " + h.String())

	ownerCtx, cancelOwner := context.WithCancel(context.Background())
	ownerErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ownerCtx, e, mainOrigin)
		ownerErr <- err
	}()
	<-remote.started

	waiterOut := make(chan error, 1)
	go func() {
		got, err := r.Resolve(context.Background(), e, mainOrigin)
		if err == nil && !ir.Equal(ir.NaturalLit(5), got) {
			err = errors.New("unexpected result")
		}
		waiterOut <- err
	}()
	require.Eventually(t, func() bool {
		r.flights.mu.Lock()
		defer r.flights.mu.Unlock()
		return len(r.flights.waitsFor) == 1
	}, time.Second, time.Millisecond)

	// The owner gives up; the waiter becomes the new owner and fetches.
	cancelOwner()
	assert.ErrorIs(t, <-ownerErr, context.Canceled)

	<-remote.started
	close(remote.gate)
	require.NoError(t, <-waiterOut)
	assert.Equal(t, 2, remote.callCount(url))
}

func TestResolver_Metrics(t *testing.T) {
	files := testutil.NewMemFS("/work", map[string]string{"a.dhall": "1"})
	h := ir.MustSemanticHash(ir.NaturalLit(1))
	m := NewMetrics("dhall")
	r := newTestResolver(files, WithMetrics(m))

	requireResolvesTo(t, r, "./a.dhall "+h.String(), ir.NaturalLit(1))
	requireResolvesTo(t, r, "./a.dhall "+h.String(), ir.NaturalLit(1))
	_, err := resolveSource(t, r, "./nope.dhall")
	require.Error(t, err)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.cacheMisses))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.resolved.WithLabelValues("local", "code")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.failures.WithLabelValues(string(ErrCodeImportFailure))))
	assert.Equal(t, 5, promtest.CollectAndCount(m.Registry()))
}

func TestResolver_NilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.Nil(t, m.Registry())
	m.RecordResolved("local", "code")
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordFailure(ErrCodeImportCycle)
	m.ObserveFetch("local", time.Second)
}
