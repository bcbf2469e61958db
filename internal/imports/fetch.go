package imports

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/singleflight"
)

// FileReader reads local files.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// EnvReader looks up environment variables.
type EnvReader interface {
	LookupEnv(name string) (string, bool)
}

// RemoteFetcher retrieves remote documents. Implementations must honor ctx
// cancellation; the resolver bounds each call with its fetch timeout.
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// Response is a fetched remote document.
type Response struct {
	Body   []byte
	Header http.Header
}

// OSFileReader reads files from the local file system.
type OSFileReader struct{}

// ReadFile implements FileReader.
func (OSFileReader) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// OSEnv reads the process environment.
type OSEnv struct{}

// LookupEnv implements EnvReader.
func (OSEnv) LookupEnv(name string) (string, bool) {
	return os.LookupEnv(name)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPFetcher fetches remote documents over HTTP(S). Concurrent fetches of
// the same URL share one request.
//
// Thread-safety: HTTPFetcher is safe for concurrent use.
type HTTPFetcher struct {
	// Timeout bounds each shared request. Zero means DefaultFetchTimeout.
	Timeout time.Duration

	client *http.Client
	group  singleflight.Group
}

// maxDocumentSize bounds the size of a remote document.
const maxDocumentSize = 32 << 20

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient when
// client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

// Fetch implements RemoteFetcher.
//
// The shared request is detached from the cancellation of the caller that
// started it and bounded by Timeout instead. Each caller still returns as
// soon as its own ctx is done.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	ch := f.group.DoChan(url, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout())
		defer cancel()
		return f.get(shared, url)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Response), nil
	}
}

func (f *HTTPFetcher) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return DefaultFetchTimeout
}

func (f *HTTPFetcher) get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, err
	}
	return &Response{Body: body, Header: resp.Header}, nil
}

// transient reports whether a fetch error is worth retrying. Timeouts,
// connection failures and server-side HTTP errors are; cancellation and
// malformed requests are not.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= 500 || status.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// DefaultFetchTimeout bounds each remote fetch unless overridden.
const DefaultFetchTimeout = 30 * time.Second
