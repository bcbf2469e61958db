package imports

import (
	"context"
	"sync"

	"github.com/roach88/dhall/internal/ir"
)

// flightTable guarantees at most one resolution of a pinned hash at a time
// across every concurrent top-level resolution sharing a Resolver.
//
// A resolution that finds the hash in flight waits for the owner. Waiting
// can deadlock when two resolutions each own a hash the other needs, so the
// table keeps a wait-for graph (resolution -> hash -> owning resolution)
// and refuses any wait that would close a loop.
//
// Thread-safety: all methods are safe for concurrent use.
type flightTable struct {
	mu       sync.Mutex
	flights  map[ir.Hash]*flight
	waitsFor map[string]ir.Hash // resolution ID -> hash it is blocked on
}

type flight struct {
	owner string
	done  chan struct{}

	// Set before done is closed.
	encoded []byte
	err     error
}

func newFlightTable() *flightTable {
	return &flightTable{
		flights:  make(map[ir.Hash]*flight),
		waitsFor: make(map[string]ir.Hash),
	}
}

// acquire either makes resolution the owner of h (owned == true) or returns
// the flight it must wait on. It fails with errWaitCycle when waiting would
// deadlock.
func (t *flightTable) acquire(resolution string, h ir.Hash) (f *flight, owned bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.flights[h]; ok {
		if t.closesLoop(resolution, f.owner) {
			return nil, false, errWaitCycle
		}
		t.waitsFor[resolution] = h
		return f, false, nil
	}
	f = &flight{owner: resolution, done: make(chan struct{})}
	t.flights[h] = f
	return f, true, nil
}

// closesLoop follows the wait-for chain from owner and reports whether it
// leads back to resolution. Caller holds t.mu.
func (t *flightTable) closesLoop(resolution, owner string) bool {
	seen := make(map[string]bool)
	for cur := owner; !seen[cur]; {
		if cur == resolution {
			return true
		}
		seen[cur] = true
		h, waiting := t.waitsFor[cur]
		if !waiting {
			return false
		}
		next, ok := t.flights[h]
		if !ok {
			return false
		}
		cur = next.owner
	}
	return false
}

// wait blocks until f completes or ctx is done.
func (t *flightTable) wait(ctx context.Context, resolution string, f *flight) ([]byte, error) {
	defer func() {
		t.mu.Lock()
		delete(t.waitsFor, resolution)
		t.mu.Unlock()
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.encoded, f.err
	}
}

// release publishes the owner's result and removes the flight, so a later
// request for h starts fresh (normally hitting the cache).
func (t *flightTable) release(h ir.Hash, f *flight, encoded []byte, err error) {
	t.mu.Lock()
	delete(t.flights, h)
	t.mu.Unlock()

	f.encoded, f.err = encoded, err
	close(f.done)
}

// inFlight returns the number of hashes currently being resolved.
func (t *flightTable) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flights)
}
