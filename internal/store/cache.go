package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
)

var _ imports.Cache = (*Store)(nil)

// Entry describes one cached encoding.
type Entry struct {
	Hash ir.Hash
	Size int64
	Seq  int64
}

// Stats summarizes the cache contents.
type Stats struct {
	Entries int64
	Bytes   int64
}

// Get returns the canonical encoding stored under h.
//
// The bytes are returned as stored; callers that cannot trust the file
// (the resolver does not) re-hash them before use.
func (s *Store) Get(ctx context.Context, h ir.Hash) ([]byte, bool, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT bytes FROM semantic_cache WHERE hash = ?
	`, h.Hex()).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %s: %w", h, err)
	}
	return b, true, nil
}

// Put stores encoded under h.
// Uses ON CONFLICT(hash) DO NOTHING for idempotency - the bytes for a hash
// never change, so a second Put is silently ignored.
//
// Put refuses bytes that do not hash to h.
func (s *Store) Put(ctx context.Context, h ir.Hash, encoded []byte) error {
	if got := ir.HashBytes(encoded); got != h {
		return fmt.Errorf("write cache entry %s: content hashes to %s", h, got)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO semantic_cache (hash, bytes, size, seq)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM semantic_cache))
		ON CONFLICT(hash) DO NOTHING
	`, h.Hex(), encoded, len(encoded))
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", h, err)
	}
	return nil
}

// Delete removes the entry for h, if any.
func (s *Store) Delete(ctx context.Context, h ir.Hash) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM semantic_cache WHERE hash = ?`, h.Hex()); err != nil {
		return fmt.Errorf("delete cache entry %s: %w", h, err)
	}
	return nil
}

// Entries lists every entry in insertion order.
// Results are ordered deterministically: ORDER BY seq ASC, hash ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) for an empty cache.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, size, seq
		FROM semantic_cache
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			hexHash string
			e       Entry
		)
		if err := rows.Scan(&hexHash, &e.Size, &e.Seq); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if e.Hash, err = ir.ParseHash(hexHash); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache entries: %w", err)
	}
	return entries, nil
}

// Stats returns the number of entries and their total size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size), 0) FROM semantic_cache
	`).Scan(&st.Entries, &st.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

// Prune deletes all but the keep most recently inserted entries and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("prune: keep must be non-negative, got %d", keep)
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM semantic_cache
		WHERE seq NOT IN (
			SELECT seq FROM semantic_cache ORDER BY seq DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return n, nil
}

// Verify re-hashes every entry and returns the hashes whose bytes no longer
// match, in insertion order. It also rejects entries whose bytes are not a
// valid canonical encoding.
func (s *Store) Verify(ctx context.Context) ([]ir.Hash, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, bytes
		FROM semantic_cache
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	defer rows.Close()

	bad := []ir.Hash{}
	for rows.Next() {
		var (
			hexHash string
			b       []byte
		)
		if err := rows.Scan(&hexHash, &b); err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		h, err := ir.ParseHash(hexHash)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		if ir.HashBytes(b) != h {
			bad = append(bad, h)
			continue
		}
		if _, err := ir.Decode(b); err != nil {
			bad = append(bad, h)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	return bad, nil
}
