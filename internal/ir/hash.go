package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashPrefix introduces a pinned hash in source: sha256:<64 hex digits>.
const HashPrefix = "sha256:"

// Multihash header for SHA2-256 with a 32 byte digest.
const (
	multihashSHA256 = 0x12
	multihashLength = 0x20
)

// Hash is the SHA-256 digest of an expression's canonical encoding.
type Hash [sha256.Size]byte

// String renders the hash as sha256:<hex>.
func (h Hash) String() string {
	return HashPrefix + hex.EncodeToString(h[:])
}

// Hex renders the bare hex digest.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Multihash returns the digest with its multihash header, the form used
// inside encoded imports.
func (h Hash) Multihash() []byte {
	out := make([]byte, 0, 2+len(h))
	out = append(out, multihashSHA256, multihashLength)
	return append(out, h[:]...)
}

// ParseHash parses sha256:<hex> (the prefix is optional).
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(s, HashPrefix)
	if len(s) != 2*len(h) {
		return h, fmt.Errorf("ParseHash: want %d hex digits, got %d", 2*len(h), len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("ParseHash: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

// HashFromMultihash reverses Multihash.
func HashFromMultihash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != 2+len(h) || b[0] != multihashSHA256 || b[1] != multihashLength {
		return h, invalidEncoding("import hash is not a sha2-256 multihash")
	}
	copy(h[:], b[2:])
	return h, nil
}

// HashBytes hashes canonical bytes.
func HashBytes(b []byte) Hash {
	return sha256.Sum256(b)
}

// SemanticHash encodes e and hashes the result. Callers pass a normal form;
// the hash identifies the expression's meaning rather than its source text.
func SemanticHash(e Expr) (Hash, []byte, error) {
	b, err := Encode(e)
	if err != nil {
		return Hash{}, nil, fmt.Errorf("SemanticHash: %w", err)
	}
	return HashBytes(b), b, nil
}

// MustSemanticHash is like SemanticHash but panics on error.
// Use only in tests or when the expression is known to be encodable.
func MustSemanticHash(e Expr) Hash {
	h, _, err := SemanticHash(e)
	if err != nil {
		panic(err)
	}
	return h
}
