package testutil

// FixedID generates the same resolution ID every time.
//
// Unlike imports.FixedGenerator, which returns IDs in sequence and panics
// once they run out, FixedID never runs out. This is useful when output that
// embeds the ID is compared against golden files.
//
// Thread-safety: FixedID is stateless and safe for concurrent use.
type FixedID string

// DefaultID is used by FixedID("").Generate.
const DefaultID = "test-resolution-default"

// Generate returns the fixed ID.
func (id FixedID) Generate() string {
	if id == "" {
		return DefaultID
	}
	return string(id)
}
