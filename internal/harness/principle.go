package harness

import (
	"fmt"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/printer"
	"github.com/roach88/dhall/internal/typecheck"
)

// Principle names.
const (
	PrincipleNormalizeIdempotent = "normalize_idempotent"
	PrincipleTypePreserved       = "type_preserved"
	PrincipleEncodingRoundTrip   = "encoding_round_trip"
	PrincipleHashAlphaInvariant  = "hash_alpha_invariant"
)

// Violation is a principle that an evaluation does not satisfy.
type Violation struct {
	Principle string
	Detail    string
}

// String implements fmt.Stringer.
func (v Violation) String() string {
	return fmt.Sprintf("principle %s violated: %s", v.Principle, v.Detail)
}

// CheckPrinciples verifies the principles every successful evaluation must
// satisfy and returns the violations.
func CheckPrinciples(ev *Evaluation) []Violation {
	var out []Violation
	fail := func(principle, format string, args ...any) {
		out = append(out, Violation{Principle: principle, Detail: fmt.Sprintf(format, args...)})
	}

	nf := ev.Normal
	if again := eval.Normalize(nf); !ir.Equal(again, nf) {
		fail(PrincipleNormalizeIdempotent, "%s normalizes to %s", printer.Print(nf), printer.Print(again))
	}

	// Sort has no type, so neither does its normal form.
	if !ir.Equal(ev.Type, ir.Sort) {
		ty, err := typecheck.TypeOf(nf)
		switch {
		case err != nil:
			fail(PrincipleTypePreserved, "normal form does not type-check: %v", err)
		case !eval.JudgmentallyEqual(ty, ev.Type):
			fail(PrincipleTypePreserved, "normal form has type %s, document has %s", printer.Print(ty), printer.Print(ev.Type))
		}
	}

	b, err := ir.Encode(nf)
	if err != nil {
		fail(PrincipleEncodingRoundTrip, "encode: %v", err)
	} else if decoded, err := ir.Decode(b); err != nil {
		fail(PrincipleEncodingRoundTrip, "decode: %v", err)
	} else if alpha := ir.AlphaNormalize(nf); !ir.Equal(decoded, alpha) {
		fail(PrincipleEncodingRoundTrip, "decoded %s, want %s", printer.Print(decoded), printer.Print(alpha))
	}

	if h, _, err := ir.SemanticHash(ir.AlphaNormalize(nf)); err != nil {
		fail(PrincipleHashAlphaInvariant, "hash: %v", err)
	} else if h != ev.Hash {
		fail(PrincipleHashAlphaInvariant, "alpha-normal form hashes to %s, normal form to %s", h, ev.Hash)
	}
	return out
}
