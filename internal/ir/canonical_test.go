package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lam(label string, typ, body Expr) Lambda {
	return Lambda{Label: label, Type: typ, Body: body}
}

func v(name string, idx int) Var {
	return Var{Name: name, Index: idx}
}

type namedExpr struct {
	name string
	expr Expr
}

func sampleExprs() []namedExpr {
	h := HashBytes([]byte("pinned"))
	return []namedExpr{
		{"const", Kind},
		{"builtin", NaturalFold},
		{"bool", BoolLit(true)},
		{"natural", NaturalLit(18446744073709551615)},
		{"integer", IntegerLit(-42)},
		{"double", DoubleLit(1.5)},
		{"tiny double", DoubleLit(1e-300)},
		{"free var", v("x", 2)},
		{"lambda", lam("_", Natural, Op{Kind: OpPlus, L: v("_", 0), R: NaturalLit(1)})},
		{"pi", Pi{Label: "_", Type: Type, Body: v("_", 0)}},
		{"app spine", NewApp(ListLength, Natural, NonEmptyList{Elems: []Expr{NaturalLit(1), NaturalLit(2)}})},
		{"empty list", EmptyList{Type: App{Fn: List, Arg: Bool}}},
		{"empty list at other type", EmptyList{Type: v("T", 0)}},
		{"some", Some{Value: PlainText("hi")}},
		{"text chunks", TextLit{Chunks: []Chunk{{Prefix: "a", Expr: v("x", 0)}}, Suffix: "b"}},
		{"record type", RecordType{Fields: []Entry{{Label: "a", Value: Natural}, {Label: "b", Value: Bool}}}},
		{"record lit", RecordLit{Fields: []Entry{{Label: "a", Value: NaturalLit(1)}}}},
		{"union", UnionType{Fields: []Entry{{Label: "A", Value: Natural}, {Label: "B"}}}},
		{"field", Field{Record: v("r", 0), Label: "a"}},
		{"project", Project{Record: v("r", 0), Labels: []string{"a", "b"}}},
		{"project type", ProjectType{Record: v("r", 0), Type: RecordType{Fields: []Entry{{Label: "a", Value: Natural}}}}},
		{"merge", Merge{Handler: v("h", 0), Union: v("u", 0), Annotation: Natural}},
		{"if", If{Cond: v("b", 0), Then: NaturalLit(1), Else: NaturalLit(2)}},
		{"assert", Assert{Annotation: Op{Kind: OpEquiv, L: NaturalLit(1), R: NaturalLit(1)}}},
		{"let chain", Let{Label: "_", Value: NaturalLit(1), Body: Let{Label: "_", Annot: Natural, Value: NaturalLit(2), Body: v("_", 1)}}},
		{"annot", Annot{Value: NaturalLit(1), Type: Natural}},
		{"toMap", ToMap{Record: v("r", 0), Annotation: App{Fn: List, Arg: Natural}}},
		{"with", With{Record: v("r", 0), Path: []string{"a", "b"}, Value: NaturalLit(3)}},
		{"import", Import{Target: LocalTarget(PrefixHere, "dir", "file.dhall"), Mode: ModeCode, Hash: &h}},
		{"remote import as text", Import{Target: RemoteTarget("https://example.com/a.dhall"), Mode: ModeRawText}},
		{"env import", Import{Target: EnvTarget("HOME"), Mode: ModeLocation}},
		{"missing", Import{Target: MissingTarget()}},
	}
}

func TestEncode_DecodeRoundTrip(t *testing.T) {
	for _, tt := range sampleExprs() {
		e := tt.expr
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(e)
			require.NoError(t, err)

			got, err := Decode(b)
			require.NoError(t, err)
			assert.True(t, AlphaEquivalent(e, got), "decode(encode(e)) must be alpha-equivalent to e")
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	for _, tt := range sampleExprs() {
		e := tt.expr
		t.Run(tt.name, func(t *testing.T) {
			a := MustEncode(e)
			b := MustEncode(e)
			assert.Equal(t, a, b)
		})
	}
}

func TestEncode_AlphaEquivalentLambdasIdentical(t *testing.T) {
	// λ(x : Natural) → λ(y : Natural) → x   vs   λ(a : Natural) → λ(b : Natural) → a
	e1 := lam("x", Natural, lam("y", Natural, v("x", 0)))
	e2 := lam("a", Natural, lam("b", Natural, v("a", 0)))

	b1, err := Encode(e1)
	require.NoError(t, err)
	b2, err := Encode(e2)
	require.NoError(t, err)

	assert.Equal(t, b1, b2, "alpha-equivalent expressions must encode identically")
	assert.Equal(t, MustSemanticHash(e1), MustSemanticHash(e2))
}

func TestEncode_DistinguishesBinderReferences(t *testing.T) {
	// λx → λy → x differs from λx → λy → y
	outer := lam("x", Natural, lam("y", Natural, v("x", 0)))
	inner := lam("x", Natural, lam("y", Natural, v("y", 0)))

	assert.NotEqual(t, MustEncode(outer), MustEncode(inner))
}

func TestEncode_RecordFieldOrderIrrelevant(t *testing.T) {
	ab := RecordLit{Fields: []Entry{{Label: "a", Value: NaturalLit(1)}, {Label: "b", Value: BoolLit(true)}}}
	ba := RecordLit{Fields: []Entry{{Label: "b", Value: BoolLit(true)}, {Label: "a", Value: NaturalLit(1)}}}

	assert.Equal(t, MustEncode(ab), MustEncode(ba))
}

func TestEncode_IgnoresNotes(t *testing.T) {
	plain := Op{Kind: OpPlus, L: NaturalLit(1), R: NaturalLit(2)}
	noted := Note{Pos: Pos{Line: 1, Col: 1}, Expr: Op{Kind: OpPlus, L: Note{Pos: Pos{Line: 1, Col: 1}, Expr: NaturalLit(1)}, R: NaturalLit(2)}}

	assert.Equal(t, MustEncode(plain), MustEncode(noted))
}

func TestEncode_RejectsNonFiniteDoubles(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Encode(NonEmptyList{Elems: []Expr{DoubleLit(f)}})
		require.Error(t, err)
		assert.True(t, IsNonFiniteDouble(err), "got %v", err)
	}
}

func TestEncode_RejectsRepeatedLabels(t *testing.T) {
	_, err := Encode(RecordLit{Fields: []Entry{{Label: "a", Value: NaturalLit(1)}, {Label: "a", Value: NaturalLit(2)}}})
	require.Error(t, err)

	var ee *EncodingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeUnencodable, ee.Code)
}

func TestEncode_NegativeZeroDistinct(t *testing.T) {
	assert.NotEqual(t, MustEncode(DoubleLit(0)), MustEncode(DoubleLit(math.Copysign(0, -1))))
}

func TestDecode_UnsupportedVersion(t *testing.T) {
	b, err := encMode.Marshal([]any{"999", true})
	require.NoError(t, err)

	_, err = Decode(b)
	require.Error(t, err)
	assert.True(t, IsUnsupportedVersion(err), "got %v", err)
}

func TestDecode_RejectsNonCanonicalInput(t *testing.T) {
	tests := []struct {
		name    string
		payload any
	}{
		// A named binder is valid structure but Encode always alpha-normalizes.
		{"named binder", []any{"1", []any{1, "x", "Natural", []any{"x", 0}}}},
		{"unknown builtin", []any{"1", "Natural/frobnicate"}},
		{"unknown tag", []any{"1", []any{99, true}}},
		{"missing envelope", []any{true}},
		{"non-text version", []any{1, true}},
		{"bad operator", []any{"1", []any{3, 42, true, false}}},
		{"record with null field", []any{"1", []any{8, map[string]any{"a": nil}}}},
		{"wrong arity", []any{"1", []any{14, true, false}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := encMode.Marshal(tt.payload)
			require.NoError(t, err)

			_, err = Decode(b)
			require.Error(t, err)
			assert.True(t, IsInvalidEncoding(err), "got %v", err)
		})
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00, 0x13})
	require.Error(t, err)
	assert.True(t, IsInvalidEncoding(err))

	_, err = Decode(nil)
	require.Error(t, err)
	assert.True(t, IsInvalidEncoding(err))
}

func TestDecode_RejectsTrailingBytes(t *testing.T) {
	b := append(MustEncode(BoolLit(true)), 0x00)

	_, err := Decode(b)
	require.Error(t, err)
	assert.True(t, IsInvalidEncoding(err))
}
