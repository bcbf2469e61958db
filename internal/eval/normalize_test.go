package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
)

// normalizeSource parses and normalizes src.
func normalizeSource(t *testing.T, src string) ir.Expr {
	t.Helper()
	e, err := parser.Parse(src, "test.dhall")
	require.NoError(t, err, "source: %s", src)
	return Normalize(e)
}

func TestNormalize_Reductions(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		// Arithmetic and logic
		{"natural arithmetic", "1 + 2 * 3", "7"},
		{"plus zero", "x + 0", "x"},
		{"times one", "1 * x", "x"},
		{"times zero", "x * 0", "0"},
		{"or", "False || x", "x"},
		{"and absorbs", "x && False", "False"},
		{"eq identical", "x == x", "True"},
		{"ne with false", "x != False", "x"},
		{"if literal", "if True then 1 else 2", "1"},
		{"if identity", "if b then True else False", "b"},
		{"if same branches", "if b then 1 else 1", "1"},

		// Binding
		{"let", "let x = 2 in x + x", "4"},
		{"let shadowing", "let x = 1 let x = 2 in x@1", "1"},
		{"beta", "(λ(x : Natural) → x + 1) 41", "42"},
		{"beta under binder", "λ(y : Natural) → (λ(x : Natural) → x + y) 1", "λ(y : Natural) → 1 + y"},
		{"capture avoiding", "λ(x : Natural) → (λ(y : Natural) → λ(x : Natural) → y) x", "λ(x : Natural) → λ(x : Natural) → x@1"},
		{"annotation erased", "(1 : Natural)", "1"},
		{"import alternative keeps the left", "1 ? 2", "1"},

		// Eta
		{"eta lambda", "λ(x : Natural) → f x", "f"},
		{"eta keeps dependent body", "λ(x : Natural) → g x x", "λ(x : Natural) → g x x"},
		{"eta record", "{ a = r.a, b = r.b }", "r.{ a, b }"},

		// Natural built-ins
		{"natural fold", "Natural/fold 3 Natural (λ(x : Natural) → x * 2) 1", "8"},
		{"natural build", "Natural/build (λ(n : Type) → λ(s : n → n) → λ(z : n) → s (s z))", "2"},
		{"natural isZero", "Natural/isZero 0", "True"},
		{"natural even", "Natural/even 3", "False"},
		{"natural odd", "Natural/odd 3", "True"},
		{"natural toInteger", "Natural/toInteger 5", "+5"},
		{"natural show", "Natural/show 12", `"12"`},
		{"natural subtract", "Natural/subtract 3 10", "7"},
		{"natural subtract clamps", "Natural/subtract 10 3", "0"},
		{"natural subtract same", "Natural/subtract x x", "0"},
		{"natural overflow stays stuck", "18446744073709551615 + 1", "18446744073709551615 + 1"},

		// Integer and Double built-ins
		{"integer show", "Integer/show +3", `"+3"`},
		{"integer negate", "Integer/negate -4", "+4"},
		{"integer clamp", "Integer/clamp -3", "0"},
		{"integer toDouble", "Integer/toDouble -2", "-2.0"},
		{"double show", "Double/show 1.0", `"1.0"`},
		{"double show exponent", "Double/show 1e10", `"1.0e10"`},

		// Text
		{"text splice", `"a${"b"}c"`, `"abc"`},
		{"text single interpolation", `λ(t : Text) → "${t}"`, "λ(t : Text) → t"},
		{"text append", `"a" ++ "b"`, `"ab"`},
		{"text show", `Text/show "a\"$"`, `"\"a\\\"\\u0024\""`},
		{"text replace", `Text/replace "a" "o" "banana"`, `"bonono"`},
		{"text replace empty needle", `Text/replace "" "o" "banana"`, `"banana"`},

		// Lists
		{"list append", "[1] # [2, 3]", "[1, 2, 3]"},
		{"list append empty", "([] : List Natural) # [1]", "[1]"},
		{"list fold", "List/fold Natural [1, 2, 3] Natural (λ(x : Natural) → λ(acc : Natural) → x + acc) 0", "6"},
		{
			"list build",
			"List/build Natural (λ(list : Type) → λ(cons : Natural → list → list) → λ(nil : list) → cons 1 (cons 2 nil))",
			"[1, 2]",
		},
		{"list length", "List/length Natural [1, 2, 3]", "3"},
		{"list head", "List/head Natural [1, 2]", "Some 1"},
		{"list head empty", "List/head Natural ([] : List Natural)", "None Natural"},
		{"list last", "List/last Natural [1, 2]", "Some 2"},
		{"list reverse", "List/reverse Natural [1, 2, 3]", "[3, 2, 1]"},
		{
			"list indexed",
			"List/indexed Bool [True]",
			"[{ index = 0, value = True }]",
		},
		{
			"list indexed empty",
			"List/indexed Bool ([] : List Bool)",
			"[] : List { index : Natural, value : Bool }",
		},

		// Records
		{"combine", "{ a = 1 } ∧ { b = 2 }", "{ a = 1, b = 2 }"},
		{"combine recursive", "{ a = { x = 1 } } ∧ { a = { y = 2 } }", "{ a = { x = 1, y = 2 } }"},
		{"combine empty", "r ∧ {=}", "r"},
		{"prefer", "{ a = 1, b = 2 } ⫽ { a = 3 }", "{ a = 3, b = 2 }"},
		{"combine types", "{ a : Natural } ⩓ { b : Bool }", "{ a : Natural, b : Bool }"},
		{"field", "{ a = 1, b = 2 }.b", "2"},
		{"field through prefer", "(r ⫽ { a = 1 }).a", "1"},
		{"projection", "{ a = 1, b = 2, c = 3 }.{ c, a }", "{ a = 1, c = 3 }"},
		{"empty projection", "r.{}", "{=}"},
		{"projection by type", "{ a = 1, b = 2 }.({ b : Natural })", "{ b = 2 }"},
		{"with", "{ a = { b = 1 } } with a.c = 2", "{ a = { b = 1, c = 2 } }"},
		{"with creates path", "{=} with a.b = 1", "{ a = { b = 1 } }"},
		{
			"completion",
			"let T = { Type = { a : Natural, b : Bool }, default = { b = True } } in T::{ a = 1 }",
			"{ a = 1, b = True }",
		},
		{"toMap", "toMap { b = 2, a = 1 }", `[{ mapKey = "a", mapValue = 1 }, { mapKey = "b", mapValue = 2 }]`},
		{"toMap empty", "toMap {=} : List { mapKey : Text, mapValue : Bool }", "[] : List { mapKey : Text, mapValue : Bool }"},

		// Unions and merge
		{"merge alternative", "merge { A = λ(n : Natural) → n + 1, B = 0 } (< A : Natural | B >.A 41)", "42"},
		{"merge bare alternative", "merge { A = λ(n : Natural) → n, B = 7 } < A : Natural | B >.B", "7"},
		{"merge some", "merge { None = 0, Some = λ(n : Natural) → n } (Some 3)", "3"},
		{"merge none", "merge { None = 0, Some = λ(n : Natural) → n } (None Natural)", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expected := normalizeSource(t, tt.expected)
			got := normalizeSource(t, tt.src)
			assert.True(t, ir.Equal(expected, got), "want %#v\n got %#v", expected, got)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	sources := []string{
		"λ(x : Natural) → x + 1",
		"λ(f : Natural → Natural) → λ(x : Natural) → f (f x)",
		`λ(t : Text) → "a${t}b${"c"}"`,
		"λ(r : { a : Natural }) → r ⫽ { b = 1 }",
		"λ(xs : List Natural) → xs # [1]",
		"λ(b : Bool) → if b then 1 else 2",
		"λ(n : Natural) → Natural/fold n Natural (λ(x : Natural) → x + 1) 0",
		"λ(r : { a : Natural, b : Natural }) → { a = r.a, b = r.b }",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			once := normalizeSource(t, src)
			assert.Equal(t, once, Normalize(once))
		})
	}
}

func TestNormalize_RemovesNotes(t *testing.T) {
	got := normalizeSource(t, "λ(x : Natural) → x")
	assert.Equal(t, got, ir.StripNotes(got))
}

func TestNormalize_StuckBuiltins(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"negate min integer", "Integer/negate -9223372036854775808"},
		{"toInteger above max int", "Natural/toInteger 18446744073709551615"},
		{"fold over a variable", "Natural/fold n Natural s z"},
		{"partial application", "Natural/subtract 1"},
		{"show interpolated text", `Text/show "${t}"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeSource(t, tt.src)
			_, ok := got.(ir.App)
			assert.True(t, ok, "expected a stuck application, got %#v", got)
		})
	}
}

func TestNormalize_FoldStopsAtFixpoint(t *testing.T) {
	// A fold that would take 2^64 steps terminates once the accumulator
	// stops changing.
	got := normalizeSource(t, "Natural/fold 18446744073709551615 Natural (λ(x : Natural) → Natural/subtract 1 x) 3")
	assert.Equal(t, ir.NaturalLit(0), got)
}

func TestJudgmentallyEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"alpha", "λ(x : Natural) → x", "λ(y : Natural) → y", true},
		{"beta", "(λ(x : Natural) → x) 1", "1", true},
		{"different", "1", "2", false},
		{"record order", "{ a = 1, b = 2 }", "{ b = 2, a = 1 }", true},
		{"free variables differ", "λ(x : Natural) → y", "λ(x : Natural) → z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parser.Parse(tt.a, "a")
			require.NoError(t, err)
			b, err := parser.Parse(tt.b, "b")
			require.NoError(t, err)
			assert.Equal(t, tt.equal, JudgmentallyEqual(a, b))
		})
	}
}

func TestShowDouble(t *testing.T) {
	tests := []struct {
		in       float64
		expected string
	}{
		{1, "1.0"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{1e7, "1.0e7"},
		{1.5e-3, "1.5e-3"},
		{123456.789, "123456.789"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShowDouble(tt.in))
		})
	}
}

func TestShowText(t *testing.T) {
	assert.Equal(t, `"a\n\"\\\u0024\u0001"`, ShowText("a\n\"\\$\x01"))
}
