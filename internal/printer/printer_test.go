package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
)

func TestPrint(t *testing.T) {
	tests := []struct {
		name     string
		in       ir.Expr
		expected string
	}{
		{"natural", ir.NaturalLit(3), "3"},
		{"integer", ir.IntegerLit(3), "+3"},
		{"double", ir.DoubleLit(2), "2.0"},
		{"text", ir.PlainText("a\"$"), `"a\"\u0024"`},
		{"var with index", ir.Var{Name: "x", Index: 1}, "x@1"},
		{"keyword label", ir.Var{Name: "let"}, "`let`"},
		{"builtin label", ir.Var{Name: "Natural"}, "`Natural`"},
		{"arrow", ir.Pi{Label: "_", Type: ir.Natural, Body: ir.Bool}, "Natural → Bool"},
		{"dependent pi", ir.Pi{Label: "a", Type: ir.Type, Body: ir.Var{Name: "a"}}, "∀(a : Type) → a"},
		{
			"nested application argument",
			ir.App{Fn: ir.Var{Name: "f"}, Arg: ir.App{Fn: ir.Var{Name: "g"}, Arg: ir.Var{Name: "x"}}},
			"f (g x)",
		},
		{
			"operator precedence",
			ir.Op{Kind: ir.OpTimes, L: ir.Op{Kind: ir.OpPlus, L: ir.NaturalLit(1), R: ir.NaturalLit(2)}, R: ir.NaturalLit(3)},
			"(1 + 2) * 3",
		},
		{
			"right nested operator",
			ir.Op{Kind: ir.OpPlus, L: ir.NaturalLit(1), R: ir.Op{Kind: ir.OpPlus, L: ir.NaturalLit(2), R: ir.NaturalLit(3)}},
			"1 + (2 + 3)",
		},
		{"empty record", ir.RecordLit{}, "{=}"},
		{"empty record type", ir.RecordType{}, "{}"},
		{
			"union",
			ir.UnionType{Fields: []ir.Entry{{Label: "A", Value: ir.Natural}, {Label: "B"}}},
			"< A : Natural | B >",
		},
		{"empty list", ir.EmptyList{Type: ir.App{Fn: ir.List, Arg: ir.Bool}}, "[] : List Bool"},
		{
			"text interpolation",
			ir.TextLit{Chunks: []ir.Chunk{{Prefix: "a", Expr: ir.Var{Name: "x"}}}, Suffix: "b"},
			`"a${x}b"`,
		},
		{"projection", ir.Project{Record: ir.Var{Name: "r"}, Labels: []string{"a", "b"}}, "r.{ a, b }"},
		{"import", ir.Import{Target: ir.LocalTarget(ir.PrefixHere, "a.dhall"), Mode: ir.ModeRawText}, "./a.dhall as Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Print(tt.in))
		})
	}
}

func TestPrint_RoundTrip(t *testing.T) {
	sources := []string{
		"λ(x : Natural) → x + 1",
		"∀(a : Type) → a → List a",
		"let x : Natural = 1 let y = x in x * y",
		"if b then { a = 1 } else { a = 2 }",
		"(λ(f : Natural → Natural) → f) (λ(n : Natural) → n)",
		`"a${"b"}\n$"`,
		"[ 1, 2 ] # ([] : List Natural)",
		"{ a = 1, `b c` = True }.`b c`",
		"< A : Natural | B >.A 3",
		"merge { A = λ(n : Natural) → n, B = 0 } u : Natural",
		"toMap r : List { mapKey : Text, mapValue : Natural }",
		"r with a.b = 1 + 1",
		"T::{ a = 1 }",
		"assert : 1 + 1 ≡ 2",
		"r.({ a : Natural })",
		"Some (Some 1)",
		"x@2 ? ./a.dhall",
		"-3 : Integer",
		"f -1.5",
		"(a ∧ b) ⫽ (c ⩓ d)",
		"env:HOME as Location",
		"(1 : Natural) : Natural",
	}

	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			want, err := parser.Parse(src, "")
			require.NoError(t, err)

			printed := Print(want)
			got, err := parser.Parse(printed, "")
			require.NoError(t, err, "printed: %s", printed)
			assert.Equal(t, ir.StripNotes(want), ir.StripNotes(got), "printed: %s", printed)
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "foo-bar", Label("foo-bar"))
	assert.Equal(t, "`1st`", Label("1st"))
	assert.Equal(t, "`if`", Label("if"))
	assert.Equal(t, "``", Label(""))
	assert.Equal(t, "`a b`", Label("a b"))
}
