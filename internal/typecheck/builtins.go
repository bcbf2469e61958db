package typecheck

import "github.com/roach88/dhall/internal/ir"

func pi(label string, dom, cod ir.Expr) ir.Expr {
	return ir.Pi{Label: label, Type: dom, Body: cod}
}

func arrow(dom, cod ir.Expr) ir.Expr {
	return ir.Pi{Label: "_", Type: dom, Body: cod}
}

func v(name string) ir.Expr {
	return ir.Var{Name: name}
}

func listOf(t ir.Expr) ir.Expr {
	return ir.App{Fn: ir.List, Arg: t}
}

func optionalOf(t ir.Expr) ir.Expr {
	return ir.App{Fn: ir.Optional, Arg: t}
}

// BuiltinType returns the type of a built-in. The table is a pure function of
// the name; every call builds a fresh tree.
func BuiltinType(b ir.Builtin) (ir.Expr, bool) {
	switch b {
	case ir.Bool, ir.Natural, ir.Integer, ir.Double, ir.Text:
		return ir.Type, true
	case ir.List, ir.Optional:
		return arrow(ir.Type, ir.Type), true
	case ir.None:
		return pi("A", ir.Type, optionalOf(v("A"))), true

	case ir.NaturalBuild:
		return arrow(naturalFoldType(), ir.Natural), true
	case ir.NaturalFold:
		return arrow(ir.Natural, naturalFoldType()), true
	case ir.NaturalIsZero, ir.NaturalEven, ir.NaturalOdd:
		return arrow(ir.Natural, ir.Bool), true
	case ir.NaturalToInteger:
		return arrow(ir.Natural, ir.Integer), true
	case ir.NaturalShow:
		return arrow(ir.Natural, ir.Text), true
	case ir.NaturalSubtract:
		return arrow(ir.Natural, arrow(ir.Natural, ir.Natural)), true

	case ir.IntegerToDouble:
		return arrow(ir.Integer, ir.Double), true
	case ir.IntegerShow:
		return arrow(ir.Integer, ir.Text), true
	case ir.IntegerNegate:
		return arrow(ir.Integer, ir.Integer), true
	case ir.IntegerClamp:
		return arrow(ir.Integer, ir.Natural), true

	case ir.DoubleShow:
		return arrow(ir.Double, ir.Text), true

	case ir.ListBuild:
		return pi("a", ir.Type, arrow(listFoldType(), listOf(v("a")))), true
	case ir.ListFold:
		return pi("a", ir.Type, arrow(listOf(v("a")), listFoldType())), true
	case ir.ListLength:
		return pi("a", ir.Type, arrow(listOf(v("a")), ir.Natural)), true
	case ir.ListHead, ir.ListLast:
		return pi("a", ir.Type, arrow(listOf(v("a")), optionalOf(v("a")))), true
	case ir.ListIndexed:
		row := ir.RecordType{Fields: []ir.Entry{
			{Label: "index", Value: ir.Natural},
			{Label: "value", Value: v("a")},
		}}
		return pi("a", ir.Type, arrow(listOf(v("a")), listOf(row))), true
	case ir.ListReverse:
		return pi("a", ir.Type, arrow(listOf(v("a")), listOf(v("a")))), true

	case ir.TextShow:
		return arrow(ir.Text, ir.Text), true
	case ir.TextReplace:
		return pi("needle", ir.Text, pi("replacement", ir.Text, pi("haystack", ir.Text, ir.Text))), true
	}
	return nil, false
}

// ∀(natural : Type) → ∀(succ : natural → natural) → ∀(zero : natural) → natural
func naturalFoldType() ir.Expr {
	n := v("natural")
	return pi("natural", ir.Type, pi("succ", arrow(n, n), pi("zero", n, n)))
}

// ∀(list : Type) → ∀(cons : a → list → list) → ∀(nil : list) → list
func listFoldType() ir.Expr {
	l := v("list")
	return pi("list", ir.Type, pi("cons", arrow(v("a"), arrow(l, l)), pi("nil", l, l)))
}
