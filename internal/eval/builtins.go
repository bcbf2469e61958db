package eval

import (
	"math"
	"slices"
	"strconv"

	"github.com/roach88/dhall/internal/ir"
)

// arity is the number of arguments a built-in needs before it can reduce.
var arity = map[ir.Builtin]int{
	ir.NaturalBuild:     1,
	ir.NaturalFold:      4,
	ir.NaturalIsZero:    1,
	ir.NaturalEven:      1,
	ir.NaturalOdd:       1,
	ir.NaturalToInteger: 1,
	ir.NaturalShow:      1,
	ir.NaturalSubtract:  2,
	ir.IntegerToDouble:  1,
	ir.IntegerShow:      1,
	ir.IntegerNegate:    1,
	ir.IntegerClamp:     1,
	ir.DoubleShow:       1,
	ir.ListBuild:        2,
	ir.ListFold:         5,
	ir.ListLength:       2,
	ir.ListHead:         2,
	ir.ListLast:         2,
	ir.ListIndexed:      2,
	ir.ListReverse:      2,
	ir.TextShow:         1,
	ir.TextReplace:      3,
}

// reduceBuiltin applies b to normal-form args. It reports false when the
// application is stuck. Extra arguments beyond the built-in's arity are
// re-applied to the result.
func reduceBuiltin(b ir.Builtin, args []ir.Expr) (ir.Expr, bool) {
	n, ok := arity[b]
	if !ok || len(args) < n {
		return nil, false
	}
	out, ok := reduceSaturated(b, args[:n])
	if !ok {
		return nil, false
	}
	return ir.NewApp(out, args[n:]...), true
}

func reduceSaturated(b ir.Builtin, args []ir.Expr) (ir.Expr, bool) {
	switch b {
	case ir.NaturalBuild:
		g := args[0]
		succ := ir.Lambda{
			Label: "x",
			Type:  ir.Natural,
			Body:  ir.Op{Kind: ir.OpPlus, L: ir.Var{Name: "x"}, R: ir.NaturalLit(1)},
		}
		return ir.NewApp(g, ir.Natural, succ, ir.NaturalLit(0)), true

	case ir.NaturalFold:
		n, ok := args[0].(ir.NaturalLit)
		if !ok {
			return nil, false
		}
		succ, acc := args[2], args[3]
		for i := uint64(0); i < uint64(n); i++ {
			next := apply(succ, acc)
			if ir.Equal(next, acc) {
				break
			}
			acc = next
		}
		return acc, true

	case ir.NaturalIsZero, ir.NaturalEven, ir.NaturalOdd, ir.NaturalToInteger, ir.NaturalShow:
		n, ok := args[0].(ir.NaturalLit)
		if !ok {
			return nil, false
		}
		switch b {
		case ir.NaturalIsZero:
			return ir.BoolLit(n == 0), true
		case ir.NaturalEven:
			return ir.BoolLit(n%2 == 0), true
		case ir.NaturalOdd:
			return ir.BoolLit(n%2 == 1), true
		case ir.NaturalToInteger:
			if uint64(n) > math.MaxInt64 {
				return nil, false
			}
			return ir.IntegerLit(int64(n)), true
		default:
			return ir.PlainText(strconv.FormatUint(uint64(n), 10)), true
		}

	case ir.NaturalSubtract:
		x, xok := args[0].(ir.NaturalLit)
		y, yok := args[1].(ir.NaturalLit)
		switch {
		case xok && yok:
			if x >= y {
				return ir.NaturalLit(0), true
			}
			return y - x, true
		case isNatural(args[0], 0):
			return args[1], true
		case isNatural(args[1], 0):
			return ir.NaturalLit(0), true
		case ir.Equal(args[0], args[1]):
			return ir.NaturalLit(0), true
		}
		return nil, false

	case ir.IntegerToDouble, ir.IntegerShow, ir.IntegerNegate, ir.IntegerClamp:
		i, ok := args[0].(ir.IntegerLit)
		if !ok {
			return nil, false
		}
		switch b {
		case ir.IntegerToDouble:
			return ir.DoubleLit(float64(i)), true
		case ir.IntegerShow:
			return ir.PlainText(ShowInteger(int64(i))), true
		case ir.IntegerNegate:
			if i == math.MinInt64 {
				return nil, false
			}
			return -i, true
		default:
			if i < 0 {
				return ir.NaturalLit(0), true
			}
			return ir.NaturalLit(uint64(i)), true
		}

	case ir.DoubleShow:
		d, ok := args[0].(ir.DoubleLit)
		if !ok {
			return nil, false
		}
		return ir.PlainText(ShowDouble(float64(d))), true

	case ir.TextShow:
		t, ok := args[0].(ir.TextLit)
		if !ok || !t.IsPlain() {
			return nil, false
		}
		return ir.PlainText(ShowText(t.Suffix)), true

	case ir.TextReplace:
		needle, ok := args[0].(ir.TextLit)
		if !ok || !needle.IsPlain() {
			return nil, false
		}
		if needle.Suffix == "" {
			return args[2], true
		}
		haystack, ok := args[2].(ir.TextLit)
		if !ok || !haystack.IsPlain() {
			return nil, false
		}
		return replaceText(needle.Suffix, args[1], haystack.Suffix), true

	case ir.ListBuild:
		a, g := args[0], args[1]
		elem := ir.Var{Name: "a"}
		listA := ir.App{Fn: ir.List, Arg: ir.Shift(a, 1, elem)}
		cons := ir.Lambda{
			Label: "a",
			Type:  a,
			Body: ir.Lambda{
				Label: "as",
				Type:  listA,
				Body: ir.Op{
					Kind: ir.OpListAppend,
					L:    ir.NonEmptyList{Elems: []ir.Expr{elem}},
					R:    ir.Var{Name: "as"},
				},
			},
		}
		return ir.NewApp(g, ir.App{Fn: ir.List, Arg: a}, cons, ir.EmptyList{Type: ir.App{Fn: ir.List, Arg: a}}), true

	case ir.ListFold:
		elems, ok := listElems(args[1])
		if !ok {
			return nil, false
		}
		cons, acc := args[3], args[4]
		for i := len(elems) - 1; i >= 0; i-- {
			acc = apply(apply(cons, elems[i]), acc)
		}
		return acc, true

	case ir.ListLength:
		elems, ok := listElems(args[1])
		if !ok {
			return nil, false
		}
		return ir.NaturalLit(len(elems)), true

	case ir.ListHead, ir.ListLast:
		elems, ok := listElems(args[1])
		if !ok {
			return nil, false
		}
		if len(elems) == 0 {
			return ir.App{Fn: ir.None, Arg: args[0]}, true
		}
		if b == ir.ListHead {
			return ir.Some{Value: elems[0]}, true
		}
		return ir.Some{Value: elems[len(elems)-1]}, true

	case ir.ListIndexed:
		elems, ok := listElems(args[1])
		if !ok {
			return nil, false
		}
		if len(elems) == 0 {
			row := ir.RecordType{Fields: []ir.Entry{
				{Label: "index", Value: ir.Natural},
				{Label: "value", Value: args[0]},
			}}
			return ir.EmptyList{Type: ir.App{Fn: ir.List, Arg: row}}, true
		}
		out := make([]ir.Expr, len(elems))
		for i, el := range elems {
			out[i] = ir.RecordLit{Fields: []ir.Entry{
				{Label: "index", Value: ir.NaturalLit(i)},
				{Label: "value", Value: el},
			}}
		}
		return ir.NonEmptyList{Elems: out}, true

	case ir.ListReverse:
		switch l := args[1].(type) {
		case ir.EmptyList:
			return l, true
		case ir.NonEmptyList:
			out := slices.Clone(l.Elems)
			slices.Reverse(out)
			return ir.NonEmptyList{Elems: out}, true
		}
		return nil, false
	}
	return nil, false
}

// listElems returns the elements of a list literal.
func listElems(e ir.Expr) ([]ir.Expr, bool) {
	switch l := e.(type) {
	case ir.EmptyList:
		return nil, true
	case ir.NonEmptyList:
		return l.Elems, true
	}
	return nil, false
}
