package ir

import (
	"math"
	"slices"
)

// AlphaLabel is the placeholder name every binder receives under
// alpha-normalization.
const AlphaLabel = "_"

// AlphaNormalize renames every bound variable to AlphaLabel so that
// expressions differing only in binder names become structurally equal.
// Free variables keep their names. Notes are dropped.
func AlphaNormalize(e Expr) Expr {
	e = StripNote(e)
	switch x := e.(type) {
	case Lambda:
		return Lambda{Label: AlphaLabel, Type: AlphaNormalize(x.Type), Body: AlphaNormalize(rebind(x.Label, x.Body))}
	case Pi:
		return Pi{Label: AlphaLabel, Type: AlphaNormalize(x.Type), Body: AlphaNormalize(rebind(x.Label, x.Body))}
	case Let:
		var annot Expr
		if x.Annot != nil {
			annot = AlphaNormalize(x.Annot)
		}
		return Let{Label: AlphaLabel, Annot: annot, Value: AlphaNormalize(x.Value), Body: AlphaNormalize(rebind(x.Label, x.Body))}
	}
	return mapExpr(e, func(c Expr, _ *string) Expr {
		return AlphaNormalize(c)
	})
}

// rebind rewrites a binder body so that references to label@0 point at the
// placeholder binder instead.
func rebind(label string, body Expr) Expr {
	if label == AlphaLabel {
		return body
	}
	placeholder := Var{Name: AlphaLabel}
	b := Shift(body, 1, placeholder)
	b = Subst(b, Var{Name: label}, placeholder)
	return Shift(b, -1, Var{Name: label})
}

// AlphaEquivalent reports whether a and b are equal up to renaming of bound
// variables.
func AlphaEquivalent(a, b Expr) bool {
	return Equal(AlphaNormalize(a), AlphaNormalize(b))
}

// Equal is structural equality that ignores Notes. Doubles are compared by
// bit pattern, so NaN equals NaN and 0.0 differs from -0.0.
func Equal(a, b Expr) bool {
	a, b = StripNote(a), StripNote(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Const:
		y, ok := b.(Const)
		return ok && x == y
	case Var:
		y, ok := b.(Var)
		return ok && x == y
	case Builtin:
		y, ok := b.(Builtin)
		return ok && x == y
	case BoolLit:
		y, ok := b.(BoolLit)
		return ok && x == y
	case NaturalLit:
		y, ok := b.(NaturalLit)
		return ok && x == y
	case IntegerLit:
		y, ok := b.(IntegerLit)
		return ok && x == y
	case DoubleLit:
		y, ok := b.(DoubleLit)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case Lambda:
		y, ok := b.(Lambda)
		return ok && x.Label == y.Label && Equal(x.Type, y.Type) && Equal(x.Body, y.Body)
	case Pi:
		y, ok := b.(Pi)
		return ok && x.Label == y.Label && Equal(x.Type, y.Type) && Equal(x.Body, y.Body)
	case App:
		y, ok := b.(App)
		return ok && Equal(x.Fn, y.Fn) && Equal(x.Arg, y.Arg)
	case Let:
		y, ok := b.(Let)
		return ok && x.Label == y.Label && Equal(x.Annot, y.Annot) && Equal(x.Value, y.Value) && Equal(x.Body, y.Body)
	case Annot:
		y, ok := b.(Annot)
		return ok && Equal(x.Value, y.Value) && Equal(x.Type, y.Type)
	case TextLit:
		y, ok := b.(TextLit)
		if !ok || x.Suffix != y.Suffix || len(x.Chunks) != len(y.Chunks) {
			return false
		}
		for i := range x.Chunks {
			if x.Chunks[i].Prefix != y.Chunks[i].Prefix || !Equal(x.Chunks[i].Expr, y.Chunks[i].Expr) {
				return false
			}
		}
		return true
	case If:
		y, ok := b.(If)
		return ok && Equal(x.Cond, y.Cond) && Equal(x.Then, y.Then) && Equal(x.Else, y.Else)
	case Op:
		y, ok := b.(Op)
		return ok && x.Kind == y.Kind && Equal(x.L, y.L) && Equal(x.R, y.R)
	case EmptyList:
		y, ok := b.(EmptyList)
		return ok && Equal(x.Type, y.Type)
	case NonEmptyList:
		y, ok := b.(NonEmptyList)
		return ok && slices.EqualFunc(x.Elems, y.Elems, Equal)
	case Some:
		y, ok := b.(Some)
		return ok && Equal(x.Value, y.Value)
	case RecordType:
		y, ok := b.(RecordType)
		return ok && entriesEqual(x.Fields, y.Fields)
	case RecordLit:
		y, ok := b.(RecordLit)
		return ok && entriesEqual(x.Fields, y.Fields)
	case UnionType:
		y, ok := b.(UnionType)
		return ok && entriesEqual(x.Fields, y.Fields)
	case Field:
		y, ok := b.(Field)
		return ok && x.Label == y.Label && Equal(x.Record, y.Record)
	case Project:
		y, ok := b.(Project)
		return ok && slices.Equal(x.Labels, y.Labels) && Equal(x.Record, y.Record)
	case ProjectType:
		y, ok := b.(ProjectType)
		return ok && Equal(x.Record, y.Record) && Equal(x.Type, y.Type)
	case Merge:
		y, ok := b.(Merge)
		return ok && Equal(x.Handler, y.Handler) && Equal(x.Union, y.Union) && Equal(x.Annotation, y.Annotation)
	case ToMap:
		y, ok := b.(ToMap)
		return ok && Equal(x.Record, y.Record) && Equal(x.Annotation, y.Annotation)
	case With:
		y, ok := b.(With)
		return ok && slices.Equal(x.Path, y.Path) && Equal(x.Record, y.Record) && Equal(x.Value, y.Value)
	case Assert:
		y, ok := b.(Assert)
		return ok && Equal(x.Annotation, y.Annotation)
	case Import:
		y, ok := b.(Import)
		if !ok || x.Mode != y.Mode || !x.Target.Equal(y.Target) {
			return false
		}
		if x.Hash == nil || y.Hash == nil {
			return x.Hash == nil && y.Hash == nil
		}
		return *x.Hash == *y.Hash
	}
	return false
}

func entriesEqual(a, b []Entry) bool {
	return slices.EqualFunc(a, b, func(x, y Entry) bool {
		return x.Label == y.Label && Equal(x.Value, y.Value)
	})
}
