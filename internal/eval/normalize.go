package eval

import (
	"slices"

	"github.com/roach88/dhall/internal/ir"
)

// Normalize reduces e to its normal form.
//
// Reduction is innermost-first: children are normalized, then the rule for
// the node itself is applied, and any result produced by a rule is normalized
// again. Operators and built-ins whose operands are not literals stay stuck.
// Normalize never fails; it is total on ill-typed input, although it only
// terminates for well-typed input. Notes are removed from the result.
func Normalize(e ir.Expr) ir.Expr {
	switch x := e.(type) {
	case ir.Note:
		return Normalize(x.Expr)
	case ir.Const, ir.Var, ir.Builtin, ir.BoolLit, ir.NaturalLit, ir.IntegerLit, ir.DoubleLit, ir.Import:
		return x
	case ir.Lambda:
		return etaLambda(ir.Lambda{Label: x.Label, Type: Normalize(x.Type), Body: Normalize(x.Body)})
	case ir.Pi:
		return ir.Pi{Label: x.Label, Type: Normalize(x.Type), Body: Normalize(x.Body)}
	case ir.App:
		return apply(Normalize(x.Fn), Normalize(x.Arg))
	case ir.Let:
		return Normalize(ir.Instantiate(x.Body, x.Label, Normalize(x.Value)))
	case ir.Annot:
		return Normalize(x.Value)
	case ir.If:
		return normalizeIf(x)
	case ir.Op:
		return normalizeOp(x)
	case ir.TextLit:
		return normalizeText(x)
	case ir.EmptyList:
		return ir.EmptyList{Type: Normalize(x.Type)}
	case ir.NonEmptyList:
		elems := make([]ir.Expr, len(x.Elems))
		for i, el := range x.Elems {
			elems[i] = Normalize(el)
		}
		return ir.NonEmptyList{Elems: elems}
	case ir.Some:
		return ir.Some{Value: Normalize(x.Value)}
	case ir.RecordType:
		return ir.RecordType{Fields: normalizeEntries(x.Fields)}
	case ir.RecordLit:
		return etaRecord(ir.RecordLit{Fields: normalizeEntries(x.Fields)})
	case ir.UnionType:
		return ir.UnionType{Fields: normalizeEntries(x.Fields)}
	case ir.Field:
		return selectField(Normalize(x.Record), x.Label)
	case ir.Project:
		return project(Normalize(x.Record), x.Labels)
	case ir.ProjectType:
		r := Normalize(x.Record)
		t := Normalize(x.Type)
		if rt, ok := t.(ir.RecordType); ok {
			labels := make([]string, len(rt.Fields))
			for i, f := range rt.Fields {
				labels[i] = f.Label
			}
			return project(r, labels)
		}
		return ir.ProjectType{Record: r, Type: t}
	case ir.Merge:
		return normalizeMerge(x)
	case ir.ToMap:
		return normalizeToMap(x)
	case ir.With:
		return withPath(Normalize(x.Record), x.Path, Normalize(x.Value))
	case ir.Assert:
		return ir.Assert{Annotation: Normalize(x.Annotation)}
	}
	return e
}

// JudgmentallyEqual reports whether a and b have alpha-equivalent normal
// forms. It is the only equality the type-checker uses.
func JudgmentallyEqual(a, b ir.Expr) bool {
	return ir.AlphaEquivalent(Normalize(a), Normalize(b))
}

// etaLambda turns λ(x : A) → f x into f when x is not free in f.
func etaLambda(l ir.Lambda) ir.Expr {
	app, ok := l.Body.(ir.App)
	if !ok {
		return l
	}
	bound := ir.Var{Name: l.Label}
	if arg, ok := app.Arg.(ir.Var); !ok || arg != bound {
		return l
	}
	if ir.FreeIn(bound, app.Fn) {
		return l
	}
	return ir.Shift(app.Fn, -1, bound)
}

// etaRecord turns { a = r.a, b = r.b } into r.{ a, b } when every field is
// the same-named selection from one record r.
func etaRecord(r ir.RecordLit) ir.Expr {
	if len(r.Fields) == 0 {
		return r
	}
	var source ir.Expr
	labels := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		sel, ok := f.Value.(ir.Field)
		if !ok || sel.Label != f.Label {
			return r
		}
		if source == nil {
			source = sel.Record
		} else if !ir.Equal(source, sel.Record) {
			return r
		}
		labels[i] = f.Label
	}
	switch source.(type) {
	case ir.RecordLit, ir.UnionType:
		return r
	}
	if _, dup := ir.DuplicateLabel(r.Fields); dup {
		return r
	}
	return project(source, labels)
}

func normalizeEntries(fields []ir.Entry) []ir.Entry {
	out := make([]ir.Entry, len(fields))
	for i, f := range fields {
		out[i] = ir.Entry{Label: f.Label}
		if f.Value != nil {
			out[i].Value = Normalize(f.Value)
		}
	}
	return ir.SortEntries(out)
}

// apply reduces fn applied to arg, both already normal.
func apply(fn, arg ir.Expr) ir.Expr {
	if l, ok := fn.(ir.Lambda); ok {
		return Normalize(ir.Instantiate(l.Body, l.Label, arg))
	}
	app := ir.App{Fn: fn, Arg: arg}
	head, args := ir.SpineOf(app)
	if b, ok := head.(ir.Builtin); ok {
		if out, ok := reduceBuiltin(b, args); ok {
			return Normalize(out)
		}
	}
	return app
}

func normalizeIf(x ir.If) ir.Expr {
	c := Normalize(x.Cond)
	if b, ok := c.(ir.BoolLit); ok {
		if b {
			return Normalize(x.Then)
		}
		return Normalize(x.Else)
	}
	t := Normalize(x.Then)
	f := Normalize(x.Else)
	if isBool(t, true) && isBool(f, false) {
		return c
	}
	if ir.Equal(t, f) {
		return t
	}
	return ir.If{Cond: c, Then: t, Else: f}
}

func isBool(e ir.Expr, want bool) bool {
	b, ok := e.(ir.BoolLit)
	return ok && bool(b) == want
}

func isNatural(e ir.Expr, want uint64) bool {
	n, ok := e.(ir.NaturalLit)
	return ok && uint64(n) == want
}

func normalizeOp(x ir.Op) ir.Expr {
	switch x.Kind {
	case ir.OpImportAlt:
		return Normalize(x.L)
	case ir.OpComplete:
		// T::r is (T.default ⫽ r) : T.Type
		return Normalize(ir.Op{Kind: ir.OpPrefer, L: ir.Field{Record: x.L, Label: "default"}, R: x.R})
	case ir.OpTextAppend:
		return Normalize(ir.TextLit{Chunks: []ir.Chunk{{Expr: x.L}, {Expr: x.R}}})
	}

	l := Normalize(x.L)
	r := Normalize(x.R)
	stuck := ir.Op{Kind: x.Kind, L: l, R: r}

	switch x.Kind {
	case ir.OpOr:
		switch {
		case isBool(l, true), isBool(r, true):
			return ir.BoolLit(true)
		case isBool(l, false):
			return r
		case isBool(r, false):
			return l
		case ir.Equal(l, r):
			return l
		}
	case ir.OpAnd:
		switch {
		case isBool(l, false), isBool(r, false):
			return ir.BoolLit(false)
		case isBool(l, true):
			return r
		case isBool(r, true):
			return l
		case ir.Equal(l, r):
			return l
		}
	case ir.OpEq:
		switch {
		case isBool(l, true):
			return r
		case isBool(r, true):
			return l
		case ir.Equal(l, r):
			return ir.BoolLit(true)
		}
	case ir.OpNe:
		switch {
		case isBool(l, false):
			return r
		case isBool(r, false):
			return l
		case ir.Equal(l, r):
			return ir.BoolLit(false)
		}
	case ir.OpPlus:
		ln, lok := l.(ir.NaturalLit)
		rn, rok := r.(ir.NaturalLit)
		switch {
		case lok && rok:
			if sum, ok := addNatural(uint64(ln), uint64(rn)); ok {
				return ir.NaturalLit(sum)
			}
		case isNatural(l, 0):
			return r
		case isNatural(r, 0):
			return l
		}
	case ir.OpTimes:
		ln, lok := l.(ir.NaturalLit)
		rn, rok := r.(ir.NaturalLit)
		switch {
		case isNatural(l, 0), isNatural(r, 0):
			return ir.NaturalLit(0)
		case lok && rok:
			if prod, ok := mulNatural(uint64(ln), uint64(rn)); ok {
				return ir.NaturalLit(prod)
			}
		case isNatural(l, 1):
			return r
		case isNatural(r, 1):
			return l
		}
	case ir.OpListAppend:
		if _, ok := l.(ir.EmptyList); ok {
			return r
		}
		if _, ok := r.(ir.EmptyList); ok {
			return l
		}
		ll, lok := l.(ir.NonEmptyList)
		rl, rok := r.(ir.NonEmptyList)
		if lok && rok {
			return ir.NonEmptyList{Elems: slices.Concat(ll.Elems, rl.Elems)}
		}
	case ir.OpCombine:
		return combineRecords(l, r)
	case ir.OpCombineTypes:
		return combineRecordTypes(l, r)
	case ir.OpPrefer:
		return preferRecords(l, r)
	}
	return stuck
}

func addNatural(a, b uint64) (uint64, bool) {
	s := a + b
	return s, s >= a
}

func mulNatural(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/b == a
}

func normalizeMerge(x ir.Merge) ir.Expr {
	h := Normalize(x.Handler)
	u := Normalize(x.Union)
	if handlers, ok := h.(ir.RecordLit); ok {
		if out, ok := applyHandler(handlers, u); ok {
			return out
		}
	}
	m := ir.Merge{Handler: h, Union: u}
	if x.Annotation != nil {
		m.Annotation = Normalize(x.Annotation)
	}
	return m
}

func applyHandler(handlers ir.RecordLit, u ir.Expr) (ir.Expr, bool) {
	// Bare alternative: < A | B >.A
	if f, ok := u.(ir.Field); ok {
		if _, ok := f.Record.(ir.UnionType); ok {
			h, ok := ir.LookupEntry(handlers.Fields, f.Label)
			return h.Value, ok
		}
	}
	if s, ok := u.(ir.Some); ok {
		h, ok := ir.LookupEntry(handlers.Fields, "Some")
		if !ok {
			return nil, false
		}
		return apply(h.Value, s.Value), true
	}
	app, ok := u.(ir.App)
	if !ok {
		return nil, false
	}
	if b, ok := app.Fn.(ir.Builtin); ok && b == ir.None {
		h, ok := ir.LookupEntry(handlers.Fields, "None")
		return h.Value, ok
	}
	if f, ok := app.Fn.(ir.Field); ok {
		if _, ok := f.Record.(ir.UnionType); ok {
			h, ok := ir.LookupEntry(handlers.Fields, f.Label)
			if !ok {
				return nil, false
			}
			return apply(h.Value, app.Arg), true
		}
	}
	return nil, false
}

func normalizeToMap(x ir.ToMap) ir.Expr {
	r := Normalize(x.Record)
	var annot ir.Expr
	if x.Annotation != nil {
		annot = Normalize(x.Annotation)
	}
	rec, ok := r.(ir.RecordLit)
	if !ok {
		return ir.ToMap{Record: r, Annotation: annot}
	}
	if len(rec.Fields) == 0 {
		if annot == nil {
			return ir.ToMap{Record: r}
		}
		return ir.EmptyList{Type: annot}
	}
	elems := make([]ir.Expr, len(rec.Fields))
	for i, f := range ir.SortEntries(rec.Fields) {
		elems[i] = ir.RecordLit{Fields: []ir.Entry{
			{Label: "mapKey", Value: ir.PlainText(f.Label)},
			{Label: "mapValue", Value: f.Value},
		}}
	}
	return ir.NonEmptyList{Elems: elems}
}
