package typecheck

import (
	"errors"
	"slices"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/ir"
)

// TypeOf infers the type of a closed expression.
func TypeOf(e ir.Expr) (ir.Expr, error) {
	return Infer(nil, e)
}

// Check verifies that e has the expected type, up to judgmental equality.
func Check(ctx *Context, e, expected ir.Expr) error {
	actual, err := Infer(ctx, e)
	if err != nil {
		return err
	}
	if !eval.JudgmentallyEqual(expected, actual) {
		return mismatch(e, eval.Normalize(expected), actual, "expression does not have the annotated type")
	}
	return nil
}

// Infer computes the normal-form type of e in ctx.
//
// On failure the returned *TypeError carries the position of the innermost
// Note enclosing the failing sub-expression.
func Infer(ctx *Context, e ir.Expr) (ir.Expr, error) {
	if n, ok := e.(ir.Note); ok {
		t, err := Infer(ctx, n.Expr)
		if err != nil {
			var te *TypeError
			if errors.As(err, &te) && te.Pos.IsZero() {
				te.Pos = n.Pos
			}
			return nil, err
		}
		return t, nil
	}
	return infer(ctx, e)
}

func infer(ctx *Context, e ir.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case ir.Const:
		switch x {
		case ir.Type:
			return ir.Kind, nil
		case ir.Kind:
			return ir.Sort, nil
		}
		return nil, newError(ErrCodeUntyped, e, "Sort has no type")

	case ir.Var:
		t, ok := ctx.Lookup(x.Name, x.Index)
		if !ok {
			return nil, newError(ErrCodeUnboundVariable, e, "unbound variable %s", x)
		}
		return t, nil

	case ir.Builtin:
		t, ok := BuiltinType(x)
		if !ok {
			return nil, newError(ErrCodeUntyped, e, "unknown built-in %s", string(x))
		}
		return t, nil

	case ir.BoolLit:
		return ir.Bool, nil
	case ir.NaturalLit:
		return ir.Natural, nil
	case ir.IntegerLit:
		return ir.Integer, nil
	case ir.DoubleLit:
		return ir.Double, nil

	case ir.Lambda:
		if _, err := inputUniverse(ctx, x.Type); err != nil {
			return nil, err
		}
		dom := eval.Normalize(x.Type)
		inner := ctx.Extend(x.Label, dom)
		cod, err := Infer(inner, x.Body)
		if err != nil {
			return nil, err
		}
		if _, err := outputUniverse(inner, cod, x.Body); err != nil {
			return nil, err
		}
		return ir.Pi{Label: x.Label, Type: dom, Body: cod}, nil

	case ir.Pi:
		in, err := inputUniverse(ctx, x.Type)
		if err != nil {
			return nil, err
		}
		inner := ctx.Extend(x.Label, eval.Normalize(x.Type))
		out, err := outputUniverse(inner, x.Body, x.Body)
		if err != nil {
			return nil, err
		}
		if out == ir.Type {
			return ir.Type, nil
		}
		return maxConst(in, out), nil

	case ir.App:
		ft, err := Infer(ctx, x.Fn)
		if err != nil {
			return nil, err
		}
		p, ok := ft.(ir.Pi)
		if !ok {
			return nil, newError(ErrCodeNotAFunction, x.Fn, "only functions may be applied")
		}
		at, err := Infer(ctx, x.Arg)
		if err != nil {
			return nil, err
		}
		if !eval.JudgmentallyEqual(p.Type, at) {
			return nil, mismatch(x.Arg, p.Type, at, "wrong type of function argument")
		}
		return eval.Normalize(ir.Instantiate(p.Body, p.Label, x.Arg)), nil

	case ir.Let:
		vt, err := Infer(ctx, x.Value)
		if err != nil {
			return nil, err
		}
		if x.Annot != nil {
			if _, err := Infer(ctx, x.Annot); err != nil {
				return nil, err
			}
			if !eval.JudgmentallyEqual(x.Annot, vt) {
				return nil, mismatch(x.Value, eval.Normalize(x.Annot), vt, "let binding %q does not match its annotation", x.Label)
			}
		}
		return Infer(ctx, ir.Instantiate(x.Body, x.Label, x.Value))

	case ir.Annot:
		if c, ok := eval.Normalize(x.Type).(ir.Const); !ok || c != ir.Sort {
			if _, err := Infer(ctx, x.Type); err != nil {
				return nil, err
			}
		}
		vt, err := Infer(ctx, x.Value)
		if err != nil {
			return nil, err
		}
		if !eval.JudgmentallyEqual(x.Type, vt) {
			return nil, mismatch(x.Value, eval.Normalize(x.Type), vt, "expression does not have the annotated type")
		}
		return eval.Normalize(x.Type), nil

	case ir.TextLit:
		for _, c := range x.Chunks {
			t, err := Infer(ctx, c.Expr)
			if err != nil {
				return nil, err
			}
			if !ir.Equal(t, ir.Text) {
				return nil, mismatch(c.Expr, ir.Text, t, "only Text may be interpolated")
			}
		}
		return ir.Text, nil

	case ir.If:
		ct, err := Infer(ctx, x.Cond)
		if err != nil {
			return nil, err
		}
		if !ir.Equal(ct, ir.Bool) {
			err := newError(ErrCodeInvalidInputType, x.Cond, "if condition must be a Bool")
			err.Expected, err.Actual = ir.Bool, ct
			return nil, err
		}
		tt, err := requireTerm(ctx, x.Then, ErrCodeInvalidBranch)
		if err != nil {
			return nil, err
		}
		et, err := requireTerm(ctx, x.Else, ErrCodeInvalidBranch)
		if err != nil {
			return nil, err
		}
		if !ir.AlphaEquivalent(tt, et) {
			return nil, mismatch(x.Else, tt, et, "if branches must have the same type")
		}
		return tt, nil

	case ir.Op:
		return inferOp(ctx, x)

	case ir.EmptyList:
		if _, err := Infer(ctx, x.Type); err != nil {
			return nil, err
		}
		t := eval.Normalize(x.Type)
		app, ok := t.(ir.App)
		if b, isList := app.Fn.(ir.Builtin); !ok || !isList || b != ir.List {
			return nil, newError(ErrCodeInvalidListType, e, "an empty list must be annotated with List T")
		}
		if _, err := requireTermType(ctx, app.Arg, e, ErrCodeInvalidListType); err != nil {
			return nil, err
		}
		return t, nil

	case ir.NonEmptyList:
		first, err := requireTerm(ctx, x.Elems[0], ErrCodeInvalidListType)
		if err != nil {
			return nil, err
		}
		for _, el := range x.Elems[1:] {
			t, err := Infer(ctx, el)
			if err != nil {
				return nil, err
			}
			if !ir.AlphaEquivalent(first, t) {
				return nil, mismatch(el, first, t, "list elements must all have the same type")
			}
		}
		return listOf(first), nil

	case ir.Some:
		t, err := requireTerm(ctx, x.Value, ErrCodeInvalidFieldType)
		if err != nil {
			return nil, err
		}
		return optionalOf(t), nil

	case ir.RecordType:
		return inferFieldTypes(ctx, e, x.Fields, false)

	case ir.UnionType:
		return inferFieldTypes(ctx, e, x.Fields, true)

	case ir.RecordLit:
		if label, dup := ir.DuplicateLabel(x.Fields); dup {
			return nil, newError(ErrCodeDuplicateField, e, "duplicate field %q", label)
		}
		fields := make([]ir.Entry, len(x.Fields))
		for i, f := range x.Fields {
			t, err := Infer(ctx, f.Value)
			if err != nil {
				return nil, err
			}
			if _, err := universeOf(ctx, t, f.Value, ErrCodeInvalidFieldType); err != nil {
				return nil, err
			}
			fields[i] = ir.Entry{Label: f.Label, Value: t}
		}
		return ir.RecordType{Fields: ir.SortEntries(fields)}, nil

	case ir.Field:
		return inferField(ctx, x)

	case ir.Project:
		rt, err := recordTypeOf(ctx, x.Record)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]struct{}, len(x.Labels))
		out := make([]ir.Entry, 0, len(x.Labels))
		for _, l := range x.Labels {
			if _, dup := seen[l]; dup {
				return nil, newError(ErrCodeDuplicateField, e, "duplicate field %q in projection", l)
			}
			seen[l] = struct{}{}
			f, ok := ir.LookupEntry(rt.Fields, l)
			if !ok {
				return nil, newError(ErrCodeMissingField, e, "record has no field %q", l)
			}
			out = append(out, f)
		}
		return ir.RecordType{Fields: ir.SortEntries(out)}, nil

	case ir.ProjectType:
		rt, err := recordTypeOf(ctx, x.Record)
		if err != nil {
			return nil, err
		}
		if _, err := Infer(ctx, x.Type); err != nil {
			return nil, err
		}
		want, ok := eval.Normalize(x.Type).(ir.RecordType)
		if !ok {
			return nil, newError(ErrCodeNotARecord, x.Type, "projection by type requires a record type")
		}
		for _, f := range want.Fields {
			have, ok := ir.LookupEntry(rt.Fields, f.Label)
			if !ok {
				return nil, newError(ErrCodeMissingField, e, "record has no field %q", f.Label)
			}
			if !ir.AlphaEquivalent(have.Value, f.Value) {
				return nil, mismatch(e, f.Value, have.Value, "field %q has the wrong type for this projection", f.Label)
			}
		}
		return want, nil

	case ir.Merge:
		return inferMerge(ctx, x)

	case ir.ToMap:
		return inferToMap(ctx, x)

	case ir.With:
		rt, err := Infer(ctx, x.Record)
		if err != nil {
			return nil, err
		}
		vt, err := Infer(ctx, x.Value)
		if err != nil {
			return nil, err
		}
		return withType(rt, x.Path, vt, e)

	case ir.Assert:
		t, err := Infer(ctx, x.Annotation)
		if err != nil {
			return nil, err
		}
		if !ir.Equal(t, ir.Type) {
			return nil, newError(ErrCodeNotAnEquivalence, e, "assert requires an equivalence of terms")
		}
		nf := eval.Normalize(x.Annotation)
		eq, ok := nf.(ir.Op)
		if !ok || eq.Kind != ir.OpEquiv {
			return nil, newError(ErrCodeNotAnEquivalence, e, "assert requires an expression of the form a ≡ b")
		}
		if !ir.AlphaEquivalent(eq.L, eq.R) {
			err := newError(ErrCodeAssertionFailed, e, "assertion failed")
			err.Expected, err.Actual = eq.L, eq.R
			return nil, err
		}
		return nf, nil

	case ir.Import:
		return nil, newError(ErrCodeUnresolvedImport, e, "import %s must be resolved before type-checking", x)

	case ir.Note:
		return Infer(ctx, x)
	}
	return nil, newError(ErrCodeUntyped, e, "unknown expression %T", e)
}

// inputUniverse checks that t is a type, kind, or sort and returns its universe.
func inputUniverse(ctx *Context, t ir.Expr) (ir.Const, error) {
	k, err := Infer(ctx, t)
	if err != nil {
		return 0, err
	}
	c, ok := k.(ir.Const)
	if !ok {
		err := newError(ErrCodeInvalidInputType, t, "function input must be a type")
		err.Actual = k
		return 0, err
	}
	return c, nil
}

// outputUniverse checks that the type t of body is itself typed by a universe.
func outputUniverse(ctx *Context, t, body ir.Expr) (ir.Const, error) {
	k, err := Infer(ctx, t)
	if err != nil {
		return 0, err
	}
	c, ok := k.(ir.Const)
	if !ok {
		return 0, newError(ErrCodeInvalidOutputType, body, "function output must be a type")
	}
	return c, nil
}

// universeOf checks that t (the type of e) lives in a universe.
func universeOf(ctx *Context, t, e ir.Expr, code ErrorCode) (ir.Const, error) {
	if c, ok := t.(ir.Const); ok && c == ir.Sort {
		return ir.Sort, nil
	}
	k, err := Infer(ctx, t)
	if err != nil {
		return 0, err
	}
	c, ok := k.(ir.Const)
	if !ok {
		return 0, newError(code, e, "expression is not a term, type, or kind")
	}
	return c, nil
}

// requireTerm infers the type of e and checks that e is a term (its type is a Type).
func requireTerm(ctx *Context, e ir.Expr, code ErrorCode) (ir.Expr, error) {
	t, err := Infer(ctx, e)
	if err != nil {
		return nil, err
	}
	if _, err := requireTermType(ctx, t, e, code); err != nil {
		return nil, err
	}
	return t, nil
}

// requireTermType checks that t : Type.
func requireTermType(ctx *Context, t, e ir.Expr, code ErrorCode) (ir.Expr, error) {
	k, err := Infer(ctx, t)
	if err != nil {
		return nil, err
	}
	if !ir.Equal(k, ir.Type) {
		return nil, newError(code, e, "expected a term whose type is a Type")
	}
	return t, nil
}

func maxConst(a, b ir.Const) ir.Const {
	if a > b {
		return a
	}
	return b
}

func inferFieldTypes(ctx *Context, e ir.Expr, fields []ir.Entry, union bool) (ir.Expr, error) {
	if label, dup := ir.DuplicateLabel(fields); dup {
		return nil, newError(ErrCodeDuplicateField, e, "duplicate field %q", label)
	}
	c := ir.Type
	for _, f := range fields {
		if f.Value == nil {
			if union {
				continue
			}
			return nil, newError(ErrCodeInvalidFieldType, e, "field %q has no type", f.Label)
		}
		k, err := Infer(ctx, f.Value)
		if err != nil {
			return nil, err
		}
		kc, ok := k.(ir.Const)
		if !ok {
			return nil, newError(ErrCodeInvalidFieldType, f.Value, "field %q must be annotated with a type", f.Label)
		}
		c = maxConst(c, kc)
	}
	return c, nil
}

func recordTypeOf(ctx *Context, r ir.Expr) (ir.RecordType, error) {
	t, err := Infer(ctx, r)
	if err != nil {
		return ir.RecordType{}, err
	}
	rt, ok := t.(ir.RecordType)
	if !ok {
		err := newError(ErrCodeNotARecord, r, "expected a record")
		err.Actual = t
		return ir.RecordType{}, err
	}
	return rt, nil
}

func inferField(ctx *Context, x ir.Field) (ir.Expr, error) {
	t, err := Infer(ctx, x.Record)
	if err != nil {
		return nil, err
	}
	switch rt := t.(type) {
	case ir.RecordType:
		f, ok := ir.LookupEntry(rt.Fields, x.Label)
		if !ok {
			return nil, newError(ErrCodeMissingField, x, "record has no field %q", x.Label)
		}
		return f.Value, nil
	case ir.Const:
		u, ok := eval.Normalize(x.Record).(ir.UnionType)
		if !ok {
			break
		}
		alt, ok := ir.LookupEntry(u.Fields, x.Label)
		if !ok {
			return nil, newError(ErrCodeMissingField, x, "union has no alternative %q", x.Label)
		}
		if alt.Value == nil {
			return u, nil
		}
		return ir.Pi{Label: x.Label, Type: alt.Value, Body: ir.Shift(u, 1, ir.Var{Name: x.Label})}, nil
	}
	te := newError(ErrCodeNotARecord, x.Record, "only records and union types have fields")
	te.Actual = t
	return nil, te
}

func inferOp(ctx *Context, x ir.Op) (ir.Expr, error) {
	switch x.Kind {
	case ir.OpImportAlt:
		return Infer(ctx, x.L)
	case ir.OpComplete:
		desugared := ir.Annot{
			Value: ir.Op{Kind: ir.OpPrefer, L: ir.Field{Record: x.L, Label: "default"}, R: x.R},
			Type:  ir.Field{Record: x.L, Label: "Type"},
		}
		return Infer(ctx, desugared)
	case ir.OpCombineTypes:
		return inferCombineTypes(ctx, x)
	}

	lt, err := Infer(ctx, x.L)
	if err != nil {
		return nil, err
	}
	rt, err := Infer(ctx, x.R)
	if err != nil {
		return nil, err
	}

	operand := func(want ir.Expr) (ir.Expr, error) {
		if !ir.Equal(lt, want) {
			return nil, mismatch(x.L, want, lt, "operator %s expects %s operands", x.Kind, want)
		}
		if !ir.Equal(rt, want) {
			return nil, mismatch(x.R, want, rt, "operator %s expects %s operands", x.Kind, want)
		}
		return want, nil
	}

	switch x.Kind {
	case ir.OpOr, ir.OpAnd, ir.OpEq, ir.OpNe:
		return operand(ir.Bool)
	case ir.OpPlus, ir.OpTimes:
		return operand(ir.Natural)
	case ir.OpTextAppend:
		return operand(ir.Text)
	case ir.OpListAppend:
		la, lok := lt.(ir.App)
		if b, ok := la.Fn.(ir.Builtin); !lok || !ok || b != ir.List {
			return nil, newError(ErrCodeInvalidListType, x.L, "operator # expects lists")
		}
		ra, rok := rt.(ir.App)
		if b, ok := ra.Fn.(ir.Builtin); !rok || !ok || b != ir.List {
			return nil, newError(ErrCodeInvalidListType, x.R, "operator # expects lists")
		}
		if !ir.AlphaEquivalent(la.Arg, ra.Arg) {
			return nil, mismatch(x.R, lt, rt, "appended lists must have the same element type")
		}
		return lt, nil
	case ir.OpCombine, ir.OpPrefer:
		l, ok := lt.(ir.RecordType)
		if !ok {
			return nil, newError(ErrCodeNotARecord, x.L, "operator %s expects records", x.Kind)
		}
		r, ok := rt.(ir.RecordType)
		if !ok {
			return nil, newError(ErrCodeNotARecord, x.R, "operator %s expects records", x.Kind)
		}
		if x.Kind == ir.OpPrefer {
			return ir.RecordType{Fields: preferTypes(l.Fields, r.Fields)}, nil
		}
		fields, err := combineTypes(l.Fields, r.Fields, x)
		if err != nil {
			return nil, err
		}
		return ir.RecordType{Fields: fields}, nil
	case ir.OpEquiv:
		if _, err := requireTermType(ctx, lt, x.L, ErrCodeInvalidInputType); err != nil {
			return nil, err
		}
		if _, err := requireTermType(ctx, rt, x.R, ErrCodeInvalidInputType); err != nil {
			return nil, err
		}
		if !ir.AlphaEquivalent(lt, rt) {
			return nil, mismatch(x.R, lt, rt, "both sides of ≡ must have the same type")
		}
		return ir.Type, nil
	}
	return nil, newError(ErrCodeUntyped, x, "unknown operator %s", x.Kind)
}

func inferCombineTypes(ctx *Context, x ir.Op) (ir.Expr, error) {
	lk, err := Infer(ctx, x.L)
	if err != nil {
		return nil, err
	}
	rk, err := Infer(ctx, x.R)
	if err != nil {
		return nil, err
	}
	lc, lok := lk.(ir.Const)
	rc, rok := rk.(ir.Const)
	l, ltok := eval.Normalize(x.L).(ir.RecordType)
	r, rtok := eval.Normalize(x.R).(ir.RecordType)
	if !lok || !ltok {
		return nil, newError(ErrCodeNotARecord, x.L, "operator ⩓ expects record types")
	}
	if !rok || !rtok {
		return nil, newError(ErrCodeNotARecord, x.R, "operator ⩓ expects record types")
	}
	if _, err := combineTypes(l.Fields, r.Fields, x); err != nil {
		return nil, err
	}
	return maxConst(lc, rc), nil
}

// combineTypes merges record types recursively; a collision is allowed only
// when both sides are record types.
func combineTypes(l, r []ir.Entry, at ir.Expr) ([]ir.Entry, error) {
	out := slices.Clone(l)
	for _, f := range r {
		i := slices.IndexFunc(out, func(e ir.Entry) bool { return e.Label == f.Label })
		if i < 0 {
			out = append(out, f)
			continue
		}
		lr, lok := out[i].Value.(ir.RecordType)
		rr, rok := f.Value.(ir.RecordType)
		if !lok || !rok {
			return nil, newError(ErrCodeFieldCollision, at, "field %q collides and is not a record on both sides", f.Label)
		}
		merged, err := combineTypes(lr.Fields, rr.Fields, at)
		if err != nil {
			return nil, err
		}
		out[i] = ir.Entry{Label: f.Label, Value: ir.RecordType{Fields: merged}}
	}
	return ir.SortEntries(out), nil
}

func preferTypes(l, r []ir.Entry) []ir.Entry {
	out := slices.Clone(l)
	for _, f := range r {
		i := slices.IndexFunc(out, func(e ir.Entry) bool { return e.Label == f.Label })
		if i < 0 {
			out = append(out, f)
		} else {
			out[i] = f
		}
	}
	return ir.SortEntries(out)
}

// mergeAlternatives lists the alternatives merge dispatches on. Optional T
// behaves as < None | Some : T >.
func mergeAlternatives(t ir.Expr) ([]ir.Entry, bool) {
	switch u := t.(type) {
	case ir.UnionType:
		return u.Fields, true
	case ir.App:
		if b, ok := u.Fn.(ir.Builtin); ok && b == ir.Optional {
			return []ir.Entry{{Label: "None"}, {Label: "Some", Value: u.Arg}}, true
		}
	}
	return nil, false
}

func inferMerge(ctx *Context, x ir.Merge) (ir.Expr, error) {
	handlers, err := recordTypeOf(ctx, x.Handler)
	if err != nil {
		return nil, err
	}
	ut, err := Infer(ctx, x.Union)
	if err != nil {
		return nil, err
	}
	alts, ok := mergeAlternatives(ut)
	if !ok {
		te := newError(ErrCodeNotAUnion, x.Union, "merge expects a union or an Optional")
		te.Actual = ut
		return nil, te
	}

	var out ir.Expr
	if x.Annotation != nil {
		if _, err := Infer(ctx, x.Annotation); err != nil {
			return nil, err
		}
		out = eval.Normalize(x.Annotation)
	}

	for _, alt := range alts {
		h, ok := ir.LookupEntry(handlers.Fields, alt.Label)
		if !ok {
			return nil, newError(ErrCodeMissingHandler, x.Handler, "no handler for alternative %q", alt.Label)
		}
		result := h.Value
		if alt.Value != nil {
			p, ok := h.Value.(ir.Pi)
			if !ok {
				return nil, newError(ErrCodeHandlerNotAFunction, x.Handler, "handler for %q must be a function", alt.Label)
			}
			if !ir.AlphaEquivalent(p.Type, alt.Value) {
				return nil, mismatch(x.Handler, alt.Value, p.Type, "handler for %q has the wrong input type", alt.Label)
			}
			bound := ir.Var{Name: p.Label}
			if ir.FreeIn(bound, p.Body) {
				return nil, newError(ErrCodeDependentHandler, x.Handler, "handler for %q has a dependent output type", alt.Label)
			}
			result = ir.Shift(p.Body, -1, bound)
		}
		if out == nil {
			out = result
			continue
		}
		if !ir.AlphaEquivalent(out, result) {
			return nil, mismatch(x.Handler, out, result, "handler for %q has a different output type", alt.Label)
		}
	}
	for _, h := range handlers.Fields {
		if _, ok := ir.LookupEntry(alts, h.Label); !ok {
			return nil, newError(ErrCodeUnusedHandler, x.Handler, "handler %q matches no alternative", h.Label)
		}
	}
	if out == nil {
		return nil, newError(ErrCodeMissingAnnotation, x, "merging an empty union requires an annotation")
	}
	return out, nil
}

func inferToMap(ctx *Context, x ir.ToMap) (ir.Expr, error) {
	rt, err := recordTypeOf(ctx, x.Record)
	if err != nil {
		return nil, err
	}
	var annot ir.Expr
	if x.Annotation != nil {
		if _, err := Infer(ctx, x.Annotation); err != nil {
			return nil, err
		}
		annot = eval.Normalize(x.Annotation)
	}
	if len(rt.Fields) == 0 {
		if annot == nil {
			return nil, newError(ErrCodeMissingAnnotation, x, "toMap of an empty record requires an annotation")
		}
		if _, ok := mapValueType(annot); !ok {
			return nil, newError(ErrCodeInvalidListType, x.Annotation, "toMap annotation must be List { mapKey : Text, mapValue : T }")
		}
		return annot, nil
	}
	value := rt.Fields[0].Value
	for _, f := range rt.Fields {
		if !ir.AlphaEquivalent(f.Value, value) {
			return nil, mismatch(x.Record, value, f.Value, "toMap requires every field to have the same type")
		}
	}
	if _, err := requireTermType(ctx, value, x.Record, ErrCodeInvalidFieldType); err != nil {
		return nil, err
	}
	out := listOf(ir.RecordType{Fields: []ir.Entry{
		{Label: "mapKey", Value: ir.Text},
		{Label: "mapValue", Value: value},
	}})
	if annot != nil && !ir.AlphaEquivalent(annot, out) {
		return nil, mismatch(x, annot, out, "toMap result does not match the annotation")
	}
	return out, nil
}

// mapValueType extracts T from List { mapKey : Text, mapValue : T }.
func mapValueType(t ir.Expr) (ir.Expr, bool) {
	app, ok := t.(ir.App)
	if !ok {
		return nil, false
	}
	if b, ok := app.Fn.(ir.Builtin); !ok || b != ir.List {
		return nil, false
	}
	rt, ok := app.Arg.(ir.RecordType)
	if !ok || len(rt.Fields) != 2 {
		return nil, false
	}
	k, kok := ir.LookupEntry(rt.Fields, "mapKey")
	val, vok := ir.LookupEntry(rt.Fields, "mapValue")
	if !kok || !vok || !ir.Equal(k.Value, ir.Text) {
		return nil, false
	}
	return val.Value, true
}

// withType computes the type of r with path = v from r's type and v's type.
func withType(rt ir.Expr, path []string, vt ir.Expr, at ir.Expr) (ir.Expr, error) {
	rec, ok := rt.(ir.RecordType)
	if !ok {
		err := newError(ErrCodeNotARecord, at, "with expects a record")
		err.Actual = rt
		return nil, err
	}
	head := path[0]
	value := vt
	if len(path) > 1 {
		inner := ir.Expr(ir.RecordType{})
		if f, ok := ir.LookupEntry(rec.Fields, head); ok {
			inner = f.Value
		}
		t, err := withType(inner, path[1:], vt, at)
		if err != nil {
			return nil, err
		}
		value = t
	}
	return ir.RecordType{Fields: preferTypes(rec.Fields, []ir.Entry{{Label: head, Value: value}})}, nil
}
