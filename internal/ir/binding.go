package ir

// Traverse rebuilds e with f applied to every immediate child.
//
// binder is non-nil exactly when the child sits under a newly bound variable
// (a Lambda/Pi body or a Let body) and points at that variable's label.
// Leaves are returned unchanged. The first error aborts the rebuild.
func Traverse(e Expr, f func(child Expr, binder *string) (Expr, error)) (Expr, error) {
	var err error
	sub := func(c Expr) Expr {
		if err != nil || c == nil {
			return c
		}
		var out Expr
		out, err = f(c, nil)
		return out
	}
	under := func(label string, c Expr) Expr {
		if err != nil {
			return c
		}
		var out Expr
		out, err = f(c, &label)
		return out
	}
	entries := func(fs []Entry) []Entry {
		if fs == nil {
			return nil
		}
		out := make([]Entry, len(fs))
		for i, fe := range fs {
			out[i] = Entry{Label: fe.Label, Value: sub(fe.Value)}
		}
		return out
	}

	var result Expr
	switch e := e.(type) {
	case Const, Var, Builtin, BoolLit, NaturalLit, IntegerLit, DoubleLit, Import:
		return e, nil
	case Lambda:
		t := sub(e.Type)
		result = Lambda{Label: e.Label, Type: t, Body: under(e.Label, e.Body)}
	case Pi:
		t := sub(e.Type)
		result = Pi{Label: e.Label, Type: t, Body: under(e.Label, e.Body)}
	case App:
		result = App{Fn: sub(e.Fn), Arg: sub(e.Arg)}
	case Let:
		a := sub(e.Annot)
		v := sub(e.Value)
		result = Let{Label: e.Label, Annot: a, Value: v, Body: under(e.Label, e.Body)}
	case Annot:
		result = Annot{Value: sub(e.Value), Type: sub(e.Type)}
	case TextLit:
		var chunks []Chunk
		if e.Chunks != nil {
			chunks = make([]Chunk, len(e.Chunks))
		}
		for i, c := range e.Chunks {
			chunks[i] = Chunk{Prefix: c.Prefix, Expr: sub(c.Expr)}
		}
		result = TextLit{Chunks: chunks, Suffix: e.Suffix}
	case If:
		result = If{Cond: sub(e.Cond), Then: sub(e.Then), Else: sub(e.Else)}
	case Op:
		result = Op{Kind: e.Kind, L: sub(e.L), R: sub(e.R)}
	case EmptyList:
		result = EmptyList{Type: sub(e.Type)}
	case NonEmptyList:
		elems := make([]Expr, len(e.Elems))
		for i, x := range e.Elems {
			elems[i] = sub(x)
		}
		result = NonEmptyList{Elems: elems}
	case Some:
		result = Some{Value: sub(e.Value)}
	case RecordType:
		result = RecordType{Fields: entries(e.Fields)}
	case RecordLit:
		result = RecordLit{Fields: entries(e.Fields)}
	case UnionType:
		result = UnionType{Fields: entries(e.Fields)}
	case Field:
		result = Field{Record: sub(e.Record), Label: e.Label}
	case Project:
		result = Project{Record: sub(e.Record), Labels: e.Labels}
	case ProjectType:
		result = ProjectType{Record: sub(e.Record), Type: sub(e.Type)}
	case Merge:
		result = Merge{Handler: sub(e.Handler), Union: sub(e.Union), Annotation: sub(e.Annotation)}
	case ToMap:
		result = ToMap{Record: sub(e.Record), Annotation: sub(e.Annotation)}
	case With:
		result = With{Record: sub(e.Record), Path: e.Path, Value: sub(e.Value)}
	case Assert:
		result = Assert{Annotation: sub(e.Annotation)}
	case Note:
		result = Note{Pos: e.Pos, Expr: sub(e.Expr)}
	default:
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mapExpr is Traverse for callbacks that cannot fail.
func mapExpr(e Expr, f func(child Expr, binder *string) Expr) Expr {
	out, _ := Traverse(e, func(c Expr, b *string) (Expr, error) {
		return f(c, b), nil
	})
	return out
}

// Shift adds d to the index of every free occurrence of v.Name whose index is
// at least v.Index. Shift(e, 1, x@0) moves e under a new binder named x;
// Shift(e, -1, x@0) undoes it.
func Shift(e Expr, d int, v Var) Expr {
	if x, ok := e.(Var); ok {
		if x.Name == v.Name && x.Index >= v.Index {
			return Var{Name: x.Name, Index: x.Index + d}
		}
		return x
	}
	return mapExpr(e, func(c Expr, binder *string) Expr {
		if binder != nil && *binder == v.Name {
			return Shift(c, d, Var{Name: v.Name, Index: v.Index + 1})
		}
		return Shift(c, d, v)
	})
}

// Subst replaces every occurrence of v in e with r. The replacement is shifted
// as it passes under binders so its own free variables stay bound to the same
// places.
func Subst(e Expr, v Var, r Expr) Expr {
	if x, ok := e.(Var); ok {
		if x == v {
			return r
		}
		return x
	}
	return mapExpr(e, func(c Expr, binder *string) Expr {
		if binder == nil {
			return Subst(c, v, r)
		}
		inner := v
		if *binder == v.Name {
			inner.Index++
		}
		return Subst(c, inner, Shift(r, 1, Var{Name: *binder}))
	})
}

// Instantiate performs one beta step: the body of a binder named label with
// arg substituted for the bound variable.
func Instantiate(body Expr, label string, arg Expr) Expr {
	v := Var{Name: label}
	return Shift(Subst(body, v, Shift(arg, 1, v)), -1, v)
}

// FreeIn reports whether v occurs free in e.
func FreeIn(v Var, e Expr) bool {
	switch x := e.(type) {
	case Var:
		return x == v
	case Const, Builtin, BoolLit, NaturalLit, IntegerLit, DoubleLit, Import:
		return false
	}
	found := false
	mapExpr(e, func(c Expr, binder *string) Expr {
		if found {
			return c
		}
		inner := v
		if binder != nil && *binder == v.Name {
			inner.Index++
		}
		found = FreeIn(inner, c)
		return c
	})
	return found
}

// StripNotes removes every Note in e.
func StripNotes(e Expr) Expr {
	e = StripNote(e)
	return mapExpr(e, func(c Expr, _ *string) Expr {
		return StripNotes(c)
	})
}

// ContainsImport reports whether any Import node remains in e.
func ContainsImport(e Expr) bool {
	if _, ok := e.(Import); ok {
		return true
	}
	found := false
	mapExpr(e, func(c Expr, _ *string) Expr {
		if !found {
			found = ContainsImport(c)
		}
		return c
	})
	return found
}
