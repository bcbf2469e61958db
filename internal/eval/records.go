package eval

import (
	"slices"

	"github.com/roach88/dhall/internal/ir"
)

// selectField reduces r.label with r already normal.
func selectField(r ir.Expr, label string) ir.Expr {
	stuck := ir.Field{Record: r, Label: label}
	switch x := r.(type) {
	case ir.RecordLit:
		if f, ok := ir.LookupEntry(x.Fields, label); ok {
			return f.Value
		}
	case ir.Project:
		return selectField(x.Record, label)
	case ir.Op:
		switch x.Kind {
		case ir.OpPrefer:
			if rr, ok := x.R.(ir.RecordLit); ok {
				if f, ok := ir.LookupEntry(rr.Fields, label); ok {
					return f.Value
				}
				return selectField(x.L, label)
			}
			if ll, ok := x.L.(ir.RecordLit); ok {
				if f, ok := ir.LookupEntry(ll.Fields, label); ok {
					return ir.Field{Record: ir.Op{Kind: ir.OpPrefer, L: singleton(f), R: x.R}, Label: label}
				}
				return selectField(x.R, label)
			}
		case ir.OpCombine:
			if ll, ok := x.L.(ir.RecordLit); ok {
				if f, ok := ir.LookupEntry(ll.Fields, label); ok {
					return ir.Field{Record: ir.Op{Kind: ir.OpCombine, L: singleton(f), R: x.R}, Label: label}
				}
				return selectField(x.R, label)
			}
			if rr, ok := x.R.(ir.RecordLit); ok {
				if f, ok := ir.LookupEntry(rr.Fields, label); ok {
					return ir.Field{Record: ir.Op{Kind: ir.OpCombine, L: x.L, R: singleton(f)}, Label: label}
				}
				return selectField(x.L, label)
			}
		}
	}
	return stuck
}

func singleton(f ir.Entry) ir.RecordLit {
	return ir.RecordLit{Fields: []ir.Entry{f}}
}

// project reduces r.{ labels } with r already normal.
func project(r ir.Expr, labels []string) ir.Expr {
	labels = slices.Clone(labels)
	slices.Sort(labels)
	labels = slices.Compact(labels)
	if len(labels) == 0 {
		return ir.RecordLit{}
	}
	switch x := r.(type) {
	case ir.RecordLit:
		out := make([]ir.Entry, 0, len(labels))
		for _, l := range labels {
			f, ok := ir.LookupEntry(x.Fields, l)
			if !ok {
				return ir.Project{Record: r, Labels: labels}
			}
			out = append(out, f)
		}
		return ir.RecordLit{Fields: out}
	case ir.Project:
		return project(x.Record, labels)
	case ir.Op:
		if x.Kind == ir.OpPrefer {
			if rr, ok := x.R.(ir.RecordLit); ok {
				var left, right []string
				for _, l := range labels {
					if _, ok := ir.LookupEntry(rr.Fields, l); ok {
						right = append(right, l)
					} else {
						left = append(left, l)
					}
				}
				return preferRecords(project(x.L, left), project(rr, right))
			}
		}
	}
	return ir.Project{Record: r, Labels: labels}
}

// combineRecords implements the recursive record merge ∧.
func combineRecords(l, r ir.Expr) ir.Expr {
	ll, lok := l.(ir.RecordLit)
	rl, rok := r.(ir.RecordLit)
	switch {
	case lok && len(ll.Fields) == 0:
		return r
	case rok && len(rl.Fields) == 0:
		return l
	case lok && rok:
		return ir.RecordLit{Fields: mergeEntries(ll.Fields, rl.Fields, combineRecords)}
	}
	return ir.Op{Kind: ir.OpCombine, L: l, R: r}
}

// combineRecordTypes implements the recursive record type merge ⩓.
func combineRecordTypes(l, r ir.Expr) ir.Expr {
	ll, lok := l.(ir.RecordType)
	rl, rok := r.(ir.RecordType)
	switch {
	case lok && len(ll.Fields) == 0:
		return r
	case rok && len(rl.Fields) == 0:
		return l
	case lok && rok:
		return ir.RecordType{Fields: mergeEntries(ll.Fields, rl.Fields, combineRecordTypes)}
	}
	return ir.Op{Kind: ir.OpCombineTypes, L: l, R: r}
}

// preferRecords implements the right-biased shallow merge ⫽.
func preferRecords(l, r ir.Expr) ir.Expr {
	ll, lok := l.(ir.RecordLit)
	rl, rok := r.(ir.RecordLit)
	switch {
	case lok && len(ll.Fields) == 0:
		return r
	case rok && len(rl.Fields) == 0:
		return l
	case lok && rok:
		return ir.RecordLit{Fields: mergeEntries(ll.Fields, rl.Fields, nil)}
	case ir.Equal(l, r):
		return l
	}
	return ir.Op{Kind: ir.OpPrefer, L: l, R: r}
}

// mergeEntries unions two field lists. On a label collision, both values are
// passed to collide; a nil collide keeps the right value.
func mergeEntries(l, r []ir.Entry, collide func(a, b ir.Expr) ir.Expr) []ir.Entry {
	out := slices.Clone(l)
	for _, f := range r {
		i := slices.IndexFunc(out, func(e ir.Entry) bool { return e.Label == f.Label })
		switch {
		case i < 0:
			out = append(out, f)
		case collide == nil:
			out[i] = f
		default:
			out[i] = ir.Entry{Label: f.Label, Value: collide(out[i].Value, f.Value)}
		}
	}
	return ir.SortEntries(out)
}

// withPath reduces r with path = v with r and v already normal.
func withPath(r ir.Expr, path []string, v ir.Expr) ir.Expr {
	rec, ok := r.(ir.RecordLit)
	if !ok {
		return ir.With{Record: r, Path: path, Value: v}
	}
	head := path[0]
	value := v
	if len(path) > 1 {
		inner := ir.Expr(ir.RecordLit{})
		if f, ok := ir.LookupEntry(rec.Fields, head); ok {
			inner = f.Value
		}
		value = withPath(inner, path[1:], v)
	}
	return ir.RecordLit{Fields: mergeEntries(rec.Fields, []ir.Entry{{Label: head, Value: value}}, nil)}
}
