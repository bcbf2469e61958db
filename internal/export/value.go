package export

import (
	"fmt"
	"slices"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/printer"
)

// Value is a plain data tree: the exportable subset of normal forms.
// This is a sealed interface - only types in this package implement it.
type Value interface {
	isValue()
}

// Null is an absent optional value.
type Null struct{}

// Bool is a boolean.
type Bool bool

// Natural is a non-negative integer.
type Natural uint64

// Integer is a signed integer.
type Integer int64

// Double is a floating point number, possibly NaN or infinite.
type Double float64

// Text is a string.
type Text string

// Array is an ordered list of values.
type Array []Value

// Member is one key of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is an ordered set of keyed values. Keys are unique.
type Object []Member

func (Null) isValue()    {}
func (Bool) isValue()    {}
func (Natural) isValue() {}
func (Integer) isValue() {}
func (Double) isValue()  {}
func (Text) isValue()    {}
func (Array) isValue()   {}
func (Object) isValue()  {}

// Get returns the value stored under key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// ToValue converts a normal form into a Value. Callers normalize first;
// ToValue does not evaluate.
func ToValue(e ir.Expr) (Value, error) {
	return toValue(e, nil)
}

func toValue(e ir.Expr, path []string) (Value, error) {
	switch x := ir.StripNote(e).(type) {
	case ir.BoolLit:
		return Bool(x), nil
	case ir.NaturalLit:
		return Natural(x), nil
	case ir.IntegerLit:
		return Integer(x), nil
	case ir.DoubleLit:
		return Double(x), nil
	case ir.TextLit:
		if !x.IsPlain() {
			return nil, fail(path, "text with an unevaluated interpolation: %s", printer.Print(x))
		}
		return Text(x.Suffix), nil
	case ir.Some:
		return toValue(x.Value, path)
	case ir.RecordLit:
		return toObject(x.Fields, path)
	case ir.EmptyList:
		if isMapEntryType(x) {
			return Object{}, nil
		}
		return Array{}, nil
	case ir.NonEmptyList:
		if isMapEntryList(x) {
			return fromMapEntries(x, path)
		}
		out := make(Array, len(x.Elems))
		for i, el := range x.Elems {
			v, err := toValue(el, appendPath(path, fmt.Sprintf("[%d]", i)))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case ir.App:
		if b, ok := ir.StripNote(x.Fn).(ir.Builtin); ok && b == ir.None {
			return Null{}, nil
		}
		if _, ok := unionAlternative(x.Fn); ok {
			return toValue(x.Arg, path)
		}
	case ir.Field:
		if label, ok := unionAlternative(x); ok {
			return Text(label), nil
		}
	}
	return nil, fail(path, "cannot export %s", printer.Print(e))
}

func toObject(fields []ir.Entry, path []string) (Object, error) {
	out := make(Object, 0, len(fields))
	for _, f := range fields {
		v, err := toValue(f.Value, appendPath(path, f.Label))
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Key: f.Label, Value: v})
	}
	return out, nil
}

// unionAlternative reports whether e is U.label for a union type U.
func unionAlternative(e ir.Expr) (string, bool) {
	f, ok := ir.StripNote(e).(ir.Field)
	if !ok {
		return "", false
	}
	if _, ok := ir.StripNote(f.Record).(ir.UnionType); !ok {
		return "", false
	}
	return f.Label, true
}

// isMapEntryType reports whether an empty list is annotated
// List { mapKey : Text, mapValue : T }.
func isMapEntryType(l ir.EmptyList) bool {
	elem, ok := l.ElementType()
	if !ok {
		return false
	}
	rt, ok := ir.StripNote(elem).(ir.RecordType)
	if !ok || len(rt.Fields) != 2 {
		return false
	}
	key, ok := ir.LookupEntry(rt.Fields, "mapKey")
	if !ok {
		return false
	}
	if b, ok := ir.StripNote(key.Value).(ir.Builtin); !ok || b != ir.Text {
		return false
	}
	_, ok = ir.LookupEntry(rt.Fields, "mapValue")
	return ok
}

// isMapEntryList reports whether every element is { mapKey = "...", mapValue = v }.
func isMapEntryList(l ir.NonEmptyList) bool {
	return !slices.ContainsFunc(l.Elems, func(el ir.Expr) bool {
		_, _, ok := mapEntry(el)
		return !ok
	})
}

func mapEntry(e ir.Expr) (string, ir.Expr, bool) {
	r, ok := ir.StripNote(e).(ir.RecordLit)
	if !ok || len(r.Fields) != 2 {
		return "", nil, false
	}
	key, ok := ir.LookupEntry(r.Fields, "mapKey")
	if !ok {
		return "", nil, false
	}
	text, ok := ir.StripNote(key.Value).(ir.TextLit)
	if !ok || !text.IsPlain() {
		return "", nil, false
	}
	value, ok := ir.LookupEntry(r.Fields, "mapValue")
	if !ok {
		return "", nil, false
	}
	return text.Suffix, value.Value, true
}

func fromMapEntries(l ir.NonEmptyList, path []string) (Object, error) {
	out := make(Object, 0, len(l.Elems))
	for _, el := range l.Elems {
		key, value, _ := mapEntry(el)
		if _, dup := out.Get(key); dup {
			return nil, fail(path, "duplicate map key %q", key)
		}
		v, err := toValue(value, appendPath(path, key))
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Key: key, Value: v})
	}
	return out, nil
}

func appendPath(path []string, elem string) []string {
	return append(slices.Clip(path), elem)
}

func fail(path []string, format string, args ...any) *ExportError {
	return &ExportError{Path: slices.Clone(path), Message: fmt.Sprintf(format, args...)}
}

// Plain converts v into nil, bool, uint64, int64, float64, string, []any,
// and map[string]any, the shapes generic encoders accept.
func Plain(v Value) any {
	switch x := v.(type) {
	case Bool:
		return bool(x)
	case Natural:
		return uint64(x)
	case Integer:
		return int64(x)
	case Double:
		return float64(x)
	case Text:
		return string(x)
	case Array:
		out := make([]any, len(x))
		for i, el := range x {
			out[i] = Plain(el)
		}
		return out
	case Object:
		out := make(map[string]any, len(x))
		for _, m := range x {
			out[m.Key] = Plain(m.Value)
		}
		return out
	}
	return nil
}
