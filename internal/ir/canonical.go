package ir

import (
	"bytes"
	"fmt"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Term tags of the canonical encoding. One array tag per variant; the
// numbering is part of the format and must never change.
const (
	tagApp         = 0
	tagLambda      = 1
	tagPi          = 2
	tagOp          = 3
	tagList        = 4
	tagSome        = 5
	tagMerge       = 6
	tagRecordType  = 7
	tagRecordLit   = 8
	tagField       = 9
	tagProject     = 10
	tagUnionType   = 11
	tagIf          = 14
	tagNatural     = 15
	tagInteger     = 16
	tagText        = 18
	tagAssert      = 19
	tagImport      = 24
	tagLet         = 25
	tagAnnot       = 26
	tagToMap       = 27
	tagEmptyListAt = 28
	tagWith        = 29
)

// Import target codes inside tagImport.
const (
	importRemote   = 0
	importAbsolute = 2
	importHere     = 3
	importParent   = 4
	importHome     = 5
	importEnv      = 6
	importMissing  = 7
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// Core deterministic mode: sorted map keys, definite lengths, and the
	// shortest float width that preserves the value.
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: cbor encoder options: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyEnforcedAPF,
		IndefLength:    cbor.IndefLengthForbidden,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("ir: cbor decoder options: %v", err))
	}
}

// Encode produces the canonical binary form of e.
//
// The expression is alpha-normalized first, so alpha-equivalent inputs encode
// to identical bytes. The payload is wrapped in a [version, term] envelope.
// Callers hashing for identity must pass a normal form; Encode itself does not
// normalize. Non-finite doubles and repeated record labels are rejected.
func Encode(e Expr) ([]byte, error) {
	term, err := encodeTerm(AlphaNormalize(e))
	if err != nil {
		return nil, err
	}
	out, err := encMode.Marshal([]any{EncodingVersion, term})
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return out, nil
}

// MustEncode is like Encode but panics on error.
// Use only in tests or when the expression is known to be encodable.
func MustEncode(e Expr) []byte {
	b, err := Encode(e)
	if err != nil {
		panic(err)
	}
	return b
}

func encodeTerm(e Expr) (any, error) {
	e = StripNote(e)
	switch x := e.(type) {
	case Const:
		return x.String(), nil
	case Builtin:
		return string(x), nil
	case BoolLit:
		return bool(x), nil
	case DoubleLit:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &EncodingError{Code: ErrCodeNonFiniteDouble, Message: fmt.Sprintf("cannot encode %v", f)}
		}
		return f, nil
	case NaturalLit:
		return []any{tagNatural, uint64(x)}, nil
	case IntegerLit:
		return []any{tagInteger, int64(x)}, nil
	case Var:
		if x.Index < 0 {
			return nil, &EncodingError{Code: ErrCodeUnencodable, Message: fmt.Sprintf("negative index on %s", x)}
		}
		if x.Name == AlphaLabel {
			return uint64(x.Index), nil
		}
		return []any{x.Name, uint64(x.Index)}, nil
	case App:
		head, args := SpineOf(x)
		out := make([]any, 0, 2+len(args))
		out = append(out, tagApp)
		return appendTerms(out, append([]Expr{head}, args...)...)
	case Lambda:
		return encodeBinder(tagLambda, x.Label, x.Type, x.Body)
	case Pi:
		return encodeBinder(tagPi, x.Label, x.Type, x.Body)
	case Op:
		return appendTerms([]any{tagOp, uint64(x.Kind)}, x.L, x.R)
	case EmptyList:
		if elem, ok := x.ElementType(); ok {
			return appendTerms([]any{tagList}, elem)
		}
		return appendTerms([]any{tagEmptyListAt}, x.Type)
	case NonEmptyList:
		return appendTerms([]any{tagList, nil}, x.Elems...)
	case Some:
		return appendTerms([]any{tagSome, nil}, x.Value)
	case Merge:
		if x.Annotation == nil {
			return appendTerms([]any{tagMerge}, x.Handler, x.Union)
		}
		return appendTerms([]any{tagMerge}, x.Handler, x.Union, x.Annotation)
	case RecordType:
		m, err := encodeEntries(x.Fields, false)
		if err != nil {
			return nil, err
		}
		return []any{tagRecordType, m}, nil
	case RecordLit:
		m, err := encodeEntries(x.Fields, false)
		if err != nil {
			return nil, err
		}
		return []any{tagRecordLit, m}, nil
	case UnionType:
		m, err := encodeEntries(x.Fields, true)
		if err != nil {
			return nil, err
		}
		return []any{tagUnionType, m}, nil
	case Field:
		r, err := encodeTerm(x.Record)
		if err != nil {
			return nil, err
		}
		return []any{tagField, r, x.Label}, nil
	case Project:
		r, err := encodeTerm(x.Record)
		if err != nil {
			return nil, err
		}
		out := []any{tagProject, r}
		for _, l := range x.Labels {
			out = append(out, l)
		}
		return out, nil
	case ProjectType:
		r, err := encodeTerm(x.Record)
		if err != nil {
			return nil, err
		}
		t, err := encodeTerm(x.Type)
		if err != nil {
			return nil, err
		}
		return []any{tagProject, r, []any{t}}, nil
	case If:
		return appendTerms([]any{tagIf}, x.Cond, x.Then, x.Else)
	case TextLit:
		out := []any{tagText}
		for _, c := range x.Chunks {
			t, err := encodeTerm(c.Expr)
			if err != nil {
				return nil, err
			}
			out = append(out, c.Prefix, t)
		}
		return append(out, x.Suffix), nil
	case Assert:
		return appendTerms([]any{tagAssert}, x.Annotation)
	case Import:
		return encodeImport(x)
	case Let:
		out := []any{tagLet}
		var cur Expr = x
		for {
			l, ok := StripNote(cur).(Let)
			if !ok {
				break
			}
			var annot any
			if l.Annot != nil {
				a, err := encodeTerm(l.Annot)
				if err != nil {
					return nil, err
				}
				annot = a
			}
			v, err := encodeTerm(l.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, l.Label, annot, v)
			cur = l.Body
		}
		return appendTerms(out, cur)
	case Annot:
		return appendTerms([]any{tagAnnot}, x.Value, x.Type)
	case ToMap:
		if x.Annotation == nil {
			return appendTerms([]any{tagToMap}, x.Record)
		}
		return appendTerms([]any{tagToMap}, x.Record, x.Annotation)
	case With:
		r, err := encodeTerm(x.Record)
		if err != nil {
			return nil, err
		}
		path := make([]any, len(x.Path))
		for i, p := range x.Path {
			path[i] = p
		}
		v, err := encodeTerm(x.Value)
		if err != nil {
			return nil, err
		}
		return []any{tagWith, r, path, v}, nil
	}
	return nil, &EncodingError{Code: ErrCodeUnencodable, Message: fmt.Sprintf("unknown expression %T", e)}
}

func appendTerms(out []any, es ...Expr) ([]any, error) {
	for _, e := range es {
		t, err := encodeTerm(e)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func encodeBinder(tag int, label string, typ, body Expr) (any, error) {
	if label == AlphaLabel {
		return appendTerms([]any{tag}, typ, body)
	}
	return appendTerms([]any{tag, label}, typ, body)
}

func encodeEntries(fields []Entry, allowEmpty bool) (map[string]any, error) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		if _, dup := m[f.Label]; dup {
			return nil, &EncodingError{Code: ErrCodeUnencodable, Message: fmt.Sprintf("repeated label %q", f.Label)}
		}
		if f.Value == nil {
			if !allowEmpty {
				return nil, &EncodingError{Code: ErrCodeUnencodable, Message: fmt.Sprintf("field %q has no value", f.Label)}
			}
			m[f.Label] = nil
			continue
		}
		t, err := encodeTerm(f.Value)
		if err != nil {
			return nil, err
		}
		m[f.Label] = t
	}
	return m, nil
}

func encodeImport(x Import) (any, error) {
	var hash any
	if x.Hash != nil {
		hash = x.Hash.Multihash()
	}
	out := []any{tagImport, hash, uint64(x.Mode)}
	t := x.Target
	switch t.Kind {
	case TargetRemote:
		return append(out, importRemote, t.URL), nil
	case TargetLocal:
		code := map[LocalPrefix]int{
			PrefixAbsolute: importAbsolute,
			PrefixHere:     importHere,
			PrefixParent:   importParent,
			PrefixHome:     importHome,
		}[t.Prefix]
		out = append(out, code)
		for _, p := range t.Path {
			out = append(out, p)
		}
		return out, nil
	case TargetEnv:
		return append(out, importEnv, t.Name), nil
	case TargetMissing:
		return append(out, importMissing), nil
	}
	return nil, &EncodingError{Code: ErrCodeUnencodable, Message: "unknown import target"}
}

// Decode is the inverse of Encode. It rejects an unknown envelope version with
// ErrCodeUnsupportedVersion and any other input that Encode would not have
// produced byte-for-byte with ErrCodeInvalidEncoding.
func Decode(b []byte) (Expr, error) {
	var raw any
	if err := decMode.Unmarshal(b, &raw); err != nil {
		return nil, invalidEncoding("malformed cbor: %v", err)
	}
	env, ok := raw.([]any)
	if !ok || len(env) != 2 {
		return nil, invalidEncoding("expected [version, term] envelope")
	}
	version, ok := env[0].(string)
	if !ok {
		return nil, invalidEncoding("version tag is not text")
	}
	if version != EncodingVersion {
		return nil, &EncodingError{
			Code:    ErrCodeUnsupportedVersion,
			Message: fmt.Sprintf("encoding version %q, supported %q", version, EncodingVersion),
		}
	}
	e, err := decodeTerm(env[1])
	if err != nil {
		return nil, err
	}
	again, err := Encode(e)
	if err != nil {
		return nil, invalidEncoding("decoded term does not re-encode: %v", err)
	}
	if !bytes.Equal(again, b) {
		return nil, invalidEncoding("input is not in canonical form")
	}
	return e, nil
}

func decodeTerm(v any) (Expr, error) {
	switch x := v.(type) {
	case uint64:
		if x > math.MaxInt32 {
			return nil, invalidEncoding("variable index %d out of range", x)
		}
		return Var{Name: AlphaLabel, Index: int(x)}, nil
	case string:
		switch x {
		case "Type":
			return Type, nil
		case "Kind":
			return Kind, nil
		case "Sort":
			return Sort, nil
		}
		if b, ok := LookupBuiltin(x); ok {
			return b, nil
		}
		return nil, invalidEncoding("unknown built-in %q", x)
	case bool:
		return BoolLit(x), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, invalidEncoding("non-finite double")
		}
		return DoubleLit(x), nil
	case []any:
		return decodeArray(x)
	}
	return nil, invalidEncoding("unexpected %T", v)
}

func decodeArray(a []any) (Expr, error) {
	if len(a) == 0 {
		return nil, invalidEncoding("empty term array")
	}
	if name, ok := a[0].(string); ok {
		if len(a) != 2 {
			return nil, invalidEncoding("variable %q must have exactly one index", name)
		}
		n, ok := a[1].(uint64)
		if !ok || n > math.MaxInt32 {
			return nil, invalidEncoding("variable %q has a bad index", name)
		}
		return Var{Name: name, Index: int(n)}, nil
	}
	tag, ok := a[0].(uint64)
	if !ok {
		return nil, invalidEncoding("term tag is not an unsigned integer")
	}
	args := a[1:]
	terms := func(vs []any) ([]Expr, error) {
		out := make([]Expr, len(vs))
		for i, v := range vs {
			e, err := decodeTerm(v)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	need := func(n int) error {
		if len(args) != n {
			return invalidEncoding("tag %d expects %d fields, got %d", tag, n, len(args))
		}
		return nil
	}

	switch tag {
	case tagApp:
		if len(args) < 2 {
			return nil, invalidEncoding("application needs a function and an argument")
		}
		es, err := terms(args)
		if err != nil {
			return nil, err
		}
		return NewApp(es[0], es[1:]...), nil
	case tagLambda, tagPi:
		label := AlphaLabel
		rest := args
		if len(args) == 3 {
			l, ok := args[0].(string)
			if !ok {
				return nil, invalidEncoding("binder label is not text")
			}
			label, rest = l, args[1:]
		} else if len(args) != 2 {
			return nil, invalidEncoding("binder expects 2 or 3 fields")
		}
		es, err := terms(rest)
		if err != nil {
			return nil, err
		}
		if tag == tagLambda {
			return Lambda{Label: label, Type: es[0], Body: es[1]}, nil
		}
		return Pi{Label: label, Type: es[0], Body: es[1]}, nil
	case tagOp:
		if err := need(3); err != nil {
			return nil, err
		}
		k, ok := args[0].(uint64)
		if !ok || !OpKind(k).Valid() {
			return nil, invalidEncoding("unknown operator")
		}
		es, err := terms(args[1:])
		if err != nil {
			return nil, err
		}
		return Op{Kind: OpKind(k), L: es[0], R: es[1]}, nil
	case tagList:
		if len(args) == 1 {
			t, err := decodeTerm(args[0])
			if err != nil {
				return nil, err
			}
			return EmptyList{Type: App{Fn: List, Arg: t}}, nil
		}
		if len(args) < 2 || args[0] != nil {
			return nil, invalidEncoding("non-empty list must have a null type slot")
		}
		es, err := terms(args[1:])
		if err != nil {
			return nil, err
		}
		return NonEmptyList{Elems: es}, nil
	case tagEmptyListAt:
		if err := need(1); err != nil {
			return nil, err
		}
		t, err := decodeTerm(args[0])
		if err != nil {
			return nil, err
		}
		return EmptyList{Type: t}, nil
	case tagSome:
		if err := need(2); err != nil {
			return nil, err
		}
		if args[0] != nil {
			return nil, invalidEncoding("Some must have a null type slot")
		}
		e, err := decodeTerm(args[1])
		if err != nil {
			return nil, err
		}
		return Some{Value: e}, nil
	case tagMerge:
		if len(args) != 2 && len(args) != 3 {
			return nil, invalidEncoding("merge expects 2 or 3 fields")
		}
		es, err := terms(args)
		if err != nil {
			return nil, err
		}
		m := Merge{Handler: es[0], Union: es[1]}
		if len(es) == 3 {
			m.Annotation = es[2]
		}
		return m, nil
	case tagRecordType, tagRecordLit, tagUnionType:
		if err := need(1); err != nil {
			return nil, err
		}
		fields, err := decodeEntries(args[0], tag == tagUnionType)
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagRecordType:
			return RecordType{Fields: fields}, nil
		case tagRecordLit:
			return RecordLit{Fields: fields}, nil
		default:
			return UnionType{Fields: fields}, nil
		}
	case tagField:
		if err := need(2); err != nil {
			return nil, err
		}
		r, err := decodeTerm(args[0])
		if err != nil {
			return nil, err
		}
		l, ok := args[1].(string)
		if !ok {
			return nil, invalidEncoding("field label is not text")
		}
		return Field{Record: r, Label: l}, nil
	case tagProject:
		if len(args) < 1 {
			return nil, invalidEncoding("projection needs a record")
		}
		r, err := decodeTerm(args[0])
		if err != nil {
			return nil, err
		}
		if len(args) == 2 {
			if inner, ok := args[1].([]any); ok {
				if len(inner) != 1 {
					return nil, invalidEncoding("projection by type needs one type")
				}
				t, err := decodeTerm(inner[0])
				if err != nil {
					return nil, err
				}
				return ProjectType{Record: r, Type: t}, nil
			}
		}
		labels := make([]string, 0, len(args)-1)
		for _, l := range args[1:] {
			s, ok := l.(string)
			if !ok {
				return nil, invalidEncoding("projection label is not text")
			}
			labels = append(labels, s)
		}
		return Project{Record: r, Labels: labels}, nil
	case tagIf:
		if err := need(3); err != nil {
			return nil, err
		}
		es, err := terms(args)
		if err != nil {
			return nil, err
		}
		return If{Cond: es[0], Then: es[1], Else: es[2]}, nil
	case tagNatural:
		if err := need(1); err != nil {
			return nil, err
		}
		n, ok := args[0].(uint64)
		if !ok {
			return nil, invalidEncoding("Natural literal is not an unsigned integer")
		}
		return NaturalLit(n), nil
	case tagInteger:
		if err := need(1); err != nil {
			return nil, err
		}
		switch n := args[0].(type) {
		case uint64:
			if n > math.MaxInt64 {
				return nil, invalidEncoding("Integer literal out of range")
			}
			return IntegerLit(int64(n)), nil
		case int64:
			return IntegerLit(n), nil
		}
		return nil, invalidEncoding("Integer literal is not an integer")
	case tagText:
		if len(args)%2 != 1 {
			return nil, invalidEncoding("text literal has an odd shape")
		}
		var t TextLit
		for i := 0; i+1 < len(args); i += 2 {
			p, ok := args[i].(string)
			if !ok {
				return nil, invalidEncoding("text chunk is not text")
			}
			e, err := decodeTerm(args[i+1])
			if err != nil {
				return nil, err
			}
			t.Chunks = append(t.Chunks, Chunk{Prefix: p, Expr: e})
		}
		s, ok := args[len(args)-1].(string)
		if !ok {
			return nil, invalidEncoding("text suffix is not text")
		}
		t.Suffix = s
		return t, nil
	case tagAssert:
		if err := need(1); err != nil {
			return nil, err
		}
		t, err := decodeTerm(args[0])
		if err != nil {
			return nil, err
		}
		return Assert{Annotation: t}, nil
	case tagImport:
		return decodeImport(args)
	case tagLet:
		return decodeLet(args)
	case tagAnnot:
		if err := need(2); err != nil {
			return nil, err
		}
		es, err := terms(args)
		if err != nil {
			return nil, err
		}
		return Annot{Value: es[0], Type: es[1]}, nil
	case tagToMap:
		if len(args) != 1 && len(args) != 2 {
			return nil, invalidEncoding("toMap expects 1 or 2 fields")
		}
		es, err := terms(args)
		if err != nil {
			return nil, err
		}
		tm := ToMap{Record: es[0]}
		if len(es) == 2 {
			tm.Annotation = es[1]
		}
		return tm, nil
	case tagWith:
		if err := need(3); err != nil {
			return nil, err
		}
		r, err := decodeTerm(args[0])
		if err != nil {
			return nil, err
		}
		rawPath, ok := args[1].([]any)
		if !ok || len(rawPath) == 0 {
			return nil, invalidEncoding("with path must be a non-empty array")
		}
		path := make([]string, len(rawPath))
		for i, p := range rawPath {
			s, ok := p.(string)
			if !ok {
				return nil, invalidEncoding("with path component is not text")
			}
			path[i] = s
		}
		v, err := decodeTerm(args[2])
		if err != nil {
			return nil, err
		}
		return With{Record: r, Path: path, Value: v}, nil
	}
	return nil, invalidEncoding("unknown term tag %d", tag)
}

func decodeEntries(v any, allowEmpty bool) ([]Entry, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidEncoding("expected a map of fields")
	}
	var fields []Entry
	for label, raw := range m {
		if raw == nil {
			if !allowEmpty {
				return nil, invalidEncoding("field %q has no value", label)
			}
			fields = append(fields, Entry{Label: label})
			continue
		}
		e, err := decodeTerm(raw)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Entry{Label: label, Value: e})
	}
	return SortEntries(fields), nil
}

func decodeLet(args []any) (Expr, error) {
	if len(args) < 4 || (len(args)-1)%3 != 0 {
		return nil, invalidEncoding("let has the wrong number of fields")
	}
	type binding struct {
		label        string
		annot, value Expr
	}
	var bs []binding
	for i := 0; i < len(args)-1; i += 3 {
		l, ok := args[i].(string)
		if !ok {
			return nil, invalidEncoding("let label is not text")
		}
		var annot Expr
		if args[i+1] != nil {
			a, err := decodeTerm(args[i+1])
			if err != nil {
				return nil, err
			}
			annot = a
		}
		v, err := decodeTerm(args[i+2])
		if err != nil {
			return nil, err
		}
		bs = append(bs, binding{label: l, annot: annot, value: v})
	}
	body, err := decodeTerm(args[len(args)-1])
	if err != nil {
		return nil, err
	}
	for i := len(bs) - 1; i >= 0; i-- {
		body = Let{Label: bs[i].label, Annot: bs[i].annot, Value: bs[i].value, Body: body}
	}
	return body, nil
}

func decodeImport(args []any) (Expr, error) {
	if len(args) < 3 {
		return nil, invalidEncoding("import has too few fields")
	}
	var imp Import
	if args[0] != nil {
		b, ok := args[0].([]byte)
		if !ok {
			return nil, invalidEncoding("import hash is not a byte string")
		}
		h, err := HashFromMultihash(b)
		if err != nil {
			return nil, err
		}
		imp.Hash = &h
	}
	mode, ok := args[1].(uint64)
	if !ok || mode > uint64(ModeLocation) {
		return nil, invalidEncoding("unknown import mode")
	}
	imp.Mode = ImportMode(mode)
	kind, ok := args[2].(uint64)
	if !ok {
		return nil, invalidEncoding("import kind is not an unsigned integer")
	}
	rest := make([]string, 0, len(args)-3)
	for _, r := range args[3:] {
		s, ok := r.(string)
		if !ok {
			return nil, invalidEncoding("import component is not text")
		}
		rest = append(rest, s)
	}
	switch kind {
	case importRemote:
		if len(rest) != 1 {
			return nil, invalidEncoding("remote import needs one URL")
		}
		imp.Target = RemoteTarget(rest[0])
	case importAbsolute, importHere, importParent, importHome:
		if len(rest) == 0 {
			return nil, invalidEncoding("local import needs a path")
		}
		prefix := map[uint64]LocalPrefix{
			importAbsolute: PrefixAbsolute,
			importHere:     PrefixHere,
			importParent:   PrefixParent,
			importHome:     PrefixHome,
		}[kind]
		imp.Target = LocalTarget(prefix, rest...)
	case importEnv:
		if len(rest) != 1 {
			return nil, invalidEncoding("env import needs one name")
		}
		imp.Target = EnvTarget(rest[0])
	case importMissing:
		if len(rest) != 0 {
			return nil, invalidEncoding("missing takes no components")
		}
		imp.Target = MissingTarget()
	default:
		return nil, invalidEncoding("unknown import kind %d", kind)
	}
	return imp, nil
}
