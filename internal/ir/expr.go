package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Expr is a sealed interface over every term of the language.
// Only the types declared in this file implement it, so a type switch over
// Expr in the normalizer, the checker, and the encoder covers a closed set.
type Expr interface {
	isExpr() // Sealed - only AST node types implement it
}

// Pos is a source location attached to an expression by the parser.
type Pos struct {
	File string
	Line int
	Col  int
}

// String renders the position as file:line:col.
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// IsZero reports whether the position carries no information.
func (p Pos) IsZero() bool {
	return p.Line == 0 && p.Col == 0 && p.File == ""
}

// Const is one of the three type universes.
type Const int

const (
	Type Const = iota
	Kind
	Sort
)

// String returns the keyword for the universe.
func (c Const) String() string {
	switch c {
	case Type:
		return "Type"
	case Kind:
		return "Kind"
	case Sort:
		return "Sort"
	default:
		return fmt.Sprintf("Const(%d)", int(c))
	}
}

// Var references the Index-th enclosing binder named Name.
type Var struct {
	Name  string
	Index int
}

// String renders the variable as x or x@n.
func (v Var) String() string {
	if v.Index == 0 {
		return v.Name
	}
	return fmt.Sprintf("%s@%d", v.Name, v.Index)
}

// Lambda is an anonymous function λ(Label : Type) → Body.
type Lambda struct {
	Label string
	Type  Expr
	Body  Expr
}

// Pi is a (possibly dependent) function type ∀(Label : Type) → Body.
type Pi struct {
	Label string
	Type  Expr
	Body  Expr
}

// App applies Fn to Arg.
type App struct {
	Fn  Expr
	Arg Expr
}

// Let binds Label to Value inside Body. Annot is nil when unannotated.
type Let struct {
	Label string
	Annot Expr
	Value Expr
	Body  Expr
}

// Annot is a type annotation Value : Type.
type Annot struct {
	Value Expr
	Type  Expr
}

// Builtin names a built-in type or function.
type Builtin string

// Built-in types and functions.
const (
	Bool             Builtin = "Bool"
	Natural          Builtin = "Natural"
	Integer          Builtin = "Integer"
	Double           Builtin = "Double"
	Text             Builtin = "Text"
	List             Builtin = "List"
	Optional         Builtin = "Optional"
	None             Builtin = "None"
	NaturalBuild     Builtin = "Natural/build"
	NaturalFold      Builtin = "Natural/fold"
	NaturalIsZero    Builtin = "Natural/isZero"
	NaturalEven      Builtin = "Natural/even"
	NaturalOdd       Builtin = "Natural/odd"
	NaturalToInteger Builtin = "Natural/toInteger"
	NaturalShow      Builtin = "Natural/show"
	NaturalSubtract  Builtin = "Natural/subtract"
	IntegerToDouble  Builtin = "Integer/toDouble"
	IntegerShow      Builtin = "Integer/show"
	IntegerNegate    Builtin = "Integer/negate"
	IntegerClamp     Builtin = "Integer/clamp"
	DoubleShow       Builtin = "Double/show"
	ListBuild        Builtin = "List/build"
	ListFold         Builtin = "List/fold"
	ListLength       Builtin = "List/length"
	ListHead         Builtin = "List/head"
	ListLast         Builtin = "List/last"
	ListIndexed      Builtin = "List/indexed"
	ListReverse      Builtin = "List/reverse"
	TextShow         Builtin = "Text/show"
	TextReplace      Builtin = "Text/replace"
)

var builtinNames = []Builtin{
	Bool, Natural, Integer, Double, Text, List, Optional, None,
	NaturalBuild, NaturalFold, NaturalIsZero, NaturalEven, NaturalOdd,
	NaturalToInteger, NaturalShow, NaturalSubtract,
	IntegerToDouble, IntegerShow, IntegerNegate, IntegerClamp,
	DoubleShow,
	ListBuild, ListFold, ListLength, ListHead, ListLast, ListIndexed, ListReverse,
	TextShow, TextReplace,
}

// Builtins returns every built-in name in declaration order.
func Builtins() []Builtin {
	return slices.Clone(builtinNames)
}

// LookupBuiltin returns the built-in with the given name.
func LookupBuiltin(name string) (Builtin, bool) {
	for _, b := range builtinNames {
		if string(b) == name {
			return b, true
		}
	}
	return "", false
}

// BoolLit is True or False.
type BoolLit bool

// NaturalLit is a non-negative integer literal.
type NaturalLit uint64

// IntegerLit is a signed integer literal (+n or -n in source).
type IntegerLit int64

// DoubleLit is a double-precision literal.
type DoubleLit float64

// Chunk is a literal prefix followed by an interpolated expression.
type Chunk struct {
	Prefix string
	Expr   Expr
}

// TextLit is a text literal with interpolations: Chunks then Suffix.
type TextLit struct {
	Chunks []Chunk
	Suffix string
}

// PlainText builds an interpolation-free text literal.
func PlainText(s string) TextLit {
	return TextLit{Suffix: s}
}

// IsPlain reports whether the literal has no interpolations.
func (t TextLit) IsPlain() bool {
	return len(t.Chunks) == 0
}

// If is if Cond then Then else Else.
type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

// OpKind identifies a binary operator. The numeric values are the operator
// codes used by the canonical encoding and must never change.
type OpKind int

const (
	OpOr           OpKind = 0  // ||
	OpAnd          OpKind = 1  // &&
	OpEq           OpKind = 2  // ==
	OpNe           OpKind = 3  // !=
	OpPlus         OpKind = 4  // +
	OpTimes        OpKind = 5  // *
	OpTextAppend   OpKind = 6  // ++
	OpListAppend   OpKind = 7  // #
	OpCombine      OpKind = 8  // ∧
	OpPrefer       OpKind = 9  // ⫽
	OpCombineTypes OpKind = 10 // ⩓
	OpImportAlt    OpKind = 11 // ?
	OpEquiv        OpKind = 12 // ≡
	OpComplete     OpKind = 13 // ::
)

var opSymbols = map[OpKind]string{
	OpOr:           "||",
	OpAnd:          "&&",
	OpEq:           "==",
	OpNe:           "!=",
	OpPlus:         "+",
	OpTimes:        "*",
	OpTextAppend:   "++",
	OpListAppend:   "#",
	OpCombine:      "∧",
	OpPrefer:       "⫽",
	OpCombineTypes: "⩓",
	OpImportAlt:    "?",
	OpEquiv:        "≡",
	OpComplete:     "::",
}

// String returns the operator's Unicode symbol.
func (k OpKind) String() string {
	if s, ok := opSymbols[k]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(k))
}

// Valid reports whether k is a known operator.
func (k OpKind) Valid() bool {
	_, ok := opSymbols[k]
	return ok
}

// Op is a binary operator application.
type Op struct {
	Kind OpKind
	L    Expr
	R    Expr
}

// EmptyList is [] : Type. Type is the full annotation, normally List A.
type EmptyList struct {
	Type Expr
}

// ElementType returns A when the annotation is syntactically List A.
func (e EmptyList) ElementType() (Expr, bool) {
	if app, ok := StripNote(e.Type).(App); ok {
		if b, ok := StripNote(app.Fn).(Builtin); ok && b == List {
			return app.Arg, true
		}
	}
	return nil, false
}

// NonEmptyList is [e1, e2, ...] with at least one element.
type NonEmptyList struct {
	Elems []Expr
}

// Some wraps a present Optional value.
type Some struct {
	Value Expr
}

// Entry is a labelled component of a record type, record literal, or union
// type. In a UnionType a nil Value marks an alternative without payload.
type Entry struct {
	Label string
	Value Expr
}

// RecordType is { a : T, ... }.
type RecordType struct {
	Fields []Entry
}

// RecordLit is { a = v, ... }.
type RecordLit struct {
	Fields []Entry
}

// UnionType is < A : T | B | ... >.
type UnionType struct {
	Fields []Entry
}

// Field selects Label from a record, or a constructor from a union type.
type Field struct {
	Record Expr
	Label  string
}

// Project keeps only the listed labels of a record: r.{ a, b }.
type Project struct {
	Record Expr
	Labels []string
}

// ProjectType projects a record by the labels of a record type: r.(T).
type ProjectType struct {
	Record Expr
	Type   Expr
}

// Merge applies a record of handlers to a union (or Optional) value.
// Annotation is nil when absent.
type Merge struct {
	Handler    Expr
	Union      Expr
	Annotation Expr
}

// ToMap converts a homogeneous record into a List of mapKey/mapValue records.
// Annotation is nil when absent.
type ToMap struct {
	Record     Expr
	Annotation Expr
}

// With updates a (possibly nested) field: r with a.b = v.
type With struct {
	Record Expr
	Path   []string
	Value  Expr
}

// Assert is assert : Annotation, checked by the type-checker.
type Assert struct {
	Annotation Expr
}

// ImportMode selects what an import produces.
type ImportMode int

const (
	// ModeCode parses the fetched content as an expression.
	ModeCode ImportMode = 0
	// ModeRawText uses the fetched content as a Text literal.
	ModeRawText ImportMode = 1
	// ModeLocation produces a value describing where the import points.
	ModeLocation ImportMode = 2
)

// String returns the mode as it would be written after the import.
func (m ImportMode) String() string {
	switch m {
	case ModeCode:
		return "code"
	case ModeRawText:
		return "Text"
	case ModeLocation:
		return "Location"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Import is an unresolved reference to another expression.
// Hash is nil unless the import is pinned.
type Import struct {
	Target Target
	Mode   ImportMode
	Hash   *Hash
}

// String renders the import as it appears in source.
func (i Import) String() string {
	var b strings.Builder
	b.WriteString(i.Target.String())
	if i.Hash != nil {
		b.WriteString(" ")
		b.WriteString(i.Hash.String())
	}
	if i.Mode != ModeCode {
		b.WriteString(" as ")
		b.WriteString(i.Mode.String())
	}
	return b.String()
}

// Note attaches a source position to an expression. Notes carry no meaning:
// equality, normalization, and encoding all look through them.
type Note struct {
	Pos  Pos
	Expr Expr
}

func (Const) isExpr() {}
func (Var) isExpr() {}
func (Lambda) isExpr() {}
func (Pi) isExpr() {}
func (App) isExpr() {}
func (Let) isExpr() {}
func (Annot) isExpr() {}
func (Builtin) isExpr() {}
func (BoolLit) isExpr() {}
func (NaturalLit) isExpr() {}
func (IntegerLit) isExpr() {}
func (DoubleLit) isExpr() {}
func (TextLit) isExpr() {}
func (If) isExpr() {}
func (Op) isExpr() {}
func (EmptyList) isExpr() {}
func (NonEmptyList) isExpr() {}
func (Some) isExpr() {}
func (RecordType) isExpr() {}
func (RecordLit) isExpr() {}
func (UnionType) isExpr() {}
func (Field) isExpr() {}
func (Project) isExpr() {}
func (ProjectType) isExpr() {}
func (Merge) isExpr() {}
func (ToMap) isExpr() {}
func (With) isExpr() {}
func (Assert) isExpr() {}
func (Import) isExpr() {}
func (Note) isExpr() {}

// NewApp builds a left-nested application f a1 a2 ...
func NewApp(fn Expr, args ...Expr) Expr {
	out := fn
	for _, a := range args {
		out = App{Fn: out, Arg: a}
	}
	return out
}

// SpineOf flattens a left-nested application into its head and arguments.
// Notes on the spine are skipped.
func SpineOf(e Expr) (Expr, []Expr) {
	var args []Expr
	e = StripNote(e)
	for {
		app, ok := e.(App)
		if !ok {
			break
		}
		args = append(args, app.Arg)
		e = StripNote(app.Fn)
	}
	slices.Reverse(args)
	return e, args
}

// StripNote removes any Note wrappers at the root of e.
func StripNote(e Expr) Expr {
	for {
		n, ok := e.(Note)
		if !ok {
			return e
		}
		e = n.Expr
	}
}

// PosOf returns the position of the outermost note on e, if any.
func PosOf(e Expr) (Pos, bool) {
	if n, ok := e.(Note); ok {
		return n.Pos, true
	}
	return Pos{}, false
}

// SortEntries returns a copy of fields sorted by label.
func SortEntries(fields []Entry) []Entry {
	out := slices.Clone(fields)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

// LookupEntry finds the entry with the given label.
func LookupEntry(fields []Entry, label string) (Entry, bool) {
	for _, f := range fields {
		if f.Label == label {
			return f, true
		}
	}
	return Entry{}, false
}

// DuplicateLabel returns the first label that appears twice in fields.
func DuplicateLabel(fields []Entry) (string, bool) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.Label]; ok {
			return f.Label, true
		}
		seen[f.Label] = struct{}{}
	}
	return "", false
}
