// Package parser turns source text into unresolved ir expressions.
//
// The parser is a hand-written recursive descent over the surface syntax:
// Unicode and ASCII operators, line and nested block comments, let chains,
// double-quoted and multi-line text with interpolation, records (including
// punned and dotted fields), unions, lists, and imports with optional
// sha256 pins and "as Text" / "as Location" modes.
//
// Source is normalized to NFC before parsing. Every node the parser builds is
// wrapped in an ir.Note carrying its start position.
package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/dhall/internal/ir"
)

// Parse parses src. name is recorded as the file of every position.
func Parse(src, name string) (expr ir.Expr, err error) {
	p := &parser{scanner: scanner{src: norm.NFC.String(src), file: name, line: 1, col: 1}}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			expr, err = nil, b.err
		}
	}()

	p.ws()
	e := p.expression()
	p.ws()
	if !p.eof() {
		p.fail("unexpected %q after expression", p.peek())
	}
	return e, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for source known to be valid.
func MustParse(src string) ir.Expr {
	e, err := Parse(src, "")
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	scanner
}

func (p *parser) fail(format string, args ...any) {
	panic(bailout{&ParseError{Pos: p.pos(), Message: fmt.Sprintf(format, args...)}})
}

func (p *parser) ws() bool {
	consumed, err := p.skipSpace()
	if err != nil {
		panic(bailout{err.(*ParseError)})
	}
	return consumed
}

func (p *parser) expect(tok string) {
	if !p.accept(tok) {
		p.fail("expected %q", tok)
	}
}

// expectAny consumes the first of the alternatives present.
func (p *parser) expectAny(toks ...string) {
	for _, t := range toks {
		if p.accept(t) {
			return
		}
	}
	p.fail("expected one of %q", toks)
}

func (p *parser) acceptKeyword(kw string) bool {
	if !p.keywordAt(kw) {
		return false
	}
	p.accept(kw)
	return true
}

func (p *parser) expectKeyword(kw string) {
	if !p.acceptKeyword(kw) {
		p.fail("expected keyword %q", kw)
	}
}

func note(pos ir.Pos, e ir.Expr) ir.Expr {
	if _, ok := e.(ir.Note); ok {
		return e
	}
	return ir.Note{Pos: pos, Expr: e}
}

// expression parses the loosest-binding forms.
func (p *parser) expression() ir.Expr {
	pos := p.pos()
	switch {
	case p.has("λ") || p.has(`\`):
		p.expectAny("λ", `\`)
		label, typ := p.binder()
		p.arrow()
		return note(pos, ir.Lambda{Label: label, Type: typ, Body: p.expression()})

	case p.has("∀") || p.keywordAt("forall"):
		if !p.accept("∀") {
			p.expectKeyword("forall")
		}
		label, typ := p.binder()
		p.arrow()
		return note(pos, ir.Pi{Label: label, Type: typ, Body: p.expression()})

	case p.keywordAt("if"):
		p.expectKeyword("if")
		p.ws()
		c := p.expression()
		p.ws()
		p.expectKeyword("then")
		p.ws()
		t := p.expression()
		p.ws()
		p.expectKeyword("else")
		p.ws()
		return note(pos, ir.If{Cond: c, Then: t, Else: p.expression()})

	case p.keywordAt("let"):
		return p.let()

	case p.keywordAt("assert"):
		p.expectKeyword("assert")
		p.ws()
		p.expect(":")
		p.ws()
		return note(pos, ir.Assert{Annotation: p.expression()})
	}

	e := p.operator(0)
	m := p.mark()
	p.ws()
	switch {
	case p.has("→") || p.has("->"):
		p.arrow()
		return note(pos, ir.Pi{Label: "_", Type: e, Body: p.expression()})
	case p.has(":") && !p.has("::"):
		p.expect(":")
		p.ws()
		t := p.expression()
		switch x := ir.StripNote(e).(type) {
		case ir.Merge:
			if x.Annotation == nil {
				x.Annotation = t
				return note(pos, x)
			}
		case ir.ToMap:
			if x.Annotation == nil {
				x.Annotation = t
				return note(pos, x)
			}
		}
		return note(pos, ir.Annot{Value: e, Type: t})
	}
	p.reset(m)
	return e
}

// binder parses "(label : type)" after λ or ∀.
func (p *parser) binder() (string, ir.Expr) {
	p.ws()
	p.expect("(")
	p.ws()
	label := p.label()
	p.ws()
	p.expect(":")
	p.ws()
	typ := p.expression()
	p.ws()
	p.expect(")")
	return label, typ
}

func (p *parser) arrow() {
	p.ws()
	p.expectAny("→", "->")
	p.ws()
}

func (p *parser) let() ir.Expr {
	type binding struct {
		pos          ir.Pos
		label        string
		annot, value ir.Expr
	}
	var bs []binding
	for p.keywordAt("let") {
		b := binding{pos: p.pos()}
		p.expectKeyword("let")
		p.ws()
		b.label = p.label()
		p.ws()
		if p.accept(":") {
			p.ws()
			b.annot = p.expression()
			p.ws()
		}
		p.expect("=")
		p.ws()
		b.value = p.expression()
		p.ws()
		bs = append(bs, b)
	}
	p.expectKeyword("in")
	p.ws()
	body := p.expression()
	for i := len(bs) - 1; i >= 0; i-- {
		body = note(bs[i].pos, ir.Let{Label: bs[i].label, Annot: bs[i].annot, Value: bs[i].value, Body: body})
	}
	return body
}

type opToken struct {
	text string
	kind ir.OpKind
}

// opLevels lists binary operators from loosest to tightest binding.
var opLevels = [][]opToken{
	{{"≡", ir.OpEquiv}, {"===", ir.OpEquiv}},
	{{"?", ir.OpImportAlt}},
	{{"||", ir.OpOr}},
	{{"+", ir.OpPlus}},
	{{"++", ir.OpTextAppend}},
	{{"#", ir.OpListAppend}},
	{{"&&", ir.OpAnd}},
	{{"∧", ir.OpCombine}, {`/\`, ir.OpCombine}},
	{{"⫽", ir.OpPrefer}, {"//", ir.OpPrefer}},
	{{"⩓", ir.OpCombineTypes}, {`//\\`, ir.OpCombineTypes}},
	{{"*", ir.OpTimes}},
	{{"==", ir.OpEq}},
	{{"!=", ir.OpNe}},
}

// allOps holds every operator spelling, longest first, so the scanner always
// matches the longest operator at the cursor.
var allOps = []string{`//\\`, "===", "||", "++", "&&", `/\`, "//", "==", "!=", "?", "+", "#", "*", "∧", "⫽", "⩓", "≡"}

func (p *parser) operatorAt() string {
	for _, op := range allOps {
		if p.has(op) {
			return op
		}
	}
	return ""
}

func (p *parser) operator(level int) ir.Expr {
	if level == len(opLevels) {
		return p.with()
	}
	pos := p.pos()
	left := p.operator(level + 1)
	for {
		m := p.mark()
		p.ws()
		tok := p.operatorAt()
		kind, ok := levelOp(level, tok)
		if !ok {
			p.reset(m)
			return left
		}
		p.accept(tok)
		// "+" and "?" need trailing whitespace so they are not confused with
		// signed literals or other tokens.
		if (tok == "+" || tok == "?") && !p.ws() {
			p.reset(m)
			return left
		}
		p.ws()
		right := p.operator(level + 1)
		left = note(pos, ir.Op{Kind: kind, L: left, R: right})
	}
}

func levelOp(level int, tok string) (ir.OpKind, bool) {
	for _, t := range opLevels[level] {
		if t.text == tok {
			return t.kind, true
		}
	}
	return 0, false
}

// with parses application followed by any number of "with path = value".
func (p *parser) with() ir.Expr {
	pos := p.pos()
	e := p.application()
	for {
		m := p.mark()
		if !p.ws() || !p.keywordAt("with") {
			p.reset(m)
			return e
		}
		p.expectKeyword("with")
		p.ws()
		path := []string{p.label()}
		for p.accept(".") {
			path = append(path, p.label())
		}
		p.ws()
		p.expect("=")
		p.ws()
		value := p.operator(0)
		e = note(pos, ir.With{Record: e, Path: path, Value: value})
	}
}

// stopWords end an application spine.
var stopWords = []string{"then", "else", "in", "as", "with", "using", "let", "if", "merge", "Some", "toMap", "assert", "forall"}

func (p *parser) application() ir.Expr {
	pos := p.pos()
	var e ir.Expr
	switch {
	case p.keywordAt("merge"):
		p.expectKeyword("merge")
		p.ws()
		h := p.importExpr()
		p.ws()
		u := p.importExpr()
		e = note(pos, ir.Merge{Handler: h, Union: u})
	case p.keywordAt("Some"):
		p.expectKeyword("Some")
		p.ws()
		e = note(pos, ir.Some{Value: p.importExpr()})
	case p.keywordAt("toMap"):
		p.expectKeyword("toMap")
		p.ws()
		e = note(pos, ir.ToMap{Record: p.importExpr()})
	default:
		e = p.importExpr()
	}
	for {
		m := p.mark()
		if !p.ws() || !p.startsArgument() {
			p.reset(m)
			return e
		}
		arg := p.importExpr()
		e = note(pos, ir.App{Fn: e, Arg: arg})
	}
}

func (p *parser) startsArgument() bool {
	if p.eof() {
		return false
	}
	for _, w := range stopWords {
		if p.keywordAt(w) {
			return false
		}
	}
	r := p.peek()
	switch {
	case isLabelStart(r), isDigit(r), r == '`', r == '"', r == '{', r == '[', r == '(', r == '<':
		return true
	case r == '\'':
		return p.has("''")
	case r == '+' || r == '-':
		return isDigit(p.peekAt(1)) || p.has("-Infinity")
	case r == '.', r == '~', r == '/':
		return p.startsLocalImport()
	}
	return false
}

func (p *parser) startsLocalImport() bool {
	for _, prefix := range []string{"../", "./", "~/", "/"} {
		if p.has(prefix) {
			next := p.rest()[len(prefix):]
			return next != "" && (next[0] == '"' || isPathChar(rune(next[0])))
		}
	}
	return false
}

func (p *parser) startsImport() bool {
	return p.startsLocalImport() || p.has("https://") || p.has("http://") || p.has("env:") || p.keywordAt("missing")
}

// importExpr parses an import with its optional hash and mode, or a
// completion expression.
func (p *parser) importExpr() ir.Expr {
	if !p.startsImport() {
		return p.completion()
	}
	pos := p.pos()
	imp := ir.Import{Target: p.importTarget()}

	m := p.mark()
	if p.ws() && p.has(ir.HashPrefix) {
		p.accept(ir.HashPrefix)
		start := p.off
		for !p.eof() && strings.ContainsRune("0123456789abcdefABCDEF", p.peek()) {
			p.next()
		}
		h, err := ir.ParseHash(p.src[start:p.off])
		if err != nil {
			p.fail("invalid import hash: %v", err)
		}
		imp.Hash = &h
	} else {
		p.reset(m)
	}

	m = p.mark()
	if p.ws() && p.keywordAt("using") {
		p.fail("custom headers (using) are not supported")
	}
	p.reset(m)

	m = p.mark()
	if p.ws() && p.keywordAt("as") {
		p.expectKeyword("as")
		p.ws()
		switch {
		case p.acceptKeyword("Text"):
			imp.Mode = ir.ModeRawText
		case p.acceptKeyword("Location"):
			imp.Mode = ir.ModeLocation
		default:
			p.fail("expected Text or Location after as")
		}
	} else {
		p.reset(m)
	}
	return note(pos, imp)
}

func (p *parser) importTarget() ir.Target {
	switch {
	case p.acceptKeyword("missing"):
		return ir.MissingTarget()
	case p.has("env:"):
		p.accept("env:")
		if p.peek() == '"' {
			p.next()
			var b strings.Builder
			for !p.eof() && p.peek() != '"' {
				r := p.next()
				if r == '\\' {
					r = p.next()
				}
				b.WriteRune(r)
			}
			p.expect(`"`)
			return ir.EnvTarget(b.String())
		}
		start := p.off
		for first := true; !p.eof() && isEnvChar(p.peek(), first); first = false {
			p.next()
		}
		if p.off == start {
			p.fail("expected an environment variable name")
		}
		return ir.EnvTarget(p.src[start:p.off])
	case p.has("https://") || p.has("http://"):
		start := p.off
		for !p.eof() && isURLChar(p.peek()) {
			p.next()
		}
		return ir.RemoteTarget(p.src[start:p.off])
	}

	var prefix ir.LocalPrefix
	switch {
	case p.accept("../"):
		prefix = ir.PrefixParent
	case p.accept("./"):
		prefix = ir.PrefixHere
	case p.accept("~/"):
		prefix = ir.PrefixHome
	case p.accept("/"):
		prefix = ir.PrefixAbsolute
	default:
		p.fail("expected an import")
	}
	var path []string
	for {
		path = append(path, p.pathComponent())
		if !(p.peek() == '/' && (p.peekAt(1) == '"' || isPathChar(p.peekAt(1)))) {
			break
		}
		p.next()
	}
	return ir.LocalTarget(prefix, path...)
}

func (p *parser) pathComponent() string {
	if p.peek() == '"' {
		p.next()
		start := p.off
		for !p.eof() && p.peek() != '"' {
			p.next()
		}
		s := p.src[start:p.off]
		p.expect(`"`)
		return s
	}
	start := p.off
	for !p.eof() && isPathChar(p.peek()) {
		p.next()
	}
	if p.off == start {
		p.fail("empty path component")
	}
	return p.src[start:p.off]
}

func (p *parser) completion() ir.Expr {
	pos := p.pos()
	e := p.selector()
	if p.accept("::") {
		r := p.selector()
		return note(pos, ir.Op{Kind: ir.OpComplete, L: e, R: r})
	}
	return e
}

func (p *parser) selector() ir.Expr {
	pos := p.pos()
	e := p.primitive()
	for p.peek() == '.' {
		next := p.peekAt(1)
		if !(isLabelStart(next) || next == '`' || next == '{' || next == '(') {
			return e
		}
		p.next()
		switch {
		case p.accept("{"):
			p.ws()
			var labels []string
			p.accept(",")
			p.ws()
			for !p.has("}") {
				labels = append(labels, p.label())
				p.ws()
				if !p.accept(",") {
					break
				}
				p.ws()
			}
			p.expect("}")
			e = note(pos, ir.Project{Record: e, Labels: labels})
		case p.accept("("):
			p.ws()
			t := p.expression()
			p.ws()
			p.expect(")")
			e = note(pos, ir.ProjectType{Record: e, Type: t})
		default:
			e = note(pos, ir.Field{Record: e, Label: p.label()})
		}
	}
	return e
}

func (p *parser) primitive() ir.Expr {
	pos := p.pos()
	r := p.peek()
	switch {
	case r == '"':
		return note(pos, p.textLiteral())
	case p.has("''"):
		return note(pos, p.multilineText())
	case r == '{':
		return note(pos, p.record())
	case r == '<':
		return note(pos, p.union())
	case r == '[':
		return note(pos, p.list())
	case r == '(':
		p.next()
		p.ws()
		e := p.expression()
		p.ws()
		p.expect(")")
		return e
	case isDigit(r), (r == '+' || r == '-') && isDigit(p.peekAt(1)):
		return note(pos, p.number())
	case p.has("-Infinity"):
		p.accept("-Infinity")
		return note(pos, ir.DoubleLit(math.Inf(-1)))
	case isLabelStart(r) || r == '`':
		return note(pos, p.identifier())
	case p.eof():
		p.fail("unexpected end of input")
	}
	p.fail("unexpected %q", r)
	return nil
}

func (p *parser) identifier() ir.Expr {
	quoted := p.peek() == '`'
	name := p.label()
	if !quoted {
		switch name {
		case "True":
			return ir.BoolLit(true)
		case "False":
			return ir.BoolLit(false)
		case "Type":
			return ir.Type
		case "Kind":
			return ir.Kind
		case "Sort":
			return ir.Sort
		case "Infinity":
			return ir.DoubleLit(math.Inf(1))
		case "NaN":
			return ir.DoubleLit(math.NaN())
		}
		if b, ok := ir.LookupBuiltin(name); ok {
			return b
		}
		if reserved[name] {
			p.fail("unexpected keyword %q", name)
		}
	}
	index := 0
	m := p.mark()
	p.ws()
	if p.accept("@") {
		p.ws()
		start := p.off
		for !p.eof() && isDigit(p.peek()) {
			p.next()
		}
		n, err := strconv.Atoi(p.src[start:p.off])
		if err != nil {
			p.fail("invalid variable index")
		}
		index = n
	} else {
		p.reset(m)
	}
	return ir.Var{Name: name, Index: index}
}

// reserved words cannot be used as unquoted variable names.
var reserved = map[string]bool{
	"if": true, "then": true, "else": true, "let": true, "in": true,
	"as": true, "using": true, "merge": true, "missing": true,
	"Some": true, "toMap": true, "assert": true, "forall": true, "with": true,
}

// label parses a plain or backtick-quoted label.
func (p *parser) label() string {
	if p.accept("`") {
		start := p.off
		for !p.eof() && p.peek() != '`' {
			p.next()
		}
		s := p.src[start:p.off]
		p.expect("`")
		return s
	}
	if !isLabelStart(p.peek()) {
		p.fail("expected a label")
	}
	start := p.off
	for !p.eof() && isLabelChar(p.peek()) {
		p.next()
	}
	return p.src[start:p.off]
}

func (p *parser) number() ir.Expr {
	start := p.off
	sign := p.peek()
	signed := sign == '+' || sign == '-'
	if signed {
		p.next()
	}
	if p.has("0x") {
		p.accept("0x")
		hexStart := p.off
		for !p.eof() && strings.ContainsRune("0123456789abcdefABCDEF", p.peek()) {
			p.next()
		}
		n, err := strconv.ParseUint(p.src[hexStart:p.off], 16, 64)
		if err != nil {
			p.fail("invalid hexadecimal literal: %v", err)
		}
		return p.integerOrNatural(signed, sign == '-', n)
	}
	for !p.eof() && isDigit(p.peek()) {
		p.next()
	}
	isDouble := false
	if p.peek() == '.' && isDigit(p.peekAt(1)) {
		isDouble = true
		p.next()
		for !p.eof() && isDigit(p.peek()) {
			p.next()
		}
	}
	if p.peek() == 'e' || p.peek() == 'E' {
		m := p.mark()
		p.next()
		if p.peek() == '+' || p.peek() == '-' {
			p.next()
		}
		if isDigit(p.peek()) {
			isDouble = true
			for !p.eof() && isDigit(p.peek()) {
				p.next()
			}
		} else {
			p.reset(m)
		}
	}
	text := p.src[start:p.off]
	if isDouble {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil && !math.IsInf(f, 0) {
			p.fail("invalid double literal %q", text)
		}
		return ir.DoubleLit(f)
	}
	digits := text
	if signed {
		digits = text[1:]
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		p.fail("numeric literal %q is out of range", text)
	}
	return p.integerOrNatural(signed, sign == '-', n)
}

func (p *parser) integerOrNatural(signed, negative bool, n uint64) ir.Expr {
	if !signed {
		return ir.NaturalLit(n)
	}
	if negative {
		if n > 1<<63 {
			p.fail("integer literal is out of range")
		}
		return ir.IntegerLit(-int64(n - 1) - 1)
	}
	if n > math.MaxInt64 {
		p.fail("integer literal is out of range")
	}
	return ir.IntegerLit(int64(n))
}

func (p *parser) record() ir.Expr {
	p.expect("{")
	p.ws()
	p.accept(",")
	p.ws()
	if p.accept("}") {
		return ir.RecordType{}
	}
	if p.accept("=") {
		p.ws()
		p.accept(",")
		p.ws()
		p.expect("}")
		return ir.RecordLit{}
	}

	var (
		fields  []ir.Entry
		literal bool
		first   = true
	)
	for {
		pos := p.pos()
		path := []string{p.label()}
		p.ws()
		for p.accept(".") {
			p.ws()
			path = append(path, p.label())
			p.ws()
		}
		switch {
		case len(path) == 1 && p.has(":") && !p.has("::"):
			if !first && literal {
				p.fail("record literal mixes = and :")
			}
			p.expect(":")
			p.ws()
			fields = append(fields, ir.Entry{Label: path[0], Value: p.expression()})
		case p.has("="):
			if !first && !literal {
				p.fail("record type mixes : and =")
			}
			literal = true
			p.expect("=")
			p.ws()
			value := p.expression()
			for i := len(path) - 1; i > 0; i-- {
				value = note(pos, ir.RecordLit{Fields: []ir.Entry{{Label: path[i], Value: value}}})
			}
			fields = append(fields, ir.Entry{Label: path[0], Value: value})
		case len(path) == 1 && (first || literal):
			literal = true
			fields = append(fields, ir.Entry{Label: path[0], Value: note(pos, ir.Var{Name: path[0]})})
		default:
			p.fail("expected : or = in record")
		}
		first = false
		p.ws()
		if !p.accept(",") {
			break
		}
		p.ws()
		if p.has("}") {
			break
		}
	}
	p.expect("}")
	if literal {
		return ir.RecordLit{Fields: fields}
	}
	return ir.RecordType{Fields: fields}
}

func (p *parser) union() ir.Expr {
	p.expect("<")
	p.ws()
	p.accept("|")
	p.ws()
	var alts []ir.Entry
	for !p.has(">") {
		label := p.label()
		p.ws()
		alt := ir.Entry{Label: label}
		if p.accept(":") {
			p.ws()
			alt.Value = p.expression()
			p.ws()
		}
		alts = append(alts, alt)
		if !p.accept("|") {
			break
		}
		p.ws()
	}
	p.expect(">")
	return ir.UnionType{Fields: alts}
}

func (p *parser) list() ir.Expr {
	p.expect("[")
	p.ws()
	p.accept(",")
	p.ws()
	if p.accept("]") {
		p.ws()
		if !p.has(":") || p.has("::") {
			p.fail("an empty list requires a type annotation")
		}
		p.expect(":")
		p.ws()
		return ir.EmptyList{Type: p.application()}
	}
	var elems []ir.Expr
	for {
		elems = append(elems, p.expression())
		p.ws()
		if !p.accept(",") {
			break
		}
		p.ws()
		if p.has("]") {
			break
		}
	}
	p.expect("]")
	return ir.NonEmptyList{Elems: elems}
}
