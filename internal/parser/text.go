package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/dhall/internal/ir"
)

// interpolation marks where an interpolated expression sits inside the raw
// body of a multi-line literal while it is being dedented. Control
// characters other than tab and newline are rejected in literals, so the
// marker cannot collide with source text.
const interpolation = '\x00'

type textBuilder struct {
	chunks []ir.Chunk
	buf    strings.Builder
}

func (b *textBuilder) interpolate(e ir.Expr) {
	b.chunks = append(b.chunks, ir.Chunk{Prefix: b.buf.String(), Expr: e})
	b.buf.Reset()
}

func (b *textBuilder) text() ir.TextLit {
	return ir.TextLit{Chunks: b.chunks, Suffix: b.buf.String()}
}

// interpolated parses "${ expr }" after the "${" has been consumed.
func (p *parser) interpolated() ir.Expr {
	p.ws()
	e := p.expression()
	p.ws()
	p.expect("}")
	return e
}

func (p *parser) textLiteral() ir.TextLit {
	p.expect(`"`)
	var b textBuilder
	for {
		if p.eof() {
			p.fail("unterminated text literal")
		}
		switch {
		case p.accept(`"`):
			return b.text()
		case p.accept("${"):
			b.interpolate(p.interpolated())
		case p.peek() == '\\':
			b.buf.WriteRune(p.escape())
		default:
			r := p.peek()
			if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
				p.fail("control character %U in text literal", r)
			}
			b.buf.WriteRune(p.next())
		}
	}
}

func (p *parser) escape() rune {
	p.expect(`\`)
	r := p.next()
	switch r {
	case '"', '$', '\\', '/':
		return r
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'u':
		var digits string
		if p.accept("{") {
			start := p.off
			for !p.eof() && p.peek() != '}' {
				p.next()
			}
			digits = p.src[start:p.off]
			p.expect("}")
		} else {
			start := p.off
			for range 4 {
				p.next()
			}
			digits = p.src[start:p.off]
		}
		n, err := strconv.ParseUint(digits, 16, 32)
		if err != nil || n > utf8.MaxRune || (n >= 0xD800 && n <= 0xDFFF) {
			p.fail("invalid unicode escape %q", digits)
		}
		return rune(n)
	}
	p.fail("invalid escape sequence \\%c", r)
	return 0
}

// multilineText parses a '' literal. The opening quotes must be followed by
// a newline; the common indentation of the non-blank lines (and the line
// holding the closing quotes) is stripped.
func (p *parser) multilineText() ir.TextLit {
	p.expect("''")
	if !p.accept("\n") && !p.accept("\r\n") {
		p.fail("a multi-line literal must start with a newline")
	}
	var (
		raw   strings.Builder
		exprs []ir.Expr
	)
	for {
		if p.eof() {
			p.fail("unterminated multi-line literal")
		}
		switch {
		case p.accept("'''"):
			raw.WriteString("''")
		case p.accept("''${"):
			raw.WriteString("${")
		case p.accept("''"):
			return splitInterpolations(dedent(raw.String()), exprs)
		case p.accept("${"):
			exprs = append(exprs, p.interpolated())
			raw.WriteRune(interpolation)
		case p.accept("\r\n"):
			raw.WriteByte('\n')
		default:
			r := p.peek()
			if r < 0x20 && r != '\t' && r != '\n' {
				p.fail("control character %U in multi-line literal", r)
			}
			raw.WriteRune(p.next())
		}
	}
}

// dedent strips the longest whitespace prefix shared by every line that has
// content. The final line always counts, even when it is blank.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	prefix := ""
	found := false
	for i, line := range lines {
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if indent == line && i != len(lines)-1 {
			continue
		}
		if !found {
			prefix, found = indent, true
			continue
		}
		prefix = commonPrefix(prefix, indent)
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := range n {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}

func splitInterpolations(s string, exprs []ir.Expr) ir.TextLit {
	parts := strings.Split(s, string(interpolation))
	var b textBuilder
	for i, part := range parts {
		b.buf.WriteString(part)
		if i < len(exprs) {
			b.interpolate(exprs[i])
		}
	}
	return b.text()
}
