package eval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/dhall/internal/ir"
)

// normalizeText normalizes interpolations and splices nested literals so the
// result never interpolates a text literal. "${x}" reduces to x.
func normalizeText(t ir.TextLit) ir.Expr {
	var (
		out []ir.Chunk
		buf strings.Builder
	)
	for _, c := range t.Chunks {
		buf.WriteString(c.Prefix)
		n := Normalize(c.Expr)
		inner, ok := n.(ir.TextLit)
		if !ok {
			out = append(out, ir.Chunk{Prefix: buf.String(), Expr: n})
			buf.Reset()
			continue
		}
		for _, ic := range inner.Chunks {
			buf.WriteString(ic.Prefix)
			out = append(out, ir.Chunk{Prefix: buf.String(), Expr: ic.Expr})
			buf.Reset()
		}
		buf.WriteString(inner.Suffix)
	}
	buf.WriteString(t.Suffix)

	if len(out) == 1 && out[0].Prefix == "" && buf.Len() == 0 {
		return out[0].Expr
	}
	return ir.TextLit{Chunks: out, Suffix: buf.String()}
}

// ShowText renders s as a quoted, escaped text literal, the result of Text/show.
func ShowText(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '$':
			b.WriteString(`\u0024`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ShowDouble renders f the way Double/show does: always with a fractional
// part or an exponent, and NaN/Infinity/-Infinity for non-finite values.
func ShowDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 0.1 && abs < 1e7) {
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	if !strings.Contains(mantissa, ".") {
		mantissa += ".0"
	}
	sign := ""
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(exp, "+-")
	exp = strings.TrimLeft(exp, "0")
	if exp == "" {
		exp = "0"
	}
	return mantissa + "e" + sign + exp
}

// ShowInteger renders n with an explicit sign, the result of Integer/show.
func ShowInteger(n int64) string {
	if n >= 0 {
		return "+" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

// replaceText implements Text/replace on a plain needle and haystack. The
// replacement may contain interpolations.
func replaceText(needle string, replacement ir.Expr, haystack string) ir.Expr {
	parts := strings.Split(haystack, needle)
	if rt, ok := replacement.(ir.TextLit); ok && rt.IsPlain() {
		return ir.PlainText(strings.Join(parts, rt.Suffix))
	}
	t := ir.TextLit{Suffix: parts[len(parts)-1]}
	for _, p := range parts[:len(parts)-1] {
		t.Chunks = append(t.Chunks, ir.Chunk{Prefix: p, Expr: replacement})
	}
	return t
}
