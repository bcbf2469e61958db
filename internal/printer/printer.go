// Package printer renders ir expressions back to source text.
//
// Output is re-parseable by the parser package: labels that collide with
// keywords or built-ins are quoted with backticks, and parentheses are added
// wherever precedence requires them. Unicode operators are used throughout.
package printer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/dhall/internal/eval"
	"github.com/roach88/dhall/internal/ir"
)

// Precedence levels, loosest first. Binary operators sit between precExpr and
// precWith in the order the parser climbs them.
const (
	precExpr = iota
	precEquiv
	precImportAlt
	precOr
	precPlus
	precTextAppend
	precListAppend
	precAnd
	precCombine
	precPrefer
	precCombineTypes
	precTimes
	precEq
	precNe
	precWith
	precApp
	precSelector
	precPrimitive
)

var opPrec = map[ir.OpKind]int{
	ir.OpImportAlt:    precImportAlt,
	ir.OpOr:           precOr,
	ir.OpPlus:         precPlus,
	ir.OpTextAppend:   precTextAppend,
	ir.OpListAppend:   precListAppend,
	ir.OpAnd:          precAnd,
	ir.OpCombine:      precCombine,
	ir.OpPrefer:       precPrefer,
	ir.OpCombineTypes: precCombineTypes,
	ir.OpTimes:        precTimes,
	ir.OpEq:           precEq,
	ir.OpNe:           precNe,
	ir.OpEquiv:        precEquiv,
}

// Keywords cannot be used as bare labels.
var keywords = map[string]bool{
	"if": true, "then": true, "else": true, "let": true, "in": true,
	"as": true, "using": true, "merge": true, "missing": true,
	"Infinity": true, "NaN": true, "Some": true, "toMap": true,
	"assert": true, "forall": true, "with": true,
	"True": true, "False": true, "Type": true, "Kind": true, "Sort": true,
}

// Print renders e as source text.
func Print(e ir.Expr) string {
	var p printer
	p.expr(e, precExpr)
	return p.b.String()
}

type printer struct {
	b strings.Builder
}

func (p *printer) write(s string) {
	p.b.WriteString(s)
}

// level returns the precedence at which e is printed without parentheses.
func level(e ir.Expr) int {
	switch x := e.(type) {
	case ir.Note:
		return level(x.Expr)
	case ir.Lambda, ir.Pi, ir.Let, ir.If, ir.Annot, ir.Assert, ir.EmptyList:
		return precExpr
	case ir.Merge:
		if x.Annotation != nil {
			return precExpr
		}
		return precApp
	case ir.ToMap:
		if x.Annotation != nil {
			return precExpr
		}
		return precApp
	case ir.Op:
		if x.Kind == ir.OpComplete {
			return precSelector
		}
		return opPrec[x.Kind]
	case ir.With:
		return precWith
	case ir.App, ir.Some:
		return precApp
	case ir.Field, ir.Project, ir.ProjectType:
		return precSelector
	case ir.IntegerLit:
		return precPrimitive
	case ir.Import:
		if x.Hash != nil || x.Mode != ir.ModeCode {
			return precApp
		}
		return precPrimitive
	}
	return precPrimitive
}

func (p *printer) expr(e ir.Expr, prec int) {
	e = ir.StripNote(e)
	if level(e) < prec {
		p.write("(")
		p.expr(e, precExpr)
		p.write(")")
		return
	}

	switch x := e.(type) {
	case ir.Const:
		p.write(x.String())
	case ir.Builtin:
		p.write(string(x))
	case ir.Var:
		p.write(Label(x.Name))
		if x.Index != 0 {
			p.write("@" + strconv.Itoa(x.Index))
		}
	case ir.BoolLit:
		if x {
			p.write("True")
		} else {
			p.write("False")
		}
	case ir.NaturalLit:
		p.write(strconv.FormatUint(uint64(x), 10))
	case ir.IntegerLit:
		p.write(eval.ShowInteger(int64(x)))
	case ir.DoubleLit:
		p.write(eval.ShowDouble(float64(x)))
	case ir.TextLit:
		p.text(x)
	case ir.Lambda:
		p.write("λ(" + Label(x.Label) + " : ")
		p.expr(x.Type, precExpr)
		p.write(") → ")
		p.expr(x.Body, precExpr)
	case ir.Pi:
		if x.Label == "_" && !ir.FreeIn(ir.Var{Name: "_"}, x.Body) {
			p.expr(x.Type, precEquiv)
			p.write(" → ")
			p.expr(x.Body, precExpr)
			return
		}
		p.write("∀(" + Label(x.Label) + " : ")
		p.expr(x.Type, precExpr)
		p.write(") → ")
		p.expr(x.Body, precExpr)
	case ir.Let:
		p.write("let " + Label(x.Label))
		if x.Annot != nil {
			p.write(" : ")
			p.expr(x.Annot, precExpr)
		}
		p.write(" = ")
		p.expr(x.Value, precExpr)
		p.write(" in ")
		p.expr(x.Body, precExpr)
	case ir.If:
		p.write("if ")
		p.expr(x.Cond, precExpr)
		p.write(" then ")
		p.expr(x.Then, precExpr)
		p.write(" else ")
		p.expr(x.Else, precExpr)
	case ir.Annot:
		p.expr(x.Value, precEquiv)
		p.write(" : ")
		p.expr(x.Type, precExpr)
	case ir.Assert:
		p.write("assert : ")
		p.expr(x.Annotation, precExpr)
	case ir.Op:
		if x.Kind == ir.OpComplete {
			p.expr(x.L, precSelector)
			p.write("::")
			p.expr(x.R, precPrimitive)
			return
		}
		lp := opPrec[x.Kind]
		p.expr(x.L, lp)
		p.write(" " + x.Kind.String() + " ")
		p.expr(x.R, lp+1)
	case ir.App:
		p.expr(x.Fn, precApp)
		p.write(" ")
		p.expr(x.Arg, precSelector)
	case ir.Some:
		p.write("Some ")
		p.expr(x.Value, precSelector)
	case ir.Merge:
		p.write("merge ")
		p.expr(x.Handler, precSelector)
		p.write(" ")
		p.expr(x.Union, precSelector)
		if x.Annotation != nil {
			p.write(" : ")
			p.expr(x.Annotation, precApp)
		}
	case ir.ToMap:
		p.write("toMap ")
		p.expr(x.Record, precSelector)
		if x.Annotation != nil {
			p.write(" : ")
			p.expr(x.Annotation, precApp)
		}
	case ir.EmptyList:
		p.write("[] : ")
		p.expr(x.Type, precApp)
	case ir.NonEmptyList:
		p.write("[ ")
		for i, el := range x.Elems {
			if i > 0 {
				p.write(", ")
			}
			p.expr(el, precExpr)
		}
		p.write(" ]")
	case ir.RecordType:
		p.entries(x.Fields, "{", "}", " : ", ", ", "{}")
	case ir.RecordLit:
		p.entries(x.Fields, "{", "}", " = ", ", ", "{=}")
	case ir.UnionType:
		p.entries(x.Fields, "<", ">", " : ", " | ", "<>")
	case ir.Field:
		p.expr(x.Record, precSelector)
		p.write("." + Label(x.Label))
	case ir.Project:
		p.expr(x.Record, precSelector)
		labels := make([]string, len(x.Labels))
		for i, l := range x.Labels {
			labels[i] = Label(l)
		}
		if len(labels) == 0 {
			p.write(".{}")
			return
		}
		p.write(".{ " + strings.Join(labels, ", ") + " }")
	case ir.ProjectType:
		p.expr(x.Record, precSelector)
		p.write(".(")
		p.expr(x.Type, precExpr)
		p.write(")")
	case ir.With:
		p.expr(x.Record, precSelector)
		path := make([]string, len(x.Path))
		for i, l := range x.Path {
			path[i] = Label(l)
		}
		p.write(" with " + strings.Join(path, ".") + " = ")
		p.expr(x.Value, precEquiv)
	case ir.Import:
		p.write(x.String())
	default:
		p.write(fmt.Sprintf("<%T>", e))
	}
}

func (p *printer) entries(fields []ir.Entry, open, close, sep, delim, empty string) {
	if len(fields) == 0 {
		p.write(empty)
		return
	}
	p.write(open + " ")
	for i, f := range fields {
		if i > 0 {
			p.write(delim)
		}
		p.write(Label(f.Label))
		if f.Value != nil {
			p.write(sep)
			p.expr(f.Value, precExpr)
		}
	}
	p.write(" " + close)
}

func (p *printer) text(t ir.TextLit) {
	p.write(`"`)
	for _, c := range t.Chunks {
		p.write(escapeText(c.Prefix))
		p.write("${")
		p.expr(c.Expr, precExpr)
		p.write("}")
	}
	p.write(escapeText(t.Suffix))
	p.write(`"`)
}

func escapeText(s string) string {
	q := eval.ShowText(s)
	return q[1 : len(q)-1]
}

// Label renders a label, quoting it with backticks when it is not a plain
// identifier or collides with a keyword or built-in.
func Label(s string) string {
	if isPlainLabel(s) {
		return s
	}
	return "`" + s + "`"
}

func isPlainLabel(s string) bool {
	if s == "" || keywords[s] {
		return false
	}
	if _, ok := ir.LookupBuiltin(s); ok {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && (r == '-' || r == '/' || (r >= '0' && r <= '9')):
		default:
			return false
		}
	}
	return true
}
