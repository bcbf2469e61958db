package typecheck

import "github.com/roach88/dhall/internal/ir"

// Context is an immutable stack of (name, type) bindings. The nil *Context is
// the empty context. Extend returns a new context and leaves the receiver
// untouched, so contexts may be shared between branches of a check.
type Context struct {
	parent *Context
	name   string
	typ    ir.Expr
}

// Extend pushes a binding. typ is interpreted in the receiver's scope.
func (c *Context) Extend(name string, typ ir.Expr) *Context {
	return &Context{parent: c, name: name, typ: typ}
}

// Lookup finds the type of name@index, shifted so that it is valid in the
// scope of the whole context.
func (c *Context) Lookup(name string, index int) (ir.Expr, bool) {
	var passed []string
	for cur := c; cur != nil; cur = cur.parent {
		passed = append(passed, cur.name)
		if cur.name != name {
			continue
		}
		if index > 0 {
			index--
			continue
		}
		t := cur.typ
		for i := len(passed) - 1; i >= 0; i-- {
			t = ir.Shift(t, 1, ir.Var{Name: passed[i]})
		}
		return t, true
	}
	return nil, false
}

// Len returns the number of bindings.
func (c *Context) Len() int {
	n := 0
	for cur := c; cur != nil; cur = cur.parent {
		n++
	}
	return n
}
