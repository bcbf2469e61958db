// Package ir provides the expression tree for the configuration language and
// the pure operations every other package builds on.
//
// This package contains the AST, de Bruijn binding operations (shift,
// substitution, instantiation), alpha-normalization and structural equality,
// and the canonical binary encoding used for semantic hashing. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Expressions are immutable after construction; sub-trees are shared, never copied
//   - Every operation is total and side-effect free
//   - Variables are named de Bruijn references: x@n is the n-th enclosing binder named x
//   - Records and unions keep source order; normal forms are sorted by label
package ir
