// Package eval implements the normalizer: beta reduction, let elimination,
// built-in reduction, and eta reduction over ir expressions.
//
// Every function in this package is pure. Expressions passed in are never
// mutated, so Normalize may be called concurrently on shared trees.
//
// Two expressions are judgmentally equal when their normal forms are
// alpha-equivalent (JudgmentallyEqual). The type-checker relies on this as
// its only notion of type equality.
package eval
