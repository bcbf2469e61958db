package typecheck

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/printer"
)

// TypeError represents a failure detected while type-checking.
//
// TypeError includes structured fields for diagnostics:
//   - Pos is the location of the innermost annotated sub-expression that failed
//   - Expr is the offending sub-expression
//   - Expected and Actual are normal forms when the failure is a comparison
type TypeError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Pos is the source location, zero if the input carried no notes.
	Pos ir.Pos

	// Expr is the sub-expression being checked when the failure occurred.
	Expr ir.Expr

	// Expected is the type that was required, if any.
	Expected ir.Expr

	// Actual is the type that was found, if any.
	Actual ir.Expr
}

// ErrorCode categorizes type errors.
type ErrorCode string

const (
	ErrCodeUnboundVariable     ErrorCode = "UNBOUND_VARIABLE"
	ErrCodeInvalidInputType    ErrorCode = "INVALID_INPUT_TYPE"
	ErrCodeInvalidOutputType   ErrorCode = "INVALID_OUTPUT_TYPE"
	ErrCodeTypeMismatch        ErrorCode = "TYPE_MISMATCH"
	ErrCodeDuplicateField      ErrorCode = "DUPLICATE_FIELD"
	ErrCodeMissingField        ErrorCode = "MISSING_FIELD"
	ErrCodeNotAFunction        ErrorCode = "NOT_A_FUNCTION"
	ErrCodeNotARecord          ErrorCode = "NOT_A_RECORD"
	ErrCodeNotAUnion           ErrorCode = "NOT_A_UNION"
	ErrCodeInvalidListType     ErrorCode = "INVALID_LIST_TYPE"
	ErrCodeInvalidFieldType    ErrorCode = "INVALID_FIELD_TYPE"
	ErrCodeInvalidBranch       ErrorCode = "INVALID_BRANCH"
	ErrCodeFieldCollision      ErrorCode = "FIELD_COLLISION"
	ErrCodeMissingHandler      ErrorCode = "MISSING_HANDLER"
	ErrCodeUnusedHandler       ErrorCode = "UNUSED_HANDLER"
	ErrCodeHandlerNotAFunction ErrorCode = "HANDLER_NOT_A_FUNCTION"
	ErrCodeDependentHandler    ErrorCode = "DEPENDENT_HANDLER"
	ErrCodeMissingAnnotation   ErrorCode = "MISSING_ANNOTATION"
	ErrCodeAssertionFailed     ErrorCode = "ASSERTION_FAILED"
	ErrCodeNotAnEquivalence    ErrorCode = "NOT_AN_EQUIVALENCE"
	ErrCodeUntyped             ErrorCode = "UNTYPED"
	ErrCodeUnresolvedImport    ErrorCode = "UNRESOLVED_IMPORT"
)

// Error implements the error interface.
func (e *TypeError) Error() string {
	var b strings.Builder
	if !e.Pos.IsZero() {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Expected != nil && e.Actual != nil {
		fmt.Fprintf(&b, " (expected %s, actual %s)", printer.Print(e.Expected), printer.Print(e.Actual))
	}
	return b.String()
}

func newError(code ErrorCode, expr ir.Expr, format string, args ...any) *TypeError {
	return &TypeError{Code: code, Message: fmt.Sprintf(format, args...), Expr: ir.StripNote(expr)}
}

func mismatch(expr, expected, actual ir.Expr, format string, args ...any) *TypeError {
	err := newError(ErrCodeTypeMismatch, expr, format, args...)
	err.Expected = expected
	err.Actual = actual
	return err
}

// CodeOf returns the code of a TypeError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var te *TypeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsTypeError returns true if err wraps a TypeError.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

// IsTypeMismatch returns true if err is a type mismatch.
func IsTypeMismatch(err error) bool {
	return CodeOf(err) == ErrCodeTypeMismatch
}

// IsUnboundVariable returns true if err reports an unbound variable.
func IsUnboundVariable(err error) bool {
	return CodeOf(err) == ErrCodeUnboundVariable
}

// IsMissingField returns true if err reports a missing record field.
func IsMissingField(err error) bool {
	return CodeOf(err) == ErrCodeMissingField
}

// IsDuplicateField returns true if err reports a repeated label.
func IsDuplicateField(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateField
}

// IsInvalidInputType returns true if err reports an invalid input type.
func IsInvalidInputType(err error) bool {
	return CodeOf(err) == ErrCodeInvalidInputType
}
