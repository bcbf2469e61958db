package parser

import (
	"errors"
	"fmt"

	"github.com/roach88/dhall/internal/ir"
)

// ParseError reports malformed source text.
type ParseError struct {
	// Pos is where the parser stopped.
	Pos ir.Pos

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: PARSE_ERROR: %s", e.Pos, e.Message)
}

// IsParseError returns true if err wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// bailout carries a ParseError up through the recursive descent; Parse
// recovers it at the top.
type bailout struct {
	err *ParseError
}
