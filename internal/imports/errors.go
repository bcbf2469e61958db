package imports

import (
	"errors"
	"fmt"
	"strings"
)

// ImportError represents a failure while resolving an import.
//
// ImportError includes structured fields for diagnostics and recovery:
//   - Target is the import that failed, rendered as in source
//   - Chain is the import stack at the time of failure, outermost first
//   - Retryable marks transient I/O failures (timeouts, refused connections)
//   - Nested is set once the error has propagated out of another import
type ImportError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Target is the import being resolved.
	Target string

	// Chain lists the enclosing imports, outermost first.
	Chain []string

	// Retryable is true for failures a caller may reasonably retry.
	Retryable bool

	// Nested is true when the failure happened beneath another import
	// rather than at the import a fallback wraps directly.
	Nested bool

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes import errors.
type ErrorCode string

const (
	// ErrCodeImportCycle indicates an import (transitively) imports itself.
	ErrCodeImportCycle ErrorCode = "IMPORT_CYCLE"

	// ErrCodeHashMismatch indicates pinned content hashed to a different value.
	ErrCodeHashMismatch ErrorCode = "HASH_MISMATCH"

	// ErrCodeSecurityViolation indicates an import the origin may not reference.
	ErrCodeSecurityViolation ErrorCode = "IMPORT_SECURITY_VIOLATION"

	// ErrCodeImportFailure indicates the content could not be read, parsed,
	// or type-checked.
	ErrCodeImportFailure ErrorCode = "IMPORT_FAILURE"
)

// Error implements the error interface.
func (e *ImportError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Target != "" {
		fmt.Fprintf(&b, " (import=%s)", e.Target)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Chain, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *ImportError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error must never be recovered by a fallback.
// Only hash mismatches and security violations are fatal.
func (e *ImportError) Fatal() bool {
	return e.Code == ErrCodeHashMismatch || e.Code == ErrCodeSecurityViolation
}

// CodeOf returns the code of the outermost ImportError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

// IsImportCycle returns true if err reports an import cycle.
func IsImportCycle(err error) bool {
	return hasCode(err, ErrCodeImportCycle)
}

// IsHashMismatch returns true if err reports a pinned hash mismatch.
func IsHashMismatch(err error) bool {
	return hasCode(err, ErrCodeHashMismatch)
}

// IsSecurityViolation returns true if err reports a forbidden import.
func IsSecurityViolation(err error) bool {
	return hasCode(err, ErrCodeSecurityViolation)
}

// IsImportFailure returns true if err reports a fetch, parse, or check failure.
func IsImportFailure(err error) bool {
	return hasCode(err, ErrCodeImportFailure)
}

// IsRetryable returns true if any ImportError in err's chain is retryable.
func IsRetryable(err error) bool {
	for err != nil {
		var ie *ImportError
		if !errors.As(err, &ie) {
			return false
		}
		if ie.Retryable {
			return true
		}
		err = ie.Err
	}
	return false
}

// hasCode walks every ImportError in the chain, so a cycle detected three
// imports deep is still reported as a cycle at the top.
func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var ie *ImportError
		if !errors.As(err, &ie) {
			return false
		}
		if ie.Code == code {
			return true
		}
		err = ie.Err
	}
	return false
}

// fatalBeneath reports whether err carries a fatal ImportError that was
// raised beneath another import. Fallbacks propagate such errors.
func fatalBeneath(err error) bool {
	for err != nil {
		var ie *ImportError
		if !errors.As(err, &ie) {
			return false
		}
		if ie.Fatal() && ie.Nested {
			return true
		}
		err = ie.Err
	}
	return false
}
