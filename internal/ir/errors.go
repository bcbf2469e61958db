package ir

import (
	"errors"
	"fmt"
)

// EncodingError reports a failure to encode or decode the canonical binary form.
type EncodingError struct {
	// Code identifies the error category.
	Code EncodingErrorCode

	// Message is a human-readable description.
	Message string
}

// EncodingErrorCode categorizes encoding errors.
type EncodingErrorCode string

const (
	// ErrCodeInvalidEncoding indicates bytes that Encode could not have produced.
	ErrCodeInvalidEncoding EncodingErrorCode = "INVALID_ENCODING"

	// ErrCodeUnsupportedVersion indicates an envelope with an unknown version tag.
	ErrCodeUnsupportedVersion EncodingErrorCode = "UNSUPPORTED_VERSION"

	// ErrCodeNonFiniteDouble indicates a NaN or infinite Double during encoding.
	ErrCodeNonFiniteDouble EncodingErrorCode = "NON_FINITE_DOUBLE"

	// ErrCodeUnencodable indicates an expression the scheme cannot represent,
	// such as a record literal with a repeated label.
	ErrCodeUnencodable EncodingErrorCode = "UNENCODABLE"
)

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalidEncoding(format string, args ...any) *EncodingError {
	return &EncodingError{Code: ErrCodeInvalidEncoding, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidEncoding returns true if err is an invalid encoding error.
func IsInvalidEncoding(err error) bool {
	return hasEncodingCode(err, ErrCodeInvalidEncoding)
}

// IsUnsupportedVersion returns true if err is an unsupported version error.
func IsUnsupportedVersion(err error) bool {
	return hasEncodingCode(err, ErrCodeUnsupportedVersion)
}

// IsNonFiniteDouble returns true if err rejects a NaN or infinite Double.
func IsNonFiniteDouble(err error) bool {
	return hasEncodingCode(err, ErrCodeNonFiniteDouble)
}

func hasEncodingCode(err error, code EncodingErrorCode) bool {
	var ee *EncodingError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
