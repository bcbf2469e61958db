package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/dhall/internal/export"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/typecheck"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Evaluation failure (parse, import, type, or export error)
	ExitCommandError = 2 // Command error (bad flags, unreadable input, cache unavailable)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode returns the diagnostic code carried by err: an import, type,
// parse, encoding, or export code, or "ERROR" when none applies.
func ErrorCode(err error) string {
	if code := imports.CodeOf(err); code != "" {
		return string(code)
	}
	if code := typecheck.CodeOf(err); code != "" {
		return string(code)
	}
	var encErr *ir.EncodingError
	switch {
	case parser.IsParseError(err):
		return "PARSE_ERROR"
	case errors.As(err, &encErr):
		return string(encErr.Code)
	case export.IsExportError(err):
		return export.ErrCodeExport
	}
	return "ERROR"
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
	Explain   bool // attach an Explanation as the details of JSON errors
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status       string    `json:"status"`                  // "ok" or "error"
	Data         any       `json:"data,omitempty"`          // success payload
	Error        *CLIError `json:"error,omitempty"`         // error details
	ResolutionID string    `json:"resolution_id,omitempty"` // correlates with log output
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "TYPE_MISMATCH", "IMPORT_CYCLE", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.GetErrWriter(), "%s %s\n", ErrorStyle.Render("Error:"), message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.GetErrWriter(), "%s %v\n", MutedStyle.Render("Details:"), details)
	}
	return nil
}

// Fail reports err and returns it as an ExitError. In JSON mode the error
// is written to Writer as a response object; in text mode nothing is
// written here, and the caller of Execute prints the returned error.
func (f *OutputFormatter) Fail(code int, err error) error {
	if f.Format == "json" {
		var details any
		if f.Explain {
			details = Explain(err)
		}
		if writeErr := f.Error(ErrorCode(err), err.Error(), details); writeErr != nil {
			return WrapExitError(ExitCommandError, "write output", writeErr)
		}
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(code, "", err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
