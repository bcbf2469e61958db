package export

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCodeExport is the code carried by every export failure.
const ErrCodeExport = "EXPORT_ERROR"

// ExportError reports a value that cannot be represented in the target
// format.
type ExportError struct {
	// Path locates the value: record keys and "[i]" list indexes.
	Path []string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", ErrCodeExport, e.Message)
	}
	return fmt.Sprintf("%s: %s (at %s)", ErrCodeExport, e.Message, renderPath(e.Path))
}

// IsExportError returns true if err is or wraps an *ExportError.
func IsExportError(err error) bool {
	var ee *ExportError
	return errors.As(err, &ee)
}

func renderPath(path []string) string {
	var b strings.Builder
	for _, p := range path {
		if !strings.HasPrefix(p, "[") {
			b.WriteByte('.')
		}
		b.WriteString(p)
	}
	return b.String()
}
