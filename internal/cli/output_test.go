package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/export"
	"github.com/roach88/dhall/internal/imports"
	"github.com/roach88/dhall/internal/ir"
	"github.com/roach88/dhall/internal/parser"
	"github.com/roach88/dhall/internal/typecheck"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"expr": "1"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("TYPE_MISMATCH", "wrong type", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TYPE_MISMATCH", resp.Error.Code)
	assert.Equal(t, "wrong type", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("Natural"))
	assert.Equal(t, "Natural\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	require.NoError(t, formatter.Error("IMPORT_CYCLE", "cycle detected", "a -> b -> a"))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "cycle detected")
	assert.Contains(t, errOut.String(), "Details:")
}

func TestOutputFormatter_Fail(t *testing.T) {
	cause := &typecheck.TypeError{Code: typecheck.ErrCodeTypeMismatch, Message: "boom"}

	t.Run("json writes a response", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}

		err := formatter.Fail(ExitFailure, cause)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp CLIResponse
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "TYPE_MISMATCH", resp.Error.Code)
	})

	t.Run("text writes nothing", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "text", Writer: buf}

		err := formatter.Fail(ExitFailure, cause)
		assert.Empty(t, buf.String())
		assert.True(t, errors.Is(err, cause))
	})

	t.Run("keeps an existing exit code", func(t *testing.T) {
		formatter := &OutputFormatter{Format: "text", Writer: &bytes.Buffer{}}
		err := formatter.Fail(ExitFailure, NewExitError(ExitCommandError, "no such file"))
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("resolving %s", "main.dhall")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "resolving main.dhall")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")

	assert.Equal(t, "write: disk full", WrapExitError(ExitCommandError, "write", cause).Error())
	assert.Equal(t, "disk full", WrapExitError(ExitCommandError, "", cause).Error())
	assert.Equal(t, "bad flag", NewExitError(ExitCommandError, "bad flag").Error())

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "", cause))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
	assert.Equal(t, ExitFailure, GetExitCode(cause))
	assert.ErrorIs(t, wrapped, cause)
}

func TestErrorCode(t *testing.T) {
	_, parseErr := parser.Parse("{ a = ", "bad.dhall")
	require.Error(t, parseErr)

	_, encErr := ir.Decode([]byte{0xff})
	require.Error(t, encErr)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"import", &imports.ImportError{Code: imports.ErrCodeImportCycle}, "IMPORT_CYCLE"},
		{"type", fmt.Errorf("main.dhall: %w", &typecheck.TypeError{Code: typecheck.ErrCodeUnboundVariable}), "UNBOUND_VARIABLE"},
		{"parse", parseErr, "PARSE_ERROR"},
		{"encoding", encErr, "INVALID_ENCODING"},
		{"export", &export.ExportError{Message: "function"}, "EXPORT_ERROR"},
		{"other", errors.New("boom"), "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}
