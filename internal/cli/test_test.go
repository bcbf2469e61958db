package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: sum
files:
  main.dhall: ./lib.dhall + 1
  lib.dhall: "1"
expect:
  type: Natural
  normal: "2"
`

const failingScenario = `
name: wrong
files:
  main.dhall: "1"
expect:
  normal: "2"
`

func TestTestCommand_MissingArgs(t *testing.T) {
	_, stderr, code := runCLI(t, "", "test")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, stderr, code := runCLI(t, "", "test", "/nonexistent/scenarios")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "scenarios directory not found")
}

func TestTestCommand_Empty(t *testing.T) {
	stdout, _, code := runCLI(t, "", "test", t.TempDir())
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	stdout, _, code := runCLI(t, "", "test", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "✓ arithmetic_import")
	assert.Contains(t, stdout, "0 failed")
}

func TestTestCommand_Failure(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"sum.yaml":   passingScenario,
		"wrong.yaml": failingScenario,
	})

	stdout, _, code := runCLI(t, "", "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✓ sum")
	assert.Contains(t, stdout, "✗ wrong")
	assert.Contains(t, stdout, `normal: expected "2", got "1"`)
	assert.Contains(t, stdout, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"sum.yaml":   passingScenario,
		"wrong.yaml": failingScenario,
	})

	stdout, _, code := runCLI(t, "", "test", dir, "--filter", "s*")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 passed, 0 failed, 1 total")

	_, stderr, code := runCLI(t, "", "test", dir, "--filter", "[")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid filter pattern")
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.yaml": "files: {}\n"})

	stdout, _, code := runCLI(t, "", "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ bad.yaml")
	assert.Contains(t, stdout, "failed to load scenario")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := writeFiles(t, map[string]string{"sum.yaml": passingScenario})

	stdout, _, code := runCLI(t, "", "test", dir, "--update")
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "golden updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "sum.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"normal": "2"`)
	assert.Contains(t, string(golden), `"./lib.dhall"`)

	_, _, code = runCLI(t, "", "test", dir)
	assert.Equal(t, ExitSuccess, code)

	// The expectation still holds but the outcome drifted from the golden file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "sum.golden"), []byte("{}\n"), 0o644))
	stdout, _, code = runCLI(t, "", "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"sum.yaml":   passingScenario,
		"wrong.yaml": failingScenario,
	})

	stdout, _, code := runCLI(t, "", "--format", "json", "test", dir)
	assert.Equal(t, ExitFailure, code)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}
