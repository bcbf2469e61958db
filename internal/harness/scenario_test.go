package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", `
name: test_scenario
description: "Test scenario for validation"
files:
  main.dhall: ./lib.dhall
  lib.dhall: "1"
env:
  HOME: /root
policy:
  allow_remote: false
  allowed_hosts: [example.com]
expect:
  type: Natural
  imports: [./lib.dhall]
`)

	s, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", s.Name)
	assert.Equal(t, "Test scenario for validation", s.Description)
	assert.Equal(t, DefaultEntry, s.Entry)
	assert.Len(t, s.Files, 2)
	assert.Equal(t, "/root", s.Env["HOME"])
	assert.Equal(t, "Natural", s.Expect.Type)
	assert.Equal(t, []string{"./lib.dhall"}, s.Expect.Imports)

	pol := s.Policy.Policy()
	assert.False(t, pol.AllowRemote)
	assert.True(t, pol.AllowEnv)
	assert.True(t, pol.AllowAbsolute)
	assert.Equal(t, []string{"example.com"}, pol.AllowedHosts)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "files: { main.dhall: '1' }\n",
			wantErr: "name is required",
		},
		{
			name:    "name with slash",
			content: "name: a/b\nfiles: { main.dhall: '1' }\n",
			wantErr: "must not contain slashes",
		},
		{
			name:    "missing entry",
			content: "name: x\nentry: other.dhall\nfiles: { main.dhall: '1' }\n",
			wantErr: `entry "other.dhall"`,
		},
		{
			name:    "absolute file",
			content: "name: x\nfiles: { main.dhall: '1', /etc/x.dhall: '2' }\n",
			wantErr: "relative to the scenario root",
		},
		{
			name:    "escaping file",
			content: "name: x\nfiles: { main.dhall: '1', ../x.dhall: '2' }\n",
			wantErr: "relative to the scenario root",
		},
		{
			name:    "unknown same_hash_as",
			content: "name: x\nfiles: { main.dhall: '1' }\nexpect: { same_hash_as: [b.dhall] }\n",
			wantErr: "same_hash_as",
		},
		{
			name:    "error with other expectations",
			content: "name: x\nfiles: { main.dhall: '1' }\nexpect: { error: IMPORT_CYCLE, type: Natural }\n",
			wantErr: "expect.error excludes",
		},
		{
			name:    "unknown field",
			content: "name: x\nfiles: { main.dhall: '1' }\nflow: []\n",
			wantErr: "failed to parse scenario YAML",
		},
		{
			name:    "bad yaml",
			content: "name: [x\n",
			wantErr: "failed to parse scenario YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), "s.yaml", tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "b.yaml", "name: second\nfiles: { main.dhall: '2' }\n")
	writeScenario(t, dir, "a.yaml", "name: first\nfiles: { main.dhall: '1' }\n")
	writeScenario(t, dir, "notes.txt", "ignored")

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarios_DuplicateName(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", "name: same\nfiles: { main.dhall: '1' }\n")
	writeScenario(t, dir, "b.yaml", "name: same\nfiles: { main.dhall: '2' }\n")

	_, err := LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario name "same"`)
}

func TestPolicySpec_NilAllowsEverything(t *testing.T) {
	var p *PolicySpec
	pol := p.Policy()
	assert.True(t, pol.AllowRemote)
	assert.True(t, pol.AllowEnv)
	assert.True(t, pol.AllowAbsolute)
	assert.Empty(t, pol.AllowedHosts)
}
