package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/imports"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, path)

	want := DefaultConfig()
	assert.Equal(t, want.Cache, cfg.Cache)
	assert.Equal(t, want.Log, cfg.Log)
	assert.Equal(t, want.Output, cfg.Output)
	assert.Equal(t, imports.DefaultFetchTimeout, cfg.Imports.Timeout)
	assert.True(t, cfg.Imports.AllowRemote)
	assert.True(t, cfg.Imports.AllowEnv)
	assert.True(t, cfg.Imports.AllowAbsolute)
	assert.Empty(t, cfg.Imports.AllowedHosts)
}

func TestLoad_FromConfigDir(t *testing.T) {
	dir := writeConfig(t, `
imports: {
	timeout: "5s"
	allow_remote: false
	allowed_hosts: ["prelude.dhall-lang.org", "*.example.com"]
}
log: level: "debug"
`)
	cfg, path, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.cue"), path)

	assert.Equal(t, 5*time.Second, cfg.Imports.Timeout)
	assert.False(t, cfg.Imports.AllowRemote)
	assert.True(t, cfg.Imports.AllowEnv, "absent keys keep their defaults")
	assert.Equal(t, []string{"prelude.dhall-lang.org", "*.example.com"}, cfg.Imports.AllowedHosts)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Cache.Enabled)
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := writeConfig(t, `output: format: "json"`)
	file := filepath.Join(dir, "config.cue")

	cfg, path, err := Load(context.Background(), LoadOptions{ConfigFilePath: file})
	require.NoError(t, err)
	assert.Equal(t, file, path)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, _, err := Load(context.Background(), LoadOptions{
		ConfigFilePath: filepath.Join(t.TempDir(), "nope.cue"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad log level", `log: level: "loud"`, "level"},
		{"wrong type", `cache: enabled: "yes"`, "enabled"},
		{"unknown field", `bogus: 1`, "bogus"},
		{"empty timeout", `imports: timeout: ""`, "timeout"},
		{"syntax error", `imports: {`, "invalid configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)
			_, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_BadTimeout(t *testing.T) {
	for _, timeout := range []string{"soon", "-1s", "0s"} {
		t.Run(timeout, func(t *testing.T) {
			dir := writeConfig(t, `imports: timeout: "`+timeout+`"`)
			_, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
			require.Error(t, err)
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, `
imports: timeout: "5s"
cache: enabled: true
`)
	t.Setenv("DHALL_IMPORTS_TIMEOUT", "250ms")
	t.Setenv("DHALL_CACHE_ENABLED", "false")
	t.Setenv("DHALL_IMPORTS_ALLOWED_HOSTS", "a.example,b.example")
	t.Setenv("DHALL_OUTPUT_FORMAT", "json")

	cfg, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Imports.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Imports.AllowedHosts)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	want := DefaultConfig()
	want.Cache.Path = "/var/cache/dhall.db"
	want.Imports.Timeout = 90 * time.Second
	want.Imports.AllowEnv = false
	want.Imports.AllowedHosts = []string{"example.com"}
	want.Log.Level = "info"

	dir := writeConfig(t, GenerateCUE(want))
	got, _, err := Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestImportsConfig_Policy(t *testing.T) {
	c := ImportsConfig{AllowRemote: true, AllowedHosts: []string{"example.com"}}
	assert.Equal(t, imports.Policy{
		AllowRemote:  true,
		AllowedHosts: []string{"example.com"},
	}, c.Policy())

	assert.Equal(t, imports.DefaultPolicy().AllowRemote, DefaultConfig().Imports.Policy().AllowRemote)
}

func TestProvider_Load(t *testing.T) {
	dir := writeConfig(t, `log: level: "error"`)
	cfg, err := NewProvider().Load(context.Background(), LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, AppName, filepath.Base(dir))
}
