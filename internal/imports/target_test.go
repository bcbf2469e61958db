package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dhall/internal/ir"
)

func TestChain(t *testing.T) {
	here := func(path ...string) ir.Target { return ir.LocalTarget(ir.PrefixHere, path...) }
	parent := func(path ...string) ir.Target { return ir.LocalTarget(ir.PrefixParent, path...) }
	abs := func(path ...string) ir.Target { return ir.LocalTarget(ir.PrefixAbsolute, path...) }

	tests := []struct {
		name   string
		parent ir.Target
		child  ir.Target
		want   string
	}{
		{"here in here", here("a", "b.dhall"), here("c.dhall"), "./a/c.dhall"},
		{"parent in here", here("a", "b.dhall"), parent("c.dhall"), "./c.dhall"},
		{"parent climbs above start", here("b.dhall"), parent("c.dhall"), "../c.dhall"},
		{"parent in parent", parent("b.dhall"), parent("c.dhall"), "../../c.dhall"},
		{"here in absolute", abs("etc", "b.dhall"), here("c.dhall"), "/etc/c.dhall"},
		{"parent in absolute", abs("etc", "x", "b.dhall"), parent("c.dhall"), "/etc/c.dhall"},
		{"absolute is unchanged", here("a", "b.dhall"), abs("etc", "c.dhall"), "/etc/c.dhall"},
		{"home is unchanged", here("a", "b.dhall"), ir.LocalTarget(ir.PrefixHome, "c.dhall"), "~/c.dhall"},
		{"env is unchanged", here("a", "b.dhall"), ir.EnvTarget("HOME"), "env:HOME"},
		{"here in remote", ir.RemoteTarget("https://example.com/pkg/a.dhall"), here("b.dhall"), "https://example.com/pkg/b.dhall"},
		{"parent in remote", ir.RemoteTarget("https://example.com/pkg/a.dhall"), parent("b.dhall"), "https://example.com/b.dhall"},
		{"escaped in remote", ir.RemoteTarget("https://example.com/a.dhall"), here("my file.dhall"), "https://example.com/my%20file.dhall"},
		{"remote in remote", ir.RemoteTarget("https://example.com/a.dhall"), ir.RemoteTarget("https://other.example/b.dhall"), "https://other.example/b.dhall"},
		{"here in env", ir.EnvTarget("X"), here("c.dhall"), "./c.dhall"},
		{"here in missing", ir.MissingTarget(), here("c.dhall"), "./c.dhall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Chain(tt.parent, tt.child)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   ir.Target
		want string
	}{
		{ir.LocalTarget(ir.PrefixHere, "a", ".", "b.dhall"), "./a/b.dhall"},
		{ir.LocalTarget(ir.PrefixHere, "a", "..", "b.dhall"), "./b.dhall"},
		{ir.LocalTarget(ir.PrefixHere, "..", "b.dhall"), "../b.dhall"},
		{ir.LocalTarget(ir.PrefixHere, "..", "..", "b.dhall"), "../../b.dhall"},
		{ir.LocalTarget(ir.PrefixParent, "a", "..", "..", "b.dhall"), "../../b.dhall"},
		{ir.LocalTarget(ir.PrefixAbsolute, "..", "b.dhall"), "/b.dhall"},
		{ir.LocalTarget(ir.PrefixHome, "a", "..", "b.dhall"), "~/b.dhall"},
		{ir.RemoteTarget("https://example.com/./a"), "https://example.com/./a"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in).String())
		})
	}
}

func TestFileOrigin(t *testing.T) {
	assert.Equal(t, "./config/app.dhall", FileOrigin("config/app.dhall").String())
	assert.Equal(t, "./app.dhall", FileOrigin("./app.dhall").String())
	assert.Equal(t, "../app.dhall", FileOrigin("../app.dhall").String())
	assert.Equal(t, "/etc/app.dhall", FileOrigin("/etc/app.dhall").String())
	assert.Equal(t, "./stdin", StdinOrigin().String())
}

func TestIdentity_DistinguishesMode(t *testing.T) {
	target := ir.LocalTarget(ir.PrefixHere, "a.dhall")
	assert.NotEqual(t, identity(target, ir.ModeCode), identity(target, ir.ModeRawText))
	assert.Equal(t, identity(target, ir.ModeCode), identity(ir.LocalTarget(ir.PrefixHere, "a.dhall"), ir.ModeCode))
}

func TestOrigins(t *testing.T) {
	assert.True(t, sameOrigin("https://a.example/x", "https://a.example/y/z"))
	assert.False(t, sameOrigin("https://a.example/x", "http://a.example/x"))
	assert.False(t, sameOrigin("https://a.example/x", "https://a.example:8443/x"))
	assert.Equal(t, "https://a.example:8443", originOf("https://a.example:8443/x?y=1"))
	assert.Equal(t, "a.example", hostOf("https://a.example:8443/x"))
}
