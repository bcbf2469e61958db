package imports

import (
	"fmt"
	"net/url"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/dhall/internal/ir"
)

// Chain resolves child relative to the target of the document that
// imports it. Relative local imports inside a local document are joined to
// the document's directory; relative local imports inside a remote document
// become remote URLs resolved against the document's URL. Every other
// target is already absolute and is returned canonicalized.
func Chain(parent, child ir.Target) (ir.Target, error) {
	if child.Kind != ir.TargetLocal || (child.Prefix != ir.PrefixHere && child.Prefix != ir.PrefixParent) {
		return Canonicalize(child), nil
	}

	switch parent.Kind {
	case ir.TargetLocal:
		dir := slices.Clone(parent.Path)
		if len(dir) > 0 {
			dir = dir[:len(dir)-1]
		}
		if child.Prefix == ir.PrefixParent {
			dir = append(dir, "..")
		}
		return Canonicalize(ir.Target{Kind: ir.TargetLocal, Prefix: parent.Prefix, Path: append(dir, child.Path...)}), nil

	case ir.TargetRemote:
		base, err := url.Parse(parent.URL)
		if err != nil {
			return ir.Target{}, fmt.Errorf("Chain: parse %q: %w", parent.URL, err)
		}
		rel := strings.Join(escapeSegments(child.Path), "/")
		if child.Prefix == ir.PrefixParent {
			rel = "../" + rel
		} else {
			rel = "./" + rel
		}
		ref, err := url.Parse(rel)
		if err != nil {
			return ir.Target{}, fmt.Errorf("Chain: parse %q: %w", rel, err)
		}
		return ir.RemoteTarget(base.ResolveReference(ref).String()), nil
	}

	// Environment and missing documents have no directory; relative imports
	// stay relative to the working directory.
	return Canonicalize(child), nil
}

func escapeSegments(path []string) []string {
	out := make([]string, len(path))
	for i, p := range path {
		out[i] = url.PathEscape(p)
	}
	return out
}

// Canonicalize removes "." components and folds ".." into the preceding
// component where possible. A here-relative path that climbs above its start
// becomes parent-relative; absolute and home paths cannot climb above their
// root.
func Canonicalize(t ir.Target) ir.Target {
	if t.Kind != ir.TargetLocal {
		return t
	}
	var out []string
	prefix := t.Prefix
	if prefix == ir.PrefixParent {
		out = append(out, "..")
	}
	for _, c := range t.Path {
		switch {
		case c == "." || c == "":
		case c == ".." && len(out) > 0 && out[len(out)-1] != "..":
			out = out[:len(out)-1]
		case c == ".." && (prefix == ir.PrefixAbsolute || prefix == ir.PrefixHome):
		default:
			out = append(out, c)
		}
	}
	if prefix == ir.PrefixHere || prefix == ir.PrefixParent {
		prefix = ir.PrefixHere
		if len(out) > 0 && out[0] == ".." {
			prefix = ir.PrefixParent
			out = out[1:]
		}
	}
	return ir.Target{Kind: ir.TargetLocal, Prefix: prefix, Path: out}
}

// FileOrigin returns the target for a document read from path, suitable as
// the origin of Resolve. Relative paths stay relative to the working
// directory.
func FileOrigin(path string) ir.Target {
	slashed := filepath.ToSlash(filepath.Clean(path))
	if filepath.IsAbs(path) {
		return Canonicalize(ir.LocalTarget(ir.PrefixAbsolute, strings.Split(strings.TrimPrefix(slashed, "/"), "/")...))
	}
	return Canonicalize(ir.LocalTarget(ir.PrefixHere, strings.Split(slashed, "/")...))
}

// StdinOrigin is the origin of a document read from standard input: a file
// named "stdin" in the working directory.
func StdinOrigin() ir.Target {
	return ir.LocalTarget(ir.PrefixHere, "stdin")
}

// sameOrigin reports whether two remote URLs share scheme, host, and port.
func sameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host
}

// originOf renders the scheme://host[:port] of a URL as it appears in an
// Access-Control-Allow-Origin header.
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// hostOf returns the host (without port) of a URL.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// locationType is < Environment : Text | Local : Text | Missing | Remote : Text >.
var locationType = ir.UnionType{Fields: []ir.Entry{
	{Label: "Environment", Value: ir.Text},
	{Label: "Local", Value: ir.Text},
	{Label: "Missing"},
	{Label: "Remote", Value: ir.Text},
}}

// Location renders a chained target as the value of an "as Location" import.
func Location(t ir.Target) ir.Expr {
	switch t.Kind {
	case ir.TargetLocal:
		return ir.App{Fn: ir.Field{Record: locationType, Label: "Local"}, Arg: ir.PlainText(t.String())}
	case ir.TargetRemote:
		return ir.App{Fn: ir.Field{Record: locationType, Label: "Remote"}, Arg: ir.PlainText(t.URL)}
	case ir.TargetEnv:
		return ir.App{Fn: ir.Field{Record: locationType, Label: "Environment"}, Arg: ir.PlainText(t.Name)}
	}
	return ir.Field{Record: locationType, Label: "Missing"}
}

// identity keys an import for cycle detection and deduplication. The same
// target imported in two modes is two different imports.
func identity(t ir.Target, mode ir.ImportMode) string {
	return t.Kind.String() + ":" + t.String() + "#" + mode.String()
}
