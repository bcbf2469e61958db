package imports

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dhall/internal/ir"
)

// Policy is the sandbox applied to every import after chaining. The zero
// Policy allows only relative local imports; DefaultPolicy allows everything.
type Policy struct {
	// AllowRemote permits http(s) imports.
	AllowRemote bool

	// AllowEnv permits env: imports.
	AllowEnv bool

	// AllowAbsolute permits absolute (/...) and home-relative (~/...) paths.
	AllowAbsolute bool

	// AllowedHosts restricts remote imports to these hosts. Empty means any
	// host. A leading "*." matches any subdomain.
	AllowedHosts []string
}

// DefaultPolicy permits every kind of import.
func DefaultPolicy() Policy {
	return Policy{AllowRemote: true, AllowEnv: true, AllowAbsolute: true}
}

// Check returns an error describing why t is not allowed, or nil.
func (p Policy) Check(t ir.Target) error {
	switch t.Kind {
	case ir.TargetRemote:
		if !p.AllowRemote {
			return fmt.Errorf("remote imports are disabled")
		}
		if len(p.AllowedHosts) > 0 && !p.hostAllowed(hostOf(t.URL)) {
			return fmt.Errorf("host %q is not in the allowed host list", hostOf(t.URL))
		}
	case ir.TargetEnv:
		if !p.AllowEnv {
			return fmt.Errorf("environment imports are disabled")
		}
	case ir.TargetLocal:
		if !p.AllowAbsolute && (t.Prefix == ir.PrefixAbsolute || t.Prefix == ir.PrefixHome) {
			return fmt.Errorf("absolute and home-relative paths are disabled")
		}
	}
	return nil
}

func (p Policy) hostAllowed(host string) bool {
	return slices.ContainsFunc(p.AllowedHosts, func(allowed string) bool {
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			return strings.HasSuffix(host, "."+suffix)
		}
		return strings.EqualFold(host, allowed)
	})
}

// referentialCheck enforces that remote documents stay referentially
// transparent: they may import other remote documents and missing, but never
// local files or environment variables.
func referentialCheck(parent, child ir.Target) error {
	if parent.Kind != ir.TargetRemote {
		return nil
	}
	switch child.Kind {
	case ir.TargetLocal:
		return fmt.Errorf("remote document %s may not import local file %s", parent.URL, child)
	case ir.TargetEnv:
		return fmt.Errorf("remote document %s may not import environment variable %s", parent.URL, child.Name)
	}
	return nil
}

// corsCheck enforces that a cross-origin remote import was granted by the
// serving host through Access-Control-Allow-Origin.
func corsCheck(parent ir.Target, childURL string, resp *Response) error {
	if parent.Kind != ir.TargetRemote || sameOrigin(parent.URL, childURL) {
		return nil
	}
	allow := ""
	if resp != nil && resp.Header != nil {
		allow = strings.TrimSpace(resp.Header.Get("Access-Control-Allow-Origin"))
	}
	switch allow {
	case "*", originOf(parent.URL):
		return nil
	case "":
		return fmt.Errorf("%s does not grant cross-origin access to %s", childURL, originOf(parent.URL))
	}
	return fmt.Errorf("%s grants cross-origin access to %q, not %s", childURL, allow, originOf(parent.URL))
}
