package ir

import (
	"slices"
	"strings"
)

// TargetKind classifies where an import points.
type TargetKind int

const (
	TargetLocal TargetKind = iota
	TargetRemote
	TargetEnv
	TargetMissing
)

// String returns a short lower-case name used in logs and metrics labels.
func (k TargetKind) String() string {
	switch k {
	case TargetLocal:
		return "local"
	case TargetRemote:
		return "remote"
	case TargetEnv:
		return "env"
	case TargetMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// LocalPrefix is the anchor of a local path.
type LocalPrefix int

const (
	PrefixAbsolute LocalPrefix = iota // /
	PrefixHere                        // ./
	PrefixParent                      // ../
	PrefixHome                        // ~/
)

var prefixText = [...]string{"/", "./", "../", "~/"}

// Target is the source of an import.
//
// For TargetLocal, Prefix and Path (directory components followed by the file
// name) are set. For TargetRemote, URL holds the absolute http(s) URL. For
// TargetEnv, Name holds the variable name. TargetMissing has no fields.
type Target struct {
	Kind   TargetKind
	Prefix LocalPrefix
	Path   []string
	URL    string
	Name   string
}

// LocalTarget builds a local target.
func LocalTarget(prefix LocalPrefix, path ...string) Target {
	return Target{Kind: TargetLocal, Prefix: prefix, Path: path}
}

// RemoteTarget builds a remote target.
func RemoteTarget(url string) Target {
	return Target{Kind: TargetRemote, URL: url}
}

// EnvTarget builds an environment variable target.
func EnvTarget(name string) Target {
	return Target{Kind: TargetEnv, Name: name}
}

// MissingTarget is the target that never resolves.
func MissingTarget() Target {
	return Target{Kind: TargetMissing}
}

// String renders the target as it is written in source.
func (t Target) String() string {
	switch t.Kind {
	case TargetLocal:
		p := "./"
		if int(t.Prefix) >= 0 && int(t.Prefix) < len(prefixText) {
			p = prefixText[t.Prefix]
		}
		return p + strings.Join(t.Path, "/")
	case TargetRemote:
		return t.URL
	case TargetEnv:
		return "env:" + t.Name
	case TargetMissing:
		return "missing"
	default:
		return "<invalid import>"
	}
}

// Equal reports whether two targets denote the same location.
func (t Target) Equal(o Target) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TargetLocal:
		return t.Prefix == o.Prefix && slices.Equal(t.Path, o.Path)
	case TargetRemote:
		return t.URL == o.URL
	case TargetEnv:
		return t.Name == o.Name
	default:
		return true
	}
}
