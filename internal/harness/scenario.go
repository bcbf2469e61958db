package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dhall/internal/imports"
)

// DefaultEntry is the document evaluated when a scenario names none.
const DefaultEntry = "main.dhall"

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entry is the file to evaluate, relative to the scenario root.
	Entry string `yaml:"entry,omitempty"`

	// Files maps relative paths to document sources.
	Files map[string]string `yaml:"files"`

	// Env is the complete environment seen by env: imports.
	Env map[string]string `yaml:"env,omitempty"`

	// Remote maps URLs to the documents served for them.
	Remote map[string]RemoteDoc `yaml:"remote,omitempty"`

	// Policy restricts imports. Nil allows every import.
	Policy *PolicySpec `yaml:"policy,omitempty"`

	// Expect is the expected outcome.
	Expect Expect `yaml:"expect"`
}

// RemoteDoc is a document served for a remote import.
type RemoteDoc struct {
	Body string `yaml:"body"`

	// CORS is sent as Access-Control-Allow-Origin when non-empty.
	CORS string `yaml:"cors,omitempty"`

	// Status is an HTTP status code to fail with instead of serving Body.
	Status int `yaml:"status,omitempty"`
}

// PolicySpec is the YAML form of imports.Policy. Unset fields allow.
type PolicySpec struct {
	AllowRemote   *bool    `yaml:"allow_remote,omitempty"`
	AllowEnv      *bool    `yaml:"allow_env,omitempty"`
	AllowAbsolute *bool    `yaml:"allow_absolute,omitempty"`
	AllowedHosts  []string `yaml:"allowed_hosts,omitempty"`
}

// Policy converts the scenario policy into an imports.Policy.
func (p *PolicySpec) Policy() imports.Policy {
	pol := imports.DefaultPolicy()
	if p == nil {
		return pol
	}
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&pol.AllowRemote, p.AllowRemote)
	set(&pol.AllowEnv, p.AllowEnv)
	set(&pol.AllowAbsolute, p.AllowAbsolute)
	pol.AllowedHosts = p.AllowedHosts
	return pol
}

// Expect specifies the expected outcome. Empty fields are not checked.
type Expect struct {
	// Type is the printed type of the document.
	Type string `yaml:"type,omitempty"`

	// Normal is the printed normal form.
	Normal string `yaml:"normal,omitempty"`

	// JSON is the compact JSON export of the normal form.
	JSON string `yaml:"json,omitempty"`

	// Imports lists the resolved imports in resolution order, written as
	// the target followed by " as Text" or " as Location" for those modes.
	Imports []string `yaml:"imports,omitempty"`

	// SameHashAs lists other files whose semantic hash must equal the
	// entry's.
	SameHashAs []string `yaml:"same_hash_as,omitempty"`

	// Error is the expected error code. When set, evaluation must fail
	// and no other field may be set.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario loads and validates a scenario from a YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	seen := make(map[string]string)
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[s.Name]; ok {
			return nil, fmt.Errorf("scenario name %q used by both %s and %s", s.Name, prev, p)
		}
		seen[s.Name] = p
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Validate checks that the scenario is well formed and fills in defaults.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.ContainsAny(s.Name, `/\ `) {
		return fmt.Errorf("name %q must not contain slashes or spaces", s.Name)
	}
	if s.Entry == "" {
		s.Entry = DefaultEntry
	}
	for name := range s.Files {
		if filepath.IsAbs(name) || strings.HasPrefix(filepath.Clean(name), "..") {
			return fmt.Errorf("file %q must be relative to the scenario root", name)
		}
	}
	if _, ok := s.Files[s.Entry]; !ok {
		return fmt.Errorf("entry %q is not among the scenario files", s.Entry)
	}
	for _, other := range s.Expect.SameHashAs {
		if _, ok := s.Files[other]; !ok {
			return fmt.Errorf("same_hash_as file %q is not among the scenario files", other)
		}
	}

	e := s.Expect
	if e.Error != "" && (e.Type != "" || e.Normal != "" || e.JSON != "" || len(e.Imports) > 0 || len(e.SameHashAs) > 0) {
		return fmt.Errorf("expect.error excludes every other expectation")
	}
	return nil
}
