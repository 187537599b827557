// Package scenario describes shape graphs in YAML and runs the call
// optimization analyzer over them.
//
// A scenario declares realms, function templates, functions, objects and
// analysis targets, then lists checks (holder lookup and receiver
// compatibility for a target against a receiver) and loads (accessor reads
// through an inline cache site). Each check and load may carry expectations;
// mismatches are collected in the report.
package scenario

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is the decoded form of a scenario file.
type Scenario struct {
	// Name defaults to the file name for scenarios read with Load.
	Name string `yaml:"name,omitempty"`

	Realms    []RealmSpec    `yaml:"realms"`
	Templates []TemplateSpec `yaml:"templates,omitempty"`
	Functions []FunctionSpec `yaml:"functions,omitempty"`
	Objects   []ObjectSpec   `yaml:"objects,omitempty"`
	Targets   []TargetSpec   `yaml:"targets"`
	Checks    []CheckSpec    `yaml:"checks,omitempty"`
	Loads     []LoadSpec     `yaml:"loads,omitempty"`
}

// RealmSpec declares a realm. Global names the template its global object is
// an instance of.
type RealmSpec struct {
	Name   string `yaml:"name"`
	Global string `yaml:"global,omitempty"`
}

// TemplateSpec declares a function template. Templates with a callback return
// their own name when called.
type TemplateSpec struct {
	Name      string `yaml:"name"`
	Callback  bool   `yaml:"callback,omitempty"`
	Parent    string `yaml:"parent,omitempty"`
	Signature string `yaml:"signature,omitempty"`

	// AcceptAnyReceiver defaults to true.
	AcceptAnyReceiver *bool `yaml:"acceptAnyReceiver,omitempty"`

	// Family of instance shapes: ordinary (default), function or exotic.
	Family string `yaml:"family,omitempty"`
}

// FunctionSpec declares a function. With Template set the function is the
// template's instantiation in Realm; otherwise it is a script function, or a
// plain native when Native is set.
type FunctionSpec struct {
	Name     string `yaml:"name"`
	Realm    string `yaml:"realm"`
	Template string `yaml:"template,omitempty"`
	Native   bool   `yaml:"native,omitempty"`
	Compiled bool   `yaml:"compiled,omitempty"`
}

// ObjectSpec declares an object. Template makes it an instance of that
// template; Prototype names another object (or a global reference) to
// inherit from.
type ObjectSpec struct {
	Name      string            `yaml:"name"`
	Realm     string            `yaml:"realm,omitempty"`
	Template  string            `yaml:"template,omitempty"`
	Prototype string            `yaml:"prototype,omitempty"`
	Family    string            `yaml:"family,omitempty"`
	Accessors []AccessorSpec    `yaml:"accessors,omitempty"`
	Data      map[string]string `yaml:"data,omitempty"`
}

// AccessorSpec installs an accessor property whose getter is a target.
type AccessorSpec struct {
	Name   string `yaml:"name"`
	Getter string `yaml:"getter"`
}

// TargetSpec names a call target: either a function or a template.
type TargetSpec struct {
	Name     string          `yaml:"name"`
	Function string          `yaml:"function,omitempty"`
	Template string          `yaml:"template,omitempty"`
	Expect   *ClassifyExpect `yaml:"expect,omitempty"`
}

type ClassifyExpect struct {
	Kind string `yaml:"kind,omitempty"`
}

// CheckSpec runs the holder resolver for Receiver's shape and the
// compatibility checker against Holder. Holder defaults to the receiver, or
// to the global object when the receiver is a global proxy. Realm is the
// current realm for the cross-realm question.
type CheckSpec struct {
	Target   string       `yaml:"target"`
	Receiver string       `yaml:"receiver"`
	Holder   string       `yaml:"holder,omitempty"`
	Realm    string       `yaml:"realm,omitempty"`
	Expect   *CheckExpect `yaml:"expect,omitempty"`
}

type CheckExpect struct {
	Lookup     string `yaml:"lookup,omitempty"`
	APIHolder  string `yaml:"apiHolder,omitempty"`
	Compatible *bool  `yaml:"compatible,omitempty"`
	CrossRealm *bool  `yaml:"crossRealm,omitempty"`
}

// LoadSpec reads Property from Receiver through accessor site Site, as code
// running in Realm.
type LoadSpec struct {
	Site     int         `yaml:"site,omitempty"`
	Property string      `yaml:"property"`
	Receiver string      `yaml:"receiver"`
	Realm    string      `yaml:"realm"`
	Expect   *LoadExpect `yaml:"expect,omitempty"`
}

type LoadExpect struct {
	Value *string `yaml:"value,omitempty"`
	Error string  `yaml:"error,omitempty"`
	Path  string  `yaml:"path,omitempty"` // fast or generic
}

// Parse decodes a scenario document. Unknown keys are rejected.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("scenario: decode: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// validate checks names are present and unique within their section.
// References are resolved by Build.
func (sc *Scenario) validate() error {
	if len(sc.Realms) == 0 {
		return fmt.Errorf("scenario: at least one realm is required")
	}
	sections := []struct {
		kind  string
		names []string
	}{
		{"realm", namesOf(sc.Realms, func(r RealmSpec) string { return r.Name })},
		{"template", namesOf(sc.Templates, func(t TemplateSpec) string { return t.Name })},
		{"function", namesOf(sc.Functions, func(f FunctionSpec) string { return f.Name })},
		{"object", namesOf(sc.Objects, func(o ObjectSpec) string { return o.Name })},
		{"target", namesOf(sc.Targets, func(t TargetSpec) string { return t.Name })},
	}
	for _, s := range sections {
		seen := make(map[string]bool, len(s.names))
		for i, name := range s.names {
			if name == "" {
				return fmt.Errorf("scenario: %s #%d has no name", s.kind, i+1)
			}
			if strings.Contains(name, ":") {
				return fmt.Errorf("scenario: %s name %q must not contain ':'", s.kind, name)
			}
			if seen[name] {
				return fmt.Errorf("scenario: duplicate %s %q", s.kind, name)
			}
			seen[name] = true
		}
	}
	for _, t := range sc.Targets {
		if (t.Function == "") == (t.Template == "") {
			return fmt.Errorf("scenario: target %q needs exactly one of function or template", t.Name)
		}
	}
	for i, l := range sc.Loads {
		if l.Property == "" {
			return fmt.Errorf("scenario: load #%d has no property", i+1)
		}
		if l.Expect != nil && l.Expect.Path != "" && l.Expect.Path != PathFast && l.Expect.Path != PathGeneric {
			return fmt.Errorf("scenario: load #%d: path must be %q or %q", i+1, PathFast, PathGeneric)
		}
	}
	return nil
}

func namesOf[T any](items []T, name func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = name(it)
	}
	return out
}
