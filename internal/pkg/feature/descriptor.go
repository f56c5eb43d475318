// Package feature implements the devcontainer-feature install flow: parse
// devcontainer-feature.json, resolve options and the remote user, assemble
// the child script's environment, download and extract the OCI bundle, run
// install.sh, and persist any declared containerEnv.
package feature

import "encoding/json"

// OptionDefinition is one entry of a feature's `options` map. Only `default`
// is required; `enum`/`proposals` are accepted but not currently validated
// against (install-time option values are taken as given, same as upstream).
type OptionDefinition struct {
	Default   json.RawMessage `json:"default"`
	Type      string          `json:"type"`
	Enum      []string        `json:"enum,omitempty"`
	Proposals []string        `json:"proposals,omitempty"`
}

// Descriptor is the subset of devcontainer-feature.json nanolayer acts on.
// Parsing is duck-typed: unknown top-level keys are ignored so newer feature
// metadata fields don't break older installer versions.
type Descriptor struct {
	ID           string                      `json:"id"`
	Version      string                      `json:"version"`
	Options      map[string]OptionDefinition `json:"options"`
	ContainerEnv map[string]string           `json:"containerEnv"`
}

// ParseDescriptor decodes a devcontainer-feature.json document.
func ParseDescriptor(raw []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return Descriptor{}, err
	}
	if d.Options == nil {
		d.Options = map[string]OptionDefinition{}
	}
	if d.ContainerEnv == nil {
		d.ContainerEnv = map[string]string{}
	}
	return d, nil
}

// OptionValue is a resolved option: either a boolean or a string, matching
// the mixed typing a feature's declared defaults and a user's --option
// values may carry. Booleans stringify to lowercase "true"/"false" at the
// child-process environment boundary.
type OptionValue struct {
	boolVal   bool
	strVal    string
	isBoolean bool
}

// BoolOption wraps b as a boolean OptionValue.
func BoolOption(b bool) OptionValue { return OptionValue{boolVal: b, isBoolean: true} }

// StringOption wraps s as a string OptionValue.
func StringOption(s string) OptionValue { return OptionValue{strVal: s} }

// EnvString renders the value the way it's placed in a child process's
// environment.
func (v OptionValue) EnvString() string {
	if v.isBoolean {
		if v.boolVal {
			return "true"
		}
		return "false"
	}
	return v.strVal
}

// ResolveOptions fills in every option the feature declares that the user
// didn't supply (or supplied as an empty string) with its declared default.
func ResolveOptions(d Descriptor, userValues map[string]string) map[string]OptionValue {
	resolved := make(map[string]OptionValue, len(d.Options))
	for name, def := range d.Options {
		if v, ok := userValues[name]; ok && v != "" {
			resolved[name] = StringOption(v)
			continue
		}
		resolved[name] = defaultValue(def)
	}
	// A user-supplied option not declared by the feature still flows through
	// (a feature may read undeclared options from the environment).
	for name, v := range userValues {
		if _, declared := d.Options[name]; !declared {
			resolved[name] = StringOption(v)
		}
	}
	return resolved
}

func defaultValue(def OptionDefinition) OptionValue {
	var b bool
	if err := json.Unmarshal(def.Default, &b); err == nil {
		return BoolOption(b)
	}
	var s string
	if err := json.Unmarshal(def.Default, &s); err == nil {
		return StringOption(s)
	}
	return StringOption(string(def.Default))
}
