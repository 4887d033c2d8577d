package cli

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/commonwf/pkg/overrides"
)

// ParseOverride parses `name:args`, where args is a JSON (or YAML flow) mapping, e.g.
//
//	generic.update_dict:{"port": "parameters", "dictionary": {"spin": "polarized"}}
func ParseOverride(s string) (overrides.Override, error) {
	name, raw, found := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return overrides.Override{}, &UsageError{Param: "--override", Message: fmt.Sprintf("missing override name in %q", s)}
	}
	o := overrides.Override{Name: name, Args: map[string]any{}}
	if !found || strings.TrimSpace(raw) == "" {
		return o, nil
	}
	if err := yaml.Unmarshal([]byte(raw), &o.Args); err != nil {
		return overrides.Override{}, &UsageError{Param: "--override", Message: fmt.Sprintf("arguments of `%s` must be a mapping: %v", name, err)}
	}
	return o, nil
}

// ParseOverrides parses every --override value in order.
func ParseOverrides(values []string) ([]overrides.Override, error) {
	out := make([]overrides.Override, 0, len(values))
	for _, v := range values {
		o, err := ParseOverride(v)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// ParseEngineOptions decodes the --engine-options value.
func ParseEngineOptions(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, &UsageError{Param: "engine-options", Message: err.Error()}
	}
	return v, nil
}
