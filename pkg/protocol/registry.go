package protocol

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/mohae/deepcopy"
	"gopkg.in/yaml.v3"
)

// Validator performs engine-specific checks on one raw protocol definition.
type Validator func(name string, definition map[string]any) error

// Option configures a Registry at construction.
type Option func(*Registry)

// WithValidator adds an engine-specific check run on every protocol at construction.
func WithValidator(v Validator) Option {
	return func(r *Registry) {
		r.validators = append(r.validators, v)
	}
}

// Registry is an immutable table of protocols with a designated default.
// Safe for concurrent use: nothing is mutated after construction.
type Registry struct {
	name        string
	protocols   map[string]map[string]any
	defaultName string
	validators  []Validator
}

// document is the YAML layout accepted by Load.
type document struct {
	Default   string         `yaml:"default"`
	Protocols map[string]any `yaml:"protocols"`
}

// New builds a registry from raw definitions, validating its shape.
// The definitions are deep-copied; later changes to the argument do not affect the registry.
func New(name string, protocols map[string]any, defaultName string, opts ...Option) (*Registry, error) {
	r := &Registry{
		name:        name,
		protocols:   make(map[string]map[string]any, len(protocols)),
		defaultName: defaultName,
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(protocols) == 0 {
		return nil, r.invalid("does not define any protocols")
	}
	for _, key := range sortedNames(protocols) {
		def, ok := protocols[key].(map[string]any)
		if !ok {
			return nil, r.invalid(fmt.Sprintf("protocol `%s` is not a mapping", key))
		}
		if _, ok := def["description"]; !ok {
			return nil, r.invalid(fmt.Sprintf("protocol `%s` does not define the key `description`", key))
		}
		def = deepcopy.Copy(def).(map[string]any)
		for _, validate := range r.validators {
			if err := validate(key, def); err != nil {
				return nil, r.invalid(fmt.Sprintf("protocol `%s`: %v", key, err))
			}
		}
		if _, err := decode(key, deepcopy.Copy(def).(map[string]any)); err != nil {
			return nil, r.invalid(err.Error())
		}
		r.protocols[key] = def
	}

	if defaultName == "" {
		return nil, r.invalid("does not define a default protocol")
	}
	if _, ok := r.protocols[defaultName]; !ok {
		return nil, r.invalid(fmt.Sprintf("default protocol `%s` is not a defined protocol", defaultName))
	}
	return r, nil
}

// Load parses a YAML document with the keys `default` and `protocols`.
func Load(name string, data []byte, opts ...Option) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidRegistryError{Registry: name, Reason: fmt.Sprintf("failed to parse table: %v", err)}
	}
	return New(name, doc.Protocols, doc.Default, opts...)
}

// LoadFS reads and parses a protocol table from fsys.
func LoadFS(fsys fs.FS, path, name string, opts ...Option) (*Registry, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, &InvalidRegistryError{Registry: name, Reason: fmt.Sprintf("failed to read %s: %v", path, err)}
	}
	return Load(name, data, opts...)
}

// Name returns the registry name (usually the engine it belongs to).
func (r *Registry) Name() string { return r.name }

// Names returns all protocol names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.protocols))
	for k := range r.protocols {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultName returns the designated default protocol. It is always a member of Names.
func (r *Registry) DefaultName() string { return r.defaultName }

// IsValid reports whether name is a registered protocol.
func (r *Registry) IsValid(name string) bool {
	_, ok := r.protocols[name]
	return ok
}

// Get returns an independent copy of the named protocol.
func (r *Registry) Get(name string) (Protocol, error) {
	raw, err := r.Raw(name)
	if err != nil {
		return Protocol{}, err
	}
	return decode(name, raw)
}

// Raw returns an independent deep copy of the undecoded definition.
func (r *Registry) Raw(name string) (map[string]any, error) {
	def, ok := r.protocols[name]
	if !ok {
		return nil, &UnknownProtocolError{Name: name, Known: r.Names()}
	}
	return deepcopy.Copy(def).(map[string]any), nil
}

// Description returns the description of the named protocol.
func (r *Registry) Description(name string) (string, error) {
	p, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return p.Description, nil
}

func (r *Registry) invalid(reason string) error {
	return &InvalidRegistryError{Registry: r.name, Reason: reason}
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
