package generator

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/aretw0/commonwf/pkg/protocol"
)

// Feature names an optional capability of a common workflow, e.g. fixed magnetization.
type Feature string

// FeatureProvider is implemented by implementations with optional features.
type FeatureProvider interface {
	// OptionalFeatures lists the features the common workflow defines.
	OptionalFeatures() []Feature
	// SupportedFeatures lists the subset this implementation supports.
	SupportedFeatures() []Feature
}

// OptionalFeatures returns the optional features of the common workflow.
func (g *InputGenerator) OptionalFeatures() []Feature {
	if fp, ok := g.impl.(FeatureProvider); ok {
		return slices.Clone(fp.OptionalFeatures())
	}
	return nil
}

// SupportedFeatures returns the optional features the implementation supports.
func (g *InputGenerator) SupportedFeatures() []Feature {
	if fp, ok := g.impl.(FeatureProvider); ok {
		return slices.Clone(fp.SupportedFeatures())
	}
	return nil
}

// SupportsFeature reports whether the implementation supports f.
func (g *InputGenerator) SupportsFeature(f Feature) bool {
	return slices.Contains(g.SupportedFeatures(), f)
}

// ValidateOptionalFeatures fails when any requested feature is unsupported.
func (g *InputGenerator) ValidateOptionalFeatures(requested ...string) error {
	var unsupported []string
	for _, r := range requested {
		if !g.SupportsFeature(Feature(r)) {
			unsupported = append(unsupported, r)
		}
	}
	if len(unsupported) == 0 {
		return nil
	}
	sort.Strings(unsupported)
	return fmt.Errorf("the following optional features are not supported by `%s`: %s", g.process, strings.Join(unsupported, ", "))
}

// ProtocolProvider is implemented by implementations backed by a protocol registry.
type ProtocolProvider interface {
	Protocols() *protocol.Registry
}

// Protocols returns the protocol registry of the implementation, if it has one.
func (g *InputGenerator) Protocols() (*protocol.Registry, bool) {
	if pp, ok := g.impl.(ProtocolProvider); ok {
		return pp.Protocols(), true
	}
	return nil, false
}
