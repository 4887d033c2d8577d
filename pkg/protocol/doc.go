// Package protocol provides the immutable registry of calculation protocols.
//
// A protocol is a named bundle of default parameters trading accuracy for
// cost ("fast", "moderate", "precise"). Protocols are data, not code: each
// engine implementation ships its table as YAML and loads it once into a
// Registry, which only validates the shape of the table and hands out
// independent copies.
//
// Basic usage:
//
//	reg, err := protocol.Load("siesta", data, protocol.WithValidator(checkSiesta))
//	if err != nil {
//	    // the table is malformed; the registry is unusable
//	}
//	p, err := reg.Get(reg.DefaultName())
package protocol
