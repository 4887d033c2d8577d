// Package overrides patches a builder after generation and before submission.
//
// The generic overrides act on data nodes without knowing what the port means:
// UpdateDict merges keys into a Dict, AddOrReplaceNode swaps a port value for a
// stored node and RemoveNode drops a port. Every override validates its
// arguments before touching the builder, so a failed override leaves it unchanged.
//
// A Registry exposes overrides by name ("generic.update_dict", ...) with
// map-shaped arguments, for callers that read them from configuration or flags.
package overrides
