// Package generator turns generic keyword arguments into a validated,
// engine-specific builder.
//
// An Implementation declares its accepted arguments in Define and translates
// validated arguments in ConstructBuilder. InputGenerator runs the pipeline
// between the two:
//
//	copy (stored nodes by reference) -> pre-process -> serialize -> validate -> construct
//
// The caller's arguments are never modified, so the same map can be passed to
// GetBuilder repeatedly, e.g. from a loop over strained structures.
package generator
