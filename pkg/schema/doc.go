// Package schema describes and validates the keyword arguments accepted by an
// input generator.
//
// A Spec holds a tree of namespaces and ports. Each Port has a valid Type,
// which may refine plain type checks with an enumerated ChoiceType or a
// capability-restricted CodeType:
//
//	spec := schema.NewSpec()
//	_ = spec.Input("structure", schema.WithType(schema.InstanceOf[*domain.Structure]("Structure")))
//	_ = spec.Input("protocol",
//	    schema.WithType(schema.Choice("fast", "moderate", "precise")),
//	    schema.WithDefault("moderate"),
//	)
//	_ = spec.Input("engines.relax.code", schema.WithType(schema.Code("siesta.siesta")))
//
// Dotted names create the intermediate namespaces. Arguments flow through the
// root namespace in three steps:
//
//	ns := spec.Inputs()
//	values, err := ns.Serialize(ctx, ns.PreProcess(kwargs))
//	if err == nil {
//	    err = ns.Validate(values) // *AggregateError of *PortValidationError
//	}
//
// Port validation errors are collected, never raised one at a time; each one
// carries the dotted breadcrumb of the offending port.
//
// The flat Schema map and Validate remain for simple keyword arguments that do
// not need namespaces.
package schema
