/*
Package commonwf generates engine-specific inputs for common DFT workflows.

A common workflow (e.g. "relax") declares one engine-agnostic set of inputs:
a structure, a named protocol (fast, moderate, precise), spin, relaxation and
electronic types, and per-engine resources. Each engine implementation
validates those inputs against its declared ports, translates them through its
protocol table and returns a Builder: the ordered, namespaced inputs of the
engine's own workflow.

# Concept

The Engine resolves implementations by entry point name
(common_workflows.<workflow>.<engine>) from a plugin registry. Codes,
pseudopotential families and reference workchains are stored nodes, loaded by
UUID or label from a NodeStore (in memory or Redis). Builders can be adjusted
afterwards with named overrides such as generic.update_dict.

# Usage

	eng, err := commonwf.New(commonwf.WithStore(store))
	if err != nil {
		log.Fatal(err)
	}

	b, err := eng.GetBuilder(ctx, relax.Workflow, siesta.Plugin, map[string]any{
		"structure": structure,
		"protocol":  "fast",
		"engines": map[string]any{
			"relax": map[string]any{"code": "siesta"},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	err = eng.ApplyOverrides(ctx, b, []overrides.Override{{
		Name: "generic.update_dict",
		Args: map[string]any{"port": "parameters", "dictionary": map[string]any{"md-num-cg-steps": 50}},
	}})

Submission of the builder is left to the caller.
*/
package commonwf
