package registry

import "strings"

const (
	// Prefix is the namespace of every common workflow entry point.
	Prefix = "common_workflows"
	// CategoryWorkflows holds the engine implementations of the common workflows.
	CategoryWorkflows = "acwf.workflows"
)

// EntryPointName returns the full name of a workflow implementation,
// e.g. "common_workflows.relax.siesta".
func EntryPointName(workflow, plugin string) string {
	return Prefix + "." + workflow + "." + plugin
}

// WorkflowNames returns the registered implementations of a common workflow.
// With leaf, only the plugin part of each name is returned.
func (r *Registry[T]) WorkflowNames(workflow string, leaf bool) []string {
	prefix := Prefix + "." + workflow + "."
	names := r.Names(CategoryWorkflows, prefix)
	if leaf {
		for i, name := range names {
			names[i] = strings.TrimPrefix(name, prefix)
		}
	}
	return names
}

// LoadWorkflow resolves the implementation of a common workflow for one plugin.
func (r *Registry[T]) LoadWorkflow(workflow, plugin string) (T, error) {
	return r.Resolve(CategoryWorkflows, EntryPointName(workflow, plugin))
}

// DeclareWorkflows declares plugins of a common workflow that are known but not
// linked in. Each plugin name doubles as the name of its extra.
func (r *Registry[T]) DeclareWorkflows(workflow string, plugins ...string) {
	for _, p := range plugins {
		r.Declare(CategoryWorkflows, EntryPointName(workflow, p), p)
	}
}
