package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/commonwf/pkg/schema"
)

// root is the id of the node standing for the top-level input namespace.
const root = "inputs"

// GenerateMermaid produces a Mermaid flowchart of the input namespace of a spec.
// It applies semantic styling:
// - Root: ((Circle))
// - Namespace: [[Subroutine]]
// - Optional port: [/Parallelogram/]
// - Required port: [Rectangle]
// Dynamic namespaces are linked with a dotted arrow.
func GenerateMermaid(spec *schema.Spec) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", root, root))

	inputs := spec.Inputs()
	_ = inputs.Walk(func(path string, e schema.Entry) error {
		safeID := sanitizeMermaidID(root + "." + path)

		opener, closer := "[", "]"
		label := e.Name()
		switch entry := e.(type) {
		case *schema.Namespace:
			opener, closer = "[[", "]]"
		case *schema.Port:
			if !entry.Required() {
				opener, closer = "[/", "/]"
			}
			if t := entry.Type(); t != nil {
				label = fmt.Sprintf("%s <br/> %s", label, strings.ReplaceAll(t.Name(), "\"", "'"))
			}
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		parentID := root
		if i := strings.LastIndex(path, schema.Separator); i >= 0 {
			parentID = sanitizeMermaidID(root + "." + path[:i])
		}
		arrow := "-->"
		if parent, ok := parentOf(inputs, path); ok && parent.IsDynamic() {
			arrow = "-.->"
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", parentID, arrow, safeID))
		return nil
	})
	return sb.String()
}

func parentOf(inputs *schema.Namespace, path string) (*schema.Namespace, bool) {
	i := strings.LastIndex(path, schema.Separator)
	if i < 0 {
		return inputs, true
	}
	e, ok := inputs.Lookup(path[:i])
	if !ok {
		return nil, false
	}
	ns, ok := e.(*schema.Namespace)
	return ns, ok
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
