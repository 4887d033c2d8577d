package overrides

import (
	"context"
	"errors"
	"maps"

	"github.com/mohae/deepcopy"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
)

const (
	nameUpdateDict       = "update_dict"
	nameAddOrReplaceNode = "add_or_replace_node"
	nameRemoveNode       = "remove_node"
)

// checkPort fails unless port is a non-empty name populated in b.
func checkPort(funcName string, b ports.Builder, port string) error {
	if port == "" {
		return invalid(funcName, "the `port` must be a non-empty string")
	}
	if !b.Contains(port) {
		return invalid(funcName, "`%s` is not a valid port of the passed builder", port)
	}
	return nil
}

func set(funcName string, b ports.Builder, port string, value any) error {
	if err := b.Set(port, value); err != nil {
		return &InvalidOverrideError{Override: funcName, Reason: "failed to set port", Err: err}
	}
	return nil
}

// UpdateDict merges dictionary into the Dict stored at port, or into the nested
// mapping reached by following subPath inside it.
//
// A stored Dict is cloned before the merge and the clone replaces it in the
// builder; an unstored Dict is updated in place and keeps its identity. Plain
// mappings (e.g. an options namespace) are merged into a copy.
func UpdateDict(b ports.Builder, port string, dictionary map[string]any, subPath ...string) error {
	if err := checkPort(nameUpdateDict, b, port); err != nil {
		return err
	}
	if dictionary == nil {
		return invalid(nameUpdateDict, "the `dictionary` must be a mapping")
	}
	patch := deepcopy.Copy(dictionary).(map[string]any)

	current, _ := b.Get(port)
	switch v := current.(type) {
	case *domain.Dict:
		target := v
		if v.IsStored() {
			target = v.Clone().(*domain.Dict)
		}
		if err := target.Update(func(attrs map[string]any) error {
			return merge(attrs, patch, subPath)
		}); err != nil {
			var ioe *InvalidOverrideError
			if errors.As(err, &ioe) {
				return err
			}
			return &InvalidOverrideError{Override: nameUpdateDict, Reason: "failed to update dictionary", Err: err}
		}
		if target != v {
			return set(nameUpdateDict, b, port, target)
		}
		return nil
	case map[string]any:
		m := deepcopy.Copy(v).(map[string]any)
		if err := merge(m, patch, subPath); err != nil {
			return err
		}
		return set(nameUpdateDict, b, port, m)
	default:
		return invalid(nameUpdateDict, "port `%s` does not hold a dictionary but %T", port, current)
	}
}

// merge navigates subPath in attrs and copies patch into the mapping found there.
// Nothing is written when navigation fails.
func merge(attrs, patch map[string]any, subPath []string) error {
	target := attrs
	for _, key := range subPath {
		next, ok := target[key].(map[string]any)
		if !ok {
			return invalid(nameUpdateDict, "the `sub_path` contains an invalid key `%s`", key)
		}
		target = next
	}
	maps.Copy(target, patch)
	return nil
}

// AddOrReplaceNode replaces the value at port with the node loaded by identifier (UUID or label).
func AddOrReplaceNode(ctx context.Context, b ports.Builder, loader ports.NodeLoader, port, identifier string) error {
	if err := checkPort(nameAddOrReplaceNode, b, port); err != nil {
		return err
	}
	if loader == nil {
		return invalid(nameAddOrReplaceNode, "no node loader configured")
	}
	node, err := loader.Load(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNodeNotFound) {
			return &InvalidOverrideError{Override: nameAddOrReplaceNode, Reason: "`" + identifier + "` is not a valid node identifier", Err: err}
		}
		return &InvalidOverrideError{Override: nameAddOrReplaceNode, Reason: "failed to load node", Err: err}
	}
	return set(nameAddOrReplaceNode, b, port, node)
}

// ReplaceNode replaces the value at port with node.
func ReplaceNode(b ports.Builder, port string, node domain.Node) error {
	if err := checkPort(nameAddOrReplaceNode, b, port); err != nil {
		return err
	}
	if domain.IsNil(node) {
		return invalid(nameAddOrReplaceNode, "the `new_node` must not be nil")
	}
	return set(nameAddOrReplaceNode, b, port, node)
}

// RemoveNode deletes port from the builder.
func RemoveNode(b ports.Builder, port string) error {
	if err := checkPort(nameRemoveNode, b, port); err != nil {
		return err
	}
	b.Delete(port)
	return nil
}
