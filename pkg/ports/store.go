package ports

import (
	"context"

	"github.com/aretw0/commonwf/pkg/domain"
)

// NodeLoader resolves an identifier to a stored node.
type NodeLoader interface {
	// Load returns the node whose UUID or label equals identifier.
	// Returns domain.ErrNodeNotFound if nothing matches.
	Load(ctx context.Context, identifier string) (domain.Node, error)
}

// NodeStore persists data nodes. Saving a node marks it as stored (immutable).
type NodeStore interface {
	NodeLoader

	// Save persists the node and marks it as stored.
	Save(ctx context.Context, node domain.Node) error

	// Delete removes the node with the given UUID.
	Delete(ctx context.Context, uuid string) error

	// List returns the UUIDs of all stored nodes.
	List(ctx context.Context) ([]string, error)
}
