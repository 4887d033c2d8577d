package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
)

// Store implements ports.NodeStore in memory.
// Safe for concurrent use.
type Store struct {
	nodes  map[string]domain.Node
	labels map[string]string
	mu     sync.RWMutex
}

var _ ports.NodeStore = (*Store)(nil)

// NewStore creates a new, empty in-memory store.
func NewStore() *Store {
	return &Store{
		nodes:  make(map[string]domain.Node),
		labels: make(map[string]string),
	}
}

// NewFromNodes creates a store seeded with nodes, which are marked as stored.
func NewFromNodes(nodes ...domain.Node) (*Store, error) {
	s := NewStore()
	for i, n := range nodes {
		if err := s.Save(context.Background(), n); err != nil {
			return nil, fmt.Errorf("failed to seed node %d: %w", i, err)
		}
	}
	return s, nil
}

// Save keeps the node and then marks it as stored. Stored nodes are immutable,
// so the same pointer is handed out by Load.
func (s *Store) Save(ctx context.Context, node domain.Node) error {
	if domain.IsNil(node) {
		return fmt.Errorf("cannot save a nil node")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.UUID()] = node
	if label := node.Label(); label != "" {
		s.labels[label] = node.UUID()
	}
	node.MarkStored()
	return nil
}

// Load retrieves a node by UUID, falling back to its label.
func (s *Store) Load(ctx context.Context, identifier string) (domain.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n, ok := s.nodes[identifier]; ok {
		return n, nil
	}
	if id, ok := s.labels[identifier]; ok {
		if n, ok := s.nodes[id]; ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", identifier, domain.ErrNodeNotFound)
}

// Delete removes the node.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.nodes[uuid]; ok && s.labels[n.Label()] == uuid {
		delete(s.labels, n.Label())
	}
	delete(s.nodes, uuid)
	return nil
}

// List returns the UUIDs of the stored nodes.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	return ids, nil
}
