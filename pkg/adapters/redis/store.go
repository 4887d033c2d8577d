package redis

import (
	"context"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/commonwf/pkg/domain"
	"github.com/aretw0/commonwf/pkg/ports"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "commonwf:node:"

// Store implements ports.NodeStore using Redis.
// Nodes are kept as JSON envelopes produced by domain.MarshalNode.
type Store struct {
	client *backend.Client
	prefix string
}

var _ ports.NodeStore = (*Store)(nil)

type Option func(*Store)

// WithPrefix sets the key prefix for nodes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(uuid string) string {
	return s.prefix + uuid
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) labelsKey() string {
	return s.prefix + "labels"
}

// Save persists the node and marks it as stored once the write succeeded.
func (s *Store) Save(ctx context.Context, node domain.Node) error {
	if domain.IsNil(node) {
		return fmt.Errorf("cannot save a nil node")
	}
	data, err := domain.MarshalStoredNode(node)
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(node.UUID()), data, 0)
	pipe.SAdd(ctx, s.indexKey(), node.UUID())
	if label := node.Label(); label != "" {
		pipe.HSet(ctx, s.labelsKey(), label, node.UUID())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	node.MarkStored()
	return nil
}

// Load retrieves a node by UUID, falling back to its label.
func (s *Store) Load(ctx context.Context, identifier string) (domain.Node, error) {
	val, err := s.client.Get(ctx, s.key(identifier)).Bytes()
	if errors.Is(err, backend.Nil) {
		uuid, herr := s.client.HGet(ctx, s.labelsKey(), identifier).Result()
		if errors.Is(herr, backend.Nil) {
			return nil, fmt.Errorf("%s: %w", identifier, domain.ErrNodeNotFound)
		}
		if herr != nil {
			return nil, fmt.Errorf("failed to resolve label from redis: %w", herr)
		}
		val, err = s.client.Get(ctx, s.key(uuid)).Bytes()
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%s: %w", identifier, domain.ErrNodeNotFound)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	node, err := domain.UnmarshalNode(val)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return node, nil
}

// Delete removes the node and its label.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	node, err := s.Load(ctx, uuid)
	if errors.Is(err, domain.ErrNodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(node.UUID()))
	pipe.SRem(ctx, s.indexKey(), node.UUID())
	if label := node.Label(); label != "" {
		pipe.HDel(ctx, s.labelsKey(), label)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// List returns the UUIDs of the stored nodes.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
