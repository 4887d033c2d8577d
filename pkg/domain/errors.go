package domain

import "errors"

// ErrNodeNotFound is returned when an identifier does not resolve to a stored node.
var ErrNodeNotFound = errors.New("node not found")

// ErrStoredImmutable is returned when trying to mutate a node that has been stored.
var ErrStoredImmutable = errors.New("stored node is immutable")

// ErrUnknownNodeType is returned when decoding a node envelope with an unregistered type.
var ErrUnknownNodeType = errors.New("unknown node type")
