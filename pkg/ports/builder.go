package ports

// Builder is the mutable set of inputs handed to the workflow engine.
// Keys are port names; nested namespaces are addressed with dotted paths.
type Builder interface {
	// Get returns the value stored under key.
	Get(key string) (any, bool)

	// Set stores value under key, creating intermediate namespaces.
	// It fails if an intermediate segment holds a non-namespace value.
	Set(key string, value any) error

	// Delete removes key. It returns false if key was not populated.
	Delete(key string) bool

	// Contains reports whether key is populated.
	Contains(key string) bool
}
