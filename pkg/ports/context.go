package ports

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const loaderKey contextKey = "node_loader"

// ContextWithLoader returns a new context carrying loader.
// If loader is nil, the original context is returned unchanged.
func ContextWithLoader(ctx context.Context, loader NodeLoader) context.Context {
	if loader == nil {
		return ctx
	}
	return context.WithValue(ctx, loaderKey, loader)
}

// LoaderFromContext extracts the node loader from ctx.
// ok is false if none was attached.
func LoaderFromContext(ctx context.Context) (NodeLoader, bool) {
	if ctx == nil {
		return nil, false
	}
	loader, ok := ctx.Value(loaderKey).(NodeLoader)
	return loader, ok
}
