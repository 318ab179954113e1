// Package clientctx carries the authenticated client identity from the
// auth middleware down to the handlers, without the handlers needing to
// import the middleware package (which itself depends on api for error
// codes).
package clientctx

import "context"

type key struct{}

// With attaches a client identity to ctx.
func With(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, key{}, clientID)
}

// From returns the client identity attached by With, if any.
func From(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok
}
