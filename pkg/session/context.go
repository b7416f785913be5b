package session

import "context"

type ctxKey struct{}

// WithID returns a context carrying the session id for logging and audit.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IDFromContext returns the session id set by WithID, or "".
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
