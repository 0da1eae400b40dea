// Package idempotency carries per-mutation idempotency keys from the caller
// to the transport and lets a server recognise replayed mutations.
package idempotency

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header that carries the key.
const Header = "Idempotency-Key"

type ctxKey struct{}

// NewKey returns a fresh random key.
func NewKey() string {
	return uuid.NewString()
}

// WithKey returns a context carrying key.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// WithNewKey returns a context carrying a fresh key, and that key.
func WithNewKey(ctx context.Context) (context.Context, string) {
	key := NewKey()
	return WithKey(ctx, key), key
}

// Key returns the key carried by ctx, if any.
func Key(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(ctxKey{}).(string)
	return key, ok && key != ""
}
