// Package cache exposes the key-invalidation service applied after a
// transaction commits. The cache content itself is owned by an external
// layer; this package only deletes keys.
package cache

import "context"

// Key identifies a cached value or dependency to drop.
type Key string

// Invalidator drops keys from the shared cache. Invalidation is
// idempotent and commutative; implementations must tolerate concurrent
// deletes of the same key.
type Invalidator interface {
	Invalidate(ctx context.Context, keys []Key) error
}

// Noop discards invalidations; used when no cache is configured and in
// tests asserting that invalidation never ran.
type Noop struct{}

func (Noop) Invalidate(ctx context.Context, keys []Key) error {
	_ = ctx
	_ = keys
	return nil
}
