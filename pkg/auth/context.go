package auth

import (
	"context"
	"sync"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

// identityKey stores the request's identity holder in the context.
const identityKey contextKey = iota

// identityHolder carries a request's identity behind a lock so that the
// gate can revoke it when the request completes. Revocation matters when a
// handler leaks the request context into a goroutine that outlives the
// request: after teardown such a goroutine observes no identity rather
// than a stale one.
type identityHolder struct {
	mu       sync.RWMutex
	identity *ValidatedIdentity
}

// BeginScope returns a context carrying the given identity and a release
// function that revokes it. The release function is idempotent and must be
// called on every exit path of the request; the HTTP middleware and gRPC
// interceptors in this package defer it unconditionally.
//
// Each call creates an isolated holder, so two concurrent requests can
// never observe each other's identity regardless of how the runtime
// schedules them.
func BeginScope(ctx context.Context, identity *ValidatedIdentity) (context.Context, func()) {
	holder := &identityHolder{identity: identity}
	release := func() {
		holder.mu.Lock()
		holder.identity = nil
		holder.mu.Unlock()
	}
	return context.WithValue(ctx, identityKey, holder), release
}

// ContextWithIdentity returns a context carrying the given identity without
// a teardown hook. Intended for tests and for call sites whose context
// lifetime already bounds the identity (e.g. one-shot CLI invocations);
// request-serving code should use [BeginScope].
func ContextWithIdentity(ctx context.Context, identity *ValidatedIdentity) context.Context {
	return context.WithValue(ctx, identityKey, &identityHolder{identity: identity})
}

// IdentityFromContext retrieves the validated identity from the context.
// Returns the identity and true if present and not yet torn down, or nil
// and false otherwise. This function never returns a non-nil identity with
// false.
//
// Downstream components must check the boolean rather than assume an
// identity exists: in pass-through deployment modes the gate installs no
// identity at all.
func IdentityFromContext(ctx context.Context) (*ValidatedIdentity, bool) {
	holder, ok := ctx.Value(identityKey).(*identityHolder)
	if !ok || holder == nil {
		return nil, false
	}
	holder.mu.RLock()
	defer holder.mu.RUnlock()
	if holder.identity == nil {
		return nil, false
	}
	return holder.identity, true
}

// MustIdentityFromContext retrieves the identity from the context,
// panicking if none is present. Use only in code paths that run strictly
// behind an enforcing gate.
func MustIdentityFromContext(ctx context.Context) *ValidatedIdentity {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		panic("auth: no identity in context; ensure the authentication gate is configured and enforcing")
	}
	return identity
}
