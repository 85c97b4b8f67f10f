// Package secrets manages the symmetric signing secrets used to validate
// bearer tokens. It resolves the secret from a configured source (a static
// pre-shared value or a named parameter in the platform parameter store)
// and caches it in a two-slot store that supports zero-downtime rotation:
// when a re-fetch returns a new value, the old secret is demoted to a
// "previous" slot and keeps verifying tokens until a hard TTL closes the
// grace window.
//
// The store is the only place signing material lives. Callers always go
// through [Store.Current], [Store.Previous], and [Store.ForceRefresh];
// there is no way to reach the cached value directly.
package secrets

import (
	"time"
)

// Secret is a string type that redacts its value in String(), GoString(),
// and MarshalText() to prevent accidental exposure in logs, JSON output,
// or fmt.Printf. The actual value is only accessible via [Secret.Value],
// which should be called only where the raw bytes are truly needed (e.g.
// passing to an HMAC verification function).
type Secret string

// secretRedacted is the placeholder shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from
// being printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from
// being printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string.
func (s Secret) Value() string { return string(s) }

// MarshalText implements encoding.TextMarshaler, returning the redacted
// placeholder so the secret never leaks into JSON or YAML output.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// Source identifies where a signing secret was resolved from.
type Source string

const (
	// SourceStatic identifies a pre-shared secret configured directly on
	// the process (typically injected via environment).
	SourceStatic Source = "static"

	// SourceRemote identifies a secret fetched from the platform's remote
	// parameter store by name.
	SourceRemote Source = "remote"
)

// Valid reports whether the source is one of the recognized values.
func (s Source) Valid() bool {
	return s == SourceStatic || s == SourceRemote
}

// SigningSecret is a resolved signing secret. It is immutable once
// fetched; rotation replaces the whole value rather than mutating it.
type SigningSecret struct {
	// Value is the raw signing key material.
	Value Secret

	// FetchedAt records when the secret was resolved. The store's soft
	// TTL is measured from this instant; its hard TTL is measured from
	// the moment a rotation demotes the secret to the previous slot.
	FetchedAt time.Time

	// Source records which configured source produced the secret.
	Source Source
}
