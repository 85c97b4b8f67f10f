package secrets

import (
	"context"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// Resolver resolves the raw signing secret value from its configured
// source. The store calls it once at startup validation and again on every
// soft-TTL or forced refresh.
//
// Implementations must be safe for concurrent use; the store's
// single-flight logic guarantees at most one in-flight Resolve per store,
// but a Resolver may be shared across stores in tests.
type Resolver interface {
	// Resolve returns the current secret value from the source. The
	// context carries the fetch deadline; implementations must honor it.
	Resolve(ctx context.Context) (string, error)

	// Source identifies the kind of source for the SigningSecret record.
	Source() Source
}

// StaticResolver returns a pre-shared secret configured at process start.
// It never performs I/O.
type StaticResolver struct {
	value Secret
}

// NewStaticResolver creates a resolver for a pre-shared secret value.
// Returns an error with code [sserr.CodeMissingConfig] if the value is
// empty: an authenticator without signing material must not start.
func NewStaticResolver(value Secret) (*StaticResolver, error) {
	if value.Value() == "" {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"secrets: static signing secret is empty")
	}
	return &StaticResolver{value: value}, nil
}

// Resolve returns the configured value.
func (r *StaticResolver) Resolve(ctx context.Context) (string, error) {
	return r.value.Value(), nil
}

// Source returns SourceStatic.
func (r *StaticResolver) Source() Source { return SourceStatic }

// ParameterGetter reads a named parameter from the remote parameter store.
// It is satisfied by [paramstore.Client] and by mock implementations in
// tests.
type ParameterGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// RemoteResolver fetches the signing secret from the platform parameter
// store by name. Read access is the only operation performed.
type RemoteResolver struct {
	store ParameterGetter
	name  string
}

// NewRemoteResolver creates a resolver that reads the named parameter from
// the given store. Returns an error with code [sserr.CodeMissingConfig] if
// the store is nil or the parameter name is empty.
func NewRemoteResolver(store ParameterGetter, name string) (*RemoteResolver, error) {
	if store == nil {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"secrets: remote secret source requires a parameter store client")
	}
	if name == "" {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"secrets: remote secret source requires a parameter name")
	}
	return &RemoteResolver{store: store, name: name}, nil
}

// Resolve reads the parameter value from the store.
func (r *RemoteResolver) Resolve(ctx context.Context) (string, error) {
	value, err := r.store.GetParameter(ctx, r.name)
	if err != nil {
		return "", sserr.Wrapf(err, sserr.CodeRequestFailed,
			"secrets: failed to fetch parameter %q", r.name)
	}
	if value == "" {
		return "", sserr.Newf(sserr.CodeMissingConfig,
			"secrets: parameter %q resolved to an empty value", r.name)
	}
	return value, nil
}

// Source returns SourceRemote.
func (r *RemoteResolver) Source() Source { return SourceRemote }
