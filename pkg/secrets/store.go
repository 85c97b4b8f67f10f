package secrets

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-auth/pkg/secrets"

// Default TTLs for the two-slot secret cache.
const (
	// DefaultSoftTTL is how long a fetched secret is considered fresh.
	// After it elapses, the next Current call re-resolves the secret
	// before returning.
	DefaultSoftTTL = 5 * time.Minute

	// DefaultHardTTL bounds the rotation grace window. A secret demoted
	// to the previous slot stops verifying tokens once this elapses.
	DefaultHardTTL = 1 * time.Hour

	// DefaultFetchTimeout bounds a single resolve against the secret
	// source.
	DefaultFetchTimeout = 10 * time.Second
)

// Config holds the TTL settings for [Store].
type Config struct {
	// SoftTTL is the freshness window of the current secret. Must be
	// positive.
	SoftTTL time.Duration `json:"soft_ttl" yaml:"soft_ttl" env:"SOFT_TTL" envDefault:"5m"`

	// HardTTL is the rotation grace window for the previous secret.
	// Must be at least SoftTTL.
	HardTTL time.Duration `json:"hard_ttl" yaml:"hard_ttl" env:"HARD_TTL" envDefault:"1h"`

	// FetchTimeout bounds each resolve against the secret source. Must
	// be positive.
	FetchTimeout time.Duration `json:"fetch_timeout" yaml:"fetch_timeout" env:"FETCH_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns a Config with the default TTLs.
func DefaultConfig() Config {
	return Config{
		SoftTTL:      DefaultSoftTTL,
		HardTTL:      DefaultHardTTL,
		FetchTimeout: DefaultFetchTimeout,
	}
}

// Validate checks the configuration for logical correctness.
func (c *Config) Validate() error {
	if c.SoftTTL <= 0 {
		return sserr.New(sserr.CodeInvalidConfig, "secrets: soft TTL must be positive")
	}
	if c.HardTTL < c.SoftTTL {
		return sserr.New(sserr.CodeInvalidConfig, "secrets: hard TTL must not be shorter than soft TTL")
	}
	if c.FetchTimeout <= 0 {
		return sserr.New(sserr.CodeInvalidConfig, "secrets: fetch timeout must be positive")
	}
	return nil
}

// Store is the two-slot signing-secret cache. It holds at most one current
// and one previous secret, refreshes the current secret after the soft TTL,
// and evicts the previous secret after the hard TTL.
//
// Concurrent callers that would all trigger a refresh collapse into a
// single resolve (single-flight); every waiter observes the result. A
// shared in-flight resolve is never cancelled because one waiter's request
// context ended; it completes for the remaining waiters.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	resolver     Resolver
	softTTL      time.Duration
	hardTTL      time.Duration
	fetchTimeout time.Duration
	tracer       trace.Tracer

	// now is the clock; replaced in tests.
	now func() time.Time

	mu         sync.Mutex
	current    *SigningSecret
	previous   *SigningSecret
	demotedAt  time.Time
	inflight   chan struct{}
	refreshErr error
}

// NewStore creates a Store backed by the given resolver. The configuration
// is validated before use.
func NewStore(resolver Resolver, cfg Config) (*Store, error) {
	if resolver == nil {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"secrets: store requires a resolver")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		resolver:     resolver,
		softTTL:      cfg.SoftTTL,
		hardTTL:      cfg.HardTTL,
		fetchTimeout: cfg.FetchTimeout,
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
	}, nil
}

// Validate performs the startup probe: it resolves the secret source once
// and fails with a configuration error if the source is unreachable or
// empty. Call it during process initialization; an authenticator whose
// secret source cannot be resolved must not start serving.
func (s *Store) Validate(ctx context.Context) error {
	if _, err := s.ForceRefresh(ctx); err != nil {
		return sserr.Wrap(err, sserr.CodeMissingConfig,
			"secrets: signing secret source could not be resolved at startup")
	}
	return nil
}

// Current returns the current signing secret, resolving it on first use.
// If the soft TTL has elapsed, the secret is re-resolved before returning;
// when that re-resolve fails but a cached secret exists, the cached secret
// is returned so that a transient source outage does not take down token
// validation.
func (s *Store) Current(ctx context.Context) (SigningSecret, error) {
	s.mu.Lock()
	s.evictStalePreviousLocked()
	cur := s.current
	fresh := cur != nil && s.now().Sub(cur.FetchedAt) < s.softTTL
	s.mu.Unlock()

	if fresh {
		return *cur, nil
	}

	refreshed, err := s.refresh(ctx)
	if err != nil {
		if cur != nil {
			// Soft-stale but still usable; rotation will be picked up
			// on a later refresh or via ForceRefresh.
			return *cur, nil
		}
		return SigningSecret{}, err
	}
	return refreshed, nil
}

// Previous returns the demoted secret from the rotation grace window, if
// one is present and its hard TTL has not elapsed.
func (s *Store) Previous() (SigningSecret, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictStalePreviousLocked()
	if s.previous == nil {
		return SigningSecret{}, false
	}
	return *s.previous, true
}

// ForceRefresh resolves the secret source immediately, bypassing the soft
// TTL. If the resolved value differs from the cached current secret, the
// old value is demoted to the previous slot, opening the rotation grace
// window. Concurrent forced refreshes collapse into one resolve.
func (s *Store) ForceRefresh(ctx context.Context) (SigningSecret, error) {
	return s.refresh(ctx)
}

// refresh performs a single-flight resolve. The caller that finds no
// resolve in flight starts one; everyone else waits for its completion and
// observes the same outcome. A waiter whose context ends stops waiting,
// but the resolve itself runs on a detached context and completes for the
// remaining waiters.
func (s *Store) refresh(ctx context.Context) (SigningSecret, error) {
	s.mu.Lock()
	if ch := s.inflight; ch != nil {
		s.mu.Unlock()
		select {
		case <-ch:
			return s.refreshResult()
		case <-ctx.Done():
			return SigningSecret{}, sserr.Wrap(ctx.Err(), sserr.CodeTimeout,
				"secrets: gave up waiting for in-flight secret refresh")
		}
	}
	ch := make(chan struct{})
	s.inflight = ch
	s.mu.Unlock()

	// Detach from the caller so one caller's cancellation cannot abort a
	// fetch other waiters depend on.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	value, err := s.resolve(fetchCtx)

	s.mu.Lock()
	if err != nil {
		s.refreshErr = err
	} else {
		s.installLocked(value)
		s.refreshErr = nil
	}
	s.inflight = nil
	s.mu.Unlock()
	close(ch)

	return s.refreshResult()
}

// resolve performs the traced call against the secret source.
func (s *Store) resolve(ctx context.Context) (string, error) {
	ctx, span := s.tracer.Start(ctx, "secrets.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("secrets.source", string(s.resolver.Source())))

	value, err := s.resolver.Resolve(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return value, nil
}

// refreshResult reads the outcome of the most recent refresh.
func (s *Store) refreshResult() (SigningSecret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return SigningSecret{}, sserr.Wrap(s.refreshErr, sserr.CodeRequestFailed,
			"secrets: secret refresh failed")
	}
	if s.current == nil {
		return SigningSecret{}, sserr.New(sserr.CodeInternal,
			"secrets: refresh completed without a secret")
	}
	return *s.current, nil
}

// installLocked stores a freshly resolved value, demoting the old current
// secret when the value actually changed. Caller must hold mu.
func (s *Store) installLocked(value string) {
	fetched := &SigningSecret{
		Value:     Secret(value),
		FetchedAt: s.now(),
		Source:    s.resolver.Source(),
	}
	if s.current != nil && s.current.Value != fetched.Value {
		s.previous = s.current
		s.demotedAt = s.now()
	}
	s.current = fetched
}

// evictStalePreviousLocked closes the rotation grace window once the hard
// TTL has elapsed since demotion. Caller must hold mu.
func (s *Store) evictStalePreviousLocked() {
	if s.previous != nil && s.now().Sub(s.demotedAt) >= s.hardTTL {
		s.previous = nil
	}
}
