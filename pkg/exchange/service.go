// Package exchange trades a validated bearer token for short-lived
// downstream cloud credentials, caching them per identity until near
// expiry.
//
// The downstream authority re-verifies the forwarded token independently;
// this package never vouches for a token it did not receive from an
// enforcing gate. Credentials are immutable once issued and are replaced,
// never mutated, on refresh.
//
// # Caching
//
// Credentials are cached per identity, keyed by the identity's stable
// subject key. A cached credential is reused while its expiry is more than
// the configured refresh buffer away. Concurrent cache misses for the same
// identity collapse into one exchange call; distinct identities never
// block each other. The cache is capped: admitting a new identity at
// capacity evicts expired credentials first, then the one closest to
// expiry.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-auth/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
	"github.com/StricklySoft/stricklysoft-auth/pkg/secrets"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-auth/pkg/exchange"

// credentialsPath is the downstream authority's exchange endpoint, relative
// to the configured base URL.
const credentialsPath = "/api/auth/get_credentials"

// maxResponseSize bounds the exchange response body (1 MB).
const maxResponseSize = 1 << 20

// Default timing for credential exchange.
const (
	// DefaultTimeout bounds a single exchange call.
	DefaultTimeout = 30 * time.Second

	// DefaultRefreshBuffer is how long before expiry a cached credential
	// stops being served and a fresh exchange is performed.
	DefaultRefreshBuffer = 5 * time.Minute
)

// DefaultMaxCacheEntries caps the per-identity credential cache.
const DefaultMaxCacheEntries = 1024

// HTTPClient abstracts the HTTP client used for the exchange call, allowing
// tests and callers to inject custom transports. The standard [http.Client]
// satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the settings for [Service].
type Config struct {
	// BaseURL is the downstream authority's base URL. Mandatory; the
	// exchange endpoint path is appended to it.
	BaseURL string `json:"base_url" yaml:"base_url" env:"BASE_URL"`

	// Timeout bounds a single exchange call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT" envDefault:"30s"`

	// RefreshBuffer is how long before expiry a cached credential is
	// refreshed instead of served.
	RefreshBuffer time.Duration `json:"refresh_buffer" yaml:"refresh_buffer" env:"REFRESH_BUFFER" envDefault:"5m"`

	// ObjectEndpoint is the S3-compatible object storage endpoint
	// (host:port) that exchanged credentials grant access to. Required
	// only by [Service.ObjectSession].
	ObjectEndpoint string `json:"object_endpoint" yaml:"object_endpoint" env:"OBJECT_ENDPOINT"`

	// ObjectUseSSL controls TLS for the object storage endpoint.
	ObjectUseSSL bool `json:"object_use_ssl" yaml:"object_use_ssl" env:"OBJECT_USE_SSL"`

	// MaxCacheEntries caps the credential cache. When a new identity
	// would push the cache past the cap, expired entries are evicted
	// first, then the entry closest to expiry. Zero selects
	// [DefaultMaxCacheEntries].
	MaxCacheEntries int `json:"max_cache_entries" yaml:"max_cache_entries" env:"MAX_CACHE_ENTRIES" envDefault:"1024"`

	// HTTPClient performs the exchange call. If nil, an [http.Client]
	// without its own timeout is used; the per-call timeout governs.
	HTTPClient HTTPClient `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with standard timing. BaseURL must still
// be set by the caller.
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		RefreshBuffer:   DefaultRefreshBuffer,
		MaxCacheEntries: DefaultMaxCacheEntries,
	}
}

// Validate checks the configuration for logical correctness. An unset
// BaseURL is a startup error, not a per-request one.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return sserr.New(sserr.CodeMissingConfig,
			"exchange: base URL of the credential authority is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return sserr.Wrap(err, sserr.CodeInvalidConfig,
			"exchange: base URL is not a valid URL")
	}
	if c.Timeout <= 0 {
		return sserr.New(sserr.CodeInvalidConfig, "exchange: timeout must be positive")
	}
	if c.RefreshBuffer < 0 {
		return sserr.New(sserr.CodeInvalidConfig,
			"exchange: refresh buffer must be non-negative")
	}
	if c.MaxCacheEntries < 0 {
		return sserr.New(sserr.CodeInvalidConfig,
			"exchange: max cache entries must be non-negative")
	}
	return nil
}

// Credential is a short-lived downstream credential issued for one
// identity. It is immutable; a refresh produces a new value.
type Credential struct {
	// AccessKeyID is the credential's access key identifier.
	AccessKeyID string

	// SecretKey is the credential's secret. The Secret type redacts it
	// in logs and serialized output.
	SecretKey secrets.Secret

	// SessionToken is the temporary session token accompanying the key
	// pair.
	SessionToken secrets.Secret

	// ExpiresAt is when the credential stops being usable.
	ExpiresAt time.Time

	// SubjectKey identifies the identity this credential was issued for.
	SubjectKey string
}

// IdentitySummary is a caller-safe view of the current identity.
type IdentitySummary struct {
	// ID is the identity's subject identifier.
	ID string

	// DisplayName is a human-readable label for the identity.
	DisplayName string
}

// cacheEntry holds one identity's credential behind a per-identity lock.
// Holding the lock across the exchange call gives single-flight semantics
// for that identity without blocking any other. The lock is a channel
// semaphore so a waiter can abandon the wait when its context ends
// instead of blocking on the leader's exchange.
type cacheEntry struct {
	lock chan struct{}
	cred *Credential
}

func newCacheEntry() *cacheEntry {
	return &cacheEntry{lock: make(chan struct{}, 1)}
}

// acquire takes the entry lock or gives up when ctx ends first.
func (e *cacheEntry) acquire(ctx context.Context) error {
	select {
	case e.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return sserr.Wrap(ctx.Err(), sserr.CodeTimeout,
				"exchange: timed out waiting for an in-flight exchange")
		}
		return sserr.Wrap(ctx.Err(), sserr.CodeRequestFailed,
			"exchange: abandoned the wait for an in-flight exchange")
	}
}

// tryAcquire takes the entry lock without blocking.
func (e *cacheEntry) tryAcquire() bool {
	select {
	case e.lock <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *cacheEntry) release() { <-e.lock }

// Service exchanges validated tokens for downstream credentials. It reads
// the identity from the request context installed by the authentication
// gate.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	baseURL        string
	timeout        time.Duration
	refreshBuffer  time.Duration
	objectEndpoint string
	objectUseSSL   bool
	client         HTTPClient
	tracer         trace.Tracer
	maxEntries     int

	// now is the clock, replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewService creates a Service from the given configuration. Configuration
// problems are reported here, at startup, never per request.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	maxEntries := cfg.MaxCacheEntries
	if maxEntries == 0 {
		maxEntries = DefaultMaxCacheEntries
	}

	return &Service{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		timeout:        cfg.Timeout,
		refreshBuffer:  cfg.RefreshBuffer,
		objectEndpoint: cfg.ObjectEndpoint,
		objectUseSSL:   cfg.ObjectUseSSL,
		client:         client,
		tracer:         otel.Tracer(tracerName),
		maxEntries:     maxEntries,
		now:            time.Now,
		entries:        make(map[string]*cacheEntry),
	}, nil
}

// GetCredential returns a usable credential for the identity on the
// context, exchanging the identity's token with the downstream authority
// when no sufficiently fresh cached credential exists.
//
// Error codes returned:
//   - [sserr.CodeMissingIdentity]: no validated identity on the context
//   - [sserr.CodeInvalidJWT]: the authority rejected the token (401)
//   - [sserr.CodeForbidden]: the authority denied the exchange (403);
//     never retried
//   - [sserr.CodeInvalidResponse]: the authority's reply is malformed
//   - [sserr.CodeTimeout] / [sserr.CodeRequestFailed]: transient transport
//     failure; the caller may retry with backoff
func (s *Service) GetCredential(ctx context.Context) (*Credential, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, sserr.New(sserr.CodeMissingIdentity,
			"exchange: no validated identity in context")
	}

	entry := s.entry(identity.SubjectKey())

	// The per-identity lock is held across the exchange so concurrent
	// misses for the same identity collapse into one call. Waiters
	// re-check the cache once they acquire the lock and observe the
	// leader's result, or abandon the wait when their context ends.
	if err := entry.acquire(ctx); err != nil {
		return nil, err
	}
	defer entry.release()

	if entry.cred != nil && entry.cred.ExpiresAt.After(s.now().Add(s.refreshBuffer)) {
		return entry.cred, nil
	}

	cred, err := s.exchange(ctx, identity)
	if err != nil {
		return nil, err
	}
	entry.cred = cred
	return cred, nil
}

// IdentitySummary returns a caller-safe summary of the identity on the
// context, or false when none is present.
func (s *Service) IdentitySummary(ctx context.Context) (IdentitySummary, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return IdentitySummary{}, false
	}
	return IdentitySummary{
		ID:          identity.Claims.Subject(),
		DisplayName: identity.DisplayName(),
	}, true
}

// entry returns the cache entry for the given subject key, creating it if
// needed. The service lock is held only for the map access, never across
// an exchange call. Admitting a new identity while the cache is at
// capacity evicts expired entries first, then the entry closest to expiry.
func (s *Service) entry(subjectKey string) *cacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[subjectKey]
	if !ok {
		if len(s.entries) >= s.maxEntries {
			s.evictLocked()
		}
		e = newCacheEntry()
		s.entries[subjectKey] = e
	}
	return e
}

// evictLocked frees room in the entry map: every expired credential is
// removed, and if the map is still at capacity the credential closest to
// expiry goes too. Entries whose lock is held have an exchange in flight
// and are left for their waiters. Caller must hold the service lock.
func (s *Service) evictLocked() {
	now := s.now()
	var oldestKey string
	var oldestExp time.Time
	for k, e := range s.entries {
		if !e.tryAcquire() {
			continue
		}
		cred := e.cred
		e.release()
		if cred == nil {
			continue
		}
		if now.After(cred.ExpiresAt) {
			delete(s.entries, k)
			continue
		}
		if oldestKey == "" || cred.ExpiresAt.Before(oldestExp) {
			oldestKey = k
			oldestExp = cred.ExpiresAt
		}
	}
	if len(s.entries) >= s.maxEntries && oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}

// exchangeResponse is the JSON reply of the downstream exchange endpoint.
// All four fields are required; any absence makes the reply invalid.
// Pointers distinguish an absent field from a present-but-empty one; only
// absence is a protocol violation.
type exchangeResponse struct {
	AccessKeyID     *string `json:"AccessKeyId"`
	SecretAccessKey *string `json:"SecretAccessKey"`
	SessionToken    *string `json:"SessionToken"`
	Expiration      *string `json:"Expiration"`
}

// exchange performs a single bounded exchange call. It is never retried
// here; transient failures are surfaced for the caller to back off on.
func (s *Service) exchange(ctx context.Context, identity *auth.ValidatedIdentity) (*Credential, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.GetCredentials",
		trace.WithAttributes(attribute.String("exchange.base_url", s.baseURL)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+credentialsPath, nil)
	if err != nil {
		return nil, fail(span, sserr.Wrap(err, sserr.CodeRequestFailed,
			"exchange: failed to build the exchange request"))
	}
	req.Header.Set("Authorization", "Bearer "+identity.RawToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fail(span, classifyTransportError(err))
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fail(span, sserr.New(sserr.CodeInvalidJWT,
			"exchange: the credential authority rejected the token"))
	case resp.StatusCode == http.StatusForbidden:
		return nil, fail(span, sserr.New(sserr.CodeForbidden,
			"exchange: the credential authority denied the exchange"))
	case resp.StatusCode != http.StatusOK:
		return nil, fail(span, sserr.Newf(sserr.CodeRequestFailed,
			"exchange: the credential authority returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fail(span, sserr.Wrap(err, sserr.CodeRequestFailed,
			"exchange: failed to read the exchange response"))
	}

	var parsed exchangeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fail(span, sserr.Wrap(err, sserr.CodeInvalidResponse,
			"exchange: the exchange response is not valid JSON"))
	}
	if parsed.AccessKeyID == nil || parsed.SecretAccessKey == nil ||
		parsed.SessionToken == nil || parsed.Expiration == nil {
		return nil, fail(span, sserr.New(sserr.CodeInvalidResponse,
			"exchange: the exchange response is missing required fields"))
	}

	expiresAt, err := time.Parse(time.RFC3339, *parsed.Expiration)
	if err != nil {
		return nil, fail(span, sserr.Wrap(err, sserr.CodeInvalidResponse,
			"exchange: the exchange response carries an unparseable expiration"))
	}

	return &Credential{
		AccessKeyID:  *parsed.AccessKeyID,
		SecretKey:    secrets.Secret(*parsed.SecretAccessKey),
		SessionToken: secrets.Secret(*parsed.SessionToken),
		ExpiresAt:    expiresAt,
		SubjectKey:   identity.SubjectKey(),
	}, nil
}

// classifyTransportError maps a transport failure onto timeout or
// request_failed.
func classifyTransportError(err error) error {
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()) {
		return sserr.Wrap(err, sserr.CodeTimeout,
			"exchange: the exchange call timed out")
	}
	return sserr.Wrap(err, sserr.CodeRequestFailed,
		"exchange: the exchange call failed")
}

// fail records err on the span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
