package paramstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/StricklySoft/stricklysoft-auth/pkg/clients/paramstore"

// Cmdable is the narrow slice of Redis commands the parameter store client
// uses. It is satisfied by [*redis.Client] and by mock implementations for
// unit testing via [NewFromCmdable].
type Cmdable interface {
	// Get returns the string value of a key.
	Get(ctx context.Context, key string) *redis.StringCmd

	// Ping verifies connectivity.
	Ping(ctx context.Context) *redis.StatusCmd

	// Close releases connection resources.
	Close() error
}

// Compile-time check that *redis.Client satisfies Cmdable.
var _ Cmdable = (*redis.Client)(nil)

// Client reads named parameters from the platform parameter store. It is
// safe for concurrent use; create one Client per store and share it.
type Client struct {
	cmdable Cmdable
	tracer  trace.Tracer
}

// NewClient connects to the parameter store described by cfg and verifies
// connectivity with a ping before returning.
//
// Error codes returned:
//   - [sserr.CodeMissingConfig] / [sserr.CodeInvalidConfig]: bad configuration
//   - [sserr.CodeRequestFailed]: store unreachable
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Location,
		Password:    cfg.Password.Value(),
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
		PoolSize:    cfg.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sserr.Wrap(err, sserr.CodeRequestFailed,
			"paramstore: failed to connect to parameter store")
	}

	return &Client{
		cmdable: rdb,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// NewFromCmdable creates a Client around an existing [Cmdable]. Intended
// for tests that inject a mock instead of a live store.
func NewFromCmdable(cmdable Cmdable) *Client {
	return &Client{
		cmdable: cmdable,
		tracer:  otel.Tracer(tracerName),
	}
}

// GetParameter returns the value of the named parameter. A missing
// parameter is a configuration error, not a transient failure: the
// rotation tooling is expected to keep the parameter present at all times.
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "paramstore.GetParameter",
		trace.WithAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("paramstore.parameter", name),
		))
	defer span.End()

	val, err := c.cmdable.Get(ctx, name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			notFound := sserr.Newf(sserr.CodeMissingConfig,
				"paramstore: parameter %q does not exist", name)
			span.RecordError(notFound)
			span.SetStatus(codes.Error, notFound.Error())
			return "", notFound
		}
		wrapped := sserr.Wrapf(err, sserr.CodeRequestFailed,
			"paramstore: lookup of parameter %q failed", name)
		span.RecordError(wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		return "", wrapped
	}

	return val, nil
}

// Ping verifies connectivity to the store. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.cmdable.Ping(ctx).Err(); err != nil {
		return sserr.Wrap(err, sserr.CodeRequestFailed,
			"paramstore: ping failed")
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if err := c.cmdable.Close(); err != nil {
		return fmt.Errorf("paramstore: close failed: %w", err)
	}
	return nil
}
