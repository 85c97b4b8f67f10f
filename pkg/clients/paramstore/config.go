// Package paramstore provides read access to the platform's Redis-backed
// parameter store, where operational parameters such as the token signing
// secret are published. The client performs lookups only; writing
// parameters is the responsibility of the rotation tooling, not of any
// service consuming them.
//
// The client wraps go-redis (github.com/redis/go-redis/v9) and adds
// OpenTelemetry tracing and structured error handling to each lookup.
// Connection pooling and reconnection are handled by go-redis.
//
// # Configuration
//
//	cfg := paramstore.DefaultConfig()
//	cfg.Location = "params.platform.svc.cluster.local:6379"
//	client, err := paramstore.NewClient(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// For testing, use [NewFromCmdable] to inject a mock:
//
//	client := paramstore.NewFromCmdable(mock)
package paramstore

import (
	"strings"
	"time"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
	"github.com/StricklySoft/stricklysoft-auth/pkg/secrets"
)

// Default connection settings for platform deployments, where the
// parameter store runs behind a Kubernetes Service.
const (
	// DefaultLocation is the Kubernetes Service address of the parameter
	// store in the platform cluster.
	DefaultLocation = "params.platform.svc.cluster.local:6379"

	// DefaultDialTimeout bounds establishing a new connection.
	DefaultDialTimeout = 10 * time.Second

	// DefaultReadTimeout bounds a single lookup.
	DefaultReadTimeout = 5 * time.Second

	// DefaultPoolSize is the maximum number of pooled connections. The
	// store is consulted only on secret refresh, so a small pool is
	// plenty.
	DefaultPoolSize = 5
)

// Config holds the connection settings for [Client].
type Config struct {
	// Location is the address (host:port) of the parameter store. This
	// is the only mandatory setting; a remote secret source cannot be
	// used without it.
	Location string `json:"location" yaml:"location" env:"LOCATION"`

	// Password authenticates against the store, if it requires one.
	Password secrets.Secret `json:"-" yaml:"-" env:"PASSWORD"`

	// DB selects the logical database index.
	DB int `json:"db" yaml:"db" env:"DB"`

	// DialTimeout bounds establishing a new connection.
	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"DIAL_TIMEOUT" envDefault:"10s"`

	// ReadTimeout bounds a single lookup.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout" env:"READ_TIMEOUT" envDefault:"5s"`

	// PoolSize is the maximum number of pooled connections.
	PoolSize int `json:"pool_size" yaml:"pool_size" env:"POOL_SIZE" envDefault:"5"`
}

// DefaultConfig returns a Config with platform defaults.
func DefaultConfig() Config {
	return Config{
		Location:    DefaultLocation,
		DialTimeout: DefaultDialTimeout,
		ReadTimeout: DefaultReadTimeout,
		PoolSize:    DefaultPoolSize,
	}
}

// Validate checks the configuration for logical correctness.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Location) == "" {
		return sserr.New(sserr.CodeMissingConfig,
			"paramstore: location (host:port) is required for the remote secret source")
	}
	if c.DB < 0 {
		return sserr.New(sserr.CodeInvalidConfig, "paramstore: db index must be non-negative")
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 {
		return sserr.New(sserr.CodeInvalidConfig, "paramstore: timeouts must be non-negative")
	}
	if c.PoolSize < 0 {
		return sserr.New(sserr.CodeInvalidConfig, "paramstore: pool size must be non-negative")
	}
	return nil
}
