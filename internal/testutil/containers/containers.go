//go:build integration

// Package containers provides testcontainers-go helpers for integration
// testing against real service containers.
//
// All helpers in this package are gated behind the "integration" build
// tag so they do not pull Docker-related dependencies into unit test
// builds. Use them exclusively from test files that carry the same tag:
//
//	//go:build integration
//
// # Redis
//
// [StartRedis] starts a Redis 7 container and returns a [RedisResult]
// containing the container handle, a connection string (redis://...),
// and the bare host:port address:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
//
//	cfg := paramstore.Config{Location: result.Addr}
//
// # MinIO
//
// [StartMinIO] starts a MinIO container and returns a [MinIOResult]
// containing the container handle, API endpoint, and credentials:
//
//	result, err := containers.StartMinIO(ctx)
//	if err != nil { ... }
//	defer result.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"
	"net/url"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ===========================================================================
// Redis
// ===========================================================================

// DefaultRedisImage is the container image used for Redis integration
// tests. Alpine variant is used for minimal image size (~30 MB) and
// fast startup.
const DefaultRedisImage = "docker.io/redis:7-alpine"

// RedisResult holds a started Redis container and the connection details
// needed to connect to it. The caller is responsible for terminating
// the container when it is no longer needed:
//
//	defer result.Container.Terminate(ctx)
type RedisResult struct {
	// Container is the started Redis testcontainer. Use it to
	// retrieve mapped ports, inspect logs, or terminate the container.
	Container *tcredis.RedisContainer

	// ConnString is a Redis connection string in URI format
	// (e.g., "redis://localhost:55679/0").
	ConnString string

	// Addr is the bare host:port address extracted from ConnString
	// (e.g., "localhost:55679"). Pass this to configuration fields
	// that take an address rather than a URI.
	Addr string
}

// StartRedis starts a Redis 7 container using testcontainers-go and
// returns a [RedisResult] containing the container handle, connection
// string, and host:port address.
//
// The container is configured with [DefaultRedisImage] and no
// authentication (suitable for ephemeral test containers on a trusted
// local network).
//
// The caller must terminate the container when done:
//
//	result, err := containers.StartRedis(ctx)
//	if err != nil {
//	    return err
//	}
//	defer result.Container.Terminate(ctx)
func StartRedis(ctx context.Context) (*RedisResult, error) {
	container, err := tcredis.Run(ctx, DefaultRedisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get redis connection string: %w", err)
	}

	parsed, err := url.Parse(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to parse redis connection string: %w", err)
	}

	return &RedisResult{
		Container:  container,
		ConnString: connStr,
		Addr:       parsed.Host,
	}, nil
}

// ===========================================================================
// MinIO
// ===========================================================================

// DefaultMinIOImage is the container image used for MinIO integration
// tests. Uses the official MinIO image for S3-compatible object storage.
const DefaultMinIOImage = "docker.io/minio/minio:latest"

// DefaultMinIOAccessKey is the root access key for the MinIO container.
// This is a deliberately simple credential suitable only for ephemeral
// test containers.
const DefaultMinIOAccessKey = "minioadmin"

// DefaultMinIOSecretKey is the root secret key for the MinIO container.
// This is a deliberately simple credential suitable only for ephemeral
// test containers.
const DefaultMinIOSecretKey = "minioadmin"

// MinIOResult holds a started MinIO container and the connection details
// needed to connect to it. The caller is responsible for terminating
// the container when it is no longer needed:
//
//	defer result.Container.Terminate(ctx)
type MinIOResult struct {
	// Container is the started MinIO testcontainer. Use it to
	// retrieve mapped ports, inspect logs, or terminate the container.
	Container *tcminio.MinioContainer

	// Endpoint is the MinIO API endpoint (e.g., "localhost:55680").
	// Use this with the MinIO client SDK to connect.
	Endpoint string

	// AccessKey is the root access key for the MinIO container.
	AccessKey string

	// SecretKey is the root secret key for the MinIO container.
	SecretKey string
}

// StartMinIO starts a MinIO container using testcontainers-go and
// returns a [MinIOResult] containing the container handle, API endpoint,
// and root credentials.
//
// The container is configured with [DefaultMinIOImage],
// [DefaultMinIOAccessKey], and [DefaultMinIOSecretKey].
//
// The caller must terminate the container when done:
//
//	result, err := containers.StartMinIO(ctx)
//	if err != nil {
//	    return err
//	}
//	defer result.Container.Terminate(ctx)
func StartMinIO(ctx context.Context) (*MinIOResult, error) {
	container, err := tcminio.Run(ctx,
		DefaultMinIOImage,
		tcminio.WithUsername(DefaultMinIOAccessKey),
		tcminio.WithPassword(DefaultMinIOSecretKey),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: failed to start minio container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("containers: failed to get minio connection string: %w", err)
	}

	return &MinIOResult{
		Container: container,
		Endpoint:  connStr,
		AccessKey: DefaultMinIOAccessKey,
		SecretKey: DefaultMinIOSecretKey,
	}, nil
}
