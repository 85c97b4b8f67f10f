package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// gateTestConfig mirrors the shape of the subsystem's real configuration
// structs: strings, durations, bools, a string slice, and a nested struct.
type gateTestConfig struct {
	Issuer       string        `env:"ISSUER" envDefault:"stricklysoft-platform" yaml:"issuer"`
	Audience     string        `env:"AUDIENCE" yaml:"audience"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s" yaml:"timeout"`
	Enforce      bool          `env:"ENFORCE" envDefault:"true" yaml:"enforce"`
	AllowedPaths []string      `env:"ALLOWED_PATHS" envDefault:"/healthz,/livez" yaml:"allowed_paths"`
	Exchange     struct {
		BaseURL string `env:"BASE_URL" yaml:"base_url" required:"true"`
	} `env:"EXCHANGE" yaml:"exchange"`
}

func TestLoad_DefaultsApplied(t *testing.T) {
	var cfg gateTestConfig
	t.Setenv("EXCHANGE_BASE_URL", "http://exchange.local")

	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "stricklysoft-platform", cfg.Issuer)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Enforce)
	assert.Equal(t, []string{"/healthz", "/livez"}, cfg.AllowedPaths)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	var cfg gateTestConfig
	t.Setenv("ISSUER", "other-issuer")
	t.Setenv("TIMEOUT", "5s")
	t.Setenv("ENFORCE", "false")
	t.Setenv("EXCHANGE_BASE_URL", "http://exchange.local")

	err := New().Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "other-issuer", cfg.Issuer)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.False(t, cfg.Enforce)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	var cfg gateTestConfig
	t.Setenv("AUTH_ISSUER", "prefixed-issuer")
	t.Setenv("AUTH_EXCHANGE_BASE_URL", "http://exchange.local")

	err := New().WithEnvPrefix("auth").Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "prefixed-issuer", cfg.Issuer)
	assert.Equal(t, "http://exchange.local", cfg.Exchange.BaseURL)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("issuer: file-issuer\nexchange:\n  base_url: http://from-file\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	var cfg gateTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "file-issuer", cfg.Issuer)
	assert.Equal(t, "http://from-file", cfg.Exchange.BaseURL)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("issuer: file-issuer\nexchange:\n  base_url: http://from-file\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("ISSUER", "env-issuer")

	var cfg gateTestConfig
	err := New().WithFile(path).Load(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "env-issuer", cfg.Issuer)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	var cfg gateTestConfig
	t.Setenv("EXCHANGE_BASE_URL", "http://exchange.local")

	err := New().WithFile("/nonexistent/config.yaml").Load(&cfg)
	assert.NoError(t, err)
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg gateTestConfig

	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, sserr.CodeMissingConfig, sserr.GetCode(err))
	assert.Contains(t, err.Error(), "Exchange.BaseURL")
}

func TestLoad_PathTraversalRejected(t *testing.T) {
	t.Parallel()
	var cfg gateTestConfig

	err := New().WithFile("../../etc/passwd.yaml").Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInvalidConfig, sserr.GetCode(err))
}

func TestLoad_NonPointerRejected(t *testing.T) {
	t.Parallel()
	err := New().Load(gateTestConfig{})
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInvalidConfig, sserr.GetCode(err))
}

func TestLoad_BadDuration(t *testing.T) {
	var cfg gateTestConfig
	t.Setenv("TIMEOUT", "not-a-duration")
	t.Setenv("EXCHANGE_BASE_URL", "http://exchange.local")

	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInvalidConfig, sserr.GetCode(err))
}

// validatingConfig implements the Validator interface.
type validatingConfig struct {
	SoftTTL time.Duration `env:"SOFT_TTL" envDefault:"5m"`
	HardTTL time.Duration `env:"HARD_TTL" envDefault:"1h"`
}

func (c *validatingConfig) Validate() error {
	if c.HardTTL < c.SoftTTL {
		return sserr.New(sserr.CodeInvalidConfig,
			"config: hard TTL must not be shorter than soft TTL")
	}
	return nil
}

func TestLoad_CustomValidatorRuns(t *testing.T) {
	var cfg validatingConfig
	t.Setenv("HARD_TTL", "1m")

	err := New().Load(&cfg)
	require.Error(t, err)
	assert.Equal(t, sserr.CodeInvalidConfig, sserr.GetCode(err))
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		MustLoad[gateTestConfig](New())
	})
}
