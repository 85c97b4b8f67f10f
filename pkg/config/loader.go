// Package config provides layered configuration loading for the
// authentication subsystem. Values are resolved in priority order:
//
//	envDefault struct tags  (lowest priority)
//	YAML/JSON config file  (medium priority)
//	Environment variables  (highest priority)
//
// The order mirrors how the platform deploys: defaults are baked into the
// code, a mounted config file provides environment-specific overrides, and
// env vars injected from Secrets take final precedence.
//
// # Struct Tags
//
//   - `env:"VAR_NAME"` maps the field to an environment variable
//   - `envDefault:"value"` sets a default when the field is zero-valued
//   - `required:"true"` fails validation if the field remains zero
//
// Fields must also carry `yaml` or `json` tags for file-based loading.
//
// # Startup Semantics
//
// Loading failures return errors with code [sserr.CodeInvalidConfig] or
// [sserr.CodeMissingConfig]. Callers are expected to treat these as fatal:
// a misconfigured authenticator must never start serving requests.
//
//	cfg := config.MustLoad[auth.ValidatorConfig](
//	    config.New().WithEnvPrefix("AUTH").WithFile("/etc/auth/config.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// durationType distinguishes time.Duration fields (Kind() == Int64) from
// plain int64 fields during struct traversal.
var durationType = reflect.TypeOf(time.Duration(0))

// Validator is an optional interface configuration structs may implement
// for custom cross-field validation. It runs after tag-based required
// checks succeed. Errors that are already *sserr.Error pass through
// unchanged; anything else is wrapped with [sserr.CodeInvalidConfig].
type Validator interface {
	Validate() error
}

// Loader resolves configuration with the layered strategy described in the
// package documentation. Configure it with [Loader.WithEnvPrefix] and
// [Loader.WithFile] before calling [Loader.Load].
//
// Loader is not safe for concurrent use; create one per Load call.
type Loader struct {
	envPrefix string
	filePath  string
}

// New creates a Loader with default settings (environment variables only,
// no prefix, no file).
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix sets a prefix joined with "_" to all env var names derived
// from "env" struct tags. WithEnvPrefix("AUTH") makes `env:"ISSUER"` read
// AUTH_ISSUER. The prefix is uppercased; empty disables prefixing.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets the path to a YAML (.yaml/.yml) or JSON (.json) config
// file. A missing file is not an error; file configuration is optional.
// Paths containing ".." are rejected at load time.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, in
// priority order: envDefault tags, then file values, then environment
// variables. After loading, `required:"true"` fields are checked and the
// struct's Validate method is invoked if it implements [Validator].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return sserr.New(sserr.CodeInvalidConfig,
			"config: Load requires a non-nil pointer to a struct")
	}

	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInvalidConfig,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}

	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}

	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}

	if err := checkRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, isStructured := sserr.AsError(err); isStructured {
				return err
			}
			return sserr.Wrap(err, sserr.CodeInvalidConfig,
				"config: custom validation failed")
		}
	}

	return nil
}

// MustLoad creates a zero value of T, loads configuration into it, and
// returns it. It panics on failure and belongs in process startup where a
// bad configuration must prevent the service from serving.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

// loadFile reads and unmarshals the configured file into cfg. Missing
// files are ignored.
func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInvalidConfig,
			"config: file path must not contain directory traversal sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInvalidConfig,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInvalidConfig,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return sserr.Wrapf(err, sserr.CodeInvalidConfig,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return sserr.Newf(sserr.CodeInvalidConfig,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// applyDefaults sets zero-valued fields to their envDefault tag values,
// recursing into nested structs.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}

		if err := setField(field, tag); err != nil {
			return sserr.Wrapf(err, sserr.CodeInvalidConfig,
				"config: failed to apply default for field %q", sf.Name)
		}
	}

	return nil
}

// applyEnv sets fields from environment variables named by "env" tags.
// Nested structs contribute their own env tag as an additional prefix
// segment, joined with "_".
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nestedPrefix := prefix
			if envTag != "" {
				if nestedPrefix != "" {
					nestedPrefix = nestedPrefix + "_" + envTag
				} else {
					nestedPrefix = envTag
				}
			}
			if err := applyEnv(field, nestedPrefix); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}

		envKey := envTag
		if prefix != "" {
			envKey = prefix + "_" + envTag
		}

		val, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		if err := setField(field, val); err != nil {
			return sserr.Wrapf(err, sserr.CodeInvalidConfig,
				"config: failed to set field %q from env var %q", sf.Name, envKey)
		}
	}

	return nil
}

// checkRequired verifies that all fields tagged `required:"true"` hold
// non-zero values, recursing into nested structs. The path parameter
// builds the dotted field path for error messages.
func checkRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)

		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := checkRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}

		if field.IsZero() {
			return sserr.Newf(sserr.CodeMissingConfig,
				"config: required field %q is empty", fieldPath)
		}
	}

	return nil
}

// setField parses value and stores it in field. Supported kinds: string
// (including named string types such as secrets.Secret), bool, the int
// family, time.Duration, and []string (comma-separated).
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}

	return nil
}
