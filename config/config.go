package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// BaseConfig contains relay's core configuration needs.
// Applications can embed this in their own config structs to inherit relay's settings.
type BaseConfig struct {
	HTTPPort    int    `toml:"http_port" env:"HTTP_PORT"`
	HealthPort  int    `toml:"health_port" env:"HEALTH_PORT"`
	MetricsPort int    `toml:"metrics_port" env:"METRICS_PORT"`
	LogLevel    string `toml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string `toml:"log_format" env:"LOG_FORMAT"`
	Environment string `toml:"environment" env:"ENVIRONMENT"`
}

// PipelineConfig lists the handler strings a dispatcher is built from, in
// chain order. Each entry is a service key, a registered type name, or
// "Key@method".
type PipelineConfig struct {
	Middleware []string `toml:"middleware" env:"PIPELINE_MIDDLEWARE"`
}

// AuthConfig holds credentials for the bundled auth middleware.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret" env:"JWT_SECRET"`
	// Users maps a user name to its bcrypt hash.
	Users map[string]string `toml:"users"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `toml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	ExposedHeaders   []string `toml:"exposed_headers"`
	AllowCredentials bool     `toml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
	MaxAge           int      `toml:"max_age"`
}

// DefaultCORSConfig returns a permissive CORS config for development
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// GetHTTPPort returns the HTTP port to use, checking Nomad dynamic port allocation first.
// If NOMAD_PORT_http is set and valid, it returns that value.
// Otherwise, it falls back to the configured HTTPPort value.
func (b *BaseConfig) GetHTTPPort() int {
	return resolvePort("http", b.HTTPPort)
}

// GetHealthPort returns the health port to use, checking NOMAD_PORT_health first.
func (b *BaseConfig) GetHealthPort() int {
	return resolvePort("health", b.HealthPort)
}

// GetMetricsPort returns the metrics port to use, checking NOMAD_PORT_metrics first.
func (b *BaseConfig) GetMetricsPort() int {
	return resolvePort("metrics", b.MetricsPort)
}

// resolvePort checks for Nomad dynamic port allocation and falls back to configured value.
// label is the port label (e.g., "http", "health", "metrics")
func resolvePort(label string, fallback int) int {
	envVar := "NOMAD_PORT_" + label
	nomadPort := os.Getenv(envVar)

	if nomadPort == "" {
		return fallback
	}

	port, err := strconv.Atoi(nomadPort)
	if err != nil {
		log.Warn().Str("env", envVar).Str("value", nomadPort).Int("fallback", fallback).
			Msg("invalid Nomad port, falling back to configured port")
		return fallback
	}

	log.Info().Str("label", label).Int("port", port).Msg("using Nomad-assigned port")
	return port
}

// Loader handles loading configuration from TOML files and environment variables.
type Loader struct {
	configPath string
	dotEnvPath string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithDotEnv makes Load read path as a .env file before applying
// environment overrides. Variables already present in the environment
// win over the file. A missing file is ignored.
func WithDotEnv(path string) LoaderOption {
	return func(l *Loader) {
		l.dotEnvPath = path
	}
}

// NewLoader creates a new config loader for the specified TOML file path.
func NewLoader(configPath string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configPath: configPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the TOML configuration file and unmarshals it into the provided config struct.
// It then applies environment variable overrides for any fields with an `env` tag.
// The config parameter must be a pointer to a struct.
func (l *Loader) Load(config any) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Pointer {
		return fmt.Errorf("config must be a pointer to a struct, got %T", config)
	}
	if rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config must be a pointer to a struct, got pointer to %v", rv.Elem().Kind())
	}

	// A missing file leaves zero values for the env overrides to fill in
	if _, err := toml.DecodeFile(l.configPath, config); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to decode TOML file %s: %w", l.configPath, err)
	}

	if l.dotEnvPath != "" {
		if err := godotenv.Load(l.dotEnvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", l.dotEnvPath, err)
		}
	}

	if err := applyEnvOverrides(rv.Elem()); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return nil
}

// applyEnvOverrides recursively walks through struct fields and applies env overrides.
func applyEnvOverrides(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := applyEnvOverrides(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue, fieldType.Name); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

// setFieldFromString sets a struct field value from a string based on the field's type.
// String slices are read as comma-separated lists.
func setFieldFromString(field reflect.Value, value string, fieldName string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int for field %s: %w", value, fieldName, err)
		}
		field.SetInt(intVal)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintVal, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as uint for field %s: %w", value, fieldName, err)
		}
		field.SetUint(uintVal)
		return nil

	case reflect.Bool:
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as bool for field %s: %w", value, fieldName, err)
		}
		field.SetBool(boolVal)
		return nil

	case reflect.Float32, reflect.Float64:
		floatVal, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as float for field %s: %w", value, fieldName, err)
		}
		field.SetFloat(floatVal)
		return nil

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v for field %s", field.Type(), fieldName)
		}
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		list := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, item := range items {
			list.Index(i).SetString(item)
		}
		field.Set(list)
		return nil

	default:
		return fmt.Errorf("unsupported field type %v for field %s", field.Kind(), fieldName)
	}
}
