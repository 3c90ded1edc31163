// Package config defines the service configuration and how it is loaded.
package config

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix   = "DIRECTLINK_"
	envFile     = "DIRECTLINK_CONFIG"
	envPort     = "PORT"
	defaultPort = "8080"
)

// listKeys are given as comma separated lists in the environment.
var listKeys = map[string]bool{
	"cors_allowed_origins":  true,
	"resolver_command_args": true,
}

// Config contains process configuration.
type Config struct {
	// Addr is the HTTP listen address. Defaults to :$PORT, or :8080.
	Addr string `koanf:"addr"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// ServiceName is reported to the tracing backend.
	ServiceName string `koanf:"service_name"`

	// RegisteredBackend names the in-process backend tried first. Empty
	// skips the registered strategy.
	RegisteredBackend string `koanf:"registered_backend"`

	// ResolverHTTPURL is the endpoint of an HTTP resolution backend. Empty
	// disables that strategy.
	ResolverHTTPURL     string        `koanf:"resolver_http_url"`
	ResolverHTTPToken   string        `koanf:"resolver_http_token"`
	ResolverHTTPTimeout time.Duration `koanf:"resolver_http_timeout"`

	// ResolverCommand is looked up on PATH and run with the share URL as its
	// last argument.
	ResolverCommand     string   `koanf:"resolver_command"`
	ResolverCommandArgs []string `koanf:"resolver_command_args"`

	// CoalesceRequests merges concurrent resolves of the same share URL.
	CoalesceRequests bool `koanf:"coalesce_requests"`

	// CORSAllowedOrigins lists origins allowed to call the API; "*" allows
	// any origin.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// TelemetryExporter is one of none, stdout, otlp.
	TelemetryExporter string `koanf:"telemetry_exporter"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New returns a Config populated with defaults.
func New() *Config {
	port := os.Getenv(envPort)
	if port == "" {
		port = defaultPort
	}
	return &Config{
		Addr:                net.JoinHostPort("", port),
		LogLevel:            "info",
		ServiceName:         "directlink",
		ResolverHTTPTimeout: 30 * time.Second,
		ResolverCommand:     "terabox-downloader",
		CoalesceRequests:    true,
		CORSAllowedOrigins:  []string{"*"},
		TelemetryExporter:   "none",
		ShutdownTimeout:     10 * time.Second,
	}
}

// Load builds a Config by layering, from lowest to highest precedence:
//  1. defaults (New)
//  2. the YAML file named by DIRECTLINK_CONFIG, if set
//  3. DIRECTLINK_* environment variables, e.g. DIRECTLINK_RESOLVER_HTTP_URL
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key string, value string) (string, interface{}) {
		if key == envFile {
			return "", nil
		}
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, err
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	switch c.TelemetryExporter {
	case "", "none", "stdout", "otlp":
	default:
		return errors.New("telemetry_exporter must be one of none, stdout, otlp")
	}
	return nil
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
