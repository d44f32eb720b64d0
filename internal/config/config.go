// Package config assembles process configuration from environment
// variables into one typed Config struct, following the teacher's example
// mains (e.g. examples/fiber-server/main.go, examples/text-generation/
// main.go) which read os.Getenv directly rather than reaching for a config
// framework the teacher's go.mod never requires. Gathering those scattered
// reads into one struct, validated once at startup, follows the shape of
// vellankikoti-kubilitics-os-emergent's internal/config packages without
// adopting their viper dependency — this proxy has a handful of settings,
// not a YAML-file surface, so env-var-only plus fail-fast validation is the
// right-sized version of that pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the proxy's complete runtime configuration.
type Config struct {
	// BindAddr is the host:port the downstream HTTP server listens on.
	BindAddr string
	// UpstreamHost is the Google Generative Language API host.
	UpstreamHost string
	// WorkerCount is parsed from PROXY_WORKER_COUNT (default 0). Nothing in
	// the process reads it: it sizes no worker pool and does not change
	// GOMAXPROCS, so the Go runtime's defaults stay in effect.
	WorkerCount int

	// ModelOverride, when non-empty, wins outright over class-based
	// resolution for every request (§4.1 "a configuration-provided
	// override wins outright").
	ModelOverride string
	// Per-class overrides; empty means "use the gemini package default for
	// that class".
	HighestCapabilityModel string
	BalancedModel          string
	FastestModel           string

	// ToolCallTTL bounds how long a tool-call id survives in the
	// conversation state store (§4.2).
	ToolCallTTL time.Duration

	// MaxRequestBodyBytes bounds the downstream request body size (§5
	// "Resource limits").
	MaxRequestBodyBytes int64

	// ConcurrencyCap bounds the number of simultaneously in-flight
	// downstream requests (§5 "a concurrency cap on active requests").
	ConcurrencyCap int

	// ConnectTimeout and StreamTimeout bound each upstream call (§5
	// "Timeouts").
	ConnectTimeout time.Duration
	StreamTimeout  time.Duration

	// TelemetryEnabled gates the OpenTelemetry tracer (§11); disabled by
	// default, matching the teacher's opt-in telemetry.Settings.IsEnabled.
	TelemetryEnabled bool
}

const (
	envBindAddr      = "PROXY_BIND_ADDR"
	envUpstreamHost  = "PROXY_UPSTREAM_HOST"
	envWorkerCount   = "PROXY_WORKER_COUNT"
	envModelOverride = "PROXY_MODEL_OVERRIDE"
	envModelHighest  = "PROXY_MODEL_HIGHEST_CAPABILITY"
	envModelBalanced = "PROXY_MODEL_BALANCED"
	envModelFastest  = "PROXY_MODEL_FASTEST"
	envToolCallTTL   = "PROXY_TOOL_CALL_TTL_SECONDS"
	envMaxBodyBytes  = "PROXY_MAX_REQUEST_BODY_BYTES"
	envConcurrency   = "PROXY_CONCURRENCY_CAP"
	envConnectTO     = "PROXY_CONNECT_TIMEOUT_SECONDS"
	envStreamTO      = "PROXY_STREAM_TIMEOUT_SECONDS"
	envTelemetry     = "PROXY_TELEMETRY_ENABLED"
)

const (
	defaultBindAddr            = ":8080"
	defaultToolCallTTLSeconds  = 3600
	defaultMaxRequestBodyBytes = 10 << 20 // 10 MiB
	defaultConcurrencyCap      = 64
	defaultConnectTimeoutSec   = 10
	defaultStreamTimeoutSec    = 300
)

// Load reads Config from the environment, applying defaults for everything
// optional. It fails fast (a single error naming the offending variable) on
// missing required configuration or an unparsable value, per §6's CLI
// surface contract.
func Load() (*Config, error) {
	cfg := &Config{
		BindAddr:               getEnvOr(envBindAddr, defaultBindAddr),
		UpstreamHost:           os.Getenv(envUpstreamHost),
		ModelOverride:          os.Getenv(envModelOverride),
		HighestCapabilityModel: os.Getenv(envModelHighest),
		BalancedModel:          os.Getenv(envModelBalanced),
		FastestModel:           os.Getenv(envModelFastest),
	}

	if cfg.UpstreamHost == "" {
		cfg.UpstreamHost = "generativelanguage.googleapis.com"
	}

	var err error
	if cfg.WorkerCount, err = getEnvIntOr(envWorkerCount, 0); err != nil {
		return nil, err
	}

	ttlSeconds, err := getEnvIntOr(envToolCallTTL, defaultToolCallTTLSeconds)
	if err != nil {
		return nil, err
	}
	cfg.ToolCallTTL = time.Duration(ttlSeconds) * time.Second

	bodyBytes, err := getEnvInt64Or(envMaxBodyBytes, defaultMaxRequestBodyBytes)
	if err != nil {
		return nil, err
	}
	cfg.MaxRequestBodyBytes = bodyBytes

	if cfg.ConcurrencyCap, err = getEnvIntOr(envConcurrency, defaultConcurrencyCap); err != nil {
		return nil, err
	}

	connectSeconds, err := getEnvIntOr(envConnectTO, defaultConnectTimeoutSec)
	if err != nil {
		return nil, err
	}
	cfg.ConnectTimeout = time.Duration(connectSeconds) * time.Second

	streamSeconds, err := getEnvIntOr(envStreamTO, defaultStreamTimeoutSec)
	if err != nil {
		return nil, err
	}
	cfg.StreamTimeout = time.Duration(streamSeconds) * time.Second

	if cfg.TelemetryEnabled, err = getEnvBoolOr(envTelemetry, false); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UpstreamHost == "" {
		return fmt.Errorf("config: %s must not be empty", envUpstreamHost)
	}
	if c.ConcurrencyCap <= 0 {
		return fmt.Errorf("config: %s must be positive, got %d", envConcurrency, c.ConcurrencyCap)
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: %s must be positive, got %d", envMaxBodyBytes, c.MaxRequestBodyBytes)
	}
	if c.ToolCallTTL <= 0 {
		return fmt.Errorf("config: %s must be positive, got %s", envToolCallTTL, c.ToolCallTTL)
	}
	return nil
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getEnvBoolOr(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func getEnvInt64Or(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
