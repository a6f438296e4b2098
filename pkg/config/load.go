package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults, and validates the result. Environment variable
// overrides are not applied; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no file
// input. Useful when the gateway is configured entirely through
// environment variables.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and then
// applies environment variable overrides. Variables use the naming
// convention GATEWAY_SECTION_FIELD (e.g., GATEWAY_DEFAULT_TRANSPORT) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file (applies defaults)
//  2. Apply environment variable overrides
//  3. Re-validate the final configuration
//
// If path is empty, the default configuration is used as the base.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	var err error

	if path == "" {
		cfg = Default()
	} else {
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. The recognized names mirror the deployment tooling's
// variable set.
func applyEnvOverrides(cfg *Config) {
	// Server
	if val := os.Getenv("GATEWAY_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}

	// Transport
	if val := os.Getenv("GATEWAY_DEFAULT_TRANSPORT"); val != "" {
		cfg.Transport.Default = TransportMethod(strings.ToLower(val))
	}
	if val := os.Getenv("GATEWAY_INTERNET_ENDPOINT"); val != "" {
		cfg.Transport.InternetEndpoint = val
	}
	if val := os.Getenv("GATEWAY_TUNNEL_ENDPOINT"); val != "" {
		cfg.Transport.TunnelEndpoint = val
	}
	if val := os.Getenv("GATEWAY_DEDICATED_ENDPOINT"); val != "" {
		cfg.Transport.DedicatedEndpoint = val
	}
	if val := os.Getenv("GATEWAY_TUNNEL_HEALTH_POLL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Transport.TunnelHealthPollInterval = time.Duration(secs) * time.Second
		}
	}

	// Credentials
	if val := os.Getenv("GATEWAY_SECRET_TTL_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Credentials.TTL = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("GATEWAY_CREDENTIALS_SECRET_NAME"); val != "" {
		cfg.Credentials.SecretName = val
	}
	if val := os.Getenv("GATEWAY_AUTH_SECRET_NAME"); val != "" {
		cfg.Auth.SecretName = val
	}

	// Invocation
	if val := os.Getenv("GATEWAY_MAX_INVOKE_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Invoke.MaxRetries = n
		}
	}
	if val := os.Getenv("GATEWAY_REQUEST_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.Invoke.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("GATEWAY_TARGET_REGION"); val != "" {
		cfg.Invoke.TargetRegion = val
	}

	// Audit
	if val := os.Getenv("GATEWAY_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("GATEWAY_AUDIT_TABLE"); val != "" {
		cfg.Audit.DynamoDB.Table = val
	}

	// Telemetry
	if val := os.Getenv("GATEWAY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
}
