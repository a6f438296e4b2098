package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first problem found.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateTransport(&cfg.Transport); err != nil {
		return err
	}
	if err := validateInvoke(&cfg.Invoke); err != nil {
		return err
	}
	if err := validateAudit(&cfg.Audit); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if !strings.Contains(cfg.ListenAddress, ":") {
		return fmt.Errorf("server.listen_address %q must be host:port", cfg.ListenAddress)
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", cfg.MaxBodyBytes)
	}
	return nil
}

func validateTransport(cfg *TransportConfig) error {
	switch cfg.Default {
	case TransportInternet, TransportTunnel, TransportDedicated:
	default:
		return fmt.Errorf("transport.default %q must be one of internet, tunnel, dedicated", cfg.Default)
	}

	if cfg.InternetEndpoint == "" {
		return fmt.Errorf("transport.internet_endpoint is required (it is the final fallback path)")
	}

	endpoints := map[string]string{
		"transport.internet_endpoint":  cfg.InternetEndpoint,
		"transport.tunnel_endpoint":    cfg.TunnelEndpoint,
		"transport.dedicated_endpoint": cfg.DedicatedEndpoint,
	}
	for field, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		u, err := url.Parse(endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s %q is not a valid URL", field, endpoint)
		}
		if u.Scheme != "https" && u.Scheme != "http" {
			return fmt.Errorf("%s %q must use http or https", field, endpoint)
		}
	}

	if cfg.Default == TransportTunnel && cfg.TunnelEndpoint == "" {
		return fmt.Errorf("transport.default is tunnel but transport.tunnel_endpoint is not configured")
	}
	if cfg.Default == TransportDedicated && cfg.DedicatedEndpoint == "" {
		return fmt.Errorf("transport.default is dedicated but transport.dedicated_endpoint is not configured")
	}

	for _, probe := range cfg.TunnelHealthURLs {
		if _, err := url.Parse(probe); err != nil {
			return fmt.Errorf("transport.tunnel_health_urls entry %q is not a valid URL", probe)
		}
	}
	return nil
}

func validateInvoke(cfg *InvokeConfig) error {
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("invoke.max_retries must be at least 1, got %d", cfg.MaxRetries)
	}
	if cfg.MaxRetries > 10 {
		return fmt.Errorf("invoke.max_retries must be at most 10, got %d", cfg.MaxRetries)
	}
	if cfg.BackoffBase <= 0 {
		return fmt.Errorf("invoke.backoff_base must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("invoke.request_timeout must be positive")
	}
	return nil
}

func validateAudit(cfg *AuditConfig) error {
	switch cfg.Backend {
	case "dynamodb", "sqlite", "memory":
	default:
		return fmt.Errorf("audit.backend %q must be one of dynamodb, sqlite, memory", cfg.Backend)
	}
	if cfg.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", cfg.RetentionDays)
	}
	if cfg.Buffer < 1 {
		return fmt.Errorf("audit.buffer must be at least 1, got %d", cfg.Buffer)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level %q must be one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format %q must be json or text", cfg.Logging.Format)
	}
	return nil
}
