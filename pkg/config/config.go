package config

import "time"

// Config is the root configuration structure for the cross-partition
// inference gateway. It contains all configuration sections for the HTTP
// server, inbound authentication, outbound credentials, transport paths,
// invocation behavior, audit storage, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Auth contains inbound bearer-token authentication configuration.
	Auth AuthConfig `yaml:"auth"`

	// Credentials contains outbound (target-partition) credential
	// resolution configuration.
	Credentials CredentialsConfig `yaml:"credentials"`

	// Secrets contains configuration for the secret store backends.
	Secrets SecretsConfig `yaml:"secrets"`

	// Transport contains configuration for the network paths to the
	// target-partition Bedrock endpoint.
	Transport TransportConfig `yaml:"transport"`

	// Invoke contains configuration for the model invocation client
	// including retry policy and the inference profile manager.
	Invoke InvokeConfig `yaml:"invoke"`

	// Audit contains configuration for audit record storage and retention.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the gateway to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. This must exceed the invoke timeout or long model
	// invocations are cut off mid-response.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of inbound request bodies.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// AuthConfig contains configuration for inbound bearer-token validation.
type AuthConfig struct {
	// SecretName is the name of the secret holding the expected inbound
	// bearer token. This is a separate secret from the outbound
	// target-partition credential.
	// Default: "cross-partition-inbound-token"
	SecretName string `yaml:"secret_name"`

	// CacheTTL is how long the expected token value is cached before the
	// secret store is consulted again. A short TTL bounds the window in
	// which a rotated token is still accepted.
	// Default: 60s
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// FetchTimeout bounds the secret store read during authorization.
	// Default: 3s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// CredentialsConfig contains configuration for resolving the outbound
// target-partition credential.
type CredentialsConfig struct {
	// SecretName is the name of the secret holding the target-partition
	// credential material.
	// Default: "cross-partition-commercial-creds"
	SecretName string `yaml:"secret_name"`

	// TTL is how long a resolved credential is reused before it is
	// re-fetched from the secret store.
	// Default: 300s
	TTL time.Duration `yaml:"ttl"`

	// StaleGrace is the window after TTL expiry during which concurrent
	// callers may keep using the stale credential while one caller
	// performs the refresh. Zero disables the grace window (all callers
	// block on the in-flight fetch).
	// Default: 30s
	StaleGrace time.Duration `yaml:"stale_grace"`

	// FetchTimeout bounds a single secret store fetch.
	// Default: 3s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// SecretsConfig contains configuration for the secret store backends.
// Providers are consulted in order: Secrets Manager, file, environment.
type SecretsConfig struct {
	// SecretsManager configures the AWS Secrets Manager provider.
	SecretsManager SecretsManagerConfig `yaml:"secretsmanager"`

	// File configures the file-based provider (development and
	// self-hosted deployments).
	File FileSecretsConfig `yaml:"file"`

	// EnvPrefix is the prefix for the environment variable fallback
	// provider.
	// Default: "GATEWAY_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// CacheTTL is the TTL for the shared secret value cache.
	// Default: 300s
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheMaxSize is the maximum number of cached secret values.
	// Default: 64
	CacheMaxSize int `yaml:"cache_max_size"`
}

// SecretsManagerConfig contains configuration for the AWS Secrets Manager
// provider.
type SecretsManagerConfig struct {
	// Enabled controls whether the Secrets Manager provider is used.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Region is the AWS region of the Secrets Manager store. This is the
	// source-partition region, not the invocation target region.
	Region string `yaml:"region"`

	// Endpoint overrides the Secrets Manager endpoint (VPC endpoints,
	// local testing).
	Endpoint string `yaml:"endpoint"`
}

// FileSecretsConfig contains configuration for the file-based secret
// provider.
type FileSecretsConfig struct {
	// Enabled controls whether the file provider is used.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the YAML file holding secret name/value pairs.
	Path string `yaml:"path"`

	// Watch enables change detection on the secret file so that rotated
	// values invalidate the cache without a restart.
	// Default: true
	Watch bool `yaml:"watch"`
}

// TransportMethod identifies one of the network paths to the target
// partition.
type TransportMethod string

const (
	// TransportInternet routes over the public internet. Always available
	// as the final fallback.
	TransportInternet TransportMethod = "internet"

	// TransportTunnel routes over the site-to-site VPN tunnel.
	TransportTunnel TransportMethod = "tunnel"

	// TransportDedicated routes over the Direct Connect private link.
	TransportDedicated TransportMethod = "dedicated"
)

// TransportConfig contains configuration for transport path selection.
type TransportConfig struct {
	// Default is the preferred transport when the request carries no
	// routing hint: "internet", "tunnel", or "dedicated".
	// Default: "internet"
	Default TransportMethod `yaml:"default"`

	// InternetEndpoint is the Bedrock runtime endpoint reached over the
	// public internet. Required.
	// Example: "https://bedrock-runtime.us-east-1.amazonaws.com"
	InternetEndpoint string `yaml:"internet_endpoint"`

	// TunnelEndpoint is the Bedrock runtime endpoint reached over the VPN
	// tunnel. Empty means the tunnel path is not configured.
	TunnelEndpoint string `yaml:"tunnel_endpoint"`

	// DedicatedEndpoint is the Bedrock runtime endpoint reached over the
	// dedicated link. Empty means the dedicated path is not configured.
	DedicatedEndpoint string `yaml:"dedicated_endpoint"`

	// TunnelHealthURLs are the health probe URLs for the redundant VPN
	// links (typically two). Empty disables probing: a configured tunnel
	// is then assumed healthy.
	TunnelHealthURLs []string `yaml:"tunnel_health_urls"`

	// TunnelHealthPollInterval is how often the tunnel links are probed.
	// Default: 30s
	TunnelHealthPollInterval time.Duration `yaml:"tunnel_health_poll_interval"`

	// TunnelHealthTimeout bounds a single link probe.
	// Default: 5s
	TunnelHealthTimeout time.Duration `yaml:"tunnel_health_timeout"`

	// TolerateDegraded treats the tunnel as healthy when at least one of
	// its redundant links is up. When false, all links must be up.
	// Default: true
	TolerateDegraded bool `yaml:"tolerate_degraded"`

	// EnableFallback allows a single retry on the next configured
	// transport when an invocation fails at the connectivity level.
	// Default: true
	EnableFallback bool `yaml:"enable_fallback"`
}

// InvokeConfig contains configuration for model invocation.
type InvokeConfig struct {
	// MaxRetries is the total number of invocation attempts for transient
	// upstream failures (429/5xx).
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// BackoffBase is the base delay for exponential backoff between
	// transient-failure retries. The actual delay is drawn uniformly from
	// [0, base*2^(attempt-1)] (full jitter).
	// Default: 200ms
	BackoffBase time.Duration `yaml:"backoff_base"`

	// RequestTimeout bounds a single model invocation round trip.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// TargetRegion is the target-partition region used for SigV4 signing
	// and profile source ARNs. Defaults to the region carried by the
	// resolved credential when empty.
	TargetRegion string `yaml:"target_region"`

	// Profile configures the inference profile manager.
	Profile ProfileConfig `yaml:"profile"`
}

// ProfileConfig contains configuration for the inference profile manager.
type ProfileConfig struct {
	// RequiredPrefixes lists model ID prefixes that are known to require
	// an application inference profile before they can be invoked.
	// Models matching none of the prefixes are still handled reactively
	// when the service rejects a direct invocation.
	RequiredPrefixes []string `yaml:"required_prefixes"`

	// NamePrefix is prepended to the deterministic profile name derived
	// from the model ID.
	// Default: "xpi"
	NamePrefix string `yaml:"name_prefix"`

	// OperationTimeout bounds profile create/list calls.
	// Default: 5s
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	// Endpoint overrides the Bedrock control-plane endpoint.
	Endpoint string `yaml:"endpoint"`
}

// AuditConfig contains configuration for audit record storage.
type AuditConfig struct {
	// Backend selects the audit storage backend: "dynamodb", "sqlite",
	// or "memory".
	// Default: "dynamodb"
	Backend string `yaml:"backend"`

	// Buffer is the size of the async recorder channel.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// WriteTimeout bounds a single audit store write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is the retention period for audit records. For the
	// DynamoDB backend this is written as an item TTL; for SQLite it is
	// enforced by the pruner.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// DynamoDB configures the DynamoDB backend.
	DynamoDB DynamoDBAuditConfig `yaml:"dynamodb"`

	// SQLite configures the SQLite backend.
	SQLite SQLiteAuditConfig `yaml:"sqlite"`
}

// DynamoDBAuditConfig contains configuration for the DynamoDB audit
// backend.
type DynamoDBAuditConfig struct {
	// Table is the DynamoDB table name, keyed by request_id.
	// Default: "cross-partition-audit"
	Table string `yaml:"table"`

	// Region is the AWS region of the table (the source partition).
	Region string `yaml:"region"`

	// Endpoint overrides the DynamoDB endpoint.
	Endpoint string `yaml:"endpoint"`
}

// SQLiteAuditConfig contains configuration for the SQLite audit backend.
type SQLiteAuditConfig struct {
	// Path is the database file path.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// PruneSchedule is a cron expression for the retention pruner.
	// Empty disables scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains configuration for logging and metrics.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "crosspartition"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets are the histogram buckets for request
	// duration in seconds.
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}
