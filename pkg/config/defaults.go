package config

import "time"

// ApplyDefaults fills in default values for any configuration fields that
// were not set. It is called after parsing and before validation so that a
// minimal configuration file (or an empty one) yields a runnable gateway.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyAuthDefaults(&cfg.Auth)
	applyCredentialsDefaults(&cfg.Credentials)
	applySecretsDefaults(&cfg.Secrets)
	applyTransportDefaults(&cfg.Transport)
	applyInvokeDefaults(&cfg.Invoke)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 120 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = 10 * 1024 * 1024
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.SecretName == "" {
		cfg.SecretName = "cross-partition-inbound-token"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 3 * time.Second
	}
}

func applyCredentialsDefaults(cfg *CredentialsConfig) {
	if cfg.SecretName == "" {
		cfg.SecretName = "cross-partition-commercial-creds"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 300 * time.Second
	}
	if cfg.StaleGrace == 0 {
		cfg.StaleGrace = 30 * time.Second
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 3 * time.Second
	}
}

func applySecretsDefaults(cfg *SecretsConfig) {
	if cfg.EnvPrefix == "" {
		cfg.EnvPrefix = "GATEWAY_SECRET_"
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 300 * time.Second
	}
	if cfg.CacheMaxSize == 0 {
		cfg.CacheMaxSize = 64
	}
	if cfg.File.Enabled && cfg.File.Path != "" {
		// Watch defaults to true for file-backed secrets; rotation must
		// invalidate cached values without a restart.
		cfg.File.Watch = true
	}
}

func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Default == "" {
		cfg.Default = TransportInternet
	}
	if cfg.TunnelHealthPollInterval == 0 {
		cfg.TunnelHealthPollInterval = 30 * time.Second
	}
	if cfg.TunnelHealthTimeout == 0 {
		cfg.TunnelHealthTimeout = 5 * time.Second
	}
}

func applyInvokeDefaults(cfg *InvokeConfig) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Profile.NamePrefix == "" {
		cfg.Profile.NamePrefix = "xpi"
	}
	if cfg.Profile.OperationTimeout == 0 {
		cfg.Profile.OperationTimeout = 5 * time.Second
	}
	if cfg.Profile.RequiredPrefixes == nil {
		// Claude and Llama families reject on-demand invocation in the
		// commercial partition and must go through an application
		// inference profile.
		cfg.Profile.RequiredPrefixes = []string{
			"anthropic.claude",
			"meta.llama",
		}
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "dynamodb"
	}
	if cfg.Buffer == 0 {
		cfg.Buffer = 1000
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.DynamoDB.Table == "" {
		cfg.DynamoDB.Table = "cross-partition-audit"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/audit.db"
	}
	if cfg.SQLite.PruneSchedule == "" {
		cfg.SQLite.PruneSchedule = "0 3 * * *"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Namespace = "crosspartition"
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "gateway"
	}
	if cfg.Metrics.RequestDurationBuckets == nil {
		// Model invocations routinely run tens of seconds.
		cfg.Metrics.RequestDurationBuckets = []float64{
			0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120,
		}
	}
}
