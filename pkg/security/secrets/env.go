package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider loads secrets from environment variables.
//
// Secret names are converted to uppercase environment variable names
// with hyphens replaced by underscores, under a configurable prefix.
//
// Example:
//   - Secret name: "cross-partition-inbound-token"
//   - Env var name: "GATEWAY_SECRET_CROSS_PARTITION_INBOUND_TOKEN"
type EnvProvider struct {
	Prefix string // Prefix for environment variables
}

// NewEnvProvider creates a new environment variable secret provider.
//
// The prefix is prepended to all environment variable names derived
// from secret names.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{
		Prefix: prefix,
	}
}

// GetSecret retrieves a secret from an environment variable.
//
// The secret name is uppercased, hyphens become underscores, and the
// configured prefix is prepended.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.secretNameToEnvVar(name)

	value := os.Getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret not found in environment: %s (env var: %s)", name, envVar)
	}

	return value, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}

// Supports indicates if this provider supports the given secret name.
//
// The environment provider always returns true so it can serve as the
// final fallback in the provider chain.
func (p *EnvProvider) Supports(name string) bool {
	return true
}

// secretNameToEnvVar converts a secret name to an environment variable
// name.
func (p *EnvProvider) secretNameToEnvVar(name string) string {
	envVar := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	return p.Prefix + envVar
}
