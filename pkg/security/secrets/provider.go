// Package secrets provides a pluggable framework for loading secrets from
// multiple sources, plus the resolver for the outbound target-partition
// credential.
package secrets

import "context"

// SecretProvider retrieves secrets from a backend.
//
// Implementations include AWS Secrets Manager, files, and environment
// variables. Providers can be chained together with priority-based
// fallback.
type SecretProvider interface {
	// GetSecret retrieves a secret by name.
	// Returns an error if the secret is not found or cannot be retrieved.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name (secretsmanager, file, env).
	Provider() string

	// Supports indicates if this provider supports the given secret name.
	// This is used to determine which provider to use when multiple are
	// configured.
	Supports(name string) bool
}

// RefreshableProvider can reload secrets without restart.
//
// This is implemented by providers that support dynamic secret rotation,
// such as file-based providers that watch for file changes.
type RefreshableProvider interface {
	SecretProvider

	// Refresh reloads all secrets from the backend.
	Refresh(ctx context.Context) error
}
