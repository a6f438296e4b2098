package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Manager orchestrates multiple secret providers with priority-based
// fallback.
//
// The manager tries each provider in order until one successfully
// returns a value. Values are cached to keep secret-store round trips
// off the request path.
type Manager struct {
	providers []SecretProvider
	cache     *Cache
}

// NewManager creates a new secret manager with the given providers and
// cache config.
//
// Providers are tried in the order they are provided. The first provider
// that supports a secret and successfully returns a value wins.
func NewManager(providers []SecretProvider, cacheConfig CacheConfig) *Manager {
	return &Manager{
		providers: providers,
		cache:     NewCache(cacheConfig),
	}
}

// GetSecret retrieves a secret from the first provider that supports it.
//
// The manager checks the cache first, then tries each provider in order.
// If a provider successfully returns a value, it is cached and returned.
//
// Returns an UnavailableError if no provider supports the secret or all
// providers fail.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.Get(name); ok {
		slog.Debug("secret cache hit", "name", redactSecretName(name))
		return value, nil
	}

	slog.Debug("secret cache miss", "name", redactSecretName(name))

	var lastErr error
	for _, provider := range m.providers {
		if !provider.Supports(name) {
			continue
		}

		value, err := provider.GetSecret(ctx, name)
		if err != nil {
			lastErr = err
			slog.Debug("provider failed to get secret",
				"provider", provider.Provider(),
				"name", redactSecretName(name),
				"error", err,
			)
			continue
		}

		m.cache.Set(name, value)

		slog.Debug("secret retrieved",
			"provider", provider.Provider(),
			"name", redactSecretName(name),
		)

		return value, nil
	}

	if lastErr != nil {
		return "", &UnavailableError{Name: name, Reason: "all providers failed", Cause: lastErr}
	}

	return "", &UnavailableError{Name: name, Reason: "no provider supports this secret"}
}

// Invalidate drops a cached secret value so the next read hits the
// providers again. Called after a credential is rejected upstream.
func (m *Manager) Invalidate(name string) {
	m.cache.Delete(name)
}

// Refresh reloads all refreshable providers and clears the cache.
//
// Called when secrets are rotated.
func (m *Manager) Refresh(ctx context.Context) error {
	slog.Info("refreshing secrets from all providers")

	var errs []string
	for _, provider := range m.providers {
		refreshable, ok := provider.(RefreshableProvider)
		if !ok {
			continue
		}

		if err := refreshable.Refresh(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", provider.Provider(), err))
			slog.Error("failed to refresh provider",
				"provider", provider.Provider(),
				"error", err,
			)
		}
	}

	m.cache.Clear()
	slog.Debug("secret cache cleared")

	if len(errs) > 0 {
		return fmt.Errorf("failed to refresh some providers: %s", strings.Join(errs, "; "))
	}

	return nil
}

// redactSecretName returns a redacted version of the secret name for
// logging.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
