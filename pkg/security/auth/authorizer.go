// Package auth validates inbound bearer tokens against the expected
// token held in the secret store.
package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Identity describes an authenticated caller.
//
// The gateway has a single shared inbound token, so the identity carries
// only what the audit trail needs.
type Identity struct {
	// Subject is the logical caller name recorded in audit records.
	Subject string

	// AuthenticatedAt is when the token was validated.
	AuthenticatedAt time.Time
}

// SecretReader reads the expected token from the secret store.
type SecretReader interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Config configures the Authorizer.
type Config struct {
	// SecretName is the secret holding the expected inbound token.
	SecretName string

	// CacheTTL is how long the expected token is cached before the
	// secret store is consulted again.
	CacheTTL time.Duration

	// FetchTimeout bounds the secret store read.
	FetchTimeout time.Duration
}

// Authorizer validates inbound bearer tokens.
//
// The expected token is fetched from the secret store and cached with a
// short TTL so rotation takes effect without a restart. Comparison is
// constant-time.
type Authorizer struct {
	config Config
	store  SecretReader
	logger *slog.Logger

	mu        sync.Mutex
	expected  string
	fetchedAt time.Time
}

// NewAuthorizer creates an authorizer backed by the given secret store.
func NewAuthorizer(config Config, store SecretReader) *Authorizer {
	return &Authorizer{
		config: config,
		store:  store,
		logger: slog.Default().With("component", "authorizer"),
	}
}

// Authorize validates the presented bearer token.
//
// Returns an Identity on success. Returns an UnauthenticatedError when
// the token is missing or wrong, and a SecretError when the expected
// token cannot be read from the secret store (the two are distinguished
// at the wire boundary: 401 versus 500).
func (a *Authorizer) Authorize(ctx context.Context, presented string) (*Identity, error) {
	if presented == "" {
		return nil, &UnauthenticatedError{Reason: "missing bearer token"}
	}

	expected, err := a.expectedToken(ctx)
	if err != nil {
		return nil, &SecretError{Cause: err}
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return nil, &UnauthenticatedError{Reason: "invalid bearer token"}
	}

	return &Identity{
		Subject:         "gateway-client",
		AuthenticatedAt: time.Now(),
	}, nil
}

// expectedToken returns the cached expected token, refreshing it from
// the secret store when the cache TTL has passed.
func (a *Authorizer) expectedToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.expected != "" && time.Since(a.fetchedAt) < a.config.CacheTTL {
		return a.expected, nil
	}

	fetchCtx := ctx
	if a.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, a.config.FetchTimeout)
		defer cancel()
	}

	value, err := a.store.GetSecret(fetchCtx, a.config.SecretName)
	if err != nil {
		// A previously fetched token stays usable while the store is
		// unreachable so transient store failures do not lock everyone
		// out.
		if a.expected != "" {
			a.logger.Warn("expected token refresh failed, using cached value",
				"error", err,
			)
			return a.expected, nil
		}
		return "", err
	}

	a.expected = strings.TrimSpace(value)
	a.fetchedAt = time.Now()
	return a.expected, nil
}

// ExtractBearerToken pulls the bearer token from an HTTP request's
// Authorization header.
//
// Returns "" when the header is absent or does not use the Bearer
// scheme.
func ExtractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
