package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// CredentialKind distinguishes the two shapes of target-partition
// credential material.
type CredentialKind string

const (
	// KindBearer is a Bedrock API key presented as a bearer token.
	KindBearer CredentialKind = "bearer"

	// KindKeypair is an IAM access key pair used for SigV4 signing.
	KindKeypair CredentialKind = "keypair"
)

// ResolvedCredential is the parsed target-partition credential.
//
// Exactly one of Token or the keypair fields is populated, indicated by
// Kind.
type ResolvedCredential struct {
	// Kind indicates whether this is a bearer token or an IAM keypair.
	Kind CredentialKind

	// Token is the bearer token value (Kind == KindBearer).
	Token string

	// AccessKeyID and SecretAccessKey are the IAM keypair
	// (Kind == KindKeypair). SessionToken is set for temporary
	// credentials.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Region is the target-partition region carried by the secret.
	Region string
}

// credentialSecret is the JSON document stored in the secret store.
//
// The credential field is either a string (bearer token) or an object
// (IAM keypair).
type credentialSecret struct {
	Credential json.RawMessage `json:"credential"`
	Region     string          `json:"region"`
}

// keypairCredential is the object form of the credential field.
type keypairCredential struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// ResolverConfig configures credential caching behavior.
type ResolverConfig struct {
	// SecretName is the secret holding the credential document.
	SecretName string

	// TTL is how long a resolved credential is reused before re-fetch.
	TTL time.Duration

	// StaleGrace is the window after TTL expiry during which concurrent
	// callers keep using the stale credential while one caller performs
	// the refresh. Zero means all callers block on the in-flight fetch.
	StaleGrace time.Duration

	// FetchTimeout bounds a single secret store fetch.
	FetchTimeout time.Duration
}

// SecretReader is the part of the Manager the resolver needs.
type SecretReader interface {
	GetSecret(ctx context.Context, name string) (string, error)
	Invalidate(name string)
}

// Resolver caches the parsed target-partition credential with a TTL and
// a stale-grace window.
//
// At most one secret store fetch is in flight at a time. While a refresh
// is in flight and the cached credential is within its grace window,
// concurrent callers use the stale value instead of blocking.
type Resolver struct {
	config ResolverConfig
	store  SecretReader
	logger *slog.Logger

	mu        sync.Mutex
	cached    *ResolvedCredential
	fetchedAt time.Time
	inflight  chan struct{} // closed when the in-flight fetch completes
	lastErr   error
}

// NewResolver creates a credential resolver backed by the given secret
// store.
func NewResolver(config ResolverConfig, store SecretReader) *Resolver {
	return &Resolver{
		config: config,
		store:  store,
		logger: slog.Default().With("component", "credential-resolver"),
	}
}

// Resolve returns the current target-partition credential.
//
// A fresh cached credential is returned immediately. On expiry, one
// caller performs the fetch; others either reuse the stale value (within
// the grace window) or wait for the fetch to complete.
func (r *Resolver) Resolve(ctx context.Context) (*ResolvedCredential, error) {
	r.mu.Lock()

	now := time.Now()
	if r.cached != nil && now.Sub(r.fetchedAt) < r.config.TTL {
		cred := r.cached
		r.mu.Unlock()
		return cred, nil
	}

	if r.inflight != nil {
		// A refresh is already running. Serve the stale value if it is
		// still within the grace window, otherwise wait.
		if r.cached != nil && now.Sub(r.fetchedAt) < r.config.TTL+r.config.StaleGrace {
			cred := r.cached
			r.mu.Unlock()
			return cred, nil
		}

		done := r.inflight
		r.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		r.mu.Lock()
		cred, err := r.cached, r.lastErr
		r.mu.Unlock()
		if cred != nil && err == nil {
			return cred, nil
		}
		if err != nil {
			return nil, err
		}
		return nil, &UnavailableError{Name: r.config.SecretName, Reason: "credential fetch produced no value"}
	}

	// This caller performs the fetch.
	done := make(chan struct{})
	r.inflight = done
	r.mu.Unlock()

	cred, err := r.fetch(ctx)

	r.mu.Lock()
	if err == nil {
		r.cached = cred
		r.fetchedAt = time.Now()
		r.lastErr = nil
	} else {
		r.lastErr = err
	}
	r.inflight = nil
	close(done)

	// A failed refresh does not discard a credential still inside the
	// grace window.
	if err != nil && r.cached != nil && time.Since(r.fetchedAt) < r.config.TTL+r.config.StaleGrace {
		stale := r.cached
		r.mu.Unlock()
		r.logger.Warn("credential refresh failed, serving stale credential",
			"error", err,
		)
		return stale, nil
	}
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return cred, nil
}

// Invalidate discards the cached credential and the underlying cached
// secret value. Called when the upstream rejects the credential.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
	r.store.Invalidate(r.config.SecretName)
}

// fetch reads the secret document and parses it into a credential.
func (r *Resolver) fetch(ctx context.Context) (*ResolvedCredential, error) {
	fetchCtx := ctx
	if r.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.config.FetchTimeout)
		defer cancel()
	}

	raw, err := r.store.GetSecret(fetchCtx, r.config.SecretName)
	if err != nil {
		return nil, err
	}

	cred, err := ParseCredential([]byte(raw))
	if err != nil {
		return nil, &UnavailableError{Name: r.config.SecretName, Reason: "malformed credential document", Cause: err}
	}

	r.logger.Debug("credential resolved",
		"kind", string(cred.Kind),
		"region", cred.Region,
	)

	return cred, nil
}

// ParseCredential parses the secret JSON document into a
// ResolvedCredential.
//
// The credential field is either a string (bearer token) or an object
// (IAM keypair). The region field is required.
func ParseCredential(data []byte) (*ResolvedCredential, error) {
	var doc credentialSecret
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid credential JSON: %w", err)
	}

	if doc.Region == "" {
		return nil, fmt.Errorf("credential document missing region")
	}
	if len(doc.Credential) == 0 {
		return nil, fmt.Errorf("credential document missing credential")
	}

	// String form: bearer token.
	var token string
	if err := json.Unmarshal(doc.Credential, &token); err == nil {
		if token == "" {
			return nil, fmt.Errorf("bearer token is empty")
		}
		return &ResolvedCredential{
			Kind:   KindBearer,
			Token:  token,
			Region: doc.Region,
		}, nil
	}

	// Object form: IAM keypair.
	var kp keypairCredential
	if err := json.Unmarshal(doc.Credential, &kp); err != nil {
		return nil, fmt.Errorf("credential is neither a string nor a keypair object: %w", err)
	}
	if kp.AccessKeyID == "" || kp.SecretAccessKey == "" {
		return nil, fmt.Errorf("keypair credential missing access_key_id or secret_access_key")
	}

	return &ResolvedCredential{
		Kind:            KindKeypair,
		AccessKeyID:     kp.AccessKeyID,
		SecretAccessKey: kp.SecretAccessKey,
		SessionToken:    kp.SessionToken,
		Region:          doc.Region,
	}, nil
}
