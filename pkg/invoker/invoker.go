// Package invoker sends model invocations to the target-partition
// Bedrock runtime over the selected transport, with bounded retries and
// a single cross-transport fallback.
package invoker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

// signingService is the service name used for SigV4 signing of Bedrock
// runtime calls.
const signingService = "bedrock"

// ProfileEnsurer resolves model IDs to inference profile ARNs.
// Implemented by the profile manager; tests substitute a fake.
type ProfileEnsurer interface {
	RequiresProfile(modelID string) bool
	EnsureProfile(ctx context.Context, modelID string) (string, error)
}

// RouteSelector answers which transport to try after a connectivity
// failure. Implemented by the transport selector.
type RouteSelector interface {
	Fallback(failed config.TransportMethod) (transport.Route, error)
}

// Result describes one completed invocation: the upstream response plus
// the measurements the audit record needs.
type Result struct {
	// Body is the upstream response body, byte-identical to what the
	// service returned.
	Body []byte

	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Latency is the total invocation time including retries.
	Latency time.Duration

	// RequestBytes and ResponseBytes are the payload sizes.
	RequestBytes  int
	ResponseBytes int

	// Attempts is the number of HTTP attempts made, over all transports.
	Attempts int

	// Transport is the path the final (successful or last) attempt used.
	Transport config.TransportMethod

	// FallbackFrom is the transport abandoned for connectivity reasons,
	// empty when no fallback happened.
	FallbackFrom config.TransportMethod

	// ProfileARN is set when the invocation went through an inference
	// profile instead of the raw model ID.
	ProfileARN string
}

// Invoker sends invocations to the Bedrock runtime endpoint of the
// selected transport.
//
// Requests are raw HTTPS calls rather than SDK client calls: the body
// must pass through byte-identical in both directions, and the auth
// header depends on the resolved credential's kind (bearer token or
// SigV4 keypair).
type Invoker struct {
	config   config.InvokeConfig
	client   *http.Client
	profiles ProfileEnsurer
	selector RouteSelector
	signer   *v4.Signer
	logger   *slog.Logger

	// sleep is replaceable in tests to skip real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an invoker.
func New(cfg config.InvokeConfig, profiles ProfileEnsurer, selector RouteSelector) *Invoker {
	httpTransport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Invoker{
		config: cfg,
		client: &http.Client{
			Transport: httpTransport,
			Timeout:   cfg.RequestTimeout,
		},
		profiles: profiles,
		selector: selector,
		signer:   v4.NewSigner(),
		logger:   slog.Default().With("component", "invoker"),
		sleep:    sleepContext,
	}
}

// Invoke sends the model invocation and classifies the outcome.
//
// Retry shape: transient upstream failures (429/5xx) are retried with
// full-jitter exponential backoff up to the configured attempt budget.
// A "model requires a profile" rejection triggers one profile-ensure and
// one retry. A connectivity failure triggers at most one attempt on the
// fallback transport. All other outcomes are terminal.
func (inv *Invoker) Invoke(ctx context.Context, modelID string, body []byte, cred *secrets.ResolvedCredential, route transport.Route) (*Result, error) {
	start := time.Now()
	result := &Result{
		RequestBytes: len(body),
		Transport:    route.Method,
	}

	invokeID := modelID
	if inv.profiles.RequiresProfile(modelID) {
		arn, err := inv.profiles.EnsureProfile(ctx, modelID)
		if err != nil {
			result.Latency = time.Since(start)
			return result, err
		}
		invokeID = arn
		result.ProfileARN = arn
	}

	err := inv.invokeWithRetries(ctx, invokeID, modelID, body, cred, route, result)

	// A connectivity failure is eligible for one attempt on the next
	// transport before the request fails.
	var transportErr *TransportError
	if errors.As(err, &transportErr) && !transportErr.FallbackTried {
		fallbackRoute, fbErr := inv.selector.Fallback(route.Method)
		if fbErr == nil {
			inv.logger.Warn("connectivity failure, attempting transport fallback",
				"from", string(route.Method),
				"to", string(fallbackRoute.Method),
				"error", err,
			)
			result.FallbackFrom = route.Method
			result.Transport = fallbackRoute.Method

			err = inv.attemptOnce(ctx, effectiveID(invokeID, result), modelID, body, cred, fallbackRoute, result)
			var fbTransportErr *TransportError
			if errors.As(err, &fbTransportErr) {
				fbTransportErr.FallbackTried = true
			}
		}
	}

	result.Latency = time.Since(start)
	return result, err
}

// effectiveID returns the ID the next attempt must invoke. A profile
// ARN resolved mid-flight supersedes the raw model ID for every later
// attempt, including transient-failure retries and the transport
// fallback.
func effectiveID(invokeID string, result *Result) string {
	if result.ProfileARN != "" {
		return result.ProfileARN
	}
	return invokeID
}

// invokeWithRetries runs the transient-failure retry loop on a single
// transport.
func (inv *Invoker) invokeWithRetries(ctx context.Context, invokeID, modelID string, body []byte, cred *secrets.ResolvedCredential, route transport.Route, result *Result) error {
	var lastStatus int
	var lastBody string

	for attempt := 1; attempt <= inv.config.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := fullJitter(inv.config.BackoffBase, attempt-1)
			inv.logger.Debug("retrying invocation",
				"model_id", modelID,
				"attempt", attempt,
				"backoff", delay,
			)
			if err := inv.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := inv.attemptOnce(ctx, effectiveID(invokeID, result), modelID, body, cred, route, result)
		if err == nil {
			return nil
		}

		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			lastStatus = upstream.StatusCode
			lastBody = upstream.Message
			continue
		}
		return err
	}

	return &UpstreamError{
		StatusCode: lastStatus,
		Attempts:   result.Attempts,
		Message:    lastBody,
	}
}

// attemptOnce performs a single HTTP attempt and classifies the
// response. The profile-required rejection triggers one in-place retry
// with the resolved profile ARN.
func (inv *Invoker) attemptOnce(ctx context.Context, invokeID, modelID string, body []byte, cred *secrets.ResolvedCredential, route transport.Route, result *Result) error {
	resp, respBody, err := inv.send(ctx, invokeID, body, cred, route)
	result.Attempts++
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Transport: route.Method, Cause: err}
	}

	result.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Body = respBody
		result.ResponseBytes = len(respBody)
		return nil

	case resp.StatusCode == http.StatusBadRequest && isProfileRequired(respBody) && result.ProfileARN == "":
		arn, perr := inv.profiles.EnsureProfile(ctx, modelID)
		if perr != nil {
			return perr
		}
		inv.logger.Info("model requires inference profile, retrying with profile",
			"model_id", modelID,
			"profile_arn", arn,
		)
		result.ProfileARN = arn
		return inv.attemptOnce(ctx, arn, modelID, body, cred, route, result)

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &UpstreamError{
			StatusCode: resp.StatusCode,
			Attempts:   result.Attempts,
			Message:    truncate(string(respBody), 512),
		}

	default:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 512),
		}
	}
}

// send builds, authenticates, and performs one HTTP request.
func (inv *Invoker) send(ctx context.Context, invokeID string, body []byte, cred *secrets.ResolvedCredential, route transport.Route) (*http.Response, []byte, error) {
	endpoint := strings.TrimSuffix(route.Endpoint, "/")
	requestURL := fmt.Sprintf("%s/model/%s/invoke", endpoint, url.PathEscape(invokeID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := inv.authenticate(ctx, req, body, cred); err != nil {
		return nil, nil, err
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp, respBody, nil
}

// authenticate attaches the credential to the request: a bearer token
// goes into the Authorization header, a keypair produces a SigV4
// signature.
func (inv *Invoker) authenticate(ctx context.Context, req *http.Request, body []byte, cred *secrets.ResolvedCredential) error {
	switch cred.Kind {
	case secrets.KindBearer:
		req.Header.Set("Authorization", "Bearer "+cred.Token)
		return nil

	case secrets.KindKeypair:
		region := inv.config.TargetRegion
		if region == "" {
			region = cred.Region
		}

		hash := sha256.Sum256(body)
		return inv.signer.SignHTTP(ctx, aws.Credentials{
			AccessKeyID:     cred.AccessKeyID,
			SecretAccessKey: cred.SecretAccessKey,
			SessionToken:    cred.SessionToken,
		}, req, hex.EncodeToString(hash[:]), signingService, region, time.Now())

	default:
		return fmt.Errorf("unknown credential kind %q", cred.Kind)
	}
}

// isProfileRequired recognizes the service rejection that means the
// model must be invoked through an inference profile.
func isProfileRequired(body []byte) bool {
	text := strings.ToLower(string(body))
	return strings.Contains(text, "inference profile")
}

// fullJitter draws a delay uniformly from [0, base*2^(attempt-1)].
func fullJitter(base time.Duration, attempt int) time.Duration {
	ceiling := base << (attempt - 1)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}

// sleepContext waits for the delay or the context, whichever ends
// first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// truncate clips a string for inclusion in error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

