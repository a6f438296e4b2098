package invoker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

type fakeProfiles struct {
	required    map[string]bool
	arns        map[string]string
	ensureErr   error
	ensureCalls atomic.Int64
}

func (f *fakeProfiles) RequiresProfile(modelID string) bool {
	return f.required[modelID]
}

func (f *fakeProfiles) EnsureProfile(ctx context.Context, modelID string) (string, error) {
	f.ensureCalls.Add(1)
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return f.arns[modelID], nil
}

type fakeSelector struct {
	fallback    transport.Route
	fallbackErr error
	calls       atomic.Int64
}

func (f *fakeSelector) Fallback(failed config.TransportMethod) (transport.Route, error) {
	f.calls.Add(1)
	if f.fallbackErr != nil {
		return transport.Route{}, f.fallbackErr
	}
	return f.fallback, nil
}

func bearerCred() *secrets.ResolvedCredential {
	return &secrets.ResolvedCredential{
		Kind:   secrets.KindBearer,
		Token:  "api-key-abc",
		Region: "us-east-1",
	}
}

func keypairCred() *secrets.ResolvedCredential {
	return &secrets.ResolvedCredential{
		Kind:            secrets.KindKeypair,
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
	}
}

func newTestInvoker(profiles ProfileEnsurer, selector RouteSelector, maxRetries int) *Invoker {
	inv := New(config.InvokeConfig{
		MaxRetries:     maxRetries,
		BackoffBase:    time.Millisecond,
		RequestTimeout: 5 * time.Second,
	}, profiles, selector)
	inv.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return inv
}

func internetRoute(endpoint string) transport.Route {
	return transport.Route{Method: config.TransportInternet, Endpoint: endpoint}
}

func TestInvoke_Success_BodyPassthrough(t *testing.T) {
	upstream := []byte(`{"completion":"hello","stop_reason":"end_turn"}`)
	var gotAuth, gotPath string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(upstream)
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)
	requestBody := []byte(`{"prompt":"hi","max_tokens":10}`)

	result, err := inv.Invoke(context.Background(), "amazon.titan-text-express-v1", requestBody, bearerCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result.Body) != string(upstream) {
		t.Errorf("response body not byte-identical:\ngot  %q\nwant %q", result.Body, upstream)
	}
	if string(gotBody) != string(requestBody) {
		t.Errorf("request body not passed through:\ngot  %q\nwant %q", gotBody, requestBody)
	}
	if gotAuth != "Bearer api-key-abc" {
		t.Errorf("unexpected Authorization header: %q", gotAuth)
	}
	if gotPath != "/model/amazon.titan-text-express-v1/invoke" {
		t.Errorf("unexpected path: %q", gotPath)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if result.RequestBytes != len(requestBody) || result.ResponseBytes != len(upstream) {
		t.Errorf("byte counts wrong: req=%d resp=%d", result.RequestBytes, result.ResponseBytes)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", result.StatusCode)
	}
}

func TestInvoke_SigV4Signed(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)

	_, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), keypairCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !containsAll(gotAuth, "AWS4-HMAC-SHA256", "AKIAEXAMPLE", "us-east-1/bedrock/aws4_request") {
		t.Errorf("expected SigV4 signature, got %q", gotAuth)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

func TestInvoke_RetryBound(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"throttled"}`))
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)

	result, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if err == nil {
		t.Fatal("expected error from persistent 503")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
	if result.Attempts != 3 {
		t.Errorf("result reports %d attempts, want 3", result.Attempts)
	}
	if upstream.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 in error, got %d", upstream.StatusCode)
	}
}

func TestInvoke_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)

	result, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestInvoke_ClientErrorNoRetry(t *testing.T) {
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"bad prompt"}`))
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)

	_, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), internetRoute(server.URL))

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected ClientError, got %T: %v", err, err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("client error must not be retried: %d attempts", got)
	}
}

func TestInvoke_ProfileRequiredRetry(t *testing.T) {
	const profileARN = "arn:aws:bedrock:us-east-1:111122223333:application-inference-profile/xpi-model-y"
	var paths []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"Invocation of model ID model-y isn't supported. Retry your request with the ID or ARN of an inference profile."}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	profiles := &fakeProfiles{
		arns: map[string]string{"model-y": profileARN},
	}
	inv := newTestInvoker(profiles, &fakeSelector{}, 3)

	result, err := inv.Invoke(context.Background(), "model-y", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := profiles.ensureCalls.Load(); got != 1 {
		t.Errorf("expected 1 ensure call, got %d", got)
	}
	if result.ProfileARN != profileARN {
		t.Errorf("expected profile ARN recorded, got %q", result.ProfileARN)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(paths))
	}
	if paths[1] == paths[0] {
		t.Error("retry should use the profile ARN, not the raw model ID")
	}
}

func TestInvoke_ProfileSurvivesTransientRetry(t *testing.T) {
	// A profile resolved mid-flight must stick for the rest of the
	// retry budget: raw ID -> 400 profile required, first profile
	// attempt -> 503, next attempt must go out with the ARN again and
	// succeed rather than reverting to the raw ID.
	const profileARN = "arn:aws:bedrock:us-east-1:111122223333:application-inference-profile/xpi-model-y"
	var rawCalls, arnCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawPath+r.URL.Path, "application-inference-profile") {
			if arnCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"message":"throttled"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		rawCalls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"retry with an inference profile"}`))
	}))
	defer server.Close()

	profiles := &fakeProfiles{
		arns: map[string]string{"model-y": profileARN},
	}
	inv := newTestInvoker(profiles, &fakeSelector{}, 3)

	result, err := inv.Invoke(context.Background(), "model-y", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("expected eventual success via profile, got %v", err)
	}

	if got := rawCalls.Load(); got != 1 {
		t.Errorf("expected 1 raw-ID call, got %d", got)
	}
	if got := arnCalls.Load(); got != 2 {
		t.Errorf("expected 2 profile-ARN calls, got %d", got)
	}
	if got := profiles.ensureCalls.Load(); got != 1 {
		t.Errorf("expected 1 ensure call, got %d", got)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
	if string(result.Body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", result.Body)
	}
}

func TestInvoke_ProfileRequiredOnlyOnce(t *testing.T) {
	// The upstream keeps demanding a profile even after one is supplied;
	// the second rejection is terminal.
	var attempts atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"retry with an inference profile"}`))
	}))
	defer server.Close()

	profiles := &fakeProfiles{
		arns: map[string]string{"model-y": "arn:aws:bedrock:us-east-1:111122223333:application-inference-profile/p"},
	}
	inv := newTestInvoker(profiles, &fakeSelector{}, 3)

	_, err := inv.Invoke(context.Background(), "model-y", []byte(`{}`), bearerCred(), internetRoute(server.URL))

	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("expected ClientError after second rejection, got %T: %v", err, err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}
}

func TestInvoke_ProactiveProfileForKnownPrefix(t *testing.T) {
	const profileARN = "arn:aws:bedrock:us-east-1:111122223333:application-inference-profile/xpi-claude"
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	profiles := &fakeProfiles{
		required: map[string]bool{"anthropic.claude-v2": true},
		arns:     map[string]string{"anthropic.claude-v2": profileARN},
	}
	inv := newTestInvoker(profiles, &fakeSelector{}, 3)

	result, err := inv.Invoke(context.Background(), "anthropic.claude-v2", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath == "/model/anthropic.claude-v2/invoke" {
		t.Error("expected invocation via profile ARN, got raw model ID")
	}
	if result.ProfileARN != profileARN {
		t.Errorf("expected profile ARN in result, got %q", result.ProfileARN)
	}
}

func TestInvoke_FallbackOnConnectivityFailure(t *testing.T) {
	fallbackServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"via":"fallback"}`))
	}))
	defer fallbackServer.Close()

	selector := &fakeSelector{
		fallback: internetRoute(fallbackServer.URL),
	}
	inv := newTestInvoker(&fakeProfiles{}, selector, 3)

	// Primary endpoint refuses connections.
	route := transport.Route{Method: config.TransportTunnel, Endpoint: "http://127.0.0.1:1"}

	result, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), route)
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}

	if string(result.Body) != `{"via":"fallback"}` {
		t.Errorf("unexpected body: %s", result.Body)
	}
	if result.FallbackFrom != config.TransportTunnel {
		t.Errorf("expected fallback from tunnel recorded, got %q", result.FallbackFrom)
	}
	if result.Transport != config.TransportInternet {
		t.Errorf("expected final transport internet, got %q", result.Transport)
	}
	if got := selector.calls.Load(); got != 1 {
		t.Errorf("expected 1 fallback selection, got %d", got)
	}
}

func TestInvoke_FallbackBound(t *testing.T) {
	// Both primary and fallback are unreachable: exactly one fallback
	// attempt, then a terminal TransportError.
	selector := &fakeSelector{
		fallback: transport.Route{Method: config.TransportInternet, Endpoint: "http://127.0.0.1:1"},
	}
	inv := newTestInvoker(&fakeProfiles{}, selector, 3)

	route := transport.Route{Method: config.TransportTunnel, Endpoint: "http://127.0.0.1:1"}

	result, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), route)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if !transportErr.FallbackTried {
		t.Error("expected FallbackTried to be set")
	}
	if got := selector.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 fallback selection, got %d", got)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts (primary + fallback), got %d", result.Attempts)
	}
}

func TestInvoke_NoFallbackConfigured(t *testing.T) {
	selector := &fakeSelector{fallbackErr: errors.New("no fallback transport")}
	inv := newTestInvoker(&fakeProfiles{}, selector, 3)

	route := transport.Route{Method: config.TransportInternet, Endpoint: "http://127.0.0.1:1"}

	_, err := inv.Invoke(context.Background(), "model-x", []byte(`{}`), bearerCred(), route)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if transportErr.FallbackTried {
		t.Error("no fallback was attempted, FallbackTried must be false")
	}
}

func TestInvoke_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can detect the
		// client disconnect and cancel the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	inv := newTestInvoker(&fakeProfiles{}, &fakeSelector{}, 3)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := inv.Invoke(ctx, "model-x", []byte(`{}`), bearerCred(), internetRoute(server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFullJitter(t *testing.T) {
	base := 200 * time.Millisecond
	for attempt := 1; attempt <= 4; attempt++ {
		ceiling := base << (attempt - 1)
		for i := 0; i < 100; i++ {
			d := fullJitter(base, attempt)
			if d < 0 || d >= ceiling {
				t.Fatalf("attempt %d: jitter %v outside [0, %v)", attempt, d, ceiling)
			}
		}
	}
}

func TestIsProfileRequired(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{`{"message":"Retry your request with the ID or ARN of an inference profile."}`, true},
		{`{"message":"Inference Profile required for this model"}`, true},
		{`{"message":"malformed input"}`, false},
		{``, false},
	}

	for _, tt := range tests {
		if got := isProfileRequired([]byte(tt.body)); got != tt.want {
			t.Errorf("isProfileRequired(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
