package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/invoker"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/middleware"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/types"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/auth"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

type fakeAuthorizer struct {
	err   error
	calls int
}

func (f *fakeAuthorizer) Authorize(_ context.Context, presented string) (*auth.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if presented == "" {
		return nil, &auth.UnauthenticatedError{Reason: "missing bearer token"}
	}
	return &auth.Identity{Subject: "gateway-client", AuthenticatedAt: time.Now()}, nil
}

type fakeCredentials struct {
	cred  *secrets.ResolvedCredential
	err   error
	calls int
}

func (f *fakeCredentials) Resolve(context.Context) (*secrets.ResolvedCredential, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.cred, nil
}

type fakeRouter struct {
	route    transport.Route
	err      error
	gotHints []config.TransportMethod
}

func (f *fakeRouter) Select(hint config.TransportMethod) (transport.Route, error) {
	f.gotHints = append(f.gotHints, hint)
	if f.err != nil {
		return transport.Route{}, f.err
	}
	return f.route, nil
}

type fakeInvoker struct {
	result   *invoker.Result
	err      error
	calls    int
	gotModel string
	gotBody  []byte
}

func (f *fakeInvoker) Invoke(_ context.Context, modelID string, body []byte, _ *secrets.ResolvedCredential, _ transport.Route) (*invoker.Result, error) {
	f.calls++
	f.gotModel = modelID
	f.gotBody = body
	return f.result, f.err
}

type captureSink struct {
	records []*audit.Record
}

func (c *captureSink) Record(record *audit.Record) {
	c.records = append(c.records, record)
}

type handlerFixture struct {
	authorizer  *fakeAuthorizer
	credentials *fakeCredentials
	router      *fakeRouter
	invoker     *fakeInvoker
	sink        *captureSink
	handler     http.Handler
}

func newFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		authorizer:  &fakeAuthorizer{},
		credentials: &fakeCredentials{cred: &secrets.ResolvedCredential{Kind: secrets.KindBearer, Token: "upstream-token", Region: "us-east-1"}},
		router:      &fakeRouter{route: transport.Route{Method: config.TransportInternet, Endpoint: "https://bedrock-runtime.us-east-1.amazonaws.com"}},
		invoker: &fakeInvoker{result: &invoker.Result{
			Body:          []byte(`{"completion":"ok"}`),
			StatusCode:    http.StatusOK,
			ResponseBytes: 19,
			Attempts:      1,
			Transport:     config.TransportInternet,
		}},
		sink: &captureSink{},
	}

	h := NewInvokeHandler(f.authorizer, f.credentials, f.router, f.invoker, f.sink, nil, 1<<20)
	f.handler = middleware.RequestID(h)
	return f
}

func invokeBody(t *testing.T, modelID, hint string) []byte {
	t.Helper()
	req := map[string]any{
		"modelId": modelID,
		"body":    map[string]any{"prompt": "hello"},
	}
	if hint != "" {
		req["routingHint"] = hint
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return data
}

func doRequest(f *handlerFixture, body []byte, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/invoke", bytes.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var resp types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestInvokeHandler_Success(t *testing.T) {
	f := newFixture(t)

	w := doRequest(f, invokeBody(t, "anthropic.claude-sonnet-4-20250514-v1:0", ""), "secret")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"completion":"ok"}` {
		t.Errorf("body = %q, want upstream body verbatim", got)
	}
	if f.invoker.gotModel != "anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("invoked model = %q", f.invoker.gotModel)
	}
	if !bytes.Contains(f.invoker.gotBody, []byte(`"prompt":"hello"`)) {
		t.Errorf("inner payload not forwarded: %s", f.invoker.gotBody)
	}

	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	rec := f.sink.records[0]
	if !rec.Success {
		t.Error("audit record not marked success")
	}
	if rec.StatusCode != http.StatusOK {
		t.Errorf("audit status = %d", rec.StatusCode)
	}
	if rec.RequestID == "" {
		t.Error("audit record missing request ID")
	}
	if rec.TransportMethod != string(config.TransportInternet) {
		t.Errorf("audit transport = %q", rec.TransportMethod)
	}
	if rec.ErrorKind != "" {
		t.Errorf("audit error kind = %q, want empty on success", rec.ErrorKind)
	}
}

func TestInvokeHandler_UnauthenticatedShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.authorizer.err = &auth.UnauthenticatedError{Reason: "token mismatch"}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "wrong")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Kind != types.KindUnauthenticated {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}

	// A rejected caller must not reach the credential store or the
	// upstream.
	if f.credentials.calls != 0 {
		t.Errorf("credential resolutions = %d, want 0", f.credentials.calls)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}

	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	rec := f.sink.records[0]
	if rec.Success {
		t.Error("audit record marked success")
	}
	if rec.ErrorKind != types.KindUnauthenticated {
		t.Errorf("audit error kind = %q", rec.ErrorKind)
	}
	// The body is never read for a rejected caller, so its record
	// carries no payload details.
	if rec.ModelID != "" {
		t.Errorf("audit model = %q, want empty for rejected caller", rec.ModelID)
	}
	if rec.RequestBytes != 0 {
		t.Errorf("audit request bytes = %d, want 0 for rejected caller", rec.RequestBytes)
	}
}

func TestInvokeHandler_AuthPrecedesBodyRead(t *testing.T) {
	f := newFixture(t)
	f.authorizer.err = &auth.UnauthenticatedError{Reason: "token mismatch"}

	// An unauthenticated caller with a malformed body is rejected for
	// the missing credential, not the body.
	w := doRequest(f, []byte(`{"modelId": `), "wrong")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Kind != types.KindUnauthenticated {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}
}

func TestInvokeHandler_MalformedBody(t *testing.T) {
	f := newFixture(t)

	w := doRequest(f, []byte(`{"modelId": `), "secret")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if f.authorizer.calls != 1 {
		t.Errorf("authorizer calls = %d, want 1", f.authorizer.calls)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	if kind := f.sink.records[0].ErrorKind; kind != types.KindClientError {
		t.Errorf("audit error kind = %q", kind)
	}
}

func TestInvokeHandler_MissingModelID(t *testing.T) {
	f := newFixture(t)

	w := doRequest(f, []byte(`{"body":{"prompt":"hi"}}`), "secret")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if resp := decodeError(t, w); !strings.Contains(resp.Error.Message, "modelId") {
		t.Errorf("message = %q, want mention of modelId", resp.Error.Message)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}
}

func TestInvokeHandler_CredentialStoreDown(t *testing.T) {
	f := newFixture(t)
	f.credentials.err = &secrets.UnavailableError{Name: "gateway/commercial-creds", Reason: "all providers failed"}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "secret")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Kind != types.KindSecretUnavailable {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}
}

func TestInvokeHandler_UnconfiguredRoutingHint(t *testing.T) {
	f := newFixture(t)
	f.router.err = &transport.UnavailableError{Requested: config.TransportDedicated, Reason: "no endpoint configured"}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", "dedicated"), "secret")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(f.router.gotHints) != 1 || f.router.gotHints[0] != config.TransportDedicated {
		t.Errorf("selector hints = %v", f.router.gotHints)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}
}

func TestInvokeHandler_InvalidRoutingHintRejectedBeforeSelection(t *testing.T) {
	f := newFixture(t)

	w := doRequest(f, []byte(`{"modelId":"m","body":{},"routingHint":"carrier-pigeon"}`), "secret")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(f.router.gotHints) != 0 {
		t.Errorf("selector consulted for invalid hint: %v", f.router.gotHints)
	}
}

func TestInvokeHandler_UpstreamExhausted(t *testing.T) {
	f := newFixture(t)
	f.invoker.err = &invoker.UpstreamError{StatusCode: http.StatusInternalServerError, Attempts: 3, Message: "boom"}
	f.invoker.result = &invoker.Result{
		Attempts:  3,
		Transport: config.TransportInternet,
	}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "secret")

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Kind != types.KindUpstreamUnavailable {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}

	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	rec := f.sink.records[0]
	if rec.Attempts != 3 {
		t.Errorf("audit attempts = %d, want 3", rec.Attempts)
	}
	if rec.ErrorKind != types.KindUpstreamUnavailable {
		t.Errorf("audit error kind = %q", rec.ErrorKind)
	}
}

func TestInvokeHandler_FallbackNotedInAudit(t *testing.T) {
	f := newFixture(t)
	f.invoker.result = &invoker.Result{
		Body:         []byte(`{}`),
		StatusCode:   http.StatusOK,
		Attempts:     2,
		Transport:    config.TransportInternet,
		FallbackFrom: config.TransportTunnel,
	}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "secret")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	rec := f.sink.records[0]
	if !strings.Contains(rec.Reason, "tunnel") || !strings.Contains(rec.Reason, "internet") {
		t.Errorf("audit reason = %q, want fallback note", rec.Reason)
	}
	if rec.TransportMethod != string(config.TransportInternet) {
		t.Errorf("audit transport = %q, want final transport", rec.TransportMethod)
	}
}

func TestInvokeHandler_ProfileRecordedInAudit(t *testing.T) {
	f := newFixture(t)
	f.invoker.result = &invoker.Result{
		Body:       []byte(`{}`),
		StatusCode: http.StatusOK,
		Attempts:   1,
		Transport:  config.TransportInternet,
		ProfileARN: "arn:aws:bedrock:us-east-1:123456789012:application-inference-profile/abc",
	}

	doRequest(f, invokeBody(t, "anthropic.claude-sonnet-4-20250514-v1:0", ""), "secret")

	if len(f.sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(f.sink.records))
	}
	if arn := f.sink.records[0].ProfileARN; !strings.Contains(arn, "application-inference-profile") {
		t.Errorf("audit profile ARN = %q", arn)
	}
}

func TestInvokeHandler_CancelledRequest(t *testing.T) {
	f := newFixture(t)
	f.invoker.err = context.Canceled
	f.invoker.result = &invoker.Result{Attempts: 1, Transport: config.TransportInternet}

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "secret")

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	if resp := decodeError(t, w); resp.Error.Kind != types.KindCancelled {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}
}

func TestInvokeHandler_OversizedBody(t *testing.T) {
	f := newFixture(t)

	h := NewInvokeHandler(f.authorizer, f.credentials, f.router, f.invoker, f.sink, nil, 64)
	r := httptest.NewRequest(http.MethodPost, "/invoke", bytes.NewReader(invokeBody(t, strings.Repeat("m", 128), "")))
	r.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if f.invoker.calls != 0 {
		t.Errorf("upstream invocations = %d, want 0", f.invoker.calls)
	}
}

func TestInvokeHandler_InternalErrorIsOpaque(t *testing.T) {
	f := newFixture(t)
	f.invoker.err = errors.New("nil pointer somewhere sensitive")
	f.invoker.result = nil

	w := doRequest(f, invokeBody(t, "amazon.titan-text-express-v1", ""), "secret")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Kind != types.KindInternal {
		t.Errorf("error kind = %q", resp.Error.Kind)
	}
	if strings.Contains(resp.Error.Message, "sensitive") {
		t.Errorf("internal detail leaked to caller: %q", resp.Error.Message)
	}
}
