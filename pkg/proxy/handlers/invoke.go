// Package handlers contains the HTTP handlers for the gateway's
// proxied inference surface.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/audit"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/invoker"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/middleware"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/types"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/auth"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/telemetry/metrics"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

// Authorizer validates the caller's bearer token.
type Authorizer interface {
	Authorize(ctx context.Context, presented string) (*auth.Identity, error)
}

// CredentialSource resolves the commercial-partition credential used to
// authenticate upstream calls.
type CredentialSource interface {
	Resolve(ctx context.Context) (*secrets.ResolvedCredential, error)
}

// RouteSelector picks the transport route for a request.
type RouteSelector interface {
	Select(hint config.TransportMethod) (transport.Route, error)
}

// ModelInvoker performs the upstream model invocation.
type ModelInvoker interface {
	Invoke(ctx context.Context, modelID string, body []byte, cred *secrets.ResolvedCredential, route transport.Route) (*invoker.Result, error)
}

// AuditSink accepts the per-request audit record. Record must not
// block the request path.
type AuditSink interface {
	Record(record *audit.Record)
}

// InvokeHandler proxies inference requests: authenticate the caller,
// resolve the upstream credential, select a transport, invoke the
// model, and emit exactly one audit record and one response for every
// request, including rejected ones.
type InvokeHandler struct {
	authorizer  Authorizer
	credentials CredentialSource
	selector    RouteSelector
	invoker     ModelInvoker
	recorder    AuditSink
	metrics     *metrics.RequestMetrics

	maxBodyBytes int64
	logger       *slog.Logger
}

// NewInvokeHandler creates the invoke handler. recorder and metrics
// may be nil, in which case auditing and instrumentation are skipped.
func NewInvokeHandler(
	authorizer Authorizer,
	credentials CredentialSource,
	selector RouteSelector,
	inv ModelInvoker,
	recorder AuditSink,
	rm *metrics.RequestMetrics,
	maxBodyBytes int64,
) *InvokeHandler {
	return &InvokeHandler{
		authorizer:   authorizer,
		credentials:  credentials,
		selector:     selector,
		invoker:      inv,
		recorder:     recorder,
		metrics:      rm,
		maxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("component", "invoke_handler"),
	}
}

// ServeHTTP handles POST /invoke.
func (h *InvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &audit.Record{
		RequestID: middleware.GetRequestID(r.Context()),
	}

	// Authentication happens before the body is read and before
	// anything touches the credential store or the upstream: a
	// rejected caller must leave no trace beyond its audit record,
	// and that record carries no payload details.
	if _, err := h.authorizer.Authorize(r.Context(), auth.ExtractBearerToken(r)); err != nil {
		kind, msg := proxy.Classify(err)
		h.finishError(w, rec, start, kind, msg)
		return
	}

	req, err := proxy.ParseInvokeRequest(w, r, h.maxBodyBytes)
	if err != nil {
		h.finishError(w, rec, start, types.KindClientError, err.Error())
		return
	}
	rec.ModelID = req.ModelID
	rec.RequestBytes = len(req.Body)

	cred, err := h.credentials.Resolve(r.Context())
	if err != nil {
		kind, msg := proxy.Classify(err)
		h.finishError(w, rec, start, kind, msg)
		return
	}

	route, err := h.selector.Select(config.TransportMethod(req.RoutingHint))
	if err != nil {
		kind, msg := proxy.Classify(err)
		h.finishError(w, rec, start, kind, msg)
		return
	}
	rec.TransportMethod = string(route.Method)

	result, err := h.invoker.Invoke(r.Context(), req.ModelID, req.Body, cred, route)
	if result != nil {
		rec.TransportMethod = string(result.Transport)
		rec.ProfileARN = result.ProfileARN
		rec.Attempts = result.Attempts
		rec.ResponseBytes = result.ResponseBytes

		if result.FallbackFrom != "" {
			rec.Reason = fmt.Sprintf("fell back from %s to %s after connectivity failure", result.FallbackFrom, result.Transport)
			if h.metrics != nil {
				h.metrics.RecordFallback(string(result.FallbackFrom), string(result.Transport))
			}
		}
	}
	if err != nil {
		kind, msg := proxy.Classify(err)
		h.finishError(w, rec, start, kind, msg)
		return
	}

	rec.Success = true
	rec.StatusCode = http.StatusOK
	rec.LatencyMs = time.Since(start).Milliseconds()

	proxy.WriteUpstreamBody(w, result.Body)
	h.record(rec)
	h.observe(rec, "success")
}

// finishError writes the error response and closes out the request's
// audit record and metrics.
func (h *InvokeHandler) finishError(w http.ResponseWriter, rec *audit.Record, start time.Time, kind, message string) {
	rec.StatusCode = proxy.WriteError(w, kind, message)
	rec.ErrorKind = kind
	rec.LatencyMs = time.Since(start).Milliseconds()

	h.logger.Warn("request failed",
		"request_id", rec.RequestID,
		"model_id", rec.ModelID,
		"error_kind", kind,
		"status", rec.StatusCode,
	)

	h.record(rec)
	h.observe(rec, kind)
}

func (h *InvokeHandler) record(rec *audit.Record) {
	rec.Timestamp = time.Now().UTC()
	if h.recorder != nil {
		h.recorder.Record(rec)
	}
}

func (h *InvokeHandler) observe(rec *audit.Record, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(
		rec.TransportMethod,
		rec.ModelID,
		outcome,
		time.Duration(rec.LatencyMs)*time.Millisecond,
		int64(rec.RequestBytes),
		int64(rec.ResponseBytes),
		rec.Attempts,
	)
}
