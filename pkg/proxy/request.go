package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/types"
)

// ParseInvokeRequest reads and validates the inbound invoke body.
//
// The body is size-limited; the model payload inside is opaque and only
// checked for presence.
func ParseInvokeRequest(w http.ResponseWriter, r *http.Request, maxBytes int64) (*types.InvokeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	var req types.InvokeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := ValidateInvokeRequest(&req); err != nil {
		return nil, err
	}

	return &req, nil
}

// ValidateInvokeRequest checks the structural requirements of an invoke
// request.
func ValidateInvokeRequest(req *types.InvokeRequest) error {
	if req.ModelID == "" {
		return fmt.Errorf("modelId is required")
	}
	if len(req.Body) == 0 {
		return fmt.Errorf("body is required")
	}

	switch config.TransportMethod(req.RoutingHint) {
	case "", config.TransportInternet, config.TransportTunnel, config.TransportDedicated:
	default:
		return fmt.Errorf("invalid routingHint %q", req.RoutingHint)
	}

	return nil
}
