package types

import "encoding/json"

// InvokeRequest is the inbound request body for a model invocation.
//
// The body field is the target model's own request payload; the gateway
// forwards it unchanged and never inspects its contents.
type InvokeRequest struct {
	// ModelID is the Bedrock model identifier to invoke.
	// Example: "anthropic.claude-3-sonnet-20240229-v1:0"
	ModelID string `json:"modelId"`

	// Body is the opaque JSON payload for the target model.
	Body json.RawMessage `json:"body"`

	// RoutingHint optionally requests a specific transport path:
	// "internet", "tunnel", or "dedicated". The hint is honored only when
	// the named transport is configured for the deployment.
	RoutingHint string `json:"routingHint,omitempty"`
}
