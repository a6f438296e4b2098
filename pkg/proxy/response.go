package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/types"
)

// WriteError writes the structured error body for the given kind.
// Returns the HTTP status that was sent, for the audit record.
func WriteError(w http.ResponseWriter, kind, message string) int {
	resp := types.NewErrorResponse(kind, message)
	status := resp.Error.HTTPStatusCode()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)

	return status
}

// WriteUpstreamBody writes a successful upstream response verbatim.
// The body passes through byte-identical.
func WriteUpstreamBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
