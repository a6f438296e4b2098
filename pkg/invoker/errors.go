package invoker

import (
	"fmt"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

// ClientError represents a terminal 4xx rejection from the inference
// service: the caller's request itself is bad and retrying cannot help.
type ClientError struct {
	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Message is the upstream error body.
	Message string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("upstream rejected request (status %d): %s", e.StatusCode, e.Message)
}

// UpstreamError represents a transient upstream failure (429/5xx) that
// persisted through the retry budget.
type UpstreamError struct {
	// StatusCode is the last upstream HTTP status observed.
	StatusCode int

	// Attempts is the number of invocation attempts made.
	Attempts int

	// Message is the last upstream error body.
	Message string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream unavailable after %d attempts (status %d): %s",
		e.Attempts, e.StatusCode, e.Message)
}

// TransportError represents a connectivity-level failure (connection
// refused, timeout below the HTTP layer) that persisted through the
// single cross-transport fallback.
type TransportError struct {
	// Transport is the path on which the final failure occurred.
	Transport config.TransportMethod

	// FallbackTried is set when a fallback transport was attempted.
	FallbackTried bool

	// Cause is the underlying network error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.FallbackTried {
		return fmt.Sprintf("transport %q failed after fallback: %v", e.Transport, e.Cause)
	}
	return fmt.Sprintf("transport %q failed: %v", e.Transport, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}
