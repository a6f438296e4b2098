package types

// ErrorResponse is the wire-level error body returned for all failed
// requests. The kind string is stable so that callers can branch on error
// category without parsing human-readable text.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Kind categorizes the error. Possible values: "Unauthenticated",
	// "SecretUnavailable", "ClientError", "ProfileCreationFailed",
	// "UpstreamUnavailable", "TransportError", "Cancelled", "Internal".
	Kind string `json:"kind"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error kind constants. These are part of the wire contract; callers
// branch on them.
const (
	// KindUnauthenticated indicates a bad or missing inbound bearer token (401).
	KindUnauthenticated = "Unauthenticated"

	// KindSecretUnavailable indicates the credential store was unreachable
	// or returned malformed material (500).
	KindSecretUnavailable = "SecretUnavailable"

	// KindClientError indicates the caller's model request was rejected by
	// the upstream service (400).
	KindClientError = "ClientError"

	// KindProfileCreationFailed indicates derived inference profile setup
	// failed (502).
	KindProfileCreationFailed = "ProfileCreationFailed"

	// KindUpstreamUnavailable indicates a transient upstream failure that
	// persisted through retries (502).
	KindUpstreamUnavailable = "UpstreamUnavailable"

	// KindTransportError indicates a network-path failure after the single
	// fallback attempt (504).
	KindTransportError = "TransportError"

	// KindCancelled indicates the caller disconnected or the request
	// deadline was exceeded (504).
	KindCancelled = "Cancelled"

	// KindInternal indicates an unexpected internal fault (500).
	KindInternal = "Internal"
)

// NewErrorResponse creates a new error response with the given kind and
// message.
func NewErrorResponse(kind, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Kind:    kind,
			Message: message,
		},
	}
}

// HTTPStatusCode returns the HTTP status code for the error kind.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Kind {
	case KindUnauthenticated:
		return 401
	case KindClientError:
		return 400
	case KindProfileCreationFailed, KindUpstreamUnavailable:
		return 502
	case KindTransportError, KindCancelled:
		return 504
	case KindSecretUnavailable, KindInternal:
		return 500
	default:
		return 500
	}
}
