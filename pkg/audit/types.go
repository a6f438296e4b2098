// Package audit defines the audit record written once per proxied
// request and the storage interface behind it.
package audit

import (
	"context"
	"fmt"
	"time"
)

// Record is the audit trail entry for one proxied inference request.
// Write-once, append-only, keyed by RequestID.
type Record struct {
	// RequestID is the per-request UUID.
	RequestID string `json:"request_id"`

	// Timestamp is when the request completed.
	Timestamp time.Time `json:"timestamp"`

	// ModelID is the model the caller asked for (the raw ID, not the
	// profile ARN).
	ModelID string `json:"model_id"`

	// ProfileARN is set when the invocation went through an inference
	// profile.
	ProfileARN string `json:"profile_arn,omitempty"`

	// TransportMethod is the path the final attempt used.
	TransportMethod string `json:"transport_method"`

	// Reason notes routing decisions operators need to see, such as a
	// silent cross-transport fallback.
	Reason string `json:"reason,omitempty"`

	// LatencyMs is the total processing time in milliseconds.
	LatencyMs int64 `json:"latency_ms"`

	// Success indicates whether the caller received a 2xx response.
	Success bool `json:"success"`

	// StatusCode is the HTTP status returned to the caller.
	StatusCode int `json:"status_code"`

	// RequestBytes and ResponseBytes are the payload sizes.
	RequestBytes  int `json:"request_bytes"`
	ResponseBytes int `json:"response_bytes"`

	// Attempts is the number of upstream invocation attempts.
	Attempts int `json:"attempts"`

	// ErrorKind is the stable error category for failed requests, empty
	// on success.
	ErrorKind string `json:"error_kind,omitempty"`
}

// Storage persists audit records.
//
// Implementations: DynamoDB (production), SQLite (self-hosted), memory
// (tests).
type Storage interface {
	// Write persists one record. One attempt, no internal retries.
	Write(ctx context.Context, record *Record) error

	// DeleteOlderThan removes records whose timestamp precedes the
	// cutoff, returning the number removed. Backends with native TTL
	// return (0, nil).
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Count returns the number of stored records. Backends that cannot
	// count cheaply return an error.
	Count(ctx context.Context) (int64, error)

	// Close releases storage resources.
	Close() error
}

// StorageError wraps a backend failure with the backend and operation
// that produced it.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage %s: %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
