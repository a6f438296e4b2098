package auth

import "fmt"

// UnauthenticatedError indicates the presented bearer token was missing
// or did not match the expected token. It maps to 401 at the wire
// boundary. The reason is logged, never returned to the caller.
type UnauthenticatedError struct {
	Reason string
}

// Error implements the error interface.
func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("unauthenticated: %s", e.Reason)
}

// SecretError indicates the expected token could not be read from the
// secret store, so the gateway cannot decide whether the caller is
// authentic. It maps to 500 at the wire boundary, never 401.
type SecretError struct {
	Cause error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("auth secret unavailable: %v", e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *SecretError) Unwrap() error {
	return e.Cause
}
