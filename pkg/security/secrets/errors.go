package secrets

import "fmt"

// UnavailableError indicates the secret store was unreachable or returned
// material the gateway cannot use (missing required fields, undecodable
// encoding). It maps to the SecretUnavailable error kind at the wire
// boundary.
type UnavailableError struct {
	// Name is the secret that could not be resolved (redacted in logs,
	// not in the error chain).
	Name string

	// Reason describes what went wrong.
	Reason string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("secret %q unavailable: %s: %v", e.Name, e.Reason, e.Cause)
	}
	return fmt.Sprintf("secret %q unavailable: %s", e.Name, e.Reason)
}

// Unwrap returns the underlying error for error chain support.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}
