// Package transport selects the network path used to reach the
// target-partition Bedrock endpoint and monitors tunnel health.
package transport

import (
	"fmt"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

// Route is a selected transport path: the method and the endpoint it
// reaches.
type Route struct {
	// Method identifies the path: internet, tunnel, or dedicated.
	Method config.TransportMethod

	// Endpoint is the Bedrock runtime base URL reached over this path.
	Endpoint string
}

// String returns a loggable description of the route.
func (r Route) String() string {
	return fmt.Sprintf("%s(%s)", r.Method, r.Endpoint)
}

// UnavailableError indicates no configured transport could serve the
// request.
type UnavailableError struct {
	// Requested is the transport the caller asked for, if any.
	Requested config.TransportMethod

	// Reason describes why selection failed.
	Reason string
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Requested != "" {
		return fmt.Sprintf("transport %q unavailable: %s", e.Requested, e.Reason)
	}
	return fmt.Sprintf("no transport available: %s", e.Reason)
}
