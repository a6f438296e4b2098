package transport

import (
	"log/slog"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

// TunnelHealth reports whether the tunnel path is usable. Implemented by
// the TunnelMonitor; tests substitute a stub.
type TunnelHealth interface {
	Healthy() bool
}

// Selector picks the transport route for a request.
//
// Preference order when no hint is given: the configured default first,
// then dedicated, tunnel (when healthy), and internet. The internet path
// is always configured and serves as the final fallback.
type Selector struct {
	config config.TransportConfig
	tunnel TunnelHealth
	logger *slog.Logger
}

// NewSelector creates a transport selector.
func NewSelector(cfg config.TransportConfig, tunnel TunnelHealth) *Selector {
	return &Selector{
		config: cfg,
		tunnel: tunnel,
		logger: slog.Default().With("component", "transport-selector"),
	}
}

// Select picks the route for a request.
//
// A hint naming a configured transport is honored even when the tunnel
// is unhealthy (the caller asked for it explicitly; a connectivity
// failure then goes through the normal fallback path). A hint naming an
// unconfigured transport is an error so callers learn their hint is
// wrong instead of being silently rerouted.
func (s *Selector) Select(hint config.TransportMethod) (Route, error) {
	if hint != "" {
		endpoint := s.endpoint(hint)
		if endpoint == "" {
			return Route{}, &UnavailableError{
				Requested: hint,
				Reason:    "transport not configured",
			}
		}
		return Route{Method: hint, Endpoint: endpoint}, nil
	}

	for _, method := range s.preferenceOrder() {
		endpoint := s.endpoint(method)
		if endpoint == "" {
			continue
		}
		if method == config.TransportTunnel && !s.tunnel.Healthy() {
			s.logger.Debug("skipping unhealthy tunnel transport")
			continue
		}
		return Route{Method: method, Endpoint: endpoint}, nil
	}

	// Unreachable when the internet endpoint is configured, which
	// validation requires.
	return Route{}, &UnavailableError{Reason: "no configured transport"}
}

// Fallback returns the next route to try after a connectivity failure
// on the given transport.
//
// At most one fallback happens per request, enforced by the caller; the
// selector only answers "what comes next". Returns an UnavailableError
// when fallback is disabled or nothing comes after the failed
// transport.
func (s *Selector) Fallback(failed config.TransportMethod) (Route, error) {
	if !s.config.EnableFallback {
		return Route{}, &UnavailableError{
			Requested: failed,
			Reason:    "fallback disabled",
		}
	}

	order := s.preferenceOrder()
	seen := false
	for _, method := range order {
		if method == failed {
			seen = true
			continue
		}
		if !seen {
			continue
		}

		endpoint := s.endpoint(method)
		if endpoint == "" {
			continue
		}
		if method == config.TransportTunnel && !s.tunnel.Healthy() {
			continue
		}

		s.logger.Info("transport fallback selected",
			"from", string(failed),
			"to", string(method),
		)
		return Route{Method: method, Endpoint: endpoint}, nil
	}

	return Route{}, &UnavailableError{
		Requested: failed,
		Reason:    "no fallback transport after " + string(failed),
	}
}

// preferenceOrder returns the transport order with the configured
// default first and internet always last.
func (s *Selector) preferenceOrder() []config.TransportMethod {
	base := []config.TransportMethod{
		config.TransportDedicated,
		config.TransportTunnel,
		config.TransportInternet,
	}

	def := s.config.Default
	if def == "" || def == base[0] {
		return base
	}

	order := []config.TransportMethod{def}
	for _, method := range base {
		if method != def {
			order = append(order, method)
		}
	}
	return order
}

// endpoint returns the configured endpoint for a transport, or "" when
// the transport is not configured.
func (s *Selector) endpoint(method config.TransportMethod) string {
	switch method {
	case config.TransportInternet:
		return s.config.InternetEndpoint
	case config.TransportTunnel:
		return s.config.TunnelEndpoint
	case config.TransportDedicated:
		return s.config.DedicatedEndpoint
	default:
		return ""
	}
}
