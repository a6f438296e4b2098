// Package proxy implements the gateway's HTTP surface: request
// parsing, error classification, and the invoke handler.
package proxy

import (
	"context"
	"errors"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/invoker"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/profile"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/proxy/types"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/auth"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/security/secrets"
	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/transport"
)

// Classify maps an internal error onto the wire-level error kind and a
// caller-safe message.
//
// The mapping is the single place where the error taxonomy is decided:
// handlers pass errors through unchanged and classification happens
// once, here.
func Classify(err error) (kind, message string) {
	var (
		unauthenticated      *auth.UnauthenticatedError
		authSecret           *auth.SecretError
		secretUnavailable    *secrets.UnavailableError
		profileCreation      *profile.CreationError
		clientErr            *invoker.ClientError
		upstreamErr          *invoker.UpstreamError
		transportErr         *invoker.TransportError
		transportUnavailable *transport.UnavailableError
	)

	switch {
	case errors.As(err, &unauthenticated):
		return types.KindUnauthenticated, "invalid or missing bearer token"

	case errors.As(err, &authSecret):
		return types.KindSecretUnavailable, "authentication backend unavailable"

	case errors.As(err, &secretUnavailable):
		return types.KindSecretUnavailable, "credential store unavailable"

	case errors.As(err, &profileCreation):
		return types.KindProfileCreationFailed, "inference profile setup failed"

	case errors.As(err, &clientErr):
		return types.KindClientError, clientErr.Message

	case errors.As(err, &upstreamErr):
		return types.KindUpstreamUnavailable, "inference service unavailable"

	case errors.As(err, &transportErr):
		return types.KindTransportError, "network path to inference service failed"

	case errors.As(err, &transportUnavailable):
		// A routing hint naming an unconfigured transport is the
		// caller's mistake.
		return types.KindClientError, transportUnavailable.Error()

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.KindCancelled, "request cancelled"

	default:
		return types.KindInternal, "internal error"
	}
}
