// Package server provides the gateway's HTTP server and lifecycle.
//
// This package ties together the proxy surface (handlers, middleware)
// with the operational endpoints and manages start, graceful shutdown,
// and OS signals (SIGTERM, SIGINT).
//
// # Basic Usage
//
// Creating and starting a server:
//
//	import (
//	    "context"
//	    "github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
//	    "github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/server"
//	)
//
//	srv := server.New(cfg.Server, invokeHandler, checker, rm.Handler(), build)
//	srv.RegisterCloser("audit_recorder", func(ctx context.Context) error {
//	    recorder.Close()
//	    return nil
//	})
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The shutdown process:
//  1. Stops accepting new connections
//  2. Waits for active requests to complete (up to shutdown timeout)
//  3. Runs registered closers in order (audit recorder flush, tunnel
//     monitor stop, retention scheduler stop, storage close)
//
// # Routes
//
//   - POST /invoke - Proxied model invocation
//   - GET /healthz - Liveness probe (always returns 200)
//   - GET /readyz - Readiness probe (runs registered dependency checks)
//   - GET /version - Build information
//   - GET /metrics - Prometheus exposition (when metrics are enabled)
//
// # Middleware Chain
//
// Requests pass through the following middleware (outermost to innermost):
//  1. Recovery: Recovers from panics and returns a structured 500 error
//  2. RequestID: Assigns the per-request UUID used in logs and audit records
//  3. Logging: Logs request/response details
//
// # Thread Safety
//
// All server operations are safe to call concurrently from multiple
// goroutines.
package server
