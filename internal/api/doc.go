// Package api implements the gateway's optional status HTTP server.
//
// This package provides:
//   - GET /health: JSON view of the poller state, failure budget and bus
//     connection, answering 503 once polling has stopped
//   - GET /metrics: Prometheus exposition of the poller collectors
//   - Middleware stack (request ID, logging, recovery)
//
// The server is read-only and carries no authentication; bind it to a
// loopback or management address.
//
// Lifecycle:
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
