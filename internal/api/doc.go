// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/run and /api/run/workers for the live run snapshot.
//   - GET /api/history and /api/history/{run_id} for stored runs via the
//     history.Repository interface.
package api
