// Package api hosts the HTTP server that lets a scheduler trigger collection
// runs. Routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/collect to run a collection and stream documents as NDJSON.
package api
