// Package observability groups the service's logging, metrics and tracing.
//
// Subpackages:
//   - logging: slog setup with request and trace IDs taken from the context
//   - metrics: the sentiment metrics facade and the Registry abstraction its
//     backends (internal/infra/metrics/...) implement
//   - tracing: OpenTelemetry provider setup and the HTTP server-span middleware
package observability
