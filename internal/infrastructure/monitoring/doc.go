// Package monitoring provides Prometheus metrics for the workspace
// runtime manager.
//
// Collected metrics cover the hot set (runtimes in memory, visibility
// switches, evictions by reason), the snapshot pipeline (captures,
// quiescence timeouts, empty-capture rejections, save durations, gateway
// errors), ownership contention (claims, stale-write rejections), HTTP
// traffic, and WebSocket connections.
//
// Metrics are exposed on /metrics via the standard promhttp handler.
package monitoring
