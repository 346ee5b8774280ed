// Package main is the entry point for the workspace runtime manager.
//
// The server keeps several independent workspace execution contexts alive
// simultaneously, arbitrates entity ownership between them, persists and
// restores full context state atomically, and evicts inactive contexts
// under a bounded hot-set capacity.
//
// The server provides:
//   - REST API for context lifecycle, components, entities, and ownership
//   - WebSocket event stream for visibility and eviction events
//   - Prometheus metrics on /metrics
//   - Graceful shutdown with a final capture+persist of every hot context
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -storage /var/lib/workspace -capacity 8
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
