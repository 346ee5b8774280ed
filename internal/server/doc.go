// Package server assembles the workspace runtime manager: configuration,
// logging, metrics, snapshot storage, the runtime registry, and the HTTP +
// WebSocket surface.
//
// Shutdown is graceful in the direction that matters: the HTTP listener
// stops first, then every hot runtime is captured and synchronously
// persisted before the process exits.
package server
