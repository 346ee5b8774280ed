// Package ws streams registry lifecycle events to UI clients over
// WebSocket.
//
// The Hub implements the registry's Events sink. Fan-out is non-blocking:
// the registry's admission and eviction paths must never wait on a slow
// client, so a client whose queue is full simply misses events and
// resynchronizes from the REST surface on its next pull.
package ws
