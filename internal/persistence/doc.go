// Package persistence implements the durable snapshot store consumed by
// the runtime registry.
//
// Gateway is the load/save/delete contract. FileGateway is the stock
// implementation: one zstd-compressed payload per context, written to a
// temp file and renamed into place so the last good snapshot survives a
// crash mid-write. Saver runs durable writes asynchronously behind a
// circuit breaker; eviction only waits for a successful enqueue, never for
// the disk.
package persistence
