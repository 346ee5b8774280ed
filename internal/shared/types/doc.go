// Package types provides shared data structures for the workspace runtime
// manager.
//
// This package defines core types used across all backend components,
// ensuring type safety and consistent data structures.
//
// Core Types:
//   - Component: opaque visual component hosted by a runtime
//   - OpenEntity: a document open in a runtime (slice order = tab order)
//   - Snapshot: immutable, versioned serialization of one runtime
//   - RuntimeSummary: read-only metadata view of a hot runtime
//   - OwnershipRecord: entity -> owning context mapping
//   - Event: lifecycle event pushed to connected UI clients
//
// Timestamps throughout are monotonic clock readings (int64 nanoseconds),
// never wall-clock times; 0 means "never".
package types
