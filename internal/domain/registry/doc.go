// Package registry owns the hot set of workspace runtimes.
//
// The Manager arbitrates the three-state lifecycle of a context:
//
//	Cold -> Hot-Hidden   GetOrCreate + hydrate from the persisted snapshot
//	Hot-Hidden <-> Hot-Visible   SetVisible, a pure flag flip with no I/O
//	Hot-Hidden -> Cold   Evict, always preceded by capture + persist
//
// At most one runtime is visible at any time. Admission and eviction run
// under a single registry lock; per-runtime state has its own lock, so
// mutations on other runtimes proceed concurrently.
//
// When admission would exceed capacity the eviction policy picks a victim
// among hidden, unpinned runtimes. If the snapshot hand-off to the durable
// writer fails, the eviction aborts and the runtime stays hot: this
// subsystem trades capacity for the no-silent-data-loss guarantee.
package registry
