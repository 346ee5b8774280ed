// Package runtime implements one isolated workspace execution context.
//
// A Runtime owns its open-entity slots (tab order), component ledger,
// camera, and lifecycle flags. It is always accessed through the registry,
// which enforces the exactly-one-visible invariant and the hot-set bound.
//
// Concurrency model:
//   - A per-runtime RWMutex guards all state; reads hand out copies.
//   - An in-flight counter tracks mutations between entry and return so a
//     capture can wait for quiescence without freezing writers.
//
// Component removal is an explicit call, distinct from visual unmount: a
// hidden-but-still-running component (say, a counting-down timer) must
// remain registered.
package runtime
