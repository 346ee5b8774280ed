// Package eviction implements the scoring-based (not pure LRU) policy
// that decides which inactive runtime to reclaim when the hot set is full.
//
// A runtime is never eligible while visible or pinned (pinned scores the
// Protected sentinel). Otherwise the score stacks weighted protections:
// active background components, default-context status, content mass, and
// a linearly decaying recency bonus. The lowest score is evicted; ties go
// to the runtime shown longest ago.
package eviction
