// Package snapshot implements the capture/replay pipeline for workspace
// runtime state.
//
// Components:
//   - Codec: pure (de)serialization of a snapshot payload
//   - Capturer: quiescence-bounded point-in-time capture with the
//     empty-payload guard and per-context revision tracking
//   - Replay: cold load or hot merge of a snapshot into a runtime
//
// Capture Sequence:
//  1. Wait (bounded) for the runtime's mutation queue to drain
//  2. Copy open entities, components, and camera under the runtime lock
//  3. Tag with a new monotonically increasing revision
//  4. Reject suspected transitional empty payloads, keeping the last good
//     snapshot
package snapshot
