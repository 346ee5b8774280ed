// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Runtime-manager events logged here by convention:
//   - stale write rejected (warn, with attempted/current timestamps)
//   - capture timed out (warn, capture proceeds best-effort)
//   - rejected empty snapshot (warn, previous snapshot retained)
//   - runtime evicted (info, with reason and persistence outcome)
//
// Example Usage:
//
//	logger := logging.NewDefault().Named("registry")
//	logger.Info("runtime admitted", zap.String("context_id", id))
package logging
