// Package services defines shared utilities consumed by the lifecycle engine
// components and the process surfaces built on top of them.
//
// Key responsibilities:
//   - Context helpers that stamp media item IDs, acting user IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures with the
//     error kind caller-facing surfaces report (not found, invalid state,
//     forbidden, no matching root, filesystem, store, ...).
//
// Use these helpers when wiring new engine logic so operational behaviour
// (error handling, observability) stays uniform across components.
package services
