// Package services defines the shared error taxonomy for upload failures and
// context annotation helpers used by logging.
//
// Errors are tagged with sentinel markers (validation, transient, rejected,
// canceled) via Wrap so the retry controller can classify a failure without
// inspecting transport internals. Treat this package as the single source of
// truth for failure classification; when a new failure class appears, add a
// sentinel here rather than string-matching messages elsewhere.
package services
