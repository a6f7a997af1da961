// Package config loads, normalizes, and validates the TOML configuration for
// qupload.
//
// Load resolves an explicit path, then ~/.config/qupload/config.toml, then a
// project-local qupload.toml, falling back to defaults when no file exists.
// All path fields are tilde-expanded and absolute after Load returns.
package config
