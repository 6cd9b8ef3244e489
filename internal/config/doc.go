// Package config loads, normalizes, and validates Winnow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// WINNOW_NTFY_TOPIC. The Config type centralizes every knob the daemon and
// CLI need, so library roots, the catalog database location, and lifecycle
// timing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized absolute roots, canonical log formats, and clear validation
// errors.
package config
