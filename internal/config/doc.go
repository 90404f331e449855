// Package config loads, normalizes, and validates dropwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the DROPWATCH_TARGET_DIR
// environment fallback. The Config type centralizes every knob the tracker,
// watcher and CLI need; duration-valued settings are stored in integer units
// and exposed through accessor methods.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
