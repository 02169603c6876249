// Package config loads, normalizes, and validates CloudPose configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the CLOUDPOSE_BASE_URL environment
// fallback for the pose service address. The Config type centralizes every knob
// the CLI, terminal UI, and load generator need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
