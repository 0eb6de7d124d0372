// Package config loads, normalizes, and validates reelgen configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// GOOGLE_CLOUD_PROJECT and OPENAI_API_KEY. The Config type centralizes every
// knob the CLI and pipeline need so output directories, platform credentials
// and polling budgets are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
