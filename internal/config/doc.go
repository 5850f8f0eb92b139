// Package config loads, validates, and normalizes tryon configuration.
//
// Configuration lives in a TOML file. Load applies defaults, expands paths,
// and validates the result so downstream components can rely on absolute,
// populated settings.
package config
