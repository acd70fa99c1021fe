// Package config loads, normalizes, and validates cyrfix configuration.
//
// Configuration lives in ~/.config/cyrfix/config.toml (or a cyrfix.toml in
// the working directory), parsed with go-toml. Every field has a default so
// the tool runs without any file present; CLI flags override the loaded
// values per run.
package config
