// SPDX-License-Identifier: MPL-2.0

// Package config handles application configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/matrun/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/matrun/config.cue on macOS, %APPDATA%\matrun\config.cue
// on Windows), with a config.cue in the current directory as a fallback. It supplies the
// defaults a matrix file does not set: run policy (concurrency, fail-fast, timeouts,
// grace period), container engine preference, UI settings, the artifact store, and the
// status server.
//
// Values are validated against a CUE schema (config_schema.cue) before being merged over
// the built-in defaults, so a broken config file fails loudly instead of half-applying.
package config
