// Package config loads, normalizes, and validates swc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// SWC_DOWNLOADER, SWC_TRANSCODER, and SWC_NTFY_TOPIC. The Config type
// centralizes every knob the CLI needs: workspace and output directories,
// the external tool locations, per-stage timeouts, and the retry policy.
//
// Tool names are resolved to absolute executables once via ResolveTools so
// that stages never depend on the ambient search path while running.
package config
