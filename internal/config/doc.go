// Package config holds the selfbot's persistent settings.
//
// Store is the untyped key-value document on disk (JSON, or TOML when the
// file name ends in .toml). Reads take a caller default; writes persist the
// whole document through a temp file and rename, so an interrupted write
// leaves the previous file intact.
//
// Config is the typed record read once at startup via Load, with
// SELFBOT_* environment variables overriding the document (SELFBOT_TOKEN
// keeps the credential out of the file).
//
// Recognised keys: prefix, token, gamestatus, restart ("true"/"false"),
// restart_channel, extensions, log_dir, metrics_addr, gateway_url, api_url.
package config
