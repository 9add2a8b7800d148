// Package config loads the luna client configuration file.
//
// # Overview
//
// The client reads a small TOML file describing how to reach the Luna daemon
// and how to pace long-running operations. Every field is optional: a missing
// file, or a file with empty values, yields working defaults so that `luna`
// can be used against a local daemon without any setup.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided (--config or LUNA_CONFIG), use it
//  2. Otherwise, use ~/.config/luna/luna.toml
//  3. If the file does not exist, fall back to defaults
//
// # TOML Format
//
//	[api]
//	endpoint = "localhost:7050"
//	protocol = "http"
//	verify_certificate = true
//	username = "luna"
//	password = ""
//	timeout_seconds = 10
//	retries = 3
//
//	[client]
//	poll_interval_seconds = 2
//	token_file = "~/.cache/luna/token.toml"
//
// The password may be left empty; the session package then falls back to
// the LUNA_PASSWORD environment variable and the OS keyring.
//
// # Error Handling
//
// Load returns errors for path expansion failures, unreadable files, TOML
// syntax errors and unsupported protocols. A missing file is not an error.
package config
