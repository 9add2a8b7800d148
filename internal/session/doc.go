// Package session manages the access token used to talk to the Luna daemon.
//
// A Session keeps the token in memory and in a small TOML cache file so that
// consecutive CLI invocations share it. Tokens are decoded locally to check
// their expiry; an expired, undecodable or missing token is refreshed by
// logging in again with the configured password, or with the password stored
// in the system keyring by `luna login`.
package session
