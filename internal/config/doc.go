// Package config loads, normalizes, and validates the to-do tool's settings.
//
// Defaults come from Default; a TOML file overrides them and the
// TODO_STORE_PATH and TODO_REMOTE_URL environment variables override the
// file. Paths accept tilde shortcuts and are returned absolute.
package config
