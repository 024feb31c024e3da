// Package config handles configuration management for bootonce.
// Values are layered: embedded TOML defaults, then the user's TOML file,
// then BOOTONCE_* environment variables.
package config
