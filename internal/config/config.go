// SPDX-License-Identifier: Apache-2.0

// Package config assembles the library's configuration from environment
// variables, command-line flags, and an optional JSON file, merged in
// that ascending-priority order — mirroring the teacher repo's layered
// configBuilder.
package config

import "time"

// StructuredConfig is the top-level configuration container.
//
// Struct tags:
//   - envPrefix — prefix applied to nested env tag lookups (caarlos0/env).
//   - env       — direct environment variable name for scalar fields.
type StructuredConfig struct {
	// Crypto tunes the v004 protocol operator (spec.md §4.1).
	Crypto Crypto `envPrefix:"CRYPTO_"`

	// Sync tunes the sync engine's pagination, integrity checking, and
	// background interval (spec.md §4.3).
	Sync Sync `envPrefix:"SYNC_"`

	// Storage holds the default DeviceInterface implementation's DSN.
	Storage Storage `envPrefix:"STORAGE_"`

	// Transport holds the remote server address and HTTP timeouts.
	Transport Transport `envPrefix:"TRANSPORT_"`

	// JSONFilePath is the optional path to a JSON configuration file,
	// merged on top of env and flags when present.
	// Populated via the CONFIG environment variable or the -c / -config flag.
	JSONFilePath string `env:"CONFIG"`
}

// Crypto holds the v004 Argon2id parameters (spec.md §4.1: "64 MiB
// memory, 5 iterations, 1 lane").
type Crypto struct {
	ArgonMemoryKiB uint32 `env:"ARGON_MEMORY_KIB"`
	ArgonTime      uint32 `env:"ARGON_TIME"`
	ArgonThreads   uint8  `env:"ARGON_THREADS"`
}

// Sync holds the sync engine's operational tuning.
type Sync struct {
	// MaxDiscordance is the consecutive-mismatch threshold before an
	// integrity failure trips EnteredOutOfSync (spec.md §4.3, default 5).
	MaxDiscordance int `env:"MAX_DISCORDANCE" envDefault:"5"`

	// PageSize is the `limit` sent on each sync request (spec.md §6).
	PageSize int `env:"PAGE_SIZE" envDefault:"150"`

	// Interval is how often a background sync job runs when idle.
	Interval time.Duration `env:"INTERVAL" envDefault:"30s"`
}

// Storage holds the default sqlitedevice DeviceInterface's DSN.
type Storage struct {
	DSN string `env:"DSN" envDefault:"file:notesync.db?cache=shared"`
}

// Transport holds the resty-based RemoteClient's target and timeouts.
type Transport struct {
	ServerAddress  string        `env:"SERVER_ADDRESS"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
}

// GetStructuredConfig is the production entry point: env, then flags,
// then JSON, merged and validated.
func GetStructuredConfig() (*StructuredConfig, error) {
	return newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
}
