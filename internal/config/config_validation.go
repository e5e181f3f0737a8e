// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	ErrInvalidCryptoConfig    = errors.New("config: invalid crypto configuration")
	ErrInvalidSyncConfig      = errors.New("config: invalid sync configuration")
	ErrInvalidTransportConfig = errors.New("config: invalid transport configuration")
)

func (cfg *StructuredConfig) validate() error {
	if cfg.Crypto.ArgonMemoryKiB == 0 {
		cfg.Crypto.ArgonMemoryKiB = 64 * 1024
	}
	if cfg.Crypto.ArgonTime == 0 {
		cfg.Crypto.ArgonTime = 5
	}
	if cfg.Crypto.ArgonThreads == 0 {
		cfg.Crypto.ArgonThreads = 1
	}

	if cfg.Sync.MaxDiscordance == 0 {
		cfg.Sync.MaxDiscordance = 5
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 150
	}
	if cfg.Sync.PageSize < 0 {
		return ErrInvalidSyncConfig
	}

	return nil
}
