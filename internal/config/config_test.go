// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFillsCryptoDefaults(t *testing.T) {
	cfg := &StructuredConfig{}
	require.NoError(t, cfg.validate())

	assert.Equal(t, uint32(64*1024), cfg.Crypto.ArgonMemoryKiB)
	assert.Equal(t, uint32(5), cfg.Crypto.ArgonTime)
	assert.Equal(t, uint8(1), cfg.Crypto.ArgonThreads)
	assert.Equal(t, 5, cfg.Sync.MaxDiscordance)
	assert.Equal(t, 150, cfg.Sync.PageSize)
}

func TestValidateRejectsNegativePageSize(t *testing.T) {
	cfg := &StructuredConfig{Sync: Sync{PageSize: -1}}
	assert.ErrorIs(t, cfg.validate(), ErrInvalidSyncConfig)
}

func TestConfigBuilderMergesInAscendingPriority(t *testing.T) {
	b := newConfigBuilder()
	b.configs = append(b.configs,
		&StructuredConfig{Transport: Transport{ServerAddress: "from-env:1"}},
		&StructuredConfig{Transport: Transport{ServerAddress: "from-flags:2"}},
	)
	cfg, err := b.build()
	require.NoError(t, err)
	assert.Equal(t, "from-flags:2", cfg.Transport.ServerAddress, "a later non-zero source overrides an earlier one")
}
