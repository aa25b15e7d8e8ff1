// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault/core/vault"
)

func write(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "vaultd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(write(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(write(t, `
dataDir: /tmp/vaultd
api:
  addr: ":9000"
pool:
  rewardRate: 2000
params:
  quorum-percent: 25
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/vaultd", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.API.Addr)
	assert.Equal(t, "*", cfg.API.AllowedOrigins, "untouched fields keep defaults")
	assert.Equal(t, int64(2000), cfg.Pool.RewardRate)
	assert.Equal(t, int64(1_000_000), cfg.Pool.MinimumStake)

	overrides, err := cfg.ParamOverrides()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25), overrides[vault.KeyQuorumPercent])
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(write(t, "bogus: 1\n"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParamOverridesRejectsUnknownName(t *testing.T) {
	cfg := Default()
	cfg.Params = map[string]int64{"no-such-knob": 1}
	_, err := cfg.ParamOverrides()
	assert.Error(t, err)

	cfg.Params = map[string]int64{"quorum-percent": -1}
	_, err = cfg.ParamOverrides()
	assert.Error(t, err)
}
