// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package config

import (
	"bytes"
	"io"
	"math/big"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stakevault/core/vault"
)

// Config is the daemon configuration file.
type Config struct {
	DataDir     string           `yaml:"dataDir"`
	Verbosity   int              `yaml:"verbosity"`
	API         APIConfig        `yaml:"api"`
	MetricsAddr string           `yaml:"metricsAddr"`
	Pool        PoolConfig       `yaml:"pool"`
	Params      map[string]int64 `yaml:"params"`
}

// APIConfig configures the http api server.
type APIConfig struct {
	Addr           string `yaml:"addr"`
	AllowedOrigins string `yaml:"allowedOrigins"`
	EnableMetrics  bool   `yaml:"enableMetrics"`
	LogsLimit      uint64 `yaml:"logsLimit"`
}

// PoolConfig holds the genesis pool settings.
type PoolConfig struct {
	RewardRate       int64 `yaml:"rewardRate"`
	DistributionRate int64 `yaml:"distributionRate"`
	MinimumStake     int64 `yaml:"minimumStake"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:   "/var/lib/vaultd",
		Verbosity: 3,
		API: APIConfig{
			Addr:           ":8669",
			AllowedOrigins: "*",
			LogsLimit:      1000,
		},
		MetricsAddr: ":2112",
		Pool: PoolConfig{
			RewardRate:       1000,
			DistributionRate: 1_000_000,
			MinimumStake:     1_000_000,
		},
	}
}

// Load reads the config file at path over the defaults. Unknown fields are
// rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	cfg := Default()
	if err := unmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	return cfg, nil
}

func unmarshalStrict(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// paramKeys maps the friendly names of the config file to slot keys.
var paramKeys = map[string]vault.Bytes32{
	"max-admins":                 vault.KeyMaxAdmins,
	"max-operators":              vault.KeyMaxOperators,
	"multisig-threshold":         vault.KeyMultiSigThreshold,
	"admin-session-duration":     vault.KeyAdminSessionDuration,
	"operator-session-duration":  vault.KeyOpSessionDuration,
	"user-session-duration":      vault.KeyUserSessionDuration,
	"emergency-cooldown":         vault.KeyEmergencyCooldown,
	"auto-resolve-time":          vault.KeyAutoResolveTime,
	"max-emergency-duration":     vault.KeyMaxEmergencyDuration,
	"daily-volume-cap":           vault.KeyDailyVolumeCap,
	"large-withdrawal-threshold": vault.KeyLargeWithdrawal,
	"recovery-approvals":         vault.KeyRecoveryApprovals,
	"min-distribution-rate":      vault.KeyMinDistributionRate,
	"max-distribution-rate":      vault.KeyMaxDistributionRate,
	"max-pools-per-user":         vault.KeyMaxPoolsPerUser,
	"min-initial-funding":        vault.KeyMinInitialFunding,
	"proposal-threshold":         vault.KeyProposalThreshold,
	"voting-window":              vault.KeyVotingWindow,
	"execution-delay":            vault.KeyExecutionDelay,
	"grace-period":               vault.KeyGracePeriod,
	"quorum-percent":             vault.KeyQuorumPercent,
}

// ParamOverrides resolves the params section into slot-keyed genesis
// overrides. Unknown names are rejected.
func (c *Config) ParamOverrides() (map[vault.Bytes32]*big.Int, error) {
	overrides := make(map[vault.Bytes32]*big.Int, len(c.Params))
	for name, value := range c.Params {
		key, ok := paramKeys[name]
		if !ok {
			return nil, errors.Errorf("unknown parameter %q", name)
		}
		if value < 0 {
			return nil, errors.Errorf("parameter %q must not be negative", name)
		}
		overrides[key] = big.NewInt(value)
	}
	return overrides, nil
}
