// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaultfactory

import (
	"math/big"

	"github.com/stakevault/core/vault"
)

// PoolStatus is the lifecycle state of a registered pool. Only Active pools
// count toward the factory-wide TVL.
type PoolStatus = uint8

const (
	StatusActive PoolStatus = iota
	StatusPaused
	StatusDeprecated
	StatusEmergency
)

// StatusName returns the human readable name of status.
func StatusName(status PoolStatus) string {
	switch status {
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusDeprecated:
		return "deprecated"
	case StatusEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// PoolInfo is the registry record of one pool.
type PoolInfo struct {
	AssetID      vault.Bytes32
	Staking      vault.Address
	Distributor  vault.Address
	Creator      vault.Address
	CreatedAt    uint64
	Status       PoolStatus
	TotalStaked  *big.Int
	TotalRewards *big.Int
	Participants uint64
	APY          *big.Int
	MinStake     *big.Int
	MaxStake     *big.Int
}

// IsEmpty returns whether the record holds nothing. Registration always
// allocates the metric fields; a missing slot decodes with nil ones.
func (p *PoolInfo) IsEmpty() bool {
	return p.TotalStaked == nil
}

// Template is a named configuration bundle for future pools. Stored only;
// deployment of the constituent components is the collaborator's concern.
type Template struct {
	RewardRate *big.Int
	MinStake   *big.Int
	MaxStake   *big.Int
}

// IsEmpty returns whether the record holds nothing.
func (t *Template) IsEmpty() bool {
	return t.RewardRate == nil
}

// Stats is the aggregate registry view.
type Stats struct {
	TotalPools  uint64   `json:"totalPools"`
	ActivePools uint64   `json:"activePools"`
	TotalTVL    *big.Int `json:"totalTVL"`
}
