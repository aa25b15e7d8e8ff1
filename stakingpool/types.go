// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakingpool

import (
	"math/big"

	"github.com/stakevault/core/vault"
)

// Position is one staker's ledger entry. RewardDebt is the accumulator
// baseline: pending reward is principal*accRewardPerShare/scale - rewardDebt.
type Position struct {
	Principal  *big.Int
	RewardDebt *big.Int
	StakedAt   uint64
	LastClaim  uint64
}

// IsEmpty returns whether the record holds nothing. Positions are deleted
// once principal reaches zero, so a stored record always has Principal > 0;
// a missing slot decodes with Principal nil.
func (p *Position) IsEmpty() bool {
	return p.Principal == nil || p.Principal.Sign() == 0
}

// PositionInfo is the read-side view of a position.
type PositionInfo struct {
	User       vault.Address `json:"user"`
	Principal  *big.Int      `json:"principal"`
	RewardDebt *big.Int      `json:"rewardDebt"`
	StakedAt   uint64        `json:"stakedAt"`
	LastClaim  uint64        `json:"lastClaim"`
	Pending    *big.Int      `json:"pending"`
}

// Info is the read-side view of the pool.
type Info struct {
	RewardRate        *big.Int `json:"rewardRate"`
	MinimumStake      *big.Int `json:"minimumStake"`
	TotalStaked       *big.Int `json:"totalStaked"`
	AccRewardPerShare *big.Int `json:"accRewardPerShare"`
	LastUpdateTime    uint64   `json:"lastUpdateTime"`
	Active            bool     `json:"active"`
	EmergencyPaused   bool     `json:"emergencyPaused"`
	Participants      uint64   `json:"participants"`
}
