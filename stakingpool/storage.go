// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakingpool

import (
	"github.com/pkg/errors"

	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
)

var (
	slotPositions       = slot.NameToSlot("positions")
	slotRewardRate      = slot.NameToSlot("reward-rate")
	slotMinimumStake    = slot.NameToSlot("minimum-stake")
	slotTotalStaked     = slot.NameToSlot("total-staked")
	slotAccPerShare     = slot.NameToSlot("acc-reward-per-share")
	slotLastUpdate      = slot.NameToSlot("last-update")
	slotActive          = slot.NameToSlot("pool-active")
	slotEmergencyPaused = slot.NameToSlot("emergency-paused")
	slotInitialized     = slot.NameToSlot("initialized")
	slotParticipants    = slot.NameToSlot("participants")
)

// storage is the root storage of the stake ledger.
type storage struct {
	positions *slot.Mapping[vault.Address, *Position]

	rewardRate   *slot.Uint256
	minimumStake *slot.Uint256
	totalStaked  *slot.Uint256
	accPerShare  *slot.Uint256
	lastUpdate   *slot.Uint256
	participants *slot.Uint256

	active          *slot.Bool
	emergencyPaused *slot.Bool
	initialized     *slot.Bool
}

func newStorage(addr vault.Address, st *state.State) *storage {
	ctx := slot.NewContext(addr, st)
	return &storage{
		positions:       slot.NewMapping[vault.Address, *Position](ctx, slotPositions),
		rewardRate:      slot.NewUint256(ctx, slotRewardRate),
		minimumStake:    slot.NewUint256(ctx, slotMinimumStake),
		totalStaked:     slot.NewUint256(ctx, slotTotalStaked),
		accPerShare:     slot.NewUint256(ctx, slotAccPerShare),
		lastUpdate:      slot.NewUint256(ctx, slotLastUpdate),
		participants:    slot.NewUint256(ctx, slotParticipants),
		active:          slot.NewBool(ctx, slotActive),
		emergencyPaused: slot.NewBool(ctx, slotEmergencyPaused),
		initialized:     slot.NewBool(ctx, slotInitialized),
	}
}

func (s *storage) GetPosition(user vault.Address) (*Position, error) {
	p, err := s.positions.Get(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get position")
	}
	return p, nil
}

func (s *storage) SetPosition(user vault.Address, position *Position) error {
	if err := s.positions.Set(user, position); err != nil {
		return errors.Wrap(err, "failed to set position")
	}
	return nil
}

func (s *storage) DeletePosition(user vault.Address) {
	s.positions.Delete(user)
}
