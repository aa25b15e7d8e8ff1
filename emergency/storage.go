// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package emergency

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
)

var (
	slotEvents       = slot.NameToSlot("events")
	slotEventCounter = slot.NameToSlot("event-counter")
	slotLevel        = slot.NameToSlot("current-level")
	slotActive       = slot.NameToSlot("active")
	slotLastTrigger  = slot.NameToSlot("last-trigger")

	slotRecoveryMode      = slot.NameToSlot("recovery-mode")
	slotRecoveryApprovals = slot.NameToSlot("recovery-approvals")
	slotRecoveryApprovers = slot.NameToSlot("recovery-approvers")

	slotDailyVolume = slot.NameToSlot("daily-volume")
	slotVolumeReset = slot.NameToSlot("volume-reset")
)

// storage is the root storage of the incident state machine.
type storage struct {
	events       *slot.Mapping[slot.U64, *Event]
	eventCounter *slot.Counter
	level        *slot.Uint256
	active       *slot.Bool
	lastTrigger  *slot.Uint256

	recoveryMode      *slot.Bool
	recoveryApprovals *slot.Uint256
	// approver -> event id approved for, so approvals never leak across
	// incidents and need no clearing
	recoveryApprovers *slot.Mapping[vault.Address, uint64]

	dailyVolume *slot.Uint256
	volumeReset *slot.Uint256
}

func newStorage(addr vault.Address, st *state.State) *storage {
	ctx := slot.NewContext(addr, st)
	return &storage{
		events:            slot.NewMapping[slot.U64, *Event](ctx, slotEvents),
		eventCounter:      slot.NewCounter(ctx, slotEventCounter),
		level:             slot.NewUint256(ctx, slotLevel),
		active:            slot.NewBool(ctx, slotActive),
		lastTrigger:       slot.NewUint256(ctx, slotLastTrigger),
		recoveryMode:      slot.NewBool(ctx, slotRecoveryMode),
		recoveryApprovals: slot.NewUint256(ctx, slotRecoveryApprovals),
		recoveryApprovers: slot.NewMapping[vault.Address, uint64](ctx, slotRecoveryApprovers),
		dailyVolume:       slot.NewUint256(ctx, slotDailyVolume),
		volumeReset:       slot.NewUint256(ctx, slotVolumeReset),
	}
}

func (s *storage) GetEvent(id uint64) (*Event, error) {
	e, err := s.events.Get(slot.U64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get emergency event")
	}
	return e, nil
}

func (s *storage) SetEvent(id uint64, event *Event) error {
	if err := s.events.Set(slot.U64(id), event); err != nil {
		return errors.Wrap(err, "failed to set emergency event")
	}
	return nil
}

func (s *storage) GetLevel() (Level, error) {
	v, err := s.level.Get()
	if err != nil {
		return LevelNone, err
	}
	return Level(v.Uint64()), nil
}

func (s *storage) SetLevel(level Level) {
	s.level.Set(new(big.Int).SetUint64(uint64(level)))
}
