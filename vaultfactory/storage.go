// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaultfactory

import (
	"github.com/pkg/errors"

	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
)

var (
	slotPools           = slot.NameToSlot("pools")
	slotPoolCounter     = slot.NameToSlot("pool-counter")
	slotCreatorCounts   = slot.NameToSlot("creator-counts")
	slotTemplates       = slot.NameToSlot("templates")
	slotDefaultTemplate = slot.NameToSlot("default-template")
	slotTotalTVL        = slot.NameToSlot("total-tvl")
	slotActivePools     = slot.NameToSlot("active-pools")
	slotActive          = slot.NameToSlot("factory-active")
	slotPaused          = slot.NameToSlot("factory-paused")
	slotInitialized     = slot.NameToSlot("initialized")
)

// storage is the root storage of the pool registry.
type storage struct {
	pools         *slot.Mapping[slot.U64, *PoolInfo]
	poolCounter   *slot.Counter
	creatorCounts *slot.Mapping[vault.Address, uint64]

	templates       *slot.Mapping[slot.Str, *Template]
	defaultTemplate *slot.String

	totalTVL    *slot.Uint256
	activePools *slot.Uint256

	active      *slot.Bool
	paused      *slot.Bool
	initialized *slot.Bool
}

func newStorage(addr vault.Address, st *state.State) *storage {
	ctx := slot.NewContext(addr, st)
	return &storage{
		pools:           slot.NewMapping[slot.U64, *PoolInfo](ctx, slotPools),
		poolCounter:     slot.NewCounter(ctx, slotPoolCounter),
		creatorCounts:   slot.NewMapping[vault.Address, uint64](ctx, slotCreatorCounts),
		templates:       slot.NewMapping[slot.Str, *Template](ctx, slotTemplates),
		defaultTemplate: slot.NewString(ctx, slotDefaultTemplate),
		totalTVL:        slot.NewUint256(ctx, slotTotalTVL),
		activePools:     slot.NewUint256(ctx, slotActivePools),
		active:          slot.NewBool(ctx, slotActive),
		paused:          slot.NewBool(ctx, slotPaused),
		initialized:     slot.NewBool(ctx, slotInitialized),
	}
}

func (s *storage) GetPool(id uint64) (*PoolInfo, error) {
	p, err := s.pools.Get(slot.U64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get pool record")
	}
	return p, nil
}

func (s *storage) SetPool(id uint64, pool *PoolInfo) error {
	if err := s.pools.Set(slot.U64(id), pool); err != nil {
		return errors.Wrap(err, "failed to set pool record")
	}
	return nil
}
