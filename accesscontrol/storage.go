// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accesscontrol

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
)

var (
	slotRoles             = slot.NameToSlot("roles")
	slotRequests          = slot.NameToSlot("permission-requests")
	slotRequestCounter    = slot.NameToSlot("permission-request-counter")
	slotActive            = slot.NameToSlot("active")
	slotSuperAdmin        = slot.NameToSlot("super-admin")
	slotEmergencyOverride = slot.NameToSlot("emergency-override")
	// running counters, kept so stats reads never scan history
	slotTotalRoles       = slot.NameToSlot("total-roles")
	slotAdminCount       = slot.NameToSlot("admin-count")
	slotOperatorCount    = slot.NameToSlot("operator-count")
	slotUserCount        = slot.NameToSlot("user-count")
	slotPendingRequests  = slot.NameToSlot("pending-requests")
	slotApprovedRequests = slot.NameToSlot("approved-requests")
	slotRejectedRequests = slot.NameToSlot("rejected-requests")
)

// storage is the root storage of the access control ledger.
type storage struct {
	roles          *slot.Mapping[vault.Address, *RoleRecord]
	requests       *slot.Mapping[slot.U64, *PermissionRequest]
	requestCounter *slot.Counter

	active            *slot.Bool
	superAdmin        *slot.Address
	emergencyOverride *slot.Bool

	totalRoles       *slot.Uint256
	adminCount       *slot.Uint256
	operatorCount    *slot.Uint256
	userCount        *slot.Uint256
	pendingRequests  *slot.Uint256
	approvedRequests *slot.Uint256
	rejectedRequests *slot.Uint256
}

func newStorage(addr vault.Address, st *state.State) *storage {
	ctx := slot.NewContext(addr, st)
	return &storage{
		roles:             slot.NewMapping[vault.Address, *RoleRecord](ctx, slotRoles),
		requests:          slot.NewMapping[slot.U64, *PermissionRequest](ctx, slotRequests),
		requestCounter:    slot.NewCounter(ctx, slotRequestCounter),
		active:            slot.NewBool(ctx, slotActive),
		superAdmin:        slot.NewAddress(ctx, slotSuperAdmin),
		emergencyOverride: slot.NewBool(ctx, slotEmergencyOverride),
		totalRoles:        slot.NewUint256(ctx, slotTotalRoles),
		adminCount:        slot.NewUint256(ctx, slotAdminCount),
		operatorCount:     slot.NewUint256(ctx, slotOperatorCount),
		userCount:         slot.NewUint256(ctx, slotUserCount),
		pendingRequests:   slot.NewUint256(ctx, slotPendingRequests),
		approvedRequests:  slot.NewUint256(ctx, slotApprovedRequests),
		rejectedRequests:  slot.NewUint256(ctx, slotRejectedRequests),
	}
}

func (s *storage) GetRole(user vault.Address) (*RoleRecord, error) {
	r, err := s.roles.Get(user)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get role record")
	}
	return r, nil
}

func (s *storage) SetRole(user vault.Address, record *RoleRecord) error {
	if err := s.roles.Set(user, record); err != nil {
		return errors.Wrap(err, "failed to set role record")
	}
	return nil
}

func (s *storage) GetRequest(id uint64) (*PermissionRequest, error) {
	r, err := s.requests.Get(slot.U64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get permission request")
	}
	return r, nil
}

func (s *storage) SetRequest(id uint64, request *PermissionRequest) error {
	if err := s.requests.Set(slot.U64(id), request); err != nil {
		return errors.Wrap(err, "failed to set permission request")
	}
	return nil
}

// counterFor maps a role to its running counter, nil for roles not counted.
func (s *storage) counterFor(role Role) *slot.Uint256 {
	switch role {
	case RoleAdmin:
		return s.adminCount
	case RoleOperator:
		return s.operatorCount
	case RoleUser:
		return s.userCount
	default:
		return nil
	}
}

func (s *storage) adjustRoleCount(role Role, delta int64) error {
	counter := s.counterFor(role)
	if counter == nil {
		return nil
	}
	if delta > 0 {
		return counter.Add(big.NewInt(delta))
	}
	return counter.Sub(big.NewInt(-delta))
}
