// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accesscontrol

import (
	"github.com/stakevault/core/vault"
)

type Role = uint8

const (
	RoleNone = Role(iota) // 0 -> default value
	RoleUser
	RoleOperator
	RoleAdmin
	RoleSuperAdmin
)

// RoleName returns the human readable name of a role.
func RoleName(r Role) string {
	switch r {
	case RoleNone:
		return "none"
	case RoleUser:
		return "user"
	case RoleOperator:
		return "operator"
	case RoleAdmin:
		return "admin"
	case RoleSuperAdmin:
		return "superadmin"
	default:
		return "unknown"
	}
}

// Permission is a bit index into a role's permission mask.
type Permission = uint8

const (
	PermView = Permission(iota)
	PermDeposit
	PermWithdraw
	PermManage
	PermEmergency
	PermGovern
	PermDistribute

	permCount
)

// FullPermissions has every defined permission bit set.
const FullPermissions = uint64(1)<<permCount - 1

// RoleRecord is the per-user role ledger entry. Records are never physically
// deleted; revocation and expiry flip flags so the entry stays as audit trail.
type RoleRecord struct {
	Role        Role
	Permissions uint64
	AssignedBy  vault.Address
	AssignedAt  uint64
	ExpiresAt   uint64 // 0 = permanent
	Revoked     bool
	RevokedAt   uint64
	RevokedBy   vault.Address
}

// IsEmpty returns whether the entry can be treated as empty. Stored records
// always carry a real role, so RoleNone marks the missing-record zero value.
// Timestamps are no good here: 0 is a valid call time.
func (r *RoleRecord) IsEmpty() bool {
	return r.Role == RoleNone
}

// Active returns whether the record currently grants its role.
func (r *RoleRecord) Active(now uint64) bool {
	if r.IsEmpty() || r.Revoked {
		return false
	}
	if r.ExpiresAt != 0 && now >= r.ExpiresAt {
		return false
	}
	return true
}

// HasPermission returns whether the record grants the permission bit at now.
// A revoked or expired record grants nothing; the SuperAdmin role always
// holds all bits.
func (r *RoleRecord) HasPermission(perm Permission, now uint64) bool {
	if !r.Active(now) {
		return false
	}
	if r.Role == RoleSuperAdmin {
		return true
	}
	return (r.Permissions>>perm)&1 == 1
}

type RequestStatus = uint8

const (
	RequestPending = RequestStatus(iota)
	RequestApproved
	RequestRejected
)

// PermissionRequest is one entry of the multi-approval workflow. Terminal
// once Approved or Rejected.
type PermissionRequest struct {
	Requester     vault.Address
	TargetRole    Role
	Permissions   uint64
	Reason        string
	RequestedAt   uint64
	ApprovalCount uint32
	Approvers     []vault.Address
	Status        RequestStatus
}

// IsEmpty returns whether the entry can be treated as empty. Requests always
// target a real role, so RoleNone marks the missing-record zero value.
func (r *PermissionRequest) IsEmpty() bool {
	return r.TargetRole == RoleNone
}

// HasApproved returns whether addr already approved this request.
func (r *PermissionRequest) HasApproved(addr vault.Address) bool {
	for _, a := range r.Approvers {
		if a == addr {
			return true
		}
	}
	return false
}

// Stats is the aggregate view of the role and request ledgers.
type Stats struct {
	TotalRoles       uint64 `json:"totalRoles"`
	Admins           uint64 `json:"admins"`
	Operators        uint64 `json:"operators"`
	Users            uint64 `json:"users"`
	TotalRequests    uint64 `json:"totalRequests"`
	PendingRequests  uint64 `json:"pendingRequests"`
	ApprovedRequests uint64 `json:"approvedRequests"`
	RejectedRequests uint64 `json:"rejectedRequests"`
}
