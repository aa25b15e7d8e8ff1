// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accesscontrol

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/log"
	"github.com/stakevault/core/metrics"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	logger       = log.WithContext("pkg", "accesscontrol")
	metricOps    = metrics.CounterVec("accesscontrol_ops_total", []string{"op"})
	metricDenied = metrics.Counter("accesscontrol_denied_total")
)

// AccessControl is the role/permission ledger and multi-approval request
// workflow. It is the authorization primitive consulted by every other
// component.
type AccessControl struct {
	storage *storage
	params  *params.Params
}

// New create a new instance.
func New(addr vault.Address, st *state.State, params *params.Params) *AccessControl {
	return &AccessControl{
		storage: newStorage(addr, st),
		params:  params,
	}
}

// Initialize activates the ledger and grants the caller the SuperAdmin role
// with the full permission mask. It fails if already initialized.
func (a *AccessControl) Initialize(env *xenv.Environment) error {
	active, err := a.storage.active.Get()
	if err != nil {
		return err
	}
	if active {
		return errors.New("already initialized")
	}

	a.storage.active.Set(true)
	a.storage.superAdmin.Set(env.Caller())

	record := &RoleRecord{
		Role:        RoleSuperAdmin,
		Permissions: FullPermissions,
		AssignedBy:  env.Caller(),
		AssignedAt:  env.Now(),
	}
	if err := a.storage.SetRole(env.Caller(), record); err != nil {
		return err
	}
	if err := a.storage.totalRoles.Add(big.NewInt(1)); err != nil {
		return err
	}

	logger.Info("initialized", "superAdmin", env.Caller())
	env.Emit("accesscontrol", "initialized", map[string]string{"superAdmin": env.Caller().String()})
	metricOps.AddWithLabel(1, map[string]string{"op": "initialize"})
	return nil
}

// HasPermission is the authorization primitive. It fails closed: absence of a
// record means no access. During an emergency override only the SuperAdmin
// and Emergency-permission holders (for that bit alone) pass.
func (a *AccessControl) HasPermission(user vault.Address, perm Permission, now uint64) (bool, error) {
	record, err := a.storage.GetRole(user)
	if err != nil {
		return false, err
	}

	override, err := a.storage.emergencyOverride.Get()
	if err != nil {
		return false, err
	}
	if override {
		// incident response stays possible: the super admin keeps
		// everything, emergency permission holders keep that one bit
		if !record.Active(now) {
			return false, nil
		}
		if record.Role == RoleSuperAdmin {
			return true, nil
		}
		return perm == PermEmergency && record.HasPermission(perm, now), nil
	}

	return record.HasPermission(perm, now), nil
}

// requirePermission asserts the caller holds perm before any state write.
func (a *AccessControl) requirePermission(env *xenv.Environment, perm Permission) error {
	ok, err := a.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		metricDenied.Add(1)
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

// AssignRole creates or overwrites the role record of user. The caller must
// hold the Manage permission. Role-count ceilings apply to Admin/Operator.
func (a *AccessControl) AssignRole(env *xenv.Environment, user vault.Address, role Role, permissions uint64, expiresAt uint64) error {
	logger.Debug("assigning role", "user", user, "role", RoleName(role))

	if err := a.requirePermission(env, PermManage); err != nil {
		logger.Info("assign role failed", "user", user, "error", err)
		return err
	}
	if role == RoleNone || role == RoleSuperAdmin {
		return errors.New("role is not assignable")
	}
	if expiresAt != 0 && expiresAt <= env.Now() {
		return errors.New("expiry is in the past")
	}

	if err := a.checkCeiling(role); err != nil {
		return err
	}

	prior, err := a.storage.GetRole(user)
	if err != nil {
		return err
	}
	if prior.IsEmpty() {
		if err := a.storage.totalRoles.Add(big.NewInt(1)); err != nil {
			return err
		}
	} else if prior.Active(env.Now()) {
		// promotion/demotion: release the old role's counted slot
		if err := a.storage.adjustRoleCount(prior.Role, -1); err != nil {
			return err
		}
	}

	record := &RoleRecord{
		Role:        role,
		Permissions: permissions,
		AssignedBy:  env.Caller(),
		AssignedAt:  env.Now(),
		ExpiresAt:   expiresAt,
	}
	if err := a.storage.SetRole(user, record); err != nil {
		return err
	}
	if err := a.storage.adjustRoleCount(role, 1); err != nil {
		return err
	}

	logger.Info("assigned role", "user", user, "role", RoleName(role), "expiresAt", expiresAt)
	env.Emit("accesscontrol", "role-assigned", map[string]string{
		"user": user.String(),
		"role": RoleName(role),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "assign"})
	return nil
}

func (a *AccessControl) checkCeiling(role Role) error {
	var key vault.Bytes32
	switch role {
	case RoleAdmin:
		key = vault.KeyMaxAdmins
	case RoleOperator:
		key = vault.KeyMaxOperators
	default:
		return nil
	}
	ceiling, err := a.params.Get(key)
	if err != nil {
		return err
	}
	count, err := a.storage.counterFor(role).Get()
	if err != nil {
		return err
	}
	if count.Cmp(ceiling) >= 0 {
		return errors.Errorf("%s ceiling reached", RoleName(role))
	}
	return nil
}

// RevokeRole revokes the role of user, keeping the record as audit trail.
// The SuperAdmin cannot be revoked.
func (a *AccessControl) RevokeRole(env *xenv.Environment, user vault.Address, reason string) error {
	logger.Debug("revoking role", "user", user, "reason", reason)

	if err := a.requirePermission(env, PermManage); err != nil {
		logger.Info("revoke role failed", "user", user, "error", err)
		return err
	}

	record, err := a.storage.GetRole(user)
	if err != nil {
		return err
	}
	if record.IsEmpty() {
		return errors.New("no role record")
	}
	if record.Revoked {
		return errors.New("role already revoked")
	}
	if record.Role == RoleSuperAdmin {
		return errors.New("cannot revoke the super admin")
	}

	wasActive := record.Active(env.Now())
	record.Revoked = true
	record.RevokedAt = env.Now()
	record.RevokedBy = env.Caller()
	if err := a.storage.SetRole(user, record); err != nil {
		return err
	}
	if wasActive {
		if err := a.storage.adjustRoleCount(record.Role, -1); err != nil {
			return err
		}
	}

	logger.Info("revoked role", "user", user, "role", RoleName(record.Role), "reason", reason)
	env.Emit("accesscontrol", "role-revoked", map[string]string{
		"user":   user.String(),
		"role":   RoleName(record.Role),
		"reason": reason,
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "revoke"})
	return nil
}

// RequestPermission opens a multi-approval request for the given role and
// permission mask. Returns the allocated request id.
func (a *AccessControl) RequestPermission(env *xenv.Environment, targetRole Role, permissions uint64, reason string) (uint64, error) {
	logger.Debug("permission request", "requester", env.Caller(), "role", RoleName(targetRole))

	if targetRole == RoleNone || targetRole == RoleSuperAdmin {
		return 0, errors.New("role is not requestable")
	}

	id, err := a.storage.requestCounter.Next()
	if err != nil {
		return 0, err
	}
	request := &PermissionRequest{
		Requester:   env.Caller(),
		TargetRole:  targetRole,
		Permissions: permissions,
		Reason:      reason,
		RequestedAt: env.Now(),
		Status:      RequestPending,
	}
	if err := a.storage.SetRequest(id, request); err != nil {
		return 0, err
	}
	if err := a.storage.pendingRequests.Add(big.NewInt(1)); err != nil {
		return 0, err
	}

	logger.Info("permission requested", "id", id, "requester", env.Caller(), "role", RoleName(targetRole))
	env.Emit("accesscontrol", "permission-requested", map[string]string{
		"id":        fmt.Sprintf("%d", id),
		"requester": env.Caller().String(),
		"role":      RoleName(targetRole),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "request"})
	return id, nil
}

// ApprovePermissionRequest records one approval by the caller. Reaching the
// configured threshold auto-assigns the requested role and terminalizes the
// request; approving twice or acting on a non-pending request fails.
func (a *AccessControl) ApprovePermissionRequest(env *xenv.Environment, id uint64) error {
	logger.Debug("approving request", "id", id, "approver", env.Caller())

	if err := a.requirePermission(env, PermManage); err != nil {
		logger.Info("approve request failed", "id", id, "error", err)
		return err
	}

	request, err := a.storage.GetRequest(id)
	if err != nil {
		return err
	}
	if request.IsEmpty() {
		return errors.New("no such request")
	}
	if request.Status != RequestPending {
		return errors.New("request is not pending")
	}
	if request.Requester == env.Caller() {
		return errors.New("requester cannot approve own request")
	}
	if request.HasApproved(env.Caller()) {
		return errors.New("already approved")
	}

	request.ApprovalCount++
	request.Approvers = append(request.Approvers, env.Caller())

	threshold, err := a.params.GetUint64(vault.KeyMultiSigThreshold)
	if err != nil {
		return err
	}
	if uint64(request.ApprovalCount) >= threshold {
		if err := a.assignFromRequest(env, request); err != nil {
			return err
		}
		request.Status = RequestApproved
		if err := a.storage.pendingRequests.Sub(big.NewInt(1)); err != nil {
			return err
		}
		if err := a.storage.approvedRequests.Add(big.NewInt(1)); err != nil {
			return err
		}
		logger.Info("request approved", "id", id, "requester", request.Requester, "role", RoleName(request.TargetRole))
	}
	if err := a.storage.SetRequest(id, request); err != nil {
		return err
	}

	env.Emit("accesscontrol", "request-approval", map[string]string{
		"id":       fmt.Sprintf("%d", id),
		"approver": env.Caller().String(),
		"status":   fmt.Sprintf("%d", request.Status),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "approve"})
	return nil
}

// assignFromRequest is the auto-assignment performed when a request reaches
// its approval threshold. Ceilings still apply.
func (a *AccessControl) assignFromRequest(env *xenv.Environment, request *PermissionRequest) error {
	if err := a.checkCeiling(request.TargetRole); err != nil {
		return err
	}

	prior, err := a.storage.GetRole(request.Requester)
	if err != nil {
		return err
	}
	if prior.IsEmpty() {
		if err := a.storage.totalRoles.Add(big.NewInt(1)); err != nil {
			return err
		}
	} else if prior.Active(env.Now()) {
		if err := a.storage.adjustRoleCount(prior.Role, -1); err != nil {
			return err
		}
	}

	record := &RoleRecord{
		Role:        request.TargetRole,
		Permissions: request.Permissions,
		AssignedBy:  env.Caller(),
		AssignedAt:  env.Now(),
	}
	if err := a.storage.SetRole(request.Requester, record); err != nil {
		return err
	}
	return a.storage.adjustRoleCount(request.TargetRole, 1)
}

// RejectPermissionRequest terminalizes a pending request without assignment.
func (a *AccessControl) RejectPermissionRequest(env *xenv.Environment, id uint64) error {
	logger.Debug("rejecting request", "id", id, "reviewer", env.Caller())

	if err := a.requirePermission(env, PermManage); err != nil {
		logger.Info("reject request failed", "id", id, "error", err)
		return err
	}

	request, err := a.storage.GetRequest(id)
	if err != nil {
		return err
	}
	if request.IsEmpty() {
		return errors.New("no such request")
	}
	if request.Status != RequestPending {
		return errors.New("request is not pending")
	}

	request.Status = RequestRejected
	if err := a.storage.SetRequest(id, request); err != nil {
		return err
	}
	if err := a.storage.pendingRequests.Sub(big.NewInt(1)); err != nil {
		return err
	}
	if err := a.storage.rejectedRequests.Add(big.NewInt(1)); err != nil {
		return err
	}

	logger.Info("request rejected", "id", id, "reviewer", env.Caller())
	env.Emit("accesscontrol", "request-rejected", map[string]string{
		"id": fmt.Sprintf("%d", id),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "reject"})
	return nil
}

// IsSessionValid bounds session length by role-specific durations.
func (a *AccessControl) IsSessionValid(user vault.Address, sessionStart, now uint64) (bool, error) {
	if sessionStart > now {
		return false, nil
	}

	record, err := a.storage.GetRole(user)
	if err != nil {
		return false, err
	}
	if !record.Active(now) {
		return false, nil
	}

	var key vault.Bytes32
	switch record.Role {
	case RoleAdmin, RoleSuperAdmin:
		key = vault.KeyAdminSessionDuration
	case RoleOperator:
		key = vault.KeyOpSessionDuration
	default:
		key = vault.KeyUserSessionDuration
	}
	bound, err := a.params.GetUint64(key)
	if err != nil {
		return false, err
	}
	return now-sessionStart <= bound, nil
}

// SetEmergencyOverride flips the override under which only the SuperAdmin
// passes permission checks. Invoked by the emergency component on critical
// incidents and their resolution.
func (a *AccessControl) SetEmergencyOverride(on bool) {
	a.storage.emergencyOverride.Set(on)
	logger.Info("emergency override", "on", on)
}

// EmergencyOverride returns whether the override is active.
func (a *AccessControl) EmergencyOverride() (bool, error) {
	return a.storage.emergencyOverride.Get()
}

// GetUserRole returns the role record of user.
func (a *AccessControl) GetUserRole(user vault.Address) (*RoleRecord, error) {
	return a.storage.GetRole(user)
}

// GetRequest returns the permission request by id.
func (a *AccessControl) GetRequest(id uint64) (*PermissionRequest, error) {
	return a.storage.GetRequest(id)
}

// Stats returns the aggregate ledger counters.
func (a *AccessControl) Stats() (*Stats, error) {
	total, err := a.storage.totalRoles.Get()
	if err != nil {
		return nil, err
	}
	admins, err := a.storage.adminCount.Get()
	if err != nil {
		return nil, err
	}
	operators, err := a.storage.operatorCount.Get()
	if err != nil {
		return nil, err
	}
	users, err := a.storage.userCount.Get()
	if err != nil {
		return nil, err
	}
	totalRequests, err := a.storage.requestCounter.Current()
	if err != nil {
		return nil, err
	}
	pending, err := a.storage.pendingRequests.Get()
	if err != nil {
		return nil, err
	}
	approved, err := a.storage.approvedRequests.Get()
	if err != nil {
		return nil, err
	}
	rejected, err := a.storage.rejectedRequests.Get()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalRoles:       total.Uint64(),
		Admins:           admins.Uint64(),
		Operators:        operators.Uint64(),
		Users:            users.Uint64(),
		TotalRequests:    totalRequests,
		PendingRequests:  pending.Uint64(),
		ApprovedRequests: approved.Uint64(),
		RejectedRequests: rejected.Uint64(),
	}, nil
}
