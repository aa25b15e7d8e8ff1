// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package roles

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/api/restutil"
	"github.com/stakevault/core/vault"
)

// Roles exposes the role and permission-request ledgers.
type Roles struct {
	acl *accesscontrol.AccessControl
	now func() uint64
}

func New(acl *accesscontrol.AccessControl, now func() uint64) *Roles {
	return &Roles{acl, now}
}

// RoleRecord is the wire view of one role ledger entry.
type RoleRecord struct {
	Role        uint8         `json:"role"`
	RoleName    string        `json:"roleName"`
	Permissions uint64        `json:"permissions"`
	AssignedBy  vault.Address `json:"assignedBy"`
	AssignedAt  uint64        `json:"assignedAt"`
	ExpiresAt   uint64        `json:"expiresAt"`
	Revoked     bool          `json:"revoked"`
	Active      bool          `json:"active"`
}

// PermissionRequest is the wire view of one pending-permission workflow
// entry.
type PermissionRequest struct {
	Requester     vault.Address   `json:"requester"`
	TargetRole    uint8           `json:"targetRole"`
	Permissions   uint64          `json:"permissions"`
	Reason        string          `json:"reason"`
	RequestedAt   uint64          `json:"requestedAt"`
	ApprovalCount uint32          `json:"approvalCount"`
	Approvers     []vault.Address `json:"approvers"`
	Status        uint8           `json:"status"`
}

func convertRole(record *accesscontrol.RoleRecord, now uint64) *RoleRecord {
	return &RoleRecord{
		Role:        record.Role,
		RoleName:    accesscontrol.RoleName(record.Role),
		Permissions: record.Permissions,
		AssignedBy:  record.AssignedBy,
		AssignedAt:  record.AssignedAt,
		ExpiresAt:   record.ExpiresAt,
		Revoked:     record.Revoked,
		Active:      record.Active(now),
	}
}

func (r *Roles) handleGetRole(w http.ResponseWriter, req *http.Request) error {
	addr, err := vault.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	record, err := r.acl.GetUserRole(*addr)
	if err != nil {
		return err
	}
	if record.IsEmpty() {
		return restutil.NotFound(errors.New("no role assigned"))
	}
	return restutil.WriteJSON(w, convertRole(record, r.now()))
}

func (r *Roles) handleGetStats(w http.ResponseWriter, _ *http.Request) error {
	stats, err := r.acl.Stats()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, stats)
}

func (r *Roles) handleGetRequest(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	request, err := r.acl.GetRequest(id)
	if err != nil {
		return err
	}
	if request.IsEmpty() {
		return restutil.NotFound(errors.New("no such request"))
	}
	return restutil.WriteJSON(w, &PermissionRequest{
		Requester:     request.Requester,
		TargetRole:    request.TargetRole,
		Permissions:   request.Permissions,
		Reason:        request.Reason,
		RequestedAt:   request.RequestedAt,
		ApprovalCount: request.ApprovalCount,
		Approvers:     request.Approvers,
		Status:        request.Status,
	})
}

func (r *Roles) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/stats").
		Methods(http.MethodGet).
		Name("GET /roles/stats").
		HandlerFunc(restutil.WrapHandlerFunc(r.handleGetStats))
	sub.Path("/requests/{id:[0-9]+}").
		Methods(http.MethodGet).
		Name("GET /roles/requests/{id}").
		HandlerFunc(restutil.WrapHandlerFunc(r.handleGetRequest))
	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /roles/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(r.handleGetRole))
}
