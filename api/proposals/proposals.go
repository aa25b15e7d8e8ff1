// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package proposals

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakevault/core/api/restutil"
	"github.com/stakevault/core/governance"
	"github.com/stakevault/core/vault"
)

// Proposals exposes the governance ledger.
type Proposals struct {
	gov *governance.Governance
}

func New(gov *governance.Governance) *Proposals {
	return &Proposals{gov}
}

// Proposal is the wire view of one proposal.
type Proposal struct {
	ID           uint64        `json:"id"`
	Proposer     vault.Address `json:"proposer"`
	Description  string        `json:"description"`
	ParamKey     vault.Bytes32 `json:"paramKey"`
	ParamValue   *big.Int      `json:"paramValue"`
	CreatedAt    uint64        `json:"createdAt"`
	VotingStart  uint64        `json:"votingStart"`
	VotingEnd    uint64        `json:"votingEnd"`
	ForVotes     *big.Int      `json:"forVotes"`
	AgainstVotes *big.Int      `json:"againstVotes"`
	AbstainVotes *big.Int      `json:"abstainVotes"`
	Status       uint8         `json:"status"`
	StatusName   string        `json:"statusName"`
	ExecutedAt   uint64        `json:"executedAt"`
}

// Vote is the wire view of one cast vote.
type Vote struct {
	Support uint8    `json:"support"`
	Power   *big.Int `json:"power"`
	VotedAt uint64   `json:"votedAt"`
}

func convertProposal(id uint64, p *governance.Proposal) *Proposal {
	return &Proposal{
		ID:           id,
		Proposer:     p.Proposer,
		Description:  p.Description,
		ParamKey:     p.ParamKey,
		ParamValue:   p.ParamValue,
		CreatedAt:    p.CreatedAt,
		VotingStart:  p.VotingStart,
		VotingEnd:    p.VotingEnd,
		ForVotes:     p.ForVotes,
		AgainstVotes: p.AgainstVotes,
		AbstainVotes: p.AbstainVotes,
		Status:       p.Status,
		StatusName:   governance.StatusName(p.Status),
		ExecutedAt:   p.ExecutedAt,
	}
}

func (p *Proposals) handleGetInfo(w http.ResponseWriter, _ *http.Request) error {
	info, err := p.gov.Info()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (p *Proposals) handleGetProposal(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	proposal, err := p.gov.GetProposal(id)
	if err != nil {
		return err
	}
	if proposal == nil {
		return restutil.NotFound(errors.New("no such proposal"))
	}
	return restutil.WriteJSON(w, convertProposal(id, proposal))
}

func (p *Proposals) handleGetVote(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	addr, err := vault.ParseAddress(vars["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	vote, err := p.gov.GetVote(id, *addr)
	if err != nil {
		return err
	}
	if vote == nil {
		return restutil.NotFound(errors.New("no vote cast"))
	}
	return restutil.WriteJSON(w, &Vote{
		Support: vote.Support,
		Power:   vote.Power,
		VotedAt: vote.VotedAt,
	})
}

func (p *Proposals) handleGetPower(w http.ResponseWriter, req *http.Request) error {
	addr, err := vault.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	power, err := p.gov.VotingPower(*addr)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, restutil.M{"power": power})
}

func (p *Proposals) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/info").
		Methods(http.MethodGet).
		Name("GET /proposals/info").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetInfo))
	sub.Path("/power/{address}").
		Methods(http.MethodGet).
		Name("GET /proposals/power/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetPower))
	sub.Path("/{id:[0-9]+}").
		Methods(http.MethodGet).
		Name("GET /proposals/{id}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetProposal))
	sub.Path("/{id:[0-9]+}/votes/{address}").
		Methods(http.MethodGet).
		Name("GET /proposals/{id}/votes/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetVote))
}
