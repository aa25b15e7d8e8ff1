// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package pools

import (
	"math/big"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakevault/core/api/restutil"
	"github.com/stakevault/core/rewards"
	"github.com/stakevault/core/stakingpool"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/vaultfactory"
)

// Pools exposes the staking pool, distributor and factory registry.
type Pools struct {
	pool    *stakingpool.StakingPool
	dist    *rewards.Distributor
	factory *vaultfactory.Factory
	now     func() uint64
}

func New(pool *stakingpool.StakingPool, dist *rewards.Distributor, factory *vaultfactory.Factory, now func() uint64) *Pools {
	return &Pools{pool, dist, factory, now}
}

// RegistryEntry is the wire view of one factory registry record.
type RegistryEntry struct {
	ID           uint64        `json:"id"`
	AssetID      vault.Bytes32 `json:"assetId"`
	Staking      vault.Address `json:"staking"`
	Distributor  vault.Address `json:"distributor"`
	Creator      vault.Address `json:"creator"`
	CreatedAt    uint64        `json:"createdAt"`
	Status       uint8         `json:"status"`
	StatusName   string        `json:"statusName"`
	TotalStaked  *big.Int      `json:"totalStaked"`
	TotalRewards *big.Int      `json:"totalRewards"`
	Participants uint64        `json:"participants"`
	APY          *big.Int      `json:"apy"`
	MinStake     *big.Int      `json:"minStake"`
	MaxStake     *big.Int      `json:"maxStake"`
}

func convertPool(id uint64, info *vaultfactory.PoolInfo) *RegistryEntry {
	return &RegistryEntry{
		ID:           id,
		AssetID:      info.AssetID,
		Staking:      info.Staking,
		Distributor:  info.Distributor,
		Creator:      info.Creator,
		CreatedAt:    info.CreatedAt,
		Status:       info.Status,
		StatusName:   vaultfactory.StatusName(info.Status),
		TotalStaked:  info.TotalStaked,
		TotalRewards: info.TotalRewards,
		Participants: info.Participants,
		APY:          info.APY,
		MinStake:     info.MinStake,
		MaxStake:     info.MaxStake,
	}
}

func (p *Pools) handleGetInfo(w http.ResponseWriter, _ *http.Request) error {
	info, err := p.pool.Info()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (p *Pools) handleGetPosition(w http.ResponseWriter, req *http.Request) error {
	addr, err := vault.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	position, err := p.pool.Position(*addr, p.now())
	if err != nil {
		return err
	}
	if position == nil {
		return restutil.NotFound(errors.New("no position"))
	}
	return restutil.WriteJSON(w, position)
}

func (p *Pools) handleGetPending(w http.ResponseWriter, req *http.Request) error {
	addr, err := vault.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	pending, err := p.pool.GetPendingRewards(*addr, p.now())
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, restutil.M{"pending": pending})
}

func (p *Pools) handleGetDistributor(w http.ResponseWriter, _ *http.Request) error {
	info, err := p.dist.Info()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, info)
}

func (p *Pools) handleGetRegistry(w http.ResponseWriter, _ *http.Request) error {
	stats, err := p.factory.Stats()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, stats)
}

func (p *Pools) handleGetRegistryEntry(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	info, err := p.factory.GetPool(id)
	if err != nil {
		return err
	}
	if info == nil {
		return restutil.NotFound(errors.New("no such pool"))
	}
	return restutil.WriteJSON(w, convertPool(id, info))
}

func (p *Pools) handleGetTemplate(w http.ResponseWriter, req *http.Request) error {
	template, err := p.factory.GetTemplate(mux.Vars(req)["name"])
	if err != nil {
		return err
	}
	if template == nil {
		return restutil.NotFound(errors.New("no such template"))
	}
	return restutil.WriteJSON(w, restutil.M{
		"rewardRate": template.RewardRate,
		"minStake":   template.MinStake,
		"maxStake":   template.MaxStake,
	})
}

func (p *Pools) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/info").
		Methods(http.MethodGet).
		Name("GET /pools/info").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetInfo))
	sub.Path("/distributor").
		Methods(http.MethodGet).
		Name("GET /pools/distributor").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetDistributor))
	sub.Path("/registry").
		Methods(http.MethodGet).
		Name("GET /pools/registry").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetRegistry))
	sub.Path("/registry/{id:[0-9]+}").
		Methods(http.MethodGet).
		Name("GET /pools/registry/{id}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetRegistryEntry))
	sub.Path("/templates/{name}").
		Methods(http.MethodGet).
		Name("GET /pools/templates/{name}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetTemplate))
	sub.Path("/positions/{address}").
		Methods(http.MethodGet).
		Name("GET /pools/positions/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetPosition))
	sub.Path("/rewards/{address}").
		Methods(http.MethodGet).
		Name("GET /pools/rewards/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(p.handleGetPending))
}
