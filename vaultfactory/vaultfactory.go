// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaultfactory

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/metrics"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/slot"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	logger      = log.WithContext("pkg", "vaultfactory")
	metricPools = metrics.Gauge("vaultfactory_active_pools")
)

// Factory is the pool registry and lifecycle manager. The factory-wide TVL
// is a running sum kept equal to the total stake of currently Active pools,
// adjusted on every status transition and metrics push.
type Factory struct {
	storage *storage
	acl     *accesscontrol.AccessControl
	prms    *params.Params
}

// New create a new instance.
func New(addr vault.Address, st *state.State, acl *accesscontrol.AccessControl, prms *params.Params) *Factory {
	return &Factory{
		storage: newStorage(addr, st),
		acl:     acl,
		prms:    prms,
	}
}

func (f *Factory) requirePermission(env *xenv.Environment, perm accesscontrol.Permission) error {
	ok, err := f.acl.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

// Initialize activates the factory. It fails if already initialized.
func (f *Factory) Initialize(env *xenv.Environment) error {
	if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	initialized, err := f.storage.initialized.Get()
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("already initialized")
	}
	f.storage.initialized.Set(true)
	f.storage.active.Set(true)

	logger.Info("factory initialized")
	env.Emit("vaultfactory", "initialized", nil)
	return nil
}

// CreatePool registers a new pool with status Active. The creator is bounded
// by the per-user pool ceiling and must commit the minimum initial reward
// funding.
func (f *Factory) CreatePool(env *xenv.Environment, assetID vault.Bytes32, staking, distributor vault.Address, minStake, maxStake, initialFunding *big.Int) (uint64, error) {
	logger.Debug("creating pool", "creator", env.Caller(), "asset", assetID)

	active, err := f.storage.active.Get()
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, errors.New("factory not active")
	}
	paused, err := f.storage.paused.Get()
	if err != nil {
		return 0, err
	}
	if paused {
		return 0, errors.New("factory emergency paused")
	}

	ceiling, err := f.prms.GetUint64(vault.KeyMaxPoolsPerUser)
	if err != nil {
		return 0, err
	}
	count, err := f.storage.creatorCounts.Get(env.Caller())
	if err != nil {
		return 0, err
	}
	if count >= ceiling {
		return 0, errors.New("pool ceiling reached for creator")
	}

	minFunding, err := f.prms.Get(vault.KeyMinInitialFunding)
	if err != nil {
		return 0, err
	}
	if initialFunding.Cmp(minFunding) < 0 {
		return 0, errors.New("initial funding below minimum")
	}
	if minStake.Sign() < 0 || (maxStake.Sign() != 0 && maxStake.Cmp(minStake) < 0) {
		return 0, errors.New("invalid stake limits")
	}

	id, err := f.storage.poolCounter.Next()
	if err != nil {
		return 0, err
	}
	pool := &PoolInfo{
		AssetID:      assetID,
		Staking:      staking,
		Distributor:  distributor,
		Creator:      env.Caller(),
		CreatedAt:    env.Now(),
		Status:       StatusActive,
		TotalStaked:  new(big.Int),
		TotalRewards: new(big.Int),
		APY:          new(big.Int),
		MinStake:     minStake,
		MaxStake:     maxStake,
	}
	if err := f.storage.SetPool(id, pool); err != nil {
		return 0, err
	}
	if err := f.storage.creatorCounts.Set(env.Caller(), count+1); err != nil {
		return 0, err
	}
	if err := f.storage.activePools.Add(big.NewInt(1)); err != nil {
		return 0, err
	}
	metricPools.Add(1)

	logger.Info("pool created", "id", id, "creator", env.Caller(), "funding", initialFunding)
	env.Emit("vaultfactory", "pool-created", map[string]string{
		"id":      fmt.Sprintf("%d", id),
		"creator": env.Caller().String(),
	})
	return id, nil
}

// UpdatePoolStatus transitions a pool's lifecycle state. TVL follows Active
// membership: leaving Active subtracts the pool's stake, re-entering adds it
// back.
func (f *Factory) UpdatePoolStatus(env *xenv.Environment, id uint64, status PoolStatus) error {
	logger.Debug("updating pool status", "id", id, "status", StatusName(status))

	if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
		logger.Info("status update rejected", "id", id, "error", err)
		return err
	}
	if status > StatusEmergency {
		return errors.New("invalid pool status")
	}

	pool, err := f.storage.GetPool(id)
	if err != nil {
		return err
	}
	if pool.IsEmpty() {
		return errors.New("no such pool")
	}
	if pool.Status == status {
		return errors.New("status unchanged")
	}

	switch {
	case pool.Status == StatusActive && status != StatusActive:
		if err := f.storage.totalTVL.Sub(pool.TotalStaked); err != nil {
			return err
		}
		if err := f.storage.activePools.Sub(big.NewInt(1)); err != nil {
			return err
		}
		metricPools.Add(-1)
	case pool.Status != StatusActive && status == StatusActive:
		if err := f.storage.totalTVL.Add(pool.TotalStaked); err != nil {
			return err
		}
		if err := f.storage.activePools.Add(big.NewInt(1)); err != nil {
			return err
		}
		metricPools.Add(1)
	}

	old := pool.Status
	pool.Status = status
	if err := f.storage.SetPool(id, pool); err != nil {
		return err
	}

	logger.Info("pool status updated", "id", id, "from", StatusName(old), "to", StatusName(status))
	env.Emit("vaultfactory", "status-updated", map[string]string{
		"id":     fmt.Sprintf("%d", id),
		"status": StatusName(status),
	})
	return nil
}

// UpdatePoolMetrics lets the pool's reporter push fresh figures. TVL adjusts
// by the stake delta while the pool is Active. The reporter must be the pool
// creator or a Manage holder.
func (f *Factory) UpdatePoolMetrics(env *xenv.Environment, id uint64, totalStaked, totalRewards *big.Int, participants uint64, apy *big.Int) error {
	logger.Debug("updating pool metrics", "id", id)

	pool, err := f.storage.GetPool(id)
	if err != nil {
		return err
	}
	if pool.IsEmpty() {
		return errors.New("no such pool")
	}
	if pool.Creator != env.Caller() {
		if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
			logger.Info("metrics update rejected", "id", id, "error", err)
			return err
		}
	}
	if totalStaked.Sign() < 0 || totalRewards.Sign() < 0 || apy.Sign() < 0 {
		return errors.New("negative pool metric")
	}

	if pool.Status == StatusActive {
		delta := new(big.Int).Sub(totalStaked, pool.TotalStaked)
		if err := f.storage.totalTVL.Add(delta); err != nil {
			return err
		}
	}

	pool.TotalStaked = totalStaked
	pool.TotalRewards = totalRewards
	pool.Participants = participants
	pool.APY = apy
	if err := f.storage.SetPool(id, pool); err != nil {
		return err
	}

	logger.Debug("pool metrics updated", "id", id, "totalStaked", totalStaked)
	env.Emit("vaultfactory", "metrics-updated", map[string]string{
		"id":          fmt.Sprintf("%d", id),
		"totalStaked": totalStaked.String(),
	})
	return nil
}

// AddPoolTemplate stores a named configuration bundle.
func (f *Factory) AddPoolTemplate(env *xenv.Environment, name string, template *Template) error {
	if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	if name == "" || template == nil || template.IsEmpty() {
		return errors.New("invalid template")
	}
	if err := f.storage.templates.Set(slot.Str(name), template); err != nil {
		return errors.Wrap(err, "failed to set template")
	}

	logger.Info("template added", "name", name)
	env.Emit("vaultfactory", "template-added", map[string]string{"name": name})
	return nil
}

// SetDefaultTemplate selects the template used for future pools.
func (f *Factory) SetDefaultTemplate(env *xenv.Environment, name string) error {
	if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	template, err := f.storage.templates.Get(slot.Str(name))
	if err != nil {
		return errors.Wrap(err, "failed to get template")
	}
	if template.IsEmpty() {
		return errors.New("no such template")
	}
	if err := f.storage.defaultTemplate.Set(name); err != nil {
		return err
	}

	logger.Info("default template set", "name", name)
	env.Emit("vaultfactory", "default-template", map[string]string{"name": name})
	return nil
}

// GetTemplate returns the template by name, nil when absent.
func (f *Factory) GetTemplate(name string) (*Template, error) {
	template, err := f.storage.templates.Get(slot.Str(name))
	if err != nil {
		return nil, err
	}
	if template.IsEmpty() {
		return nil, nil
	}
	return template, nil
}

// DefaultTemplate returns the name of the default template, empty when
// unset.
func (f *Factory) DefaultTemplate() (string, error) {
	return f.storage.defaultTemplate.Get()
}

// SetFactoryActive opens or closes the factory for new pools.
func (f *Factory) SetFactoryActive(env *xenv.Environment, active bool) error {
	if err := f.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	f.storage.active.Set(active)

	logger.Info("factory active flag updated", "active", active)
	return nil
}

// SetFactoryPaused halts pool creation during incidents.
func (f *Factory) SetFactoryPaused(env *xenv.Environment, paused bool) error {
	if err := f.requirePermission(env, accesscontrol.PermEmergency); err != nil {
		return err
	}
	f.storage.paused.Set(paused)

	logger.Warn("factory pause updated", "paused", paused)
	return nil
}

// GetPool returns the registry record by id, nil when absent.
func (f *Factory) GetPool(id uint64) (*PoolInfo, error) {
	pool, err := f.storage.GetPool(id)
	if err != nil {
		return nil, err
	}
	if pool.IsEmpty() {
		return nil, nil
	}
	return pool, nil
}

// TotalTVL returns the factory-wide total value locked.
func (f *Factory) TotalTVL() (*big.Int, error) {
	return f.storage.totalTVL.Get()
}

// Stats returns the aggregate registry view.
func (f *Factory) Stats() (*Stats, error) {
	total, err := f.storage.poolCounter.Current()
	if err != nil {
		return nil, err
	}
	active, err := f.storage.activePools.Get()
	if err != nil {
		return nil, err
	}
	tvl, err := f.storage.totalTVL.Get()
	if err != nil {
		return nil, err
	}
	return &Stats{
		TotalPools:  total,
		ActivePools: active.Uint64(),
		TotalTVL:    tvl,
	}, nil
}
