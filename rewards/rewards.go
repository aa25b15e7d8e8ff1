// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
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
	logger            = log.WithContext("pkg", "rewards")
	metricDistributed = metrics.Counter("rewards_distributions_total")
)

var (
	slotRate             = slot.NameToSlot("distribution-rate")
	slotReserve          = slot.NameToSlot("reserve")
	slotLastDistribution = slot.NameToSlot("last-distribution")
	slotTotalDistributed = slot.NameToSlot("total-distributed")
	slotPaused           = slot.NameToSlot("paused")
	slotInitialized      = slot.NameToSlot("initialized")
)

// utilization bonus tiers, highest first. Stake at or above the bound earns
// the percentage of the base reward.
var bonusTiers = []struct {
	bound   *big.Int
	percent int64
}{
	{big.NewInt(1_000_000_000), 150},
	{big.NewInt(100_000_000), 125},
	{big.NewInt(10_000_000), 110},
}

// Info is the read-side view of the distributor.
type Info struct {
	Rate             *big.Int `json:"rate"`
	Reserve          *big.Int `json:"reserve"`
	LastDistribution uint64   `json:"lastDistribution"`
	TotalDistributed *big.Int `json:"totalDistributed"`
	Paused           bool     `json:"paused"`
}

// Distributor feeds pools from a shared reward reserve on demand.
type Distributor struct {
	addr vault.Address
	acl  *accesscontrol.AccessControl
	prms *params.Params

	rate             *slot.Uint256
	reserve          *slot.Uint256
	lastDistribution *slot.Uint256
	totalDistributed *slot.Uint256
	paused           *slot.Bool
	initialized      *slot.Bool
}

// New create a new instance.
func New(addr vault.Address, st *state.State, acl *accesscontrol.AccessControl, prms *params.Params) *Distributor {
	ctx := slot.NewContext(addr, st)
	return &Distributor{
		addr:             addr,
		acl:              acl,
		prms:             prms,
		rate:             slot.NewUint256(ctx, slotRate),
		reserve:          slot.NewUint256(ctx, slotReserve),
		lastDistribution: slot.NewUint256(ctx, slotLastDistribution),
		totalDistributed: slot.NewUint256(ctx, slotTotalDistributed),
		paused:           slot.NewBool(ctx, slotPaused),
		initialized:      slot.NewBool(ctx, slotInitialized),
	}
}

func (d *Distributor) requirePermission(env *xenv.Environment, perm accesscontrol.Permission) error {
	ok, err := d.acl.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

// checkRate validates rate against the configured bounds.
func (d *Distributor) checkRate(rate *big.Int) error {
	minRate, err := d.prms.Get(vault.KeyMinDistributionRate)
	if err != nil {
		return err
	}
	maxRate, err := d.prms.Get(vault.KeyMaxDistributionRate)
	if err != nil {
		return err
	}
	if rate.Cmp(minRate) < 0 || rate.Cmp(maxRate) > 0 {
		return errors.Errorf("rate %v out of bounds [%v, %v]", rate, minRate, maxRate)
	}
	return nil
}

// Initialize sets the distribution rate and starts the accrual clock. It
// fails if already initialized.
func (d *Distributor) Initialize(env *xenv.Environment, rate *big.Int) error {
	if err := d.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	initialized, err := d.initialized.Get()
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("already initialized")
	}
	if err := d.checkRate(rate); err != nil {
		return err
	}

	d.initialized.Set(true)
	d.rate.Set(rate)
	d.lastDistribution.Set(new(big.Int).SetUint64(env.Now()))

	logger.Info("distributor initialized", "rate", rate)
	env.Emit("rewards", "initialized", map[string]string{"rate": rate.String()})
	return nil
}

// FundReserve credits amount to the reward reserve. The matching value
// arrives through the host transfer that accompanies the call.
func (d *Distributor) FundReserve(env *xenv.Environment, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return errors.New("nothing to fund")
	}
	if err := d.reserve.Add(amount); err != nil {
		return err
	}

	logger.Info("reserve funded", "from", env.Caller(), "amount", amount)
	env.Emit("rewards", "reserve-funded", map[string]string{
		"from":   env.Caller().String(),
		"amount": amount.String(),
	})
	return nil
}

// bonusPercent returns the utilization bonus for totalStaked, evaluated from
// the highest tier down.
func bonusPercent(totalStaked *big.Int) int64 {
	for _, tier := range bonusTiers {
		if totalStaked.Cmp(tier.bound) >= 0 {
			return tier.percent
		}
	}
	return 100
}

// DistributeRewards computes the accrued reward for pool since the last
// distribution, applies the utilization bonus, caps it at the reserve and
// transfers it out. Returns the distributed amount.
func (d *Distributor) DistributeRewards(env *xenv.Environment, pool vault.Address, totalStaked *big.Int) (*big.Int, error) {
	logger.Debug("distributing", "pool", pool, "totalStaked", totalStaked)

	if err := d.requirePermission(env, accesscontrol.PermDistribute); err != nil {
		logger.Info("distribution rejected", "error", err)
		return nil, err
	}
	paused, err := d.paused.Get()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, errors.New("distribution paused")
	}

	last, err := d.lastDistribution.Get()
	if err != nil {
		return nil, err
	}
	if env.Now() <= last.Uint64() || totalStaked.Sign() == 0 {
		d.lastDistribution.Set(new(big.Int).SetUint64(env.Now()))
		return new(big.Int), nil
	}

	rate, err := d.rate.Get()
	if err != nil {
		return nil, err
	}
	reward := new(big.Int).SetUint64(env.Now() - last.Uint64())
	reward.Mul(reward, rate)
	reward.Mul(reward, totalStaked)
	reward.Div(reward, vault.RewardScale)

	percent := bonusPercent(totalStaked)
	reward.Mul(reward, big.NewInt(percent))
	reward.Div(reward, big.NewInt(100))

	reserve, err := d.reserve.Get()
	if err != nil {
		return nil, err
	}
	if reward.Cmp(reserve) > 0 {
		logger.Warn("reserve caps distribution", "reward", reward, "reserve", reserve)
		reward.Set(reserve)
	}

	d.reserve.Set(reserve.Sub(reserve, reward))
	d.lastDistribution.Set(new(big.Int).SetUint64(env.Now()))
	if err := d.totalDistributed.Add(reward); err != nil {
		return nil, err
	}
	env.Transfer(pool, reward)

	logger.Info("distributed", "pool", pool, "reward", reward, "bonus", percent)
	env.Emit("rewards", "distributed", map[string]string{
		"pool":   pool.String(),
		"reward": reward.String(),
	})
	metricDistributed.Add(1)
	return reward, nil
}

// CalculateOptimalRate derives the per-second rate hitting targetAPY
// (percent), clamped to the configured bounds. Pure read.
func (d *Distributor) CalculateOptimalRate(totalStaked, targetAPY *big.Int) (*big.Int, error) {
	if totalStaked.Sign() <= 0 || targetAPY.Sign() < 0 {
		return nil, errors.New("invalid rate inputs")
	}

	// reward/sec = rate*staked/scale, so the annualized percentage is
	// rate*yearSeconds*100/scale
	rate := new(big.Int).Mul(targetAPY, vault.RewardScale)
	rate.Div(rate, new(big.Int).SetUint64(vault.YearSeconds))
	rate.Div(rate, big.NewInt(100))

	minRate, err := d.prms.Get(vault.KeyMinDistributionRate)
	if err != nil {
		return nil, err
	}
	maxRate, err := d.prms.Get(vault.KeyMaxDistributionRate)
	if err != nil {
		return nil, err
	}
	if rate.Cmp(minRate) < 0 {
		return minRate, nil
	}
	if rate.Cmp(maxRate) > 0 {
		return maxRate, nil
	}
	return rate, nil
}

// UpdateDistributionRate changes the rate within the configured bounds.
func (d *Distributor) UpdateDistributionRate(env *xenv.Environment, rate *big.Int) error {
	if err := d.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	if err := d.checkRate(rate); err != nil {
		return err
	}
	d.rate.Set(rate)

	logger.Info("rate updated", "rate", rate)
	env.Emit("rewards", "rate-updated", map[string]string{"rate": rate.String()})
	return nil
}

// PauseDistribution halts distributions.
func (d *Distributor) PauseDistribution(env *xenv.Environment) error {
	if err := d.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	d.paused.Set(true)

	logger.Warn("distribution paused", "by", env.Caller())
	env.Emit("rewards", "paused", nil)
	return nil
}

// ResumeDistribution resumes distributions. The accrual clock restarts at
// now so the paused interval is never retroactively credited.
func (d *Distributor) ResumeDistribution(env *xenv.Environment) error {
	if err := d.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	d.paused.Set(false)
	d.lastDistribution.Set(new(big.Int).SetUint64(env.Now()))

	logger.Info("distribution resumed", "by", env.Caller())
	env.Emit("rewards", "resumed", nil)
	return nil
}

// WithdrawExcessRewards moves amount out of the reserve to the caller.
func (d *Distributor) WithdrawExcessRewards(env *xenv.Environment, amount *big.Int) error {
	if err := d.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	reserve, err := d.reserve.Get()
	if err != nil {
		return err
	}
	if amount.Sign() <= 0 || amount.Cmp(reserve) > 0 {
		return errors.New("amount exceeds reserve")
	}

	d.reserve.Set(reserve.Sub(reserve, amount))
	env.Transfer(env.Caller(), amount)

	logger.Info("excess withdrawn", "to", env.Caller(), "amount", amount)
	env.Emit("rewards", "excess-withdrawn", map[string]string{
		"to":     env.Caller().String(),
		"amount": amount.String(),
	})
	return nil
}

// Info returns the read-side view of the distributor.
func (d *Distributor) Info() (*Info, error) {
	rate, err := d.rate.Get()
	if err != nil {
		return nil, err
	}
	reserve, err := d.reserve.Get()
	if err != nil {
		return nil, err
	}
	last, err := d.lastDistribution.Get()
	if err != nil {
		return nil, err
	}
	total, err := d.totalDistributed.Get()
	if err != nil {
		return nil, err
	}
	paused, err := d.paused.Get()
	if err != nil {
		return nil, err
	}
	return &Info{
		Rate:             rate,
		Reserve:          reserve,
		LastDistribution: last.Uint64(),
		TotalDistributed: total,
		Paused:           paused,
	}, nil
}
