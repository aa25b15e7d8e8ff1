// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakingpool

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/emergency"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/metrics"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	logger    = log.WithContext("pkg", "stakingpool")
	metricOps = metrics.CounterVec("stakingpool_ops_total", []string{"op"})
)

// StakingPool is an accumulator-based stake ledger. Reward accrual follows
// the reward-per-share pattern: accRewardPerShare advances by
// elapsed*rewardRate*scale/totalStaked and every mutating operation settles
// the caller's pending reward first, so accrual is never stale.
type StakingPool struct {
	storage *storage
	acl     *accesscontrol.AccessControl
	guard   *emergency.Emergency
}

// New create a new instance.
func New(addr vault.Address, st *state.State, acl *accesscontrol.AccessControl, guard *emergency.Emergency) *StakingPool {
	return &StakingPool{
		storage: newStorage(addr, st),
		acl:     acl,
		guard:   guard,
	}
}

func (p *StakingPool) requirePermission(env *xenv.Environment, perm accesscontrol.Permission) error {
	ok, err := p.acl.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

func (p *StakingPool) requireOperation(op emergency.OpType) error {
	allowed, err := p.guard.IsOperationAllowed(op)
	if err != nil {
		return err
	}
	if !allowed {
		return errors.New("operation restricted by emergency policy")
	}
	return nil
}

// Initialize configures and activates the pool. It fails if already
// initialized.
func (p *StakingPool) Initialize(env *xenv.Environment, rewardRate, minimumStake *big.Int) error {
	if err := p.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	initialized, err := p.storage.initialized.Get()
	if err != nil {
		return err
	}
	if initialized {
		return errors.New("already initialized")
	}
	if rewardRate.Sign() < 0 || minimumStake.Sign() < 0 {
		return errors.New("negative pool parameter")
	}

	p.storage.initialized.Set(true)
	p.storage.active.Set(true)
	p.storage.rewardRate.Set(rewardRate)
	p.storage.minimumStake.Set(minimumStake)
	p.storage.lastUpdate.Set(new(big.Int).SetUint64(env.Now()))

	logger.Info("pool initialized", "rewardRate", rewardRate, "minimumStake", minimumStake)
	env.Emit("stakingpool", "initialized", map[string]string{
		"rewardRate":   rewardRate.String(),
		"minimumStake": minimumStake.String(),
	})
	return nil
}

// UpdatePool advances the reward accumulator to now. Callable by anyone; it
// also runs implicitly at the start of every mutating operation.
func (p *StakingPool) UpdatePool(env *xenv.Environment) error {
	_, err := p.updatePool(env.Now())
	return err
}

// updatePool advances accRewardPerShare and returns its new value. The
// accumulator only moves while stake is present; the clock always does.
func (p *StakingPool) updatePool(now uint64) (*big.Int, error) {
	acc, err := p.storage.accPerShare.Get()
	if err != nil {
		return nil, err
	}
	last, err := p.storage.lastUpdate.Get()
	if err != nil {
		return nil, err
	}
	if now <= last.Uint64() {
		return acc, nil
	}

	total, err := p.storage.totalStaked.Get()
	if err != nil {
		return nil, err
	}
	if total.Sign() > 0 {
		rate, err := p.storage.rewardRate.Get()
		if err != nil {
			return nil, err
		}
		accrued := new(big.Int).SetUint64(now - last.Uint64())
		accrued.Mul(accrued, rate)
		accrued.Mul(accrued, vault.RewardScale)
		accrued.Div(accrued, total)
		acc.Add(acc, accrued)
		p.storage.accPerShare.Set(acc)
	}
	p.storage.lastUpdate.Set(new(big.Int).SetUint64(now))
	return acc, nil
}

// pending computes the unsettled reward of position against acc, truncating
// toward zero.
func pending(position *Position, acc *big.Int) *big.Int {
	earned := new(big.Int).Mul(position.Principal, acc)
	earned.Div(earned, vault.RewardScale)
	return earned.Sub(earned, position.RewardDebt)
}

// rebase resets the accumulator baseline after principal or accrual changed.
func rebase(position *Position, acc *big.Int) {
	debt := new(big.Int).Mul(position.Principal, acc)
	position.RewardDebt = debt.Div(debt, vault.RewardScale)
}

// Stake adds amount to the caller's position, settling any pending reward
// first.
func (p *StakingPool) Stake(env *xenv.Environment, amount *big.Int) error {
	logger.Debug("stake", "user", env.Caller(), "amount", amount)

	if amount.Sign() <= 0 {
		return errors.New("nothing to stake")
	}
	initialized, err := p.storage.initialized.Get()
	if err != nil {
		return err
	}
	if !initialized {
		return errors.New("pool not initialized")
	}
	active, err := p.storage.active.Get()
	if err != nil {
		return err
	}
	if !active {
		return errors.New("pool not active")
	}
	paused, err := p.storage.emergencyPaused.Get()
	if err != nil {
		return err
	}
	if paused {
		return errors.New("pool emergency paused")
	}
	if err := p.requireOperation(emergency.OpDeposit); err != nil {
		return err
	}
	minimum, err := p.storage.minimumStake.Get()
	if err != nil {
		return err
	}
	if amount.Cmp(minimum) < 0 {
		return errors.New("amount below minimum stake")
	}

	acc, err := p.updatePool(env.Now())
	if err != nil {
		return err
	}
	position, err := p.storage.GetPosition(env.Caller())
	if err != nil {
		return err
	}
	if position.IsEmpty() {
		position = &Position{
			Principal:  new(big.Int),
			RewardDebt: new(big.Int),
			StakedAt:   env.Now(),
		}
		if err := p.storage.participants.Add(big.NewInt(1)); err != nil {
			return err
		}
	} else if reward := pending(position, acc); reward.Sign() > 0 {
		env.Transfer(env.Caller(), reward)
		position.LastClaim = env.Now()
	}

	position.Principal = new(big.Int).Add(position.Principal, amount)
	rebase(position, acc)
	if err := p.storage.SetPosition(env.Caller(), position); err != nil {
		return err
	}
	if err := p.storage.totalStaked.Add(amount); err != nil {
		return err
	}

	logger.Info("staked", "user", env.Caller(), "amount", amount)
	env.Emit("stakingpool", "staked", map[string]string{
		"user":   env.Caller().String(),
		"amount": amount.String(),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "stake"})
	return nil
}

// Withdraw removes amount of principal, settling pending reward first. The
// position is deleted once its principal reaches exactly zero.
func (p *StakingPool) Withdraw(env *xenv.Environment, amount *big.Int) error {
	logger.Debug("withdraw", "user", env.Caller(), "amount", amount)

	paused, err := p.storage.emergencyPaused.Get()
	if err != nil {
		return err
	}
	if paused {
		return errors.New("pool emergency paused")
	}
	if err := p.requireOperation(emergency.OpWithdraw); err != nil {
		return err
	}
	if amount.Sign() <= 0 {
		return errors.New("nothing to withdraw")
	}

	position, err := p.storage.GetPosition(env.Caller())
	if err != nil {
		return err
	}
	if position.IsEmpty() {
		return errors.New("no position")
	}
	if position.Principal.Cmp(amount) < 0 {
		return errors.New("amount exceeds principal")
	}

	acc, err := p.updatePool(env.Now())
	if err != nil {
		return err
	}
	if reward := pending(position, acc); reward.Sign() > 0 {
		env.Transfer(env.Caller(), reward)
		position.LastClaim = env.Now()
	}
	env.Transfer(env.Caller(), amount)

	position.Principal = new(big.Int).Sub(position.Principal, amount)
	if err := p.storage.totalStaked.Sub(amount); err != nil {
		return err
	}

	if position.Principal.Sign() == 0 {
		p.storage.DeletePosition(env.Caller())
		if err := p.storage.participants.Sub(big.NewInt(1)); err != nil {
			return err
		}
	} else {
		rebase(position, acc)
		if err := p.storage.SetPosition(env.Caller(), position); err != nil {
			return err
		}
	}

	logger.Info("withdrawn", "user", env.Caller(), "amount", amount)
	env.Emit("stakingpool", "withdrawn", map[string]string{
		"user":   env.Caller().String(),
		"amount": amount.String(),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "withdraw"})
	return nil
}

// ClaimRewards settles and pays out the caller's pending reward without
// touching principal.
func (p *StakingPool) ClaimRewards(env *xenv.Environment) (*big.Int, error) {
	logger.Debug("claim", "user", env.Caller())

	paused, err := p.storage.emergencyPaused.Get()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, errors.New("pool emergency paused")
	}
	if err := p.requireOperation(emergency.OpWithdraw); err != nil {
		return nil, err
	}

	position, err := p.storage.GetPosition(env.Caller())
	if err != nil {
		return nil, err
	}
	if position.IsEmpty() {
		return nil, errors.New("no position")
	}

	acc, err := p.updatePool(env.Now())
	if err != nil {
		return nil, err
	}
	reward := pending(position, acc)
	if reward.Sign() > 0 {
		env.Transfer(env.Caller(), reward)
		position.LastClaim = env.Now()
	}
	rebase(position, acc)
	if err := p.storage.SetPosition(env.Caller(), position); err != nil {
		return nil, err
	}

	logger.Info("rewards claimed", "user", env.Caller(), "reward", reward)
	env.Emit("stakingpool", "claimed", map[string]string{
		"user":   env.Caller().String(),
		"reward": reward.String(),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "claim"})
	return reward, nil
}

// EmergencyWithdraw returns the caller's principal immediately, forfeiting
// any pending reward. It works regardless of pool state, as the escape hatch
// during incidents.
func (p *StakingPool) EmergencyWithdraw(env *xenv.Environment) (*big.Int, error) {
	logger.Debug("emergency withdraw", "user", env.Caller())

	position, err := p.storage.GetPosition(env.Caller())
	if err != nil {
		return nil, err
	}
	if position.IsEmpty() {
		return nil, errors.New("no position")
	}

	principal := position.Principal
	env.Transfer(env.Caller(), principal)
	if err := p.storage.totalStaked.Sub(principal); err != nil {
		return nil, err
	}
	p.storage.DeletePosition(env.Caller())
	if err := p.storage.participants.Sub(big.NewInt(1)); err != nil {
		return nil, err
	}

	logger.Warn("emergency withdrawal", "user", env.Caller(), "principal", principal)
	env.Emit("stakingpool", "emergency-withdrawn", map[string]string{
		"user":      env.Caller().String(),
		"principal": principal.String(),
	})
	metricOps.AddWithLabel(1, map[string]string{"op": "emergency-withdraw"})
	return principal, nil
}

// GetPendingRewards recomputes what the accumulator would be at now without
// mutating state. Pure read for dashboards.
func (p *StakingPool) GetPendingRewards(user vault.Address, now uint64) (*big.Int, error) {
	position, err := p.storage.GetPosition(user)
	if err != nil {
		return nil, err
	}
	if position.IsEmpty() {
		return new(big.Int), nil
	}
	acc, err := p.projectedAcc(now)
	if err != nil {
		return nil, err
	}
	return pending(position, acc), nil
}

// projectedAcc is the read-only counterpart of updatePool.
func (p *StakingPool) projectedAcc(now uint64) (*big.Int, error) {
	acc, err := p.storage.accPerShare.Get()
	if err != nil {
		return nil, err
	}
	last, err := p.storage.lastUpdate.Get()
	if err != nil {
		return nil, err
	}
	total, err := p.storage.totalStaked.Get()
	if err != nil {
		return nil, err
	}
	if now <= last.Uint64() || total.Sign() == 0 {
		return acc, nil
	}
	rate, err := p.storage.rewardRate.Get()
	if err != nil {
		return nil, err
	}
	accrued := new(big.Int).SetUint64(now - last.Uint64())
	accrued.Mul(accrued, rate)
	accrued.Mul(accrued, vault.RewardScale)
	accrued.Div(accrued, total)
	return acc.Add(acc, accrued), nil
}

// SetRewardRate changes the accrual rate. The accumulator is settled to now
// first so the old rate applies to the elapsed interval.
func (p *StakingPool) SetRewardRate(env *xenv.Environment, rate *big.Int) error {
	if err := p.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	if rate.Sign() < 0 {
		return errors.New("negative reward rate")
	}
	if _, err := p.updatePool(env.Now()); err != nil {
		return err
	}
	p.storage.rewardRate.Set(rate)

	logger.Info("reward rate updated", "rate", rate)
	env.Emit("stakingpool", "rate-updated", map[string]string{"rate": rate.String()})
	return nil
}

// SetMinimumStake changes the minimum stake per deposit.
func (p *StakingPool) SetMinimumStake(env *xenv.Environment, minimum *big.Int) error {
	if err := p.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	if minimum.Sign() < 0 {
		return errors.New("negative minimum stake")
	}
	p.storage.minimumStake.Set(minimum)

	logger.Info("minimum stake updated", "minimum", minimum)
	env.Emit("stakingpool", "minimum-updated", map[string]string{"minimum": minimum.String()})
	return nil
}

// SetActive opens or closes the pool for new stakes.
func (p *StakingPool) SetActive(env *xenv.Environment, active bool) error {
	if err := p.requirePermission(env, accesscontrol.PermManage); err != nil {
		return err
	}
	p.storage.active.Set(active)

	logger.Info("pool active flag updated", "active", active)
	env.Emit("stakingpool", "active-updated", map[string]string{"active": boolString(active)})
	return nil
}

// SetEmergencyPaused halts all settling operations on the pool. Emergency
// withdrawal stays available.
func (p *StakingPool) SetEmergencyPaused(env *xenv.Environment, paused bool) error {
	if err := p.requirePermission(env, accesscontrol.PermEmergency); err != nil {
		return err
	}
	p.storage.emergencyPaused.Set(paused)

	logger.Warn("pool emergency pause updated", "paused", paused)
	env.Emit("stakingpool", "pause-updated", map[string]string{"paused": boolString(paused)})
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Position returns the read-side view of user's position, pending reward
// projected to now.
func (p *StakingPool) Position(user vault.Address, now uint64) (*PositionInfo, error) {
	position, err := p.storage.GetPosition(user)
	if err != nil {
		return nil, err
	}
	if position.IsEmpty() {
		return nil, nil
	}
	acc, err := p.projectedAcc(now)
	if err != nil {
		return nil, err
	}
	return &PositionInfo{
		User:       user,
		Principal:  position.Principal,
		RewardDebt: position.RewardDebt,
		StakedAt:   position.StakedAt,
		LastClaim:  position.LastClaim,
		Pending:    pending(position, acc),
	}, nil
}

// Info returns the read-side view of the pool.
func (p *StakingPool) Info() (*Info, error) {
	rate, err := p.storage.rewardRate.Get()
	if err != nil {
		return nil, err
	}
	minimum, err := p.storage.minimumStake.Get()
	if err != nil {
		return nil, err
	}
	total, err := p.storage.totalStaked.Get()
	if err != nil {
		return nil, err
	}
	acc, err := p.storage.accPerShare.Get()
	if err != nil {
		return nil, err
	}
	last, err := p.storage.lastUpdate.Get()
	if err != nil {
		return nil, err
	}
	active, err := p.storage.active.Get()
	if err != nil {
		return nil, err
	}
	paused, err := p.storage.emergencyPaused.Get()
	if err != nil {
		return nil, err
	}
	participants, err := p.storage.participants.Get()
	if err != nil {
		return nil, err
	}
	return &Info{
		RewardRate:        rate,
		MinimumStake:      minimum,
		TotalStaked:       total,
		AccRewardPerShare: acc,
		LastUpdateTime:    last.Uint64(),
		Active:            active,
		EmergencyPaused:   paused,
		Participants:      participants.Uint64(),
	}, nil
}
