// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/emergency"
	"github.com/stakevault/core/governance"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/rewards"
	"github.com/stakevault/core/stakingpool"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/vaultfactory"
	"github.com/stakevault/core/xenv"
)

var logger = log.WithContext("pkg", "runtime")

// Well-known component addresses.
var (
	ParamsAddress        = vault.BytesToAddress([]byte("prototype-params"))
	AccessControlAddress = vault.BytesToAddress([]byte("prototype-accesscontrol"))
	EmergencyAddress     = vault.BytesToAddress([]byte("prototype-emergency"))
	StakingAddress       = vault.BytesToAddress([]byte("prototype-stakingpool"))
	RewardsAddress       = vault.BytesToAddress([]byte("prototype-rewards"))
	FactoryAddress       = vault.BytesToAddress([]byte("prototype-vaultfactory"))
	GovernanceAddress    = vault.BytesToAddress([]byte("prototype-governance"))
)

// Runtime binds the component set to well-known addresses over a single
// state and provides the per-call atomicity boundary: each call commits all
// of its writes together with its emitted transfers and events, or none of
// them.
type Runtime struct {
	state *state.State

	Params        *params.Params
	AccessControl *accesscontrol.AccessControl
	Emergency     *emergency.Emergency
	Staking       *stakingpool.StakingPool
	Rewards       *rewards.Distributor
	Factory       *vaultfactory.Factory
	Governance    *governance.Governance
}

// New binds the component set over st.
func New(st *state.State) *Runtime {
	prms := params.New(ParamsAddress, st)
	acl := accesscontrol.New(AccessControlAddress, st, prms)
	guard := emergency.New(EmergencyAddress, st, prms, acl)
	return &Runtime{
		state:         st,
		Params:        prms,
		AccessControl: acl,
		Emergency:     guard,
		Staking:       stakingpool.New(StakingAddress, st, acl, guard),
		Rewards:       rewards.New(RewardsAddress, st, acl, prms),
		Factory:       vaultfactory.New(FactoryAddress, st, acl, prms),
		Governance:    governance.New(GovernanceAddress, st, acl, prms),
	}
}

// parameterSeeds holds the genesis value of every tunable.
var parameterSeeds = map[vault.Bytes32]*big.Int{
	vault.KeyMaxAdmins:            vault.InitialMaxAdmins,
	vault.KeyMaxOperators:         vault.InitialMaxOperators,
	vault.KeyMultiSigThreshold:    vault.InitialMultiSigThreshold,
	vault.KeyAdminSessionDuration: vault.InitialAdminSessionDuration,
	vault.KeyOpSessionDuration:    vault.InitialOpSessionDuration,
	vault.KeyUserSessionDuration:  vault.InitialUserSessionDuration,
	vault.KeyEmergencyCooldown:    vault.InitialEmergencyCooldown,
	vault.KeyAutoResolveTime:      vault.InitialAutoResolveTime,
	vault.KeyMaxEmergencyDuration: vault.InitialMaxEmergencyDuration,
	vault.KeyDailyVolumeCap:       vault.InitialDailyVolumeCap,
	vault.KeyLargeWithdrawal:      vault.InitialLargeWithdrawal,
	vault.KeyRecoveryApprovals:    vault.InitialRecoveryApprovals,
	vault.KeyMinDistributionRate:  vault.InitialMinDistributionRate,
	vault.KeyMaxDistributionRate:  vault.InitialMaxDistributionRate,
	vault.KeyMaxPoolsPerUser:      vault.InitialMaxPoolsPerUser,
	vault.KeyMinInitialFunding:    vault.InitialMinInitialFunding,
	vault.KeyProposalThreshold:    vault.InitialProposalThreshold,
	vault.KeyVotingWindow:         vault.InitialVotingWindow,
	vault.KeyExecutionDelay:       vault.InitialExecutionDelay,
	vault.KeyGracePeriod:          vault.InitialGracePeriod,
	vault.KeyQuorumPercent:        vault.InitialQuorumPercent,
}

// Bootstrap runs genesis: seeds every tunable (overrides win), binds the
// governance component as the parameter executor, makes the caller the super
// admin, grants the staking component its reporter permissions, and brings
// up the pool, distributor and factory. It fails when run twice.
//
// rewardRate is the pool-wide accrual in tokens per second; distributionRate
// is the per-token reserve draw scaled by vault.RewardScale.
func (r *Runtime) Bootstrap(env *xenv.Environment, rewardRate, distributionRate, minimumStake *big.Int, overrides map[vault.Bytes32]*big.Int) error {
	executor, err := r.Params.Executor()
	if err != nil {
		return err
	}
	if !executor.IsZero() {
		return errors.New("already bootstrapped")
	}

	for key, value := range parameterSeeds {
		if override, ok := overrides[key]; ok {
			value = override
		}
		r.Params.Seed(key, value)
	}
	if err := r.Params.BindExecutor(GovernanceAddress); err != nil {
		return err
	}

	if err := r.AccessControl.Initialize(env); err != nil {
		return err
	}
	// the staking component reports voting power and pool metrics, and
	// draws distributions from the reserve
	reporterPerms := uint64(1)<<accesscontrol.PermGovern | uint64(1)<<accesscontrol.PermDistribute
	if err := r.AccessControl.AssignRole(env, StakingAddress, accesscontrol.RoleOperator, reporterPerms, 0); err != nil {
		return err
	}

	if err := r.Staking.Initialize(env, rewardRate, minimumStake); err != nil {
		return err
	}
	if err := r.Rewards.Initialize(env, distributionRate); err != nil {
		return err
	}
	if err := r.Factory.Initialize(env); err != nil {
		return err
	}

	logger.Info("bootstrapped", "superAdmin", env.Caller())
	return nil
}

// Call runs fn as caller at now inside a state checkpoint. On error every
// write is reverted and the environment's transfers and events are
// discarded; on success the state commits and the environment is returned
// for the host to apply.
func (r *Runtime) Call(caller vault.Address, now uint64, fn func(*xenv.Environment) error) (*xenv.Environment, error) {
	env := xenv.New(xenv.CallContext{Caller: caller, Time: now})
	checkpoint := r.state.NewCheckpoint()

	if err := fn(env); err != nil {
		r.state.RevertTo(checkpoint)
		logger.Debug("call reverted", "caller", caller, "error", err)
		return nil, err
	}
	if err := r.state.Commit(); err != nil {
		return nil, err
	}
	return env, nil
}

// ErrBreakerRejected reports a withdrawal bounced by the circuit breaker.
// The incident the breaker raised is already committed when it is returned.
var ErrBreakerRejected = errors.New("withdrawal rejected by circuit breaker")

// Stake routes a deposit through the pool and reflects the new position as
// voting power.
func (r *Runtime) Stake(caller vault.Address, now uint64, amount *big.Int) (*xenv.Environment, error) {
	return r.Call(caller, now, func(env *xenv.Environment) error {
		if err := r.Staking.Stake(env, amount); err != nil {
			return err
		}
		return r.syncVotingPower(env)
	})
}

// Withdraw routes a withdrawal through the circuit breaker and the pool,
// then reflects the shrunken position as voting power. The breaker runs in
// its own call so a raised incident outlives a rejected withdrawal.
func (r *Runtime) Withdraw(caller vault.Address, now uint64, amount *big.Int) (*xenv.Environment, error) {
	var admitted bool
	if _, err := r.Call(caller, now, func(env *xenv.Environment) error {
		var err error
		admitted, err = r.Emergency.CheckCircuitBreaker(env, amount)
		return err
	}); err != nil {
		return nil, err
	}
	if !admitted {
		return nil, ErrBreakerRejected
	}
	return r.Call(caller, now, func(env *xenv.Environment) error {
		if err := r.Staking.Withdraw(env, amount); err != nil {
			return err
		}
		return r.syncVotingPower(env)
	})
}

// EmergencyWithdraw routes the escape hatch and clears the caller's voting
// power. The returned environment carries the principal refund transfer.
func (r *Runtime) EmergencyWithdraw(caller vault.Address, now uint64) (*xenv.Environment, error) {
	return r.Call(caller, now, func(env *xenv.Environment) error {
		if _, err := r.Staking.EmergencyWithdraw(env); err != nil {
			return err
		}
		return r.syncVotingPower(env)
	})
}

// DistributeToPool draws an on-demand distribution for the staking pool from
// the reserve, acting as the staking component.
func (r *Runtime) DistributeToPool(now uint64) (*xenv.Environment, error) {
	return r.Call(StakingAddress, now, func(env *xenv.Environment) error {
		info, err := r.Staking.Info()
		if err != nil {
			return err
		}
		_, err = r.Rewards.DistributeRewards(env, StakingAddress, info.TotalStaked)
		return err
	})
}

// RegisterStakingPool records the bound staking pool in the factory
// registry. The record is created by the staking component itself so that
// SyncPoolMetrics may push metrics to it later.
func (r *Runtime) RegisterStakingPool(now uint64, assetID vault.Bytes32, initialFunding *big.Int) (uint64, error) {
	var id uint64
	_, err := r.Call(StakingAddress, now, func(env *xenv.Environment) error {
		info, err := r.Staking.Info()
		if err != nil {
			return err
		}
		id, err = r.Factory.CreatePool(env, assetID, StakingAddress, RewardsAddress,
			info.MinimumStake, new(big.Int), initialFunding)
		return err
	})
	return id, err
}

// SyncPoolMetrics pushes the staking pool's live figures into factory
// registry record id, acting as the staking component.
func (r *Runtime) SyncPoolMetrics(now uint64, id uint64) (*xenv.Environment, error) {
	return r.Call(StakingAddress, now, func(env *xenv.Environment) error {
		poolInfo, err := r.Staking.Info()
		if err != nil {
			return err
		}
		distInfo, err := r.Rewards.Info()
		if err != nil {
			return err
		}
		apy := annualizedPercent(poolInfo.RewardRate, poolInfo.TotalStaked)
		return r.Factory.UpdatePoolMetrics(env, id, poolInfo.TotalStaked,
			distInfo.TotalDistributed, poolInfo.Participants, apy)
	})
}

// syncVotingPower pushes the caller's principal into governance weight,
// acting as the staking component.
func (r *Runtime) syncVotingPower(env *xenv.Environment) error {
	position, err := r.Staking.Position(env.Caller(), env.Now())
	if err != nil {
		return err
	}
	power := new(big.Int)
	if position != nil {
		power = position.Principal
	}
	return r.Governance.UpdateVotingPower(env.WithCaller(StakingAddress), env.Caller(), power)
}

// annualizedPercent converts the pool-wide tokens-per-second rate into a
// yearly percentage of the staked total. Zero stake yields zero.
func annualizedPercent(rate, totalStaked *big.Int) *big.Int {
	if totalStaked.Sign() == 0 {
		return new(big.Int)
	}
	apy := new(big.Int).Mul(rate, new(big.Int).SetUint64(vault.YearSeconds))
	apy.Mul(apy, big.NewInt(100))
	return apy.Div(apy, totalStaked)
}
