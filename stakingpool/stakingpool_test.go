// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakingpool

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/emergency"
	"github.com/stakevault/core/lvldb"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	admin = vault.BytesToAddress([]byte("admin"))
	alice = vault.BytesToAddress([]byte("alice"))
	bob   = vault.BytesToAddress([]byte("bob"))
)

func env(caller vault.Address, now uint64) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: now})
}

// paidTo sums the transfers to user buffered in env.
func paidTo(env *xenv.Environment, user vault.Address) *big.Int {
	total := new(big.Int)
	for _, transfer := range env.Transfers() {
		if transfer.To == user {
			total.Add(total, transfer.Amount)
		}
	}
	return total
}

func newPool(t *testing.T) (*StakingPool, *emergency.Emergency) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := state.New(db)

	param := params.New(vault.BytesToAddress([]byte("params")), st)
	param.Seed(vault.KeyMaxAdmins, vault.InitialMaxAdmins)
	param.Seed(vault.KeyEmergencyCooldown, vault.InitialEmergencyCooldown)
	param.Seed(vault.KeyDailyVolumeCap, vault.InitialDailyVolumeCap)
	param.Seed(vault.KeyLargeWithdrawal, vault.InitialLargeWithdrawal)

	acl := accesscontrol.New(vault.BytesToAddress([]byte("acl")), st, param)
	require.NoError(t, acl.Initialize(env(admin, 0)))

	guard := emergency.New(vault.BytesToAddress([]byte("emergency")), st, param, acl)
	pool := New(vault.BytesToAddress([]byte("pool")), st, acl, guard)
	require.NoError(t, pool.Initialize(env(admin, 0), big.NewInt(1000), big.NewInt(1_000_000)))
	return pool, guard
}

func TestInitializeOnce(t *testing.T) {
	pool, _ := newPool(t)
	assert.Error(t, pool.Initialize(env(admin, 10), big.NewInt(1), big.NewInt(1)))
}

func TestStakeValidation(t *testing.T) {
	pool, _ := newPool(t)

	// below minimum
	assert.Error(t, pool.Stake(env(alice, 0), big.NewInt(999_999)))

	require.NoError(t, pool.SetActive(env(admin, 0), false))
	assert.Error(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))
	require.NoError(t, pool.SetActive(env(admin, 0), true))

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))
}

func TestRewardAccrual(t *testing.T) {
	pool, _ := newPool(t)

	// rate 1000/s, single staker of 5M units
	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(5_000_000)))

	reward, err := pool.GetPendingRewards(alice, 10)
	require.NoError(t, err)
	// accumulator advances by 10*1000*scale/5M, position earns it all back
	assert.Equal(t, big.NewInt(10_000), reward)

	// withdrawal at t=10 settles the reward and pays out principal
	e := env(alice, 10)
	require.NoError(t, pool.Withdraw(e, big.NewInt(2_000_000)))
	assert.Equal(t, big.NewInt(10_000+2_000_000), paidTo(e, alice))

	info, err := pool.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3_000_000), info.TotalStaked)

	position, err := pool.Position(alice, 10)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3_000_000), position.Principal)
	assert.Zero(t, position.Pending.Sign(), "settled right after withdrawal")
}

func TestAccumulatorSplitsByStake(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))
	require.NoError(t, pool.Stake(env(bob, 0), big.NewInt(3_000_000)))

	// 100s at 1000/s = 100_000 total, split 1:3
	aliceReward, err := pool.GetPendingRewards(alice, 100)
	require.NoError(t, err)
	bobReward, err := pool.GetPendingRewards(bob, 100)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25_000), aliceReward)
	assert.Equal(t, big.NewInt(75_000), bobReward)
}

func TestStakeSettlesBeforeIncrease(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(5_000_000)))

	// topping up at t=10 pays the accrued 10_000 first
	e := env(alice, 10)
	require.NoError(t, pool.Stake(e, big.NewInt(5_000_000)))
	assert.Equal(t, big.NewInt(10_000), paidTo(e, alice))

	reward, err := pool.GetPendingRewards(alice, 10)
	require.NoError(t, err)
	assert.Zero(t, reward.Sign())
}

func TestClaimRewards(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(5_000_000)))

	e := env(alice, 10)
	reward, err := pool.ClaimRewards(e)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000), reward)
	assert.Equal(t, big.NewInt(10_000), paidTo(e, alice))

	// principal untouched, pending reset
	position, err := pool.Position(alice, 10)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000), position.Principal)
	assert.Zero(t, position.Pending.Sign())
}

func TestWithdrawBounds(t *testing.T) {
	pool, _ := newPool(t)

	assert.Error(t, pool.Withdraw(env(alice, 0), big.NewInt(1)), "no position")

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))
	assert.Error(t, pool.Withdraw(env(alice, 10), big.NewInt(1_000_001)))
	assert.Error(t, pool.Withdraw(env(alice, 10), big.NewInt(0)))
}

func TestFullWithdrawalDeletesPosition(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))
	require.NoError(t, pool.Withdraw(env(alice, 10), big.NewInt(1_000_000)))

	position, err := pool.Position(alice, 10)
	require.NoError(t, err)
	assert.Nil(t, position, "zero principal leaves no dust entry")

	info, err := pool.Info()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Participants)
	assert.Zero(t, info.TotalStaked.Sign())
}

func TestEmergencyWithdraw(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(5_000_000)))
	require.NoError(t, pool.SetEmergencyPaused(env(admin, 5), true))

	// normal paths are blocked
	assert.Error(t, pool.Withdraw(env(alice, 10), big.NewInt(1)))
	_, err := pool.ClaimRewards(env(alice, 10))
	assert.Error(t, err)

	// the escape hatch pays principal only, forfeiting accrued reward
	e := env(alice, 10)
	principal, err := pool.EmergencyWithdraw(e)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000), principal)
	assert.Equal(t, big.NewInt(5_000_000), paidTo(e, alice))

	position, err := pool.Position(alice, 10)
	require.NoError(t, err)
	assert.Nil(t, position)
}

func TestEmergencyPolicyGatesDeposits(t *testing.T) {
	pool, guard := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(1_000_000)))

	// a Low incident blocks deposits but not withdrawals
	_, err := guard.TriggerEmergency(env(admin, 5), emergency.LevelLow, "minor")
	require.NoError(t, err)

	assert.Error(t, pool.Stake(env(alice, 10), big.NewInt(1_000_000)))
	require.NoError(t, pool.Withdraw(env(alice, 10), big.NewInt(500_000)))
}

func TestSetRewardRateSettlesFirst(t *testing.T) {
	pool, _ := newPool(t)

	require.NoError(t, pool.Stake(env(alice, 0), big.NewInt(5_000_000)))

	// old rate covers [0,10), new rate covers [10,20)
	require.NoError(t, pool.SetRewardRate(env(admin, 10), big.NewInt(2000)))

	reward, err := pool.GetPendingRewards(alice, 20)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000+20_000), reward)

	assert.Error(t, pool.SetRewardRate(env(alice, 20), big.NewInt(1)), "manage permission required")
}

func TestPrincipalSumMatchesTotalStaked(t *testing.T) {
	pool, _ := newPool(t)

	type move struct {
		user     vault.Address
		stake    *big.Int
		withdraw *big.Int
		now      uint64
	}
	moves := []move{
		{alice, big.NewInt(2_000_000), nil, 0},
		{bob, big.NewInt(7_000_000), nil, 3},
		{alice, nil, big.NewInt(1_500_000), 7},
		{alice, big.NewInt(4_000_000), nil, 11},
		{bob, nil, big.NewInt(7_000_000), 13},
		{alice, nil, big.NewInt(4_500_000), 20},
	}

	for _, m := range moves {
		if m.stake != nil {
			require.NoError(t, pool.Stake(env(m.user, m.now), m.stake))
		} else {
			require.NoError(t, pool.Withdraw(env(m.user, m.now), m.withdraw))
		}

		sum := new(big.Int)
		for _, user := range []vault.Address{alice, bob} {
			position, err := pool.Position(user, m.now)
			require.NoError(t, err)
			if position != nil {
				sum.Add(sum, position.Principal)
			}
		}
		info, err := pool.Info()
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Cmp(info.TotalStaked))
	}
}

func TestAccumulatorNonDecreasing(t *testing.T) {
	pool, _ := newPool(t)

	prev := new(big.Int)
	step := func(now uint64, fn func() error) {
		require.NoError(t, fn())
		info, err := pool.Info()
		require.NoError(t, err)
		assert.True(t, info.AccRewardPerShare.Cmp(prev) >= 0, "accumulator regressed at t=%d", now)
		prev = info.AccRewardPerShare
	}

	step(0, func() error { return pool.Stake(env(alice, 0), big.NewInt(1_000_000)) })
	step(5, func() error { return pool.Stake(env(bob, 5), big.NewInt(9_000_000)) })
	step(9, func() error { return pool.Withdraw(env(alice, 9), big.NewInt(1_000_000)) })
	step(15, func() error { _, err := pool.ClaimRewards(env(bob, 15)); return err })
	step(16, func() error { return pool.UpdatePool(env(bob, 16)) })
}
