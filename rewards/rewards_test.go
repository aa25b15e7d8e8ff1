// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rewards

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/lvldb"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	admin    = vault.BytesToAddress([]byte("admin"))
	poolAddr = vault.BytesToAddress([]byte("pool"))
	nobody   = vault.BytesToAddress([]byte("nobody"))
)

func env(caller vault.Address, now uint64) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: now})
}

func newDistributor(t *testing.T) *Distributor {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := state.New(db)

	param := params.New(vault.BytesToAddress([]byte("params")), st)
	param.Seed(vault.KeyMinDistributionRate, vault.InitialMinDistributionRate)
	param.Seed(vault.KeyMaxDistributionRate, vault.InitialMaxDistributionRate)

	acl := accesscontrol.New(vault.BytesToAddress([]byte("acl")), st, param)
	require.NoError(t, acl.Initialize(env(admin, 0)))

	d := New(vault.BytesToAddress([]byte("rewards")), st, acl, param)
	require.NoError(t, d.Initialize(env(admin, 0), big.NewInt(1_000_000)))
	require.NoError(t, d.FundReserve(env(admin, 0), big.NewInt(1_000_000_000)))
	return d
}

func TestInitializeOnce(t *testing.T) {
	d := newDistributor(t)
	assert.Error(t, d.Initialize(env(admin, 10), big.NewInt(1000)))
}

func TestDistributeRewards(t *testing.T) {
	d := newDistributor(t)

	_, err := d.DistributeRewards(env(nobody, 10), poolAddr, big.NewInt(5_000_000))
	assert.Error(t, err, "distribute permission required")

	// 10s * 1e6 * 5M / 1e12 = 50 base, 100% tier below 10M
	e := env(admin, 10)
	reward, err := d.DistributeRewards(e, poolAddr, big.NewInt(5_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), reward)
	require.Len(t, e.Transfers(), 1)
	assert.Equal(t, poolAddr, e.Transfers()[0].To)
	assert.Equal(t, big.NewInt(50), e.Transfers()[0].Amount)

	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000-50), info.Reserve)
	assert.Equal(t, big.NewInt(50), info.TotalDistributed)
	assert.Equal(t, uint64(10), info.LastDistribution)

	// zero elapsed distributes nothing
	reward, err = d.DistributeRewards(env(admin, 10), poolAddr, big.NewInt(5_000_000))
	require.NoError(t, err)
	assert.Zero(t, reward.Sign())
}

func TestUtilizationBonus(t *testing.T) {
	for _, tt := range []struct {
		staked  *big.Int
		percent int64
	}{
		{big.NewInt(9_999_999), 100},
		{big.NewInt(10_000_000), 110},
		{big.NewInt(99_999_999), 110},
		{big.NewInt(100_000_000), 125},
		{big.NewInt(999_999_999), 125},
		{big.NewInt(1_000_000_000), 150},
		{big.NewInt(5_000_000_000), 150},
	} {
		assert.Equal(t, tt.percent, bonusPercent(tt.staked), "staked %v", tt.staked)
	}
}

func TestDistributeAppliesBonus(t *testing.T) {
	d := newDistributor(t)

	// 10s * 1e6 * 10M / 1e12 = 100 base, 110% tier
	reward, err := d.DistributeRewards(env(admin, 10), poolAddr, big.NewInt(10_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(110), reward)
}

func TestReserveCapsDistribution(t *testing.T) {
	d := newDistributor(t)

	// accrued reward far above the 1e9 reserve
	farFuture := 100 * vault.YearSeconds
	reward, err := d.DistributeRewards(env(admin, farFuture), poolAddr, big.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000_000), reward)

	info, err := d.Info()
	require.NoError(t, err)
	assert.Zero(t, info.Reserve.Sign())

	// an empty reserve distributes nothing
	reward, err = d.DistributeRewards(env(admin, farFuture+10), poolAddr, big.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.Zero(t, reward.Sign())
}

func TestPauseResume(t *testing.T) {
	d := newDistributor(t)

	require.NoError(t, d.PauseDistribution(env(admin, 10)))
	_, err := d.DistributeRewards(env(admin, 20), poolAddr, big.NewInt(5_000_000))
	assert.Error(t, err)

	// resuming restarts the clock: the paused interval is not credited
	require.NoError(t, d.ResumeDistribution(env(admin, 100)))
	reward, err := d.DistributeRewards(env(admin, 110), poolAddr, big.NewInt(5_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(50), reward, "only [100,110) accrues")
}

func TestUpdateDistributionRate(t *testing.T) {
	d := newDistributor(t)

	assert.Error(t, d.UpdateDistributionRate(env(admin, 10), big.NewInt(0)), "below minimum")
	over := new(big.Int).Add(vault.InitialMaxDistributionRate, big.NewInt(1))
	assert.Error(t, d.UpdateDistributionRate(env(admin, 10), over), "above maximum")

	require.NoError(t, d.UpdateDistributionRate(env(admin, 10), big.NewInt(2000)))
	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2000), info.Rate)
}

func TestCalculateOptimalRate(t *testing.T) {
	d := newDistributor(t)

	// 5% APY: 5*1e12/yearSeconds/100
	expected := new(big.Int).Mul(big.NewInt(5), vault.RewardScale)
	expected.Div(expected, new(big.Int).SetUint64(vault.YearSeconds))
	expected.Div(expected, big.NewInt(100))

	rate, err := d.CalculateOptimalRate(big.NewInt(5_000_000), big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, expected, rate)

	// absurd target clamps to the maximum
	huge := new(big.Int).Mul(big.NewInt(1e18), big.NewInt(1e9))
	rate, err = d.CalculateOptimalRate(big.NewInt(5_000_000), huge)
	require.NoError(t, err)
	assert.Equal(t, vault.InitialMaxDistributionRate, rate)

	// tiny target clamps to the minimum
	rate, err = d.CalculateOptimalRate(big.NewInt(5_000_000), big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, vault.InitialMinDistributionRate, rate)

	_, err = d.CalculateOptimalRate(big.NewInt(0), big.NewInt(5))
	assert.Error(t, err)
}

func TestWithdrawExcessRewards(t *testing.T) {
	d := newDistributor(t)

	assert.Error(t, d.WithdrawExcessRewards(env(admin, 10), big.NewInt(1_000_000_001)))

	e := env(admin, 10)
	require.NoError(t, d.WithdrawExcessRewards(e, big.NewInt(400_000_000)))
	require.Len(t, e.Transfers(), 1)
	assert.Equal(t, admin, e.Transfers()[0].To)

	info, err := d.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(600_000_000), info.Reserve)
}
