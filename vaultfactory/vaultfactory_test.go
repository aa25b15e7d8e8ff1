// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vaultfactory

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
	admin   = vault.BytesToAddress([]byte("admin"))
	creator = vault.BytesToAddress([]byte("creator"))
	nobody  = vault.BytesToAddress([]byte("nobody"))

	assetID = vault.Blake2b([]byte("asset"))
	staking = vault.BytesToAddress([]byte("staking"))
	rewards = vault.BytesToAddress([]byte("rewards"))
)

func env(caller vault.Address, now uint64) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: now})
}

func newFactory(t *testing.T) *Factory {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := state.New(db)

	param := params.New(vault.BytesToAddress([]byte("params")), st)
	param.Seed(vault.KeyMaxPoolsPerUser, vault.InitialMaxPoolsPerUser)
	param.Seed(vault.KeyMinInitialFunding, vault.InitialMinInitialFunding)

	acl := accesscontrol.New(vault.BytesToAddress([]byte("acl")), st, param)
	require.NoError(t, acl.Initialize(env(admin, 1)))

	f := New(vault.BytesToAddress([]byte("factory")), st, acl, param)
	require.NoError(t, f.Initialize(env(admin, 1)))
	return f
}

func createPool(t *testing.T, f *Factory, by vault.Address, now uint64) uint64 {
	id, err := f.CreatePool(env(by, now), assetID, staking, rewards,
		big.NewInt(1_000_000), big.NewInt(0), vault.InitialMinInitialFunding)
	require.NoError(t, err)
	return id
}

func TestCreatePool(t *testing.T) {
	f := newFactory(t)

	// funding below the minimum
	_, err := f.CreatePool(env(creator, 10), assetID, staking, rewards,
		big.NewInt(1), big.NewInt(0), big.NewInt(1))
	assert.Error(t, err)

	id := createPool(t, f, creator, 10)
	assert.Equal(t, uint64(1), id)

	pool, err := f.GetPool(id)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Equal(t, creator, pool.Creator)
	assert.Equal(t, StatusActive, pool.Status)
	assert.Equal(t, big.NewInt(0), pool.TotalStaked)

	stats, err := f.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalPools)
	assert.Equal(t, uint64(1), stats.ActivePools)
}

func TestCreatePoolCeiling(t *testing.T) {
	f := newFactory(t)

	max := vault.InitialMaxPoolsPerUser.Uint64()
	for range max {
		createPool(t, f, creator, 10)
	}
	_, err := f.CreatePool(env(creator, 10), assetID, staking, rewards,
		big.NewInt(1), big.NewInt(0), vault.InitialMinInitialFunding)
	assert.Error(t, err, "per-creator ceiling")

	// another creator still may
	createPool(t, f, nobody, 10)
}

func TestCreatePoolGates(t *testing.T) {
	f := newFactory(t)

	require.NoError(t, f.SetFactoryActive(env(admin, 10), false))
	_, err := f.CreatePool(env(creator, 10), assetID, staking, rewards,
		big.NewInt(1), big.NewInt(0), vault.InitialMinInitialFunding)
	assert.Error(t, err)
	require.NoError(t, f.SetFactoryActive(env(admin, 10), true))

	require.NoError(t, f.SetFactoryPaused(env(admin, 10), true))
	_, err = f.CreatePool(env(creator, 10), assetID, staking, rewards,
		big.NewInt(1), big.NewInt(0), vault.InitialMinInitialFunding)
	assert.Error(t, err)
	require.NoError(t, f.SetFactoryPaused(env(admin, 10), false))

	createPool(t, f, creator, 10)
}

func TestStatusTransitionsAdjustTVL(t *testing.T) {
	f := newFactory(t)

	id := createPool(t, f, creator, 10)
	require.NoError(t, f.UpdatePoolMetrics(env(creator, 20), id,
		big.NewInt(5_000_000), big.NewInt(0), 3, big.NewInt(0)))

	tvl, err := f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000), tvl)

	// leaving Active removes the pool's stake from TVL
	require.NoError(t, f.UpdatePoolStatus(env(admin, 30), id, StatusPaused))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Zero(t, tvl.Sign())

	stats, err := f.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.ActivePools)

	// re-entering Active adds it back
	require.NoError(t, f.UpdatePoolStatus(env(admin, 40), id, StatusActive))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5_000_000), tvl)

	// non-Active transitions leave TVL alone
	require.NoError(t, f.UpdatePoolStatus(env(admin, 50), id, StatusPaused))
	require.NoError(t, f.UpdatePoolStatus(env(admin, 60), id, StatusDeprecated))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Zero(t, tvl.Sign())

	assert.Error(t, f.UpdatePoolStatus(env(admin, 70), id, StatusDeprecated), "unchanged status")
	assert.Error(t, f.UpdatePoolStatus(env(creator, 70), id, StatusActive), "manage permission required")
}

func TestMetricsDeltaAdjustsTVL(t *testing.T) {
	f := newFactory(t)

	first := createPool(t, f, creator, 10)
	second := createPool(t, f, creator, 10)

	require.NoError(t, f.UpdatePoolMetrics(env(creator, 20), first,
		big.NewInt(3_000_000), big.NewInt(100), 2, big.NewInt(500)))
	require.NoError(t, f.UpdatePoolMetrics(env(creator, 20), second,
		big.NewInt(7_000_000), big.NewInt(0), 5, big.NewInt(0)))

	tvl, err := f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), tvl)

	// shrinking stake subtracts the delta
	require.NoError(t, f.UpdatePoolMetrics(env(creator, 30), first,
		big.NewInt(1_000_000), big.NewInt(100), 1, big.NewInt(500)))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(8_000_000), tvl)

	// TVL always equals the sum over Active pools
	require.NoError(t, f.UpdatePoolStatus(env(admin, 40), second, StatusEmergency))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), tvl)

	// pushes to a non-Active pool change the record, not the TVL
	require.NoError(t, f.UpdatePoolMetrics(env(creator, 50), second,
		big.NewInt(9_000_000), big.NewInt(0), 5, big.NewInt(0)))
	tvl, err = f.TotalTVL()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1_000_000), tvl)

	// reporter must be the creator or a manage holder
	assert.Error(t, f.UpdatePoolMetrics(env(nobody, 60), first,
		big.NewInt(1), big.NewInt(0), 1, big.NewInt(0)))
	require.NoError(t, f.UpdatePoolMetrics(env(admin, 60), first,
		big.NewInt(2_000_000), big.NewInt(100), 1, big.NewInt(500)))
}

func TestTemplates(t *testing.T) {
	f := newFactory(t)

	template := &Template{
		RewardRate: big.NewInt(1000),
		MinStake:   big.NewInt(1_000_000),
		MaxStake:   big.NewInt(0),
	}
	assert.Error(t, f.AddPoolTemplate(env(creator, 10), "standard", template), "manage permission required")
	require.NoError(t, f.AddPoolTemplate(env(admin, 10), "standard", template))

	got, err := f.GetTemplate("standard")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, big.NewInt(1000), got.RewardRate)

	assert.Error(t, f.SetDefaultTemplate(env(admin, 10), "missing"))
	require.NoError(t, f.SetDefaultTemplate(env(admin, 10), "standard"))

	name, err := f.DefaultTemplate()
	require.NoError(t, err)
	assert.Equal(t, "standard", name)
}
