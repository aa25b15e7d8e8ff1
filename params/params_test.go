// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakevault/core/lvldb"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

func newTestParams(t *testing.T) *Params {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(vault.BytesToAddress([]byte("params")), state.New(db))
}

func env(caller vault.Address) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: 1000})
}

func TestSetGet(t *testing.T) {
	p := newTestParams(t)
	anyone := vault.BytesToAddress([]byte("anyone"))

	// unbound executor, anyone may seed via Set
	require.NoError(t, p.Set(env(anyone), vault.KeyQuorumPercent, big.NewInt(25)))

	v, err := p.Get(vault.KeyQuorumPercent)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25), v)

	// unset key reads zero
	v, err = p.Get(vault.KeyVotingWindow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.Int64())
}

func TestExecutorGating(t *testing.T) {
	p := newTestParams(t)
	executor := vault.BytesToAddress([]byte("executor"))
	anyone := vault.BytesToAddress([]byte("anyone"))

	require.NoError(t, p.BindExecutor(executor))
	assert.Error(t, p.BindExecutor(executor), "rebinding must fail")

	err := p.Set(env(anyone), vault.KeyQuorumPercent, big.NewInt(25))
	assert.Error(t, err)

	require.NoError(t, p.Set(env(executor), vault.KeyQuorumPercent, big.NewInt(25)))

	v, err := p.Get(vault.KeyQuorumPercent)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(25), v)
}

func TestSeedBypassesGating(t *testing.T) {
	p := newTestParams(t)
	require.NoError(t, p.BindExecutor(vault.BytesToAddress([]byte("executor"))))

	p.Seed(vault.KeyMultiSigThreshold, vault.InitialMultiSigThreshold)

	v, err := p.Get(vault.KeyMultiSigThreshold)
	require.NoError(t, err)
	assert.Equal(t, vault.InitialMultiSigThreshold, v)
}
