// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package governance

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
	reporter = vault.BytesToAddress([]byte("reporter"))
	alice    = vault.BytesToAddress([]byte("alice"))
	bob      = vault.BytesToAddress([]byte("bob"))
	carol    = vault.BytesToAddress([]byte("carol"))

	govAddr = vault.BytesToAddress([]byte("governance"))
)

func env(caller vault.Address, now uint64) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: now})
}

func newGovernance(t *testing.T) (*Governance, *params.Params) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := state.New(db)

	param := params.New(vault.BytesToAddress([]byte("params")), st)
	param.Seed(vault.KeyMaxOperators, vault.InitialMaxOperators)
	param.Seed(vault.KeyProposalThreshold, vault.InitialProposalThreshold)
	param.Seed(vault.KeyVotingWindow, vault.InitialVotingWindow)
	param.Seed(vault.KeyExecutionDelay, vault.InitialExecutionDelay)
	param.Seed(vault.KeyGracePeriod, vault.InitialGracePeriod)
	param.Seed(vault.KeyQuorumPercent, vault.InitialQuorumPercent)
	require.NoError(t, param.BindExecutor(govAddr))

	acl := accesscontrol.New(vault.BytesToAddress([]byte("acl")), st, param)
	require.NoError(t, acl.Initialize(env(admin, 1)))
	require.NoError(t, acl.AssignRole(env(admin, 1), reporter, accesscontrol.RoleOperator,
		1<<accesscontrol.PermGovern, 0))

	g := New(govAddr, st, acl, param)

	// stake-derived weights: alice 60%, bob 30%, carol 10%
	require.NoError(t, g.UpdateVotingPower(env(reporter, 1), alice, big.NewInt(6_000_000)))
	require.NoError(t, g.UpdateVotingPower(env(reporter, 1), bob, big.NewInt(3_000_000)))
	require.NoError(t, g.UpdateVotingPower(env(reporter, 1), carol, big.NewInt(1_000_000)))
	return g, param
}

// propose opens a proposal by alice at now, returning its id.
func propose(t *testing.T, g *Governance, now uint64) uint64 {
	id, err := g.CreateProposal(env(alice, now), "raise the quorum",
		vault.KeyQuorumPercent, big.NewInt(20))
	require.NoError(t, err)
	return id
}

func TestCreateProposal(t *testing.T) {
	g, _ := newGovernance(t)

	// strictly below the threshold
	require.NoError(t, g.UpdateVotingPower(env(reporter, 5), carol, big.NewInt(999_999)))
	_, err := g.CreateProposal(env(carol, 10), "nope", vault.KeyQuorumPercent, big.NewInt(1))
	assert.Error(t, err)

	// power equal to the threshold is enough
	require.NoError(t, g.UpdateVotingPower(env(reporter, 5), carol, big.NewInt(1_000_000)))
	_, err = g.CreateProposal(env(carol, 10), "at the bar", vault.KeyQuorumPercent, big.NewInt(15))
	require.NoError(t, err)

	id := propose(t, g, 10)
	assert.Equal(t, uint64(2), id)

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	require.NotNil(t, proposal)
	assert.Equal(t, StatusActive, proposal.Status, "created directly active")
	assert.Equal(t, uint64(10), proposal.VotingStart)
	assert.Equal(t, 10+vault.InitialVotingWindow.Uint64(), proposal.VotingEnd)
}

func TestVote(t *testing.T) {
	g, _ := newGovernance(t)
	id := propose(t, g, 10)

	require.NoError(t, g.Vote(env(alice, 20), id, VoteFor))
	require.NoError(t, g.Vote(env(bob, 20), id, VoteAgainst))
	require.NoError(t, g.Vote(env(carol, 20), id, VoteAbstain))

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6_000_000), proposal.ForVotes)
	assert.Equal(t, big.NewInt(3_000_000), proposal.AgainstVotes)
	assert.Equal(t, big.NewInt(1_000_000), proposal.AbstainVotes)

	record, err := g.GetVote(id, alice)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, VoteFor, record.Support)

	// no re-voting, no zero-power voters, no votes outside the window
	assert.Error(t, g.Vote(env(alice, 30), id, VoteAgainst))
	assert.Error(t, g.Vote(env(vault.BytesToAddress([]byte("stranger")), 30), id, VoteFor))
	pastEnd := 10 + vault.InitialVotingWindow.Uint64()
	assert.Error(t, g.Vote(env(bob, pastEnd), id, VoteFor))
}

func TestFinalizeQuorum(t *testing.T) {
	g, _ := newGovernance(t)
	votingEnd := 10 + vault.InitialVotingWindow.Uint64()

	// only carol votes: 10% participation meets the 10% quorum, but For
	// must strictly beat Against
	id := propose(t, g, 10)
	require.NoError(t, g.Vote(env(carol, 20), id, VoteAbstain))

	assert.Error(t, g.FinalizeProposal(env(admin, 20), id), "window still open")
	require.NoError(t, g.FinalizeProposal(env(admin, votingEnd), id))

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, proposal.Status, "quorum met but no For majority")
}

func TestFinalizeBelowQuorum(t *testing.T) {
	g, param := newGovernance(t)

	// raise the quorum bar so a lone majority voter cannot meet it
	param.Seed(vault.KeyQuorumPercent, big.NewInt(70))

	id := propose(t, g, 10)
	require.NoError(t, g.Vote(env(alice, 20), id, VoteFor))

	votingEnd := 10 + vault.InitialVotingWindow.Uint64()
	require.NoError(t, g.FinalizeProposal(env(admin, votingEnd), id))

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, proposal.Status, "60% participation under a 70% quorum")
}

func TestExecuteProposal(t *testing.T) {
	g, param := newGovernance(t)

	id := propose(t, g, 10)
	require.NoError(t, g.Vote(env(alice, 20), id, VoteFor))

	votingEnd := 10 + vault.InitialVotingWindow.Uint64()
	require.NoError(t, g.FinalizeProposal(env(admin, votingEnd), id))

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	require.Equal(t, StatusSucceeded, proposal.Status)

	opens := votingEnd + vault.InitialExecutionDelay.Uint64()
	closes := opens + vault.InitialGracePeriod.Uint64()

	// the timelock gates both ends
	assert.Error(t, g.ExecuteProposal(env(admin, opens-1), id))
	assert.Error(t, g.ExecuteProposal(env(admin, closes+1), id))

	e := env(admin, opens)
	require.NoError(t, g.ExecuteProposal(e, id))

	// the payload landed in params through the bound executor
	quorum, err := param.Get(vault.KeyQuorumPercent)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), quorum)

	// and the parameter change shows up on the call's event buffer
	var actions []string
	for _, ev := range e.Events() {
		actions = append(actions, ev.Component+":"+ev.Action)
	}
	assert.Contains(t, actions, "params:set")
	assert.Contains(t, actions, "governance:executed")

	proposal, err = g.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, proposal.Status)

	assert.Error(t, g.ExecuteProposal(env(admin, opens+1), id), "no double execution")
}

func TestCancelProposal(t *testing.T) {
	g, _ := newGovernance(t)

	id := propose(t, g, 10)
	assert.Error(t, g.CancelProposal(env(alice, 20), id), "manage permission required")
	require.NoError(t, g.CancelProposal(env(admin, 20), id))

	proposal, err := g.GetProposal(id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, proposal.Status)

	assert.Error(t, g.Vote(env(alice, 30), id, VoteFor), "cancelled accepts no votes")
	assert.Error(t, g.CancelProposal(env(admin, 40), id), "cancelled is terminal")
}

func TestUpdateVotingPower(t *testing.T) {
	g, _ := newGovernance(t)

	info, err := g.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), info.TotalVotingPower)

	// the total adjusts by the delta, both directions
	require.NoError(t, g.UpdateVotingPower(env(reporter, 10), alice, big.NewInt(2_000_000)))
	info, err = g.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(6_000_000), info.TotalVotingPower)

	require.NoError(t, g.UpdateVotingPower(env(reporter, 10), carol, big.NewInt(5_000_000)))
	info, err = g.Info()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), info.TotalVotingPower)

	assert.Error(t, g.UpdateVotingPower(env(alice, 10), alice, big.NewInt(1)), "govern permission required")

	power, err := g.VotingPower(alice)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_000_000), power)
}
