// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package governance

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
	logger      = log.WithContext("pkg", "governance")
	metricVotes = metrics.Counter("governance_votes_total")
)

var (
	slotProposals       = slot.NameToSlot("proposals")
	slotProposalCounter = slot.NameToSlot("proposal-counter")
	slotVotes           = slot.NameToSlot("votes")
	slotVotingPower     = slot.NameToSlot("voting-power")
	slotTotalPower      = slot.NameToSlot("total-voting-power")
)

// Governance runs the proposal lifecycle: threshold-gated creation, windowed
// voting, quorum finalization and timelocked execution of parameter changes.
// Executing a proposal drives params.Set through the bound executor, which is
// this component's own address.
type Governance struct {
	addr vault.Address
	acl  *accesscontrol.AccessControl
	prms *params.Params

	proposals       *slot.Mapping[slot.U64, *Proposal]
	proposalCounter *slot.Counter
	votes           *slot.Mapping[voteKey, *VoteRecord]
	votingPower     *slot.Mapping[vault.Address, *big.Int]
	totalPower      *slot.Uint256
}

// New create a new instance.
func New(addr vault.Address, st *state.State, acl *accesscontrol.AccessControl, prms *params.Params) *Governance {
	ctx := slot.NewContext(addr, st)
	return &Governance{
		addr:            addr,
		acl:             acl,
		prms:            prms,
		proposals:       slot.NewMapping[slot.U64, *Proposal](ctx, slotProposals),
		proposalCounter: slot.NewCounter(ctx, slotProposalCounter),
		votes:           slot.NewMapping[voteKey, *VoteRecord](ctx, slotVotes),
		votingPower:     slot.NewMapping[vault.Address, *big.Int](ctx, slotVotingPower),
		totalPower:      slot.NewUint256(ctx, slotTotalPower),
	}
}

func (g *Governance) requirePermission(env *xenv.Environment, perm accesscontrol.Permission) error {
	ok, err := g.acl.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

func (g *Governance) getProposal(id uint64) (*Proposal, error) {
	p, err := g.proposals.Get(slot.U64(id))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get proposal")
	}
	return p, nil
}

func (g *Governance) setProposal(id uint64, proposal *Proposal) error {
	if err := g.proposals.Set(slot.U64(id), proposal); err != nil {
		return errors.Wrap(err, "failed to set proposal")
	}
	return nil
}

// CreateProposal opens a proposal, immediately Active with a fixed voting
// window. The proposer's voting power must meet the configured threshold.
func (g *Governance) CreateProposal(env *xenv.Environment, description string, paramKey vault.Bytes32, paramValue *big.Int) (uint64, error) {
	logger.Debug("creating proposal", "proposer", env.Caller())

	power, err := g.votingPower.Get(env.Caller())
	if err != nil {
		return 0, err
	}
	threshold, err := g.prms.Get(vault.KeyProposalThreshold)
	if err != nil {
		return 0, err
	}
	if power == nil || power.Cmp(threshold) < 0 {
		return 0, errors.New("voting power below proposal threshold")
	}
	window, err := g.prms.GetUint64(vault.KeyVotingWindow)
	if err != nil {
		return 0, err
	}

	id, err := g.proposalCounter.Next()
	if err != nil {
		return 0, err
	}
	proposal := &Proposal{
		Proposer:     env.Caller(),
		Description:  description,
		ParamKey:     paramKey,
		ParamValue:   paramValue,
		CreatedAt:    env.Now(),
		VotingStart:  env.Now(),
		VotingEnd:    env.Now() + window,
		ForVotes:     new(big.Int),
		AgainstVotes: new(big.Int),
		AbstainVotes: new(big.Int),
		Status:       StatusActive,
	}
	if err := g.setProposal(id, proposal); err != nil {
		return 0, err
	}

	logger.Info("proposal created", "id", id, "proposer", env.Caller(), "votingEnd", proposal.VotingEnd)
	env.Emit("governance", "proposal-created", map[string]string{
		"id":       fmt.Sprintf("%d", id),
		"proposer": env.Caller().String(),
	})
	return id, nil
}

// Vote casts the caller's full voting power on an Active proposal, once,
// within the voting window.
func (g *Governance) Vote(env *xenv.Environment, id uint64, support Support) error {
	logger.Debug("voting", "id", id, "voter", env.Caller(), "support", support)

	if support > VoteAbstain {
		return errors.New("invalid ballot choice")
	}
	proposal, err := g.getProposal(id)
	if err != nil {
		return err
	}
	if proposal.IsEmpty() {
		return errors.New("no such proposal")
	}
	if proposal.Status != StatusActive {
		return errors.New("proposal is not active")
	}
	if env.Now() < proposal.VotingStart || env.Now() >= proposal.VotingEnd {
		return errors.New("outside the voting window")
	}

	power, err := g.votingPower.Get(env.Caller())
	if err != nil {
		return err
	}
	if power == nil || power.Sign() == 0 {
		return errors.New("no voting power")
	}

	key := voteKey{id: id, voter: env.Caller()}
	prior, err := g.votes.Get(key)
	if err != nil {
		return errors.Wrap(err, "failed to get vote record")
	}
	if !prior.IsEmpty() {
		return errors.New("already voted")
	}

	switch support {
	case VoteFor:
		proposal.ForVotes = new(big.Int).Add(proposal.ForVotes, power)
	case VoteAgainst:
		proposal.AgainstVotes = new(big.Int).Add(proposal.AgainstVotes, power)
	default:
		proposal.AbstainVotes = new(big.Int).Add(proposal.AbstainVotes, power)
	}
	if err := g.setProposal(id, proposal); err != nil {
		return err
	}
	record := &VoteRecord{Support: support, Power: power, VotedAt: env.Now()}
	if err := g.votes.Set(key, record); err != nil {
		return errors.Wrap(err, "failed to set vote record")
	}

	logger.Info("vote cast", "id", id, "voter", env.Caller(), "support", support, "power", power)
	env.Emit("governance", "voted", map[string]string{
		"id":      fmt.Sprintf("%d", id),
		"voter":   env.Caller().String(),
		"support": fmt.Sprintf("%d", support),
		"power":   power.String(),
	})
	metricVotes.Add(1)
	return nil
}

// FinalizeProposal tallies an Active proposal after its window closed.
// Succeeded requires quorum and a strict For majority over Against.
func (g *Governance) FinalizeProposal(env *xenv.Environment, id uint64) error {
	logger.Debug("finalizing proposal", "id", id)

	proposal, err := g.getProposal(id)
	if err != nil {
		return err
	}
	if proposal.IsEmpty() {
		return errors.New("no such proposal")
	}
	if proposal.Status != StatusActive {
		return errors.New("proposal is not active")
	}
	if env.Now() < proposal.VotingEnd {
		return errors.New("voting window still open")
	}

	quorumPercent, err := g.prms.Get(vault.KeyQuorumPercent)
	if err != nil {
		return err
	}
	totalPower, err := g.totalPower.Get()
	if err != nil {
		return err
	}

	totalVotes := new(big.Int).Add(proposal.ForVotes, proposal.AgainstVotes)
	totalVotes.Add(totalVotes, proposal.AbstainVotes)

	// totalVotes*100 >= totalPower*quorumPercent
	lhs := new(big.Int).Mul(totalVotes, big.NewInt(100))
	rhs := new(big.Int).Mul(totalPower, quorumPercent)
	quorumMet := lhs.Cmp(rhs) >= 0

	if quorumMet && proposal.ForVotes.Cmp(proposal.AgainstVotes) > 0 {
		proposal.Status = StatusSucceeded
	} else {
		proposal.Status = StatusFailed
	}
	if err := g.setProposal(id, proposal); err != nil {
		return err
	}

	logger.Info("proposal finalized", "id", id, "status", StatusName(proposal.Status), "quorum", quorumMet)
	env.Emit("governance", "finalized", map[string]string{
		"id":     fmt.Sprintf("%d", id),
		"status": StatusName(proposal.Status),
	})
	return nil
}

// ExecuteProposal applies a Succeeded proposal's parameter change. Execution
// is timelocked to [votingEnd+delay, votingEnd+delay+grace]; outside that
// window the proposal cannot run and eventually goes stale.
func (g *Governance) ExecuteProposal(env *xenv.Environment, id uint64) error {
	logger.Debug("executing proposal", "id", id)

	proposal, err := g.getProposal(id)
	if err != nil {
		return err
	}
	if proposal.IsEmpty() {
		return errors.New("no such proposal")
	}
	if proposal.Status != StatusSucceeded {
		return errors.New("proposal has not succeeded")
	}

	delay, err := g.prms.GetUint64(vault.KeyExecutionDelay)
	if err != nil {
		return err
	}
	grace, err := g.prms.GetUint64(vault.KeyGracePeriod)
	if err != nil {
		return err
	}
	opens := proposal.VotingEnd + delay
	closes := opens + grace
	if env.Now() < opens {
		return errors.New("timelock has not opened")
	}
	if env.Now() > closes {
		return errors.New("grace period expired")
	}

	// the parameter change runs as this component, the bound executor
	if err := g.prms.Set(env.WithCaller(g.addr), proposal.ParamKey, proposal.ParamValue); err != nil {
		return errors.Wrap(err, "failed to apply proposal payload")
	}

	proposal.Status = StatusExecuted
	proposal.ExecutedAt = env.Now()
	if err := g.setProposal(id, proposal); err != nil {
		return err
	}

	logger.Info("proposal executed", "id", id, "key", proposal.ParamKey, "value", proposal.ParamValue)
	env.Emit("governance", "executed", map[string]string{
		"id":    fmt.Sprintf("%d", id),
		"key":   proposal.ParamKey.String(),
		"value": proposal.ParamValue.String(),
	})
	return nil
}

// CancelProposal withdraws an Active or Succeeded proposal.
func (g *Governance) CancelProposal(env *xenv.Environment, id uint64) error {
	logger.Debug("cancelling proposal", "id", id)

	if err := g.requirePermission(env, accesscontrol.PermManage); err != nil {
		logger.Info("cancel rejected", "id", id, "error", err)
		return err
	}

	proposal, err := g.getProposal(id)
	if err != nil {
		return err
	}
	if proposal.IsEmpty() {
		return errors.New("no such proposal")
	}
	if proposal.Status != StatusActive && proposal.Status != StatusSucceeded {
		return errors.New("proposal cannot be cancelled")
	}

	proposal.Status = StatusCancelled
	if err := g.setProposal(id, proposal); err != nil {
		return err
	}

	logger.Info("proposal cancelled", "id", id, "by", env.Caller())
	env.Emit("governance", "cancelled", map[string]string{"id": fmt.Sprintf("%d", id)})
	return nil
}

// UpdateVotingPower reflects the staking ledger into governance weight. The
// total is delta-adjusted on every update. The reporter holds the Govern
// permission.
func (g *Governance) UpdateVotingPower(env *xenv.Environment, user vault.Address, power *big.Int) error {
	logger.Debug("updating voting power", "user", user, "power", power)

	if err := g.requirePermission(env, accesscontrol.PermGovern); err != nil {
		logger.Info("power update rejected", "user", user, "error", err)
		return err
	}
	if power.Sign() < 0 {
		return errors.New("negative voting power")
	}

	prior, err := g.votingPower.Get(user)
	if err != nil {
		return err
	}
	if prior == nil {
		prior = new(big.Int)
	}
	delta := new(big.Int).Sub(power, prior)
	if err := g.totalPower.Add(delta); err != nil {
		return err
	}
	if err := g.votingPower.Set(user, power); err != nil {
		return err
	}

	logger.Info("voting power updated", "user", user, "power", power)
	env.Emit("governance", "power-updated", map[string]string{
		"user":  user.String(),
		"power": power.String(),
	})
	return nil
}

// VotingPower returns user's current weight.
func (g *Governance) VotingPower(user vault.Address) (*big.Int, error) {
	power, err := g.votingPower.Get(user)
	if err != nil {
		return nil, err
	}
	if power == nil {
		return new(big.Int), nil
	}
	return power, nil
}

// GetProposal returns the proposal by id, nil when absent.
func (g *Governance) GetProposal(id uint64) (*Proposal, error) {
	proposal, err := g.getProposal(id)
	if err != nil {
		return nil, err
	}
	if proposal.IsEmpty() {
		return nil, nil
	}
	return proposal, nil
}

// GetVote returns voter's ballot on proposal id, nil when absent.
func (g *Governance) GetVote(id uint64, voter vault.Address) (*VoteRecord, error) {
	record, err := g.votes.Get(voteKey{id: id, voter: voter})
	if err != nil {
		return nil, err
	}
	if record.IsEmpty() {
		return nil, nil
	}
	return record, nil
}

// Info returns the read-side view of governance.
func (g *Governance) Info() (*Info, error) {
	total, err := g.proposalCounter.Current()
	if err != nil {
		return nil, err
	}
	totalPower, err := g.totalPower.Get()
	if err != nil {
		return nil, err
	}
	threshold, err := g.prms.Get(vault.KeyProposalThreshold)
	if err != nil {
		return nil, err
	}
	quorum, err := g.prms.Get(vault.KeyQuorumPercent)
	if err != nil {
		return nil, err
	}
	window, err := g.prms.GetUint64(vault.KeyVotingWindow)
	if err != nil {
		return nil, err
	}
	delay, err := g.prms.GetUint64(vault.KeyExecutionDelay)
	if err != nil {
		return nil, err
	}
	grace, err := g.prms.GetUint64(vault.KeyGracePeriod)
	if err != nil {
		return nil, err
	}
	return &Info{
		TotalProposals:    total,
		TotalVotingPower:  totalPower,
		ProposalThreshold: threshold,
		QuorumPercent:     quorum,
		VotingWindow:      window,
		ExecutionDelay:    delay,
		GracePeriod:       grace,
	}, nil
}
