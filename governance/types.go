// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package governance

import (
	"encoding/binary"
	"math/big"

	"github.com/stakevault/core/vault"
)

// ProposalStatus is the lifecycle state of a proposal. Pending exists for
// completeness; proposals are created directly Active.
type ProposalStatus = uint8

const (
	StatusPending ProposalStatus = iota
	StatusActive
	StatusSucceeded
	StatusFailed
	StatusExecuted
	StatusCancelled
)

// StatusName returns the human readable name of status.
func StatusName(status ProposalStatus) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusExecuted:
		return "executed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Support is a ballot choice.
type Support = uint8

const (
	VoteAgainst Support = iota
	VoteFor
	VoteAbstain
)

// Proposal is one governance proposal. The payload is a parameter change
// applied through the bound executor once the timelock window opens.
type Proposal struct {
	Proposer     vault.Address
	Description  string
	ParamKey     vault.Bytes32
	ParamValue   *big.Int
	CreatedAt    uint64
	VotingStart  uint64
	VotingEnd    uint64
	ForVotes     *big.Int
	AgainstVotes *big.Int
	AbstainVotes *big.Int
	Status       ProposalStatus
	ExecutedAt   uint64
}

// IsEmpty returns whether the record holds nothing. Stored proposals always
// allocate their tallies; a missing slot decodes with nil ones.
func (p *Proposal) IsEmpty() bool {
	return p.ForVotes == nil
}

// VoteRecord is one voter's ballot on one proposal.
type VoteRecord struct {
	Support Support
	Power   *big.Int
	VotedAt uint64
}

// IsEmpty returns whether the record holds nothing. Voting rejects zero
// power, so a stored ballot always has Power > 0.
func (v *VoteRecord) IsEmpty() bool {
	return v.Power == nil || v.Power.Sign() == 0
}

// voteKey addresses a ballot by proposal id and voter.
type voteKey struct {
	id    uint64
	voter vault.Address
}

// Bytes returns the composite key bytes.
func (k voteKey) Bytes() []byte {
	b := make([]byte, 8+len(k.voter))
	binary.BigEndian.PutUint64(b[:8], k.id)
	copy(b[8:], k.voter.Bytes())
	return b
}

// Info is the read-side view of governance.
type Info struct {
	TotalProposals    uint64   `json:"totalProposals"`
	TotalVotingPower  *big.Int `json:"totalVotingPower"`
	ProposalThreshold *big.Int `json:"proposalThreshold"`
	QuorumPercent     *big.Int `json:"quorumPercent"`
	VotingWindow      uint64   `json:"votingWindow"`
	ExecutionDelay    uint64   `json:"executionDelay"`
	GracePeriod       uint64   `json:"gracePeriod"`
}
