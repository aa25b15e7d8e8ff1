// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vault

import "math/big"

// Constants of the vault platform.
const (
	HourSeconds uint64 = 60 * 60
	DaySeconds  uint64 = 24 * HourSeconds
	YearSeconds uint64 = 365 * DaySeconds
)

// RewardScale is the fixed-point scale factor used by reward-per-share
// accounting. All reward math multiplies by this scale before dividing by the
// staked total, so truncation loses at most one unit per share.
var RewardScale = big.NewInt(1e12)

// Keys of governance params.
var (
	// access control
	KeyMaxAdmins            = Blake2b([]byte("max-admins"))
	KeyMaxOperators         = Blake2b([]byte("max-operators"))
	KeyMultiSigThreshold    = Blake2b([]byte("multisig-threshold"))
	KeyAdminSessionDuration = Blake2b([]byte("admin-session-duration"))
	KeyOpSessionDuration    = Blake2b([]byte("operator-session-duration"))
	KeyUserSessionDuration  = Blake2b([]byte("user-session-duration"))

	// emergency
	KeyEmergencyCooldown    = Blake2b([]byte("emergency-cooldown"))
	KeyAutoResolveTime      = Blake2b([]byte("auto-resolve-time"))
	KeyMaxEmergencyDuration = Blake2b([]byte("max-emergency-duration"))
	KeyDailyVolumeCap       = Blake2b([]byte("daily-volume-cap"))
	KeyLargeWithdrawal      = Blake2b([]byte("large-withdrawal-threshold"))
	KeyRecoveryApprovals    = Blake2b([]byte("recovery-approvals"))

	// reward distribution
	KeyMinDistributionRate = Blake2b([]byte("min-distribution-rate"))
	KeyMaxDistributionRate = Blake2b([]byte("max-distribution-rate"))

	// vault factory
	KeyMaxPoolsPerUser   = Blake2b([]byte("max-pools-per-user"))
	KeyMinInitialFunding = Blake2b([]byte("min-initial-funding"))

	// governance
	KeyProposalThreshold = Blake2b([]byte("proposal-threshold"))
	KeyVotingWindow      = Blake2b([]byte("voting-window"))
	KeyExecutionDelay    = Blake2b([]byte("execution-delay"))
	KeyGracePeriod       = Blake2b([]byte("grace-period"))
	KeyQuorumPercent     = Blake2b([]byte("quorum-percent"))
)

// Initial values of governance params, used when no explicit seed is given.
var (
	InitialMaxAdmins            = big.NewInt(5)
	InitialMaxOperators         = big.NewInt(20)
	InitialMultiSigThreshold    = big.NewInt(2)
	InitialAdminSessionDuration = new(big.Int).SetUint64(8 * HourSeconds)
	InitialOpSessionDuration    = new(big.Int).SetUint64(4 * HourSeconds)
	InitialUserSessionDuration  = new(big.Int).SetUint64(1 * HourSeconds)

	InitialEmergencyCooldown    = new(big.Int).SetUint64(1 * HourSeconds)
	InitialAutoResolveTime      = new(big.Int).SetUint64(4 * HourSeconds)
	InitialMaxEmergencyDuration = new(big.Int).SetUint64(3 * DaySeconds)
	InitialDailyVolumeCap       = new(big.Int).Mul(big.NewInt(1e9), big.NewInt(1e3))
	InitialLargeWithdrawal      = big.NewInt(1e8)
	InitialRecoveryApprovals    = big.NewInt(3)

	InitialMinDistributionRate = big.NewInt(1)
	InitialMaxDistributionRate = big.NewInt(1e9)

	InitialMaxPoolsPerUser   = big.NewInt(10)
	InitialMinInitialFunding = big.NewInt(1e6)

	InitialProposalThreshold = big.NewInt(1e6)
	InitialVotingWindow      = new(big.Int).SetUint64(3 * DaySeconds)
	InitialExecutionDelay    = new(big.Int).SetUint64(1 * DaySeconds)
	InitialGracePeriod       = new(big.Int).SetUint64(7 * DaySeconds)
	InitialQuorumPercent     = big.NewInt(10)
)
