// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package emergency

import (
	"math/big"

	"github.com/stakevault/core/vault"
)

// Level is the severity of an incident. Ordering is significant: escalation
// within one incident must strictly increase the level.
type Level = uint8

const (
	LevelNone Level = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

// LevelName returns the human readable name of level.
func LevelName(level Level) string {
	switch level {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// OpType classifies operations for the per-level allow policy.
type OpType = uint8

const (
	OpDeposit OpType = iota
	OpWithdraw
	OpView
	OpEmergency
	OpAdmin
)

// Event is one incident record. Only the most recent event may be
// unresolved.
type Event struct {
	Level       Level
	Reason      string
	TriggeredBy vault.Address
	Timestamp   uint64
	Resolved    bool
	ResolvedAt  uint64
	ResolvedBy  vault.Address
	Resolution  string
}

// IsEmpty returns whether the record holds nothing. Triggering rejects
// LevelNone, so it only appears on the missing-record zero value.
func (e *Event) IsEmpty() bool {
	return e.Level == LevelNone
}

// Status is the live incident view.
type Status struct {
	Level             Level  `json:"level"`
	LevelName         string `json:"levelName"`
	Active            bool   `json:"active"`
	CurrentEventID    uint64 `json:"currentEventId"`
	TotalEvents       uint64 `json:"totalEvents"`
	RecoveryMode      bool   `json:"recoveryMode"`
	RecoveryApprovals uint64 `json:"recoveryApprovals"`
	LastTriggeredAt   uint64 `json:"lastTriggeredAt"`
}

// BreakerStatus is the live circuit breaker view.
type BreakerStatus struct {
	DailyVolume    *big.Int `json:"dailyVolume"`
	DailyCap       *big.Int `json:"dailyCap"`
	LargeThreshold *big.Int `json:"largeThreshold"`
	LastReset      uint64   `json:"lastReset"`
}
