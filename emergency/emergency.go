// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package emergency

import (
	"fmt"
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/accesscontrol"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/metrics"
	"github.com/stakevault/core/params"
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

var (
	logger         = log.WithContext("pkg", "emergency")
	metricIncident = metrics.CounterVec("emergency_incidents_total", []string{"level"})
	metricRejected = metrics.Counter("emergency_breaker_rejected_total")
)

// Emergency is the incident state machine and the circuit breaker over
// transaction volume. At most one incident is active at a time; its level only
// increases until resolution.
type Emergency struct {
	storage *storage
	params  *params.Params
	acl     *accesscontrol.AccessControl
}

// New create a new instance.
func New(addr vault.Address, st *state.State, params *params.Params, acl *accesscontrol.AccessControl) *Emergency {
	return &Emergency{
		storage: newStorage(addr, st),
		params:  params,
		acl:     acl,
	}
}

func (e *Emergency) requirePermission(env *xenv.Environment, perm accesscontrol.Permission) error {
	ok, err := e.acl.HasPermission(env.Caller(), perm, env.Now())
	if err != nil {
		return err
	}
	if !ok {
		return errors.Errorf("caller %s lacks permission %d", env.Caller(), perm)
	}
	return nil
}

// TriggerEmergency opens a new incident. The caller must hold the Emergency
// permission and no incident may be active. Below Critical a cooldown since
// the previous trigger applies; Critical bypasses it and arms the
// access-control override.
func (e *Emergency) TriggerEmergency(env *xenv.Environment, level Level, reason string) (uint64, error) {
	logger.Debug("triggering emergency", "level", LevelName(level), "caller", env.Caller())

	if err := e.requirePermission(env, accesscontrol.PermEmergency); err != nil {
		logger.Info("trigger rejected", "error", err)
		return 0, err
	}
	if level == LevelNone || level > LevelCritical {
		return 0, errors.New("invalid emergency level")
	}

	active, err := e.storage.active.Get()
	if err != nil {
		return 0, err
	}
	if active {
		return 0, errors.New("an incident is already active")
	}

	if level < LevelCritical {
		lastTrigger, err := e.storage.lastTrigger.Get()
		if err != nil {
			return 0, err
		}
		cooldown, err := e.params.GetUint64(vault.KeyEmergencyCooldown)
		if err != nil {
			return 0, err
		}
		if lastTrigger.Sign() != 0 && env.Now()-lastTrigger.Uint64() < cooldown {
			return 0, errors.New("emergency cooldown in effect")
		}
	}

	id, err := e.openIncident(env, level, reason, env.Caller())
	if err != nil {
		return 0, err
	}

	logger.Warn("emergency triggered", "id", id, "level", LevelName(level), "reason", reason, "by", env.Caller())
	return id, nil
}

// openIncident appends the event record and flips the machine into the active
// state. Critical arms the access-control override.
func (e *Emergency) openIncident(env *xenv.Environment, level Level, reason string, triggeredBy vault.Address) (uint64, error) {
	id, err := e.storage.eventCounter.Next()
	if err != nil {
		return 0, err
	}
	event := &Event{
		Level:       level,
		Reason:      reason,
		TriggeredBy: triggeredBy,
		Timestamp:   env.Now(),
	}
	if err := e.storage.SetEvent(id, event); err != nil {
		return 0, err
	}
	e.storage.active.Set(true)
	e.storage.SetLevel(level)
	e.storage.lastTrigger.Set(new(big.Int).SetUint64(env.Now()))

	if level == LevelCritical {
		e.acl.SetEmergencyOverride(true)
	}

	env.Emit("emergency", "triggered", map[string]string{
		"id":     fmt.Sprintf("%d", id),
		"level":  LevelName(level),
		"reason": reason,
	})
	metricIncident.AddWithLabel(1, map[string]string{"level": LevelName(level)})
	return id, nil
}

// EscalateEmergency raises the level of the active incident. Escalation is
// strictly monotonic within one incident.
func (e *Emergency) EscalateEmergency(env *xenv.Environment, newLevel Level, reason string) error {
	logger.Debug("escalating emergency", "level", LevelName(newLevel), "caller", env.Caller())

	if err := e.requirePermission(env, accesscontrol.PermEmergency); err != nil {
		logger.Info("escalate rejected", "error", err)
		return err
	}

	active, err := e.storage.active.Get()
	if err != nil {
		return err
	}
	if !active {
		return errors.New("no active incident")
	}
	current, err := e.storage.GetLevel()
	if err != nil {
		return err
	}
	if newLevel <= current || newLevel > LevelCritical {
		return errors.New("escalation must strictly increase the level")
	}

	return e.escalate(env, newLevel, reason)
}

func (e *Emergency) escalate(env *xenv.Environment, newLevel Level, reason string) error {
	id, err := e.storage.eventCounter.Current()
	if err != nil {
		return err
	}
	event, err := e.storage.GetEvent(id)
	if err != nil {
		return err
	}
	event.Level = newLevel
	if err := e.storage.SetEvent(id, event); err != nil {
		return err
	}
	e.storage.SetLevel(newLevel)

	if newLevel == LevelCritical {
		e.acl.SetEmergencyOverride(true)
	}

	logger.Warn("emergency escalated", "id", id, "level", LevelName(newLevel), "reason", reason)
	env.Emit("emergency", "escalated", map[string]string{
		"id":     fmt.Sprintf("%d", id),
		"level":  LevelName(newLevel),
		"reason": reason,
	})
	return nil
}

// ResolveEmergency closes the current incident. Only the current unresolved
// event can be resolved; resolution resets the level to None, exits recovery
// mode and clears the access-control override.
func (e *Emergency) ResolveEmergency(env *xenv.Environment, eventID uint64, resolution string) error {
	logger.Debug("resolving emergency", "id", eventID, "caller", env.Caller())

	if err := e.requirePermission(env, accesscontrol.PermManage); err != nil {
		logger.Info("resolve rejected", "id", eventID, "error", err)
		return err
	}

	active, err := e.storage.active.Get()
	if err != nil {
		return err
	}
	if !active {
		return errors.New("no active incident")
	}
	current, err := e.storage.eventCounter.Current()
	if err != nil {
		return err
	}
	if eventID != current {
		return errors.New("not the current incident")
	}

	if err := e.closeIncident(env, eventID, env.Caller(), resolution); err != nil {
		return err
	}
	logger.Info("emergency resolved", "id", eventID, "by", env.Caller())
	return nil
}

// closeIncident marks the event resolved and fully resets the machine.
func (e *Emergency) closeIncident(env *xenv.Environment, eventID uint64, resolvedBy vault.Address, resolution string) error {
	event, err := e.storage.GetEvent(eventID)
	if err != nil {
		return err
	}
	if event.IsEmpty() || event.Resolved {
		return errors.New("event is not open")
	}
	event.Resolved = true
	event.ResolvedAt = env.Now()
	event.ResolvedBy = resolvedBy
	event.Resolution = resolution
	if err := e.storage.SetEvent(eventID, event); err != nil {
		return err
	}

	e.storage.active.Set(false)
	e.storage.SetLevel(LevelNone)
	e.storage.recoveryMode.Set(false)
	e.storage.recoveryApprovals.Set(big.NewInt(0))
	e.acl.SetEmergencyOverride(false)

	env.Emit("emergency", "resolved", map[string]string{
		"id":         fmt.Sprintf("%d", eventID),
		"resolution": resolution,
	})
	return nil
}

// AutoResolveCheck is the scheduler hook, callable by anyone and idempotent.
// A Low incident past the auto-resolve window resolves itself; any incident
// past the maximum duration escalates to Critical as a safety fallback.
func (e *Emergency) AutoResolveCheck(env *xenv.Environment) error {
	active, err := e.storage.active.Get()
	if err != nil {
		return err
	}
	if !active {
		return nil
	}

	id, err := e.storage.eventCounter.Current()
	if err != nil {
		return err
	}
	event, err := e.storage.GetEvent(id)
	if err != nil {
		return err
	}
	elapsed := env.Now() - event.Timestamp

	maxDuration, err := e.params.GetUint64(vault.KeyMaxEmergencyDuration)
	if err != nil {
		return err
	}
	if elapsed > maxDuration {
		if event.Level < LevelCritical {
			logger.Warn("incident exceeded maximum duration", "id", id, "elapsed", elapsed)
			return e.escalate(env, LevelCritical, "exceeded maximum emergency duration")
		}
		return nil
	}

	if event.Level == LevelLow {
		autoResolve, err := e.params.GetUint64(vault.KeyAutoResolveTime)
		if err != nil {
			return err
		}
		if elapsed > autoResolve {
			if err := e.closeIncident(env, id, vault.Address{}, "auto-resolved"); err != nil {
				return err
			}
			logger.Info("incident auto-resolved", "id", id, "elapsed", elapsed)
		}
	}
	return nil
}

// ActivateRecoveryMode accumulates one recovery approval per distinct
// operator while the incident is Critical.
func (e *Emergency) ActivateRecoveryMode(env *xenv.Environment) error {
	logger.Debug("recovery approval", "caller", env.Caller())

	if err := e.requirePermission(env, accesscontrol.PermEmergency); err != nil {
		logger.Info("recovery approval rejected", "error", err)
		return err
	}

	current, err := e.storage.GetLevel()
	if err != nil {
		return err
	}
	if current != LevelCritical {
		return errors.New("recovery requires a critical incident")
	}

	id, err := e.storage.eventCounter.Current()
	if err != nil {
		return err
	}
	approvedFor, err := e.storage.recoveryApprovers.Get(env.Caller())
	if err != nil {
		return err
	}
	if approvedFor == id {
		return errors.New("already approved recovery")
	}
	if err := e.storage.recoveryApprovers.Set(env.Caller(), id); err != nil {
		return err
	}
	if err := e.storage.recoveryApprovals.Add(big.NewInt(1)); err != nil {
		return err
	}
	e.storage.recoveryMode.Set(true)

	approvals, err := e.storage.recoveryApprovals.Get()
	if err != nil {
		return err
	}
	logger.Info("recovery mode approval", "id", id, "approver", env.Caller(), "approvals", approvals)
	env.Emit("emergency", "recovery-approval", map[string]string{
		"id":        fmt.Sprintf("%d", id),
		"approver":  env.Caller().String(),
		"approvals": approvals.String(),
	})
	return nil
}

// ExecuteRecovery fully resets the machine once enough recovery approvals
// accumulated.
func (e *Emergency) ExecuteRecovery(env *xenv.Environment) error {
	logger.Debug("executing recovery", "caller", env.Caller())

	if err := e.requirePermission(env, accesscontrol.PermManage); err != nil {
		logger.Info("recovery rejected", "error", err)
		return err
	}

	recovery, err := e.storage.recoveryMode.Get()
	if err != nil {
		return err
	}
	if !recovery {
		return errors.New("recovery mode not active")
	}
	approvals, err := e.storage.recoveryApprovals.Get()
	if err != nil {
		return err
	}
	required, err := e.params.Get(vault.KeyRecoveryApprovals)
	if err != nil {
		return err
	}
	if approvals.Cmp(required) < 0 {
		return errors.Errorf("recovery needs %v approvals, has %v", required, approvals)
	}

	id, err := e.storage.eventCounter.Current()
	if err != nil {
		return err
	}
	if err := e.closeIncident(env, id, env.Caller(), "recovery executed"); err != nil {
		return err
	}
	// the breaker window restarts clean after recovery
	e.storage.dailyVolume.Set(big.NewInt(0))
	e.storage.volumeReset.Set(new(big.Int).SetUint64(env.Now()))

	logger.Warn("recovery executed", "id", id, "by", env.Caller())
	return nil
}

// CheckCircuitBreaker admits amount against the rolling daily volume cap. A
// cap violation rejects the operation and raises a Medium incident; a single
// transaction above the large-withdrawal threshold is admitted but raises a
// Low incident report.
func (e *Emergency) CheckCircuitBreaker(env *xenv.Environment, amount *big.Int) (bool, error) {
	lastReset, err := e.storage.volumeReset.Get()
	if err != nil {
		return false, err
	}
	if env.Now()-lastReset.Uint64() >= vault.DaySeconds {
		e.storage.dailyVolume.Set(big.NewInt(0))
		e.storage.volumeReset.Set(new(big.Int).SetUint64(env.Now()))
	}

	volume, err := e.storage.dailyVolume.Get()
	if err != nil {
		return false, err
	}
	dailyCap, err := e.params.Get(vault.KeyDailyVolumeCap)
	if err != nil {
		return false, err
	}
	if new(big.Int).Add(volume, amount).Cmp(dailyCap) > 0 {
		metricRejected.Add(1)
		logger.Warn("daily volume cap violated", "volume", volume, "amount", amount, "cap", dailyCap)
		if err := e.raiseIncident(env, LevelMedium, "daily volume cap exceeded"); err != nil {
			return false, err
		}
		return false, nil
	}

	threshold, err := e.params.Get(vault.KeyLargeWithdrawal)
	if err != nil {
		return false, err
	}
	if amount.Cmp(threshold) > 0 {
		logger.Warn("large withdrawal", "amount", amount, "threshold", threshold, "caller", env.Caller())
		env.Emit("emergency", "large-withdrawal", map[string]string{
			"caller": env.Caller().String(),
			"amount": amount.String(),
		})
		if err := e.raiseIncident(env, LevelLow, "large withdrawal reported"); err != nil {
			return false, err
		}
	}

	if err := e.storage.dailyVolume.Add(amount); err != nil {
		return false, err
	}
	return true, nil
}

// raiseIncident opens or escalates an incident on behalf of the breaker,
// without a permission gate. An active incident at or above level is left
// untouched.
func (e *Emergency) raiseIncident(env *xenv.Environment, level Level, reason string) error {
	active, err := e.storage.active.Get()
	if err != nil {
		return err
	}
	if !active {
		_, err := e.openIncident(env, level, reason, env.Caller())
		return err
	}
	current, err := e.storage.GetLevel()
	if err != nil {
		return err
	}
	if level > current {
		return e.escalate(env, level, reason)
	}
	return nil
}

// IsOperationAllowed is the per-level operation policy. Other components
// consult it before performing the corresponding class of operation.
func (e *Emergency) IsOperationAllowed(op OpType) (bool, error) {
	level, err := e.storage.GetLevel()
	if err != nil {
		return false, err
	}
	switch level {
	case LevelNone:
		return true, nil
	case LevelLow:
		return op != OpDeposit, nil
	case LevelMedium:
		return op == OpWithdraw || op == OpView || op == OpEmergency || op == OpAdmin, nil
	case LevelHigh:
		return op == OpView || op == OpEmergency || op == OpAdmin, nil
	default:
		return op == OpEmergency || op == OpAdmin, nil
	}
}

// CurrentStatus returns the live incident view.
func (e *Emergency) CurrentStatus() (*Status, error) {
	level, err := e.storage.GetLevel()
	if err != nil {
		return nil, err
	}
	active, err := e.storage.active.Get()
	if err != nil {
		return nil, err
	}
	total, err := e.storage.eventCounter.Current()
	if err != nil {
		return nil, err
	}
	recovery, err := e.storage.recoveryMode.Get()
	if err != nil {
		return nil, err
	}
	approvals, err := e.storage.recoveryApprovals.Get()
	if err != nil {
		return nil, err
	}
	lastTrigger, err := e.storage.lastTrigger.Get()
	if err != nil {
		return nil, err
	}

	var currentID uint64
	if active {
		currentID = total
	}
	return &Status{
		Level:             level,
		LevelName:         LevelName(level),
		Active:            active,
		CurrentEventID:    currentID,
		TotalEvents:       total,
		RecoveryMode:      recovery,
		RecoveryApprovals: approvals.Uint64(),
		LastTriggeredAt:   lastTrigger.Uint64(),
	}, nil
}

// GetEvent returns the incident record by id.
func (e *Emergency) GetEvent(id uint64) (*Event, error) {
	return e.storage.GetEvent(id)
}

// History returns up to limit most recent incident records, newest first.
func (e *Emergency) History(limit uint64) ([]*Event, error) {
	total, err := e.storage.eventCounter.Current()
	if err != nil {
		return nil, err
	}
	if limit == 0 || limit > total {
		limit = total
	}
	events := make([]*Event, 0, limit)
	for id := total; id > total-limit; id-- {
		event, err := e.storage.GetEvent(id)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// CircuitBreakerStatus returns the live breaker view.
func (e *Emergency) CircuitBreakerStatus() (*BreakerStatus, error) {
	volume, err := e.storage.dailyVolume.Get()
	if err != nil {
		return nil, err
	}
	dailyCap, err := e.params.Get(vault.KeyDailyVolumeCap)
	if err != nil {
		return nil, err
	}
	threshold, err := e.params.Get(vault.KeyLargeWithdrawal)
	if err != nil {
		return nil, err
	}
	lastReset, err := e.storage.volumeReset.Get()
	if err != nil {
		return nil, err
	}
	return &BreakerStatus{
		DailyVolume:    volume,
		DailyCap:       dailyCap,
		LargeThreshold: threshold,
		LastReset:      lastReset.Uint64(),
	}, nil
}
