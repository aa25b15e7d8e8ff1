// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package emergency

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
	admin     = vault.BytesToAddress([]byte("admin"))
	operator  = vault.BytesToAddress([]byte("operator"))
	operator2 = vault.BytesToAddress([]byte("operator2"))
	nobody    = vault.BytesToAddress([]byte("nobody"))
)

func env(caller vault.Address, now uint64) *xenv.Environment {
	return xenv.New(xenv.CallContext{Caller: caller, Time: now})
}

func newEmergency(t *testing.T) (*Emergency, *accesscontrol.AccessControl) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	st := state.New(db)

	param := params.New(vault.BytesToAddress([]byte("params")), st)
	param.Seed(vault.KeyMaxAdmins, vault.InitialMaxAdmins)
	param.Seed(vault.KeyMaxOperators, vault.InitialMaxOperators)
	param.Seed(vault.KeyEmergencyCooldown, vault.InitialEmergencyCooldown)
	param.Seed(vault.KeyAutoResolveTime, vault.InitialAutoResolveTime)
	param.Seed(vault.KeyMaxEmergencyDuration, vault.InitialMaxEmergencyDuration)
	param.Seed(vault.KeyDailyVolumeCap, vault.InitialDailyVolumeCap)
	param.Seed(vault.KeyLargeWithdrawal, vault.InitialLargeWithdrawal)
	param.Seed(vault.KeyRecoveryApprovals, vault.InitialRecoveryApprovals)

	acl := accesscontrol.New(vault.BytesToAddress([]byte("acl")), st, param)
	require.NoError(t, acl.Initialize(env(admin, 1)))
	require.NoError(t, acl.AssignRole(env(admin, 1), operator, accesscontrol.RoleOperator,
		1<<accesscontrol.PermEmergency, 0))
	require.NoError(t, acl.AssignRole(env(admin, 1), operator2, accesscontrol.RoleOperator,
		1<<accesscontrol.PermEmergency, 0))

	return New(vault.BytesToAddress([]byte("emergency")), st, param, acl), acl
}

func TestTriggerEmergency(t *testing.T) {
	em, _ := newEmergency(t)

	_, err := em.TriggerEmergency(env(nobody, 100), LevelLow, "unauthorized")
	assert.Error(t, err)

	_, err = em.TriggerEmergency(env(operator, 100), LevelNone, "zero level")
	assert.Error(t, err)

	id, err := em.TriggerEmergency(env(operator, 100), LevelLow, "elevated failures")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, LevelLow, status.Level)
	assert.Equal(t, uint64(1), status.CurrentEventID)

	// one incident at a time
	_, err = em.TriggerEmergency(env(operator, 110), LevelMedium, "second")
	assert.Error(t, err)
}

func TestTriggerCooldown(t *testing.T) {
	em, _ := newEmergency(t)

	id, err := em.TriggerEmergency(env(operator, 100), LevelLow, "first")
	require.NoError(t, err)
	require.NoError(t, em.ResolveEmergency(env(admin, 200), id, "fixed"))

	// below critical the cooldown applies
	_, err = em.TriggerEmergency(env(operator, 300), LevelLow, "too soon")
	assert.Error(t, err)

	// critical bypasses it
	_, err = em.TriggerEmergency(env(operator, 300), LevelCritical, "meltdown")
	require.NoError(t, err)
}

func TestEscalateMonotonic(t *testing.T) {
	em, acl := newEmergency(t)

	assert.Error(t, em.EscalateEmergency(env(operator, 100), LevelHigh, "nothing active"))

	_, err := em.TriggerEmergency(env(operator, 100), LevelMedium, "incident")
	require.NoError(t, err)

	assert.Error(t, em.EscalateEmergency(env(operator, 110), LevelMedium, "same level"))
	assert.Error(t, em.EscalateEmergency(env(operator, 110), LevelLow, "lower level"))

	require.NoError(t, em.EscalateEmergency(env(operator, 110), LevelHigh, "worse"))
	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, status.Level)

	// critical escalation arms the access-control override
	require.NoError(t, em.EscalateEmergency(env(operator, 120), LevelCritical, "much worse"))
	override, err := acl.EmergencyOverride()
	require.NoError(t, err)
	assert.True(t, override)
}

func TestResolveEmergency(t *testing.T) {
	em, acl := newEmergency(t)

	id, err := em.TriggerEmergency(env(operator, 100), LevelCritical, "meltdown")
	require.NoError(t, err)

	// operator holds Emergency but not Manage
	assert.Error(t, em.ResolveEmergency(env(operator, 200), id, "nope"))
	assert.Error(t, em.ResolveEmergency(env(admin, 200), id+1, "wrong id"))

	require.NoError(t, em.ResolveEmergency(env(admin, 200), id, "contained"))

	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, LevelNone, status.Level)

	override, err := acl.EmergencyOverride()
	require.NoError(t, err)
	assert.False(t, override, "override cleared on resolution")

	event, err := em.GetEvent(id)
	require.NoError(t, err)
	assert.True(t, event.Resolved)
	assert.Equal(t, uint64(200), event.ResolvedAt)
	assert.Equal(t, admin, event.ResolvedBy)

	assert.Error(t, em.ResolveEmergency(env(admin, 300), id, "again"))
}

func TestAutoResolveLowIncident(t *testing.T) {
	em, _ := newEmergency(t)

	_, err := em.TriggerEmergency(env(operator, 100), LevelLow, "minor")
	require.NoError(t, err)

	// inside the window nothing happens
	require.NoError(t, em.AutoResolveCheck(env(nobody, 200)))
	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.True(t, status.Active)

	after := 100 + vault.InitialAutoResolveTime.Uint64() + 1
	require.NoError(t, em.AutoResolveCheck(env(nobody, after)))

	status, err = em.CurrentStatus()
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, LevelNone, status.Level)

	// idempotent when nothing is active
	require.NoError(t, em.AutoResolveCheck(env(nobody, after+1)))
}

func TestAutoEscalateToCritical(t *testing.T) {
	em, acl := newEmergency(t)

	_, err := em.TriggerEmergency(env(operator, 100), LevelMedium, "lingering")
	require.NoError(t, err)

	after := 100 + vault.InitialMaxEmergencyDuration.Uint64() + 1
	require.NoError(t, em.AutoResolveCheck(env(nobody, after)))

	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.True(t, status.Active, "safety escalation does not resolve")
	assert.Equal(t, LevelCritical, status.Level)

	override, err := acl.EmergencyOverride()
	require.NoError(t, err)
	assert.True(t, override)
}

func TestRecovery(t *testing.T) {
	em, _ := newEmergency(t)

	assert.Error(t, em.ActivateRecoveryMode(env(operator, 100)), "no critical incident")

	_, err := em.TriggerEmergency(env(operator, 100), LevelCritical, "meltdown")
	require.NoError(t, err)

	require.NoError(t, em.ActivateRecoveryMode(env(operator, 110)))
	assert.Error(t, em.ActivateRecoveryMode(env(operator, 111)), "one approval per operator")
	require.NoError(t, em.ActivateRecoveryMode(env(operator2, 112)))

	// two approvals, three required
	assert.Error(t, em.ExecuteRecovery(env(admin, 120)))

	require.NoError(t, em.ActivateRecoveryMode(env(admin, 113)))

	assert.Error(t, em.ExecuteRecovery(env(operator, 120)), "admin caller required")
	require.NoError(t, em.ExecuteRecovery(env(admin, 120)))

	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.False(t, status.RecoveryMode)
	assert.Equal(t, LevelNone, status.Level)
	assert.Equal(t, uint64(0), status.RecoveryApprovals)
}

func TestCircuitBreaker(t *testing.T) {
	em, _ := newEmergency(t)

	// admitted, below any threshold
	ok, err := em.CheckCircuitBreaker(env(nobody, 100), big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, ok)

	breaker, err := em.CircuitBreakerStatus()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), breaker.DailyVolume)

	// a large single transaction is admitted but raises a Low incident
	large := new(big.Int).Add(vault.InitialLargeWithdrawal, big.NewInt(1))
	ok, err = em.CheckCircuitBreaker(env(nobody, 110), large)
	require.NoError(t, err)
	assert.True(t, ok)

	status, err := em.CurrentStatus()
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, LevelLow, status.Level)

	// a cap violation rejects and escalates to Medium
	overCap := new(big.Int).Add(vault.InitialDailyVolumeCap, big.NewInt(1))
	ok, err = em.CheckCircuitBreaker(env(nobody, 120), overCap)
	require.NoError(t, err)
	assert.False(t, ok)

	status, err = em.CurrentStatus()
	require.NoError(t, err)
	assert.Equal(t, LevelMedium, status.Level)

	// rejected amounts do not count toward volume
	breaker, err = em.CircuitBreakerStatus()
	require.NoError(t, err)
	expected := new(big.Int).Add(big.NewInt(1000), large)
	assert.Equal(t, expected, breaker.DailyVolume)
}

func TestCircuitBreakerDailyReset(t *testing.T) {
	em, _ := newEmergency(t)

	half := new(big.Int).Div(vault.InitialDailyVolumeCap, big.NewInt(2))
	ok, err := em.CheckCircuitBreaker(env(nobody, 100), half)
	require.NoError(t, err)
	assert.True(t, ok)

	// within the same day the remaining headroom is too small
	ok, err = em.CheckCircuitBreaker(env(nobody, 200), vault.InitialDailyVolumeCap)
	require.NoError(t, err)
	assert.False(t, ok)

	// a day later the window resets and the full cap is available again
	nextDay := 100 + vault.DaySeconds
	ok, err = em.CheckCircuitBreaker(env(nobody, nextDay), vault.InitialDailyVolumeCap)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsOperationAllowed(t *testing.T) {
	em, _ := newEmergency(t)

	for _, tt := range []struct {
		level   Level
		op      OpType
		allowed bool
	}{
		{LevelNone, OpDeposit, true},
		{LevelNone, OpWithdraw, true},
		{LevelLow, OpDeposit, false},
		{LevelLow, OpWithdraw, true},
		{LevelLow, OpView, true},
		{LevelMedium, OpDeposit, false},
		{LevelMedium, OpWithdraw, true},
		{LevelMedium, OpView, true},
		{LevelMedium, OpAdmin, true},
		{LevelHigh, OpWithdraw, false},
		{LevelHigh, OpView, true},
		{LevelHigh, OpEmergency, true},
		{LevelCritical, OpView, false},
		{LevelCritical, OpEmergency, true},
		{LevelCritical, OpAdmin, true},
	} {
		em.storage.SetLevel(tt.level)
		allowed, err := em.IsOperationAllowed(tt.op)
		require.NoError(t, err)
		assert.Equal(t, tt.allowed, allowed, "level %s op %d", LevelName(tt.level), tt.op)
	}
}

func TestHistory(t *testing.T) {
	em, _ := newEmergency(t)

	now := uint64(100)
	for i, reason := range []string{"first", "second", "third"} {
		id, err := em.TriggerEmergency(env(operator, now), LevelCritical, reason)
		require.NoError(t, err)
		require.NoError(t, em.ResolveEmergency(env(admin, now+10), id, "fixed"))
		now += vault.InitialEmergencyCooldown.Uint64() + uint64(i) + 100
	}

	events, err := em.History(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "third", events[0].Reason)
	assert.Equal(t, "second", events[1].Reason)

	events, err = em.History(0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
