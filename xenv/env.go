// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"math/big"

	"github.com/stakevault/core/vault"
)

// CallContext carries what the host environment supplies per call: the
// authenticated caller identity and the current monotonic time.
type CallContext struct {
	Caller vault.Address
	Time   uint64 // unix seconds, monotonic across calls
}

// Transfer is an external value transfer requested during a call. Transfers
// are carried out by the host as a side effect of the call and share its
// atomicity: a rejected call performs none of them.
type Transfer struct {
	To     vault.Address
	Amount *big.Int
}

// Event is a structured ledger event describing one state-changing action,
// intended for off-system observability.
type Event struct {
	Component string
	Action    string
	Actor     vault.Address
	Time      uint64
	Attrs     map[string]string
}

// Environment is the execution environment of a single call. Components read
// the caller and time from it, request external transfers and emit events
// through it. The host discards transfers and events of rejected calls
// together with the state revert.
type Environment struct {
	ctx CallContext
	out *outputs
}

// outputs is the per-call side-effect buffer, shared between an environment
// and all its derivations.
type outputs struct {
	transfers []*Transfer
	events    []*Event
}

// New creates an environment for one call.
func New(ctx CallContext) *Environment {
	return &Environment{ctx: ctx, out: &outputs{}}
}

// WithCaller derives an environment acting as caller at the same time. The
// derived environment shares this call's transfer and event buffers, so side
// effects of inner component actions commit and revert with the outer call.
func (env *Environment) WithCaller(caller vault.Address) *Environment {
	return &Environment{
		ctx: CallContext{Caller: caller, Time: env.ctx.Time},
		out: env.out,
	}
}

// Caller returns the authenticated caller identity.
func (env *Environment) Caller() vault.Address {
	return env.ctx.Caller
}

// Now returns the host-supplied current time in unix seconds.
func (env *Environment) Now() uint64 {
	return env.ctx.Time
}

// Transfer requests an external value transfer to be carried out by the host
// when the call commits.
func (env *Environment) Transfer(to vault.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	env.out.transfers = append(env.out.transfers, &Transfer{To: to, Amount: new(big.Int).Set(amount)})
}

// Emit buffers a ledger event to be published when the call commits.
func (env *Environment) Emit(component, action string, attrs map[string]string) {
	env.out.events = append(env.out.events, &Event{
		Component: component,
		Action:    action,
		Actor:     env.ctx.Caller,
		Time:      env.ctx.Time,
		Attrs:     attrs,
	})
}

// Transfers returns the transfers requested so far.
func (env *Environment) Transfers() []*Transfer {
	return env.out.transfers
}

// Events returns the events emitted so far.
func (env *Environment) Events() []*Event {
	return env.out.events
}
