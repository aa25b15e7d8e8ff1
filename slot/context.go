// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"github.com/stakevault/core/state"
	"github.com/stakevault/core/vault"
)

// Context binds typed storage cells to a component address over the state.
type Context struct {
	address vault.Address
	state   *state.State
}

func NewContext(address vault.Address, state *state.State) *Context {
	return &Context{
		address: address,
		state:   state,
	}
}

func (c *Context) Address() vault.Address {
	return c.address
}

func (c *Context) State() *state.State {
	return c.state
}

// NameToSlot derives a storage slot from a human readable name.
func NameToSlot(name string) vault.Bytes32 {
	return vault.BytesToBytes32([]byte(name))
}
