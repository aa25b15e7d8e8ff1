// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"github.com/stakevault/core/vault"
)

// Address is a wrapper for storage and retrieval of a single address value.
type Address struct {
	context *Context
	pos     vault.Bytes32
}

func NewAddress(context *Context, pos vault.Bytes32) *Address {
	return &Address{context: context, pos: pos}
}

func (a *Address) Get() (vault.Address, error) {
	storage, err := a.context.state.GetStorage(a.context.address, a.pos)
	if err != nil {
		return vault.Address{}, err
	}
	return vault.BytesToAddress(storage.Bytes()), nil
}

func (a *Address) Set(addr vault.Address) {
	a.context.state.SetStorage(a.context.address, a.pos, vault.BytesToBytes32(addr.Bytes()))
}
