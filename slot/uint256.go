// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/stakevault/core/vault"
)

// Uint256 is a wrapper for storage and retrieval of a single big integer
// value, stored big-endian in one slot. Values above 256 bits are truncated.
type Uint256 struct {
	context *Context
	pos     vault.Bytes32
}

func NewUint256(context *Context, pos vault.Bytes32) *Uint256 {
	return &Uint256{context: context, pos: pos}
}

func (u *Uint256) Get() (*big.Int, error) {
	storage, err := u.context.state.GetStorage(u.context.address, u.pos)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(storage.Bytes()), nil
}

func (u *Uint256) Set(value *big.Int) {
	u.context.state.SetStorage(u.context.address, u.pos, vault.BytesToBytes32(value.Bytes()))
}

// Add adjusts the stored value by value, which may be negative. Storage is
// unsigned, so a result below zero is rejected before anything is written.
func (u *Uint256) Add(value *big.Int) error {
	storage, err := u.Get()
	if err != nil {
		return err
	}
	storage.Add(storage, value)
	if storage.Sign() < 0 {
		return errors.New("uint256 underflow")
	}
	u.Set(storage)
	return nil
}

func (u *Uint256) Sub(value *big.Int) error {
	return u.Add(new(big.Int).Neg(value))
}
