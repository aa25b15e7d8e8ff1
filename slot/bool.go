// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"encoding/binary"
	"math/big"

	"github.com/stakevault/core/vault"
)

// Bool is a wrapper for storage and retrieval of a single flag.
type Bool struct {
	inner *Uint256
}

func NewBool(context *Context, pos vault.Bytes32) *Bool {
	return &Bool{inner: NewUint256(context, pos)}
}

func (b *Bool) Get() (bool, error) {
	v, err := b.inner.Get()
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

func (b *Bool) Set(value bool) {
	if value {
		b.inner.Set(big.NewInt(1))
	} else {
		b.inner.Set(big.NewInt(0))
	}
}

// U64 adapts a uint64 into a mapping key.
type U64 uint64

// Bytes returns the big-endian form of the id.
func (u U64) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(u))
	return b[:]
}
