// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slot

import (
	"math/big"

	"github.com/stakevault/core/vault"
)

// Counter allocates monotonically increasing uint64 ids, starting at 1 so the
// zero id can be used as the "not assigned" sentinel.
type Counter struct {
	inner *Uint256
}

func NewCounter(context *Context, pos vault.Bytes32) *Counter {
	return &Counter{inner: NewUint256(context, pos)}
}

// Next allocates and returns the next id.
func (c *Counter) Next() (uint64, error) {
	cur, err := c.inner.Get()
	if err != nil {
		return 0, err
	}
	next := cur.Uint64() + 1
	c.inner.Set(new(big.Int).SetUint64(next))
	return next, nil
}

// Current returns the most recently allocated id, 0 when none.
func (c *Counter) Current() (uint64, error) {
	cur, err := c.inner.Get()
	if err != nil {
		return 0, err
	}
	return cur.Uint64(), nil
}
