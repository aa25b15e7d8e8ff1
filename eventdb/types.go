// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"math/big"

	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

// Event is one persisted ledger event.
type Event struct {
	Seq       uint64            `json:"seq"`
	Component string            `json:"component"`
	Action    string            `json:"action"`
	Actor     vault.Address     `json:"actor"`
	Time      uint64            `json:"time"`
	Attrs     map[string]string `json:"attrs"`
}

// Transfer is one persisted external value transfer.
type Transfer struct {
	Seq       uint64        `json:"seq"`
	Actor     vault.Address `json:"actor"`
	Recipient vault.Address `json:"recipient"`
	Amount    *big.Int      `json:"amount"`
	Time      uint64        `json:"time"`
}

// newTransfer converts xenv.Transfer to Transfer.
func newTransfer(actor vault.Address, now uint64, tr *xenv.Transfer) *Transfer {
	return &Transfer{
		Actor:     actor,
		Recipient: tr.To,
		Amount:    tr.Amount,
		Time:      now,
	}
}

// Order of query results by sequence.
type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range bounds query results by event time, inclusive on both ends.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Options paginates query results.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// EventFilter selects persisted events. Zero-valued fields match anything.
type EventFilter struct {
	Component string         `json:"component"`
	Action    string         `json:"action"`
	Actor     *vault.Address `json:"actor"`
	Range     *Range         `json:"range"`
	Options   *Options       `json:"options"`
	Order     Order          `json:"order"`
}

// TransferFilter selects persisted transfers. Zero-valued fields match
// anything.
type TransferFilter struct {
	Actor     *vault.Address `json:"actor"`
	Recipient *vault.Address `json:"recipient"`
	Range     *Range         `json:"range"`
	Options   *Options       `json:"options"`
	Order     Order          `json:"order"`
}
