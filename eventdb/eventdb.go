// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/stakevault/core/vault"
	"github.com/stakevault/core/xenv"
)

// EventDB persists the ledger events and transfers committed calls emit, for
// off-system observability and audit.
type EventDB struct {
	path          string
	db            *sql.DB
	driverVersion string
}

// New creates or opens an event db at the given path.
func New(path string) (eventDB *EventDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if eventDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(eventTableSchema + transferTableSchema); err != nil {
		return nil, err
	}

	driverVer, _, _ := sqlite3.Version()
	return &EventDB{
		path,
		db,
		driverVer,
	}, nil
}

// NewMem creates an event db in ram.
func NewMem() (*EventDB, error) {
	return New(":memory:")
}

// Close closes the event db.
func (db *EventDB) Close() {
	db.db.Close()
}

func (db *EventDB) Path() string {
	return db.path
}

// CommitCall persists everything env buffered, in one transaction.
func (db *EventDB) CommitCall(env *xenv.Environment) (err error) {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, event := range env.Events() {
		attrs, err := json.Marshal(event.Attrs)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO event(component, action, actor, time, attrs) VALUES (?, ?, ?, ?, ?);",
			event.Component,
			event.Action,
			event.Actor.Bytes(),
			event.Time,
			string(attrs),
		); err != nil {
			return err
		}
	}
	for _, tr := range env.Transfers() {
		transfer := newTransfer(env.Caller(), env.Now(), tr)
		if _, err := tx.Exec("INSERT INTO transfer(actor, recipient, amount, time) VALUES (?, ?, ?, ?);",
			transfer.Actor.Bytes(),
			transfer.Recipient.Bytes(),
			transfer.Amount.Bytes(),
			transfer.Time,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FilterEvents returns the persisted events matching filter. A nil filter
// matches everything.
func (db *EventDB) FilterEvents(ctx context.Context, filter *EventFilter) ([]*Event, error) {
	if filter == nil {
		return db.queryEvents(ctx, "SELECT * FROM event")
	}
	var args []interface{}
	stmt := "SELECT * FROM event WHERE 1"
	if filter.Component != "" {
		args = append(args, filter.Component)
		stmt += " AND component = ? "
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		stmt += " AND action = ? "
	}
	if filter.Actor != nil {
		args = append(args, filter.Actor.Bytes())
		stmt += " AND actor = ? "
	}
	stmt, args = appendRange(stmt, args, filter.Range)
	stmt = appendOrder(stmt, filter.Order)
	stmt, args = appendOptions(stmt, args, filter.Options)
	return db.queryEvents(ctx, stmt, args...)
}

// FilterTransfers returns the persisted transfers matching filter. A nil
// filter matches everything.
func (db *EventDB) FilterTransfers(ctx context.Context, filter *TransferFilter) ([]*Transfer, error) {
	if filter == nil {
		return db.queryTransfers(ctx, "SELECT * FROM transfer")
	}
	var args []interface{}
	stmt := "SELECT * FROM transfer WHERE 1"
	if filter.Actor != nil {
		args = append(args, filter.Actor.Bytes())
		stmt += " AND actor = ? "
	}
	if filter.Recipient != nil {
		args = append(args, filter.Recipient.Bytes())
		stmt += " AND recipient = ? "
	}
	stmt, args = appendRange(stmt, args, filter.Range)
	stmt = appendOrder(stmt, filter.Order)
	stmt, args = appendOptions(stmt, args, filter.Options)
	return db.queryTransfers(ctx, stmt, args...)
}

func appendRange(stmt string, args []interface{}, r *Range) (string, []interface{}) {
	if r == nil {
		return stmt, args
	}
	args = append(args, r.From)
	stmt += " AND time >= ? "
	if r.To >= r.From {
		args = append(args, r.To)
		stmt += " AND time <= ? "
	}
	return stmt, args
}

func appendOrder(stmt string, order Order) string {
	if order == DESC {
		return stmt + " ORDER BY seq DESC "
	}
	return stmt + " ORDER BY seq ASC "
}

func appendOptions(stmt string, args []interface{}, opts *Options) (string, []interface{}) {
	if opts == nil {
		return stmt, args
	}
	args = append(args, opts.Offset, opts.Limit)
	return stmt + " limit ?, ? ", args
}

func (db *EventDB) queryEvents(ctx context.Context, stmt string, args ...interface{}) ([]*Event, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       uint64
			component string
			action    string
			actor     []byte
			time      uint64
			attrs     string
		)
		if err := rows.Scan(
			&seq,
			&component,
			&action,
			&actor,
			&time,
			&attrs,
		); err != nil {
			return nil, err
		}
		event := &Event{
			Seq:       seq,
			Component: component,
			Action:    action,
			Actor:     vault.BytesToAddress(actor),
			Time:      time,
		}
		if err := json.Unmarshal([]byte(attrs), &event.Attrs); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (db *EventDB) queryTransfers(ctx context.Context, stmt string, args ...interface{}) ([]*Transfer, error) {
	rows, err := db.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       uint64
			actor     []byte
			recipient []byte
			amount    []byte
			time      uint64
		)
		if err := rows.Scan(
			&seq,
			&actor,
			&recipient,
			&amount,
			&time,
		); err != nil {
			return nil, err
		}
		transfers = append(transfers, &Transfer{
			Seq:       seq,
			Actor:     vault.BytesToAddress(actor),
			Recipient: vault.BytesToAddress(recipient),
			Amount:    new(big.Int).SetBytes(amount),
			Time:      time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return transfers, nil
}
