// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakevault/core/api/restutil"
	"github.com/stakevault/core/eventdb"
)

// Ledger exposes the persisted event and transfer history.
type Ledger struct {
	db    *eventdb.EventDB
	limit uint64
}

func New(db *eventdb.EventDB, limit uint64) *Ledger {
	return &Ledger{db, limit}
}

func (l *Ledger) handleFilterEvents(w http.ResponseWriter, req *http.Request) error {
	var filter eventdb.EventFilter
	if err := restutil.ParseJSON(req.Body, &filter); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Options != nil && filter.Options.Limit > l.limit {
		return restutil.Forbidden(fmt.Errorf("options.limit exceeds the maximum allowed value of %d", l.limit))
	}
	if filter.Options == nil {
		filter.Options = &eventdb.Options{Limit: l.limit}
	}
	events, err := l.db.FilterEvents(req.Context(), &filter)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, events)
}

func (l *Ledger) handleFilterTransfers(w http.ResponseWriter, req *http.Request) error {
	var filter eventdb.TransferFilter
	if err := restutil.ParseJSON(req.Body, &filter); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Options != nil && filter.Options.Limit > l.limit {
		return restutil.Forbidden(fmt.Errorf("options.limit exceeds the maximum allowed value of %d", l.limit))
	}
	if filter.Options == nil {
		filter.Options = &eventdb.Options{Limit: l.limit}
	}
	transfers, err := l.db.FilterTransfers(req.Context(), &filter)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, transfers)
}

func (l *Ledger) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/events").
		Methods(http.MethodPost).
		Name("POST /ledger/events").
		HandlerFunc(restutil.WrapHandlerFunc(l.handleFilterEvents))
	sub.Path("/transfers").
		Methods(http.MethodPost).
		Name("POST /ledger/transfers").
		HandlerFunc(restutil.WrapHandlerFunc(l.handleFilterTransfers))
}
