// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package incidents

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/stakevault/core/api/restutil"
	"github.com/stakevault/core/emergency"
	"github.com/stakevault/core/vault"
)

// Incidents exposes the emergency incident ledger and the circuit breaker.
type Incidents struct {
	guard *emergency.Emergency
}

func New(guard *emergency.Emergency) *Incidents {
	return &Incidents{guard}
}

// Incident is the wire view of one incident record.
type Incident struct {
	ID          uint64        `json:"id"`
	Level       uint8         `json:"level"`
	LevelName   string        `json:"levelName"`
	Reason      string        `json:"reason"`
	TriggeredBy vault.Address `json:"triggeredBy"`
	Timestamp   uint64        `json:"timestamp"`
	Resolved    bool          `json:"resolved"`
	ResolvedAt  uint64        `json:"resolvedAt"`
	ResolvedBy  vault.Address `json:"resolvedBy"`
	Resolution  string        `json:"resolution"`
}

func convertIncident(id uint64, event *emergency.Event) *Incident {
	return &Incident{
		ID:          id,
		Level:       event.Level,
		LevelName:   emergency.LevelName(event.Level),
		Reason:      event.Reason,
		TriggeredBy: event.TriggeredBy,
		Timestamp:   event.Timestamp,
		Resolved:    event.Resolved,
		ResolvedAt:  event.ResolvedAt,
		ResolvedBy:  event.ResolvedBy,
		Resolution:  event.Resolution,
	}
}

func (i *Incidents) handleGetStatus(w http.ResponseWriter, _ *http.Request) error {
	status, err := i.guard.CurrentStatus()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, status)
}

func (i *Incidents) handleGetBreaker(w http.ResponseWriter, _ *http.Request) error {
	status, err := i.guard.CircuitBreakerStatus()
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, status)
}

func (i *Incidents) handleGetHistory(w http.ResponseWriter, req *http.Request) error {
	var limit uint64
	if raw := req.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return restutil.BadRequest(errors.WithMessage(err, "limit"))
		}
	}
	status, err := i.guard.CurrentStatus()
	if err != nil {
		return err
	}
	events, err := i.guard.History(limit)
	if err != nil {
		return err
	}
	converted := make([]*Incident, len(events))
	for n, event := range events {
		// History is newest first, ids count down from the latest
		converted[n] = convertIncident(status.TotalEvents-uint64(n), event)
	}
	return restutil.WriteJSON(w, converted)
}

func (i *Incidents) handleGetIncident(w http.ResponseWriter, req *http.Request) error {
	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "id"))
	}
	event, err := i.guard.GetEvent(id)
	if err != nil {
		return err
	}
	if event.IsEmpty() {
		return restutil.NotFound(errors.New("no such incident"))
	}
	return restutil.WriteJSON(w, convertIncident(id, event))
}

func (i *Incidents) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/status").
		Methods(http.MethodGet).
		Name("GET /incidents/status").
		HandlerFunc(restutil.WrapHandlerFunc(i.handleGetStatus))
	sub.Path("/breaker").
		Methods(http.MethodGet).
		Name("GET /incidents/breaker").
		HandlerFunc(restutil.WrapHandlerFunc(i.handleGetBreaker))
	sub.Path("/{id:[0-9]+}").
		Methods(http.MethodGet).
		Name("GET /incidents/{id}").
		HandlerFunc(restutil.WrapHandlerFunc(i.handleGetIncident))
	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /incidents").
		HandlerFunc(restutil.WrapHandlerFunc(i.handleGetHistory))
}
