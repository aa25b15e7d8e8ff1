// Copyright (c) 2026 The StakeVault developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/stakevault/core/api/incidents"
	"github.com/stakevault/core/api/ledger"
	"github.com/stakevault/core/api/pools"
	"github.com/stakevault/core/api/proposals"
	"github.com/stakevault/core/api/roles"
	"github.com/stakevault/core/eventdb"
	"github.com/stakevault/core/log"
	"github.com/stakevault/core/runtime"
)

var logger = log.WithContext("pkg", "api")

type Options struct {
	AllowedOrigins string
	EnableMetrics  bool
	LogsLimit      uint64
}

// New returns the read-only api router. The event db is optional; without it
// the ledger endpoints are not mounted.
func New(rt *runtime.Runtime, eventDB *eventdb.EventDB, opts Options) http.HandlerFunc {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	now := func() uint64 { return uint64(time.Now().Unix()) }

	router := mux.NewRouter()
	roles.New(rt.AccessControl, now).
		Mount(router, "/roles")
	pools.New(rt.Staking, rt.Rewards, rt.Factory, now).
		Mount(router, "/pools")
	incidents.New(rt.Emergency).
		Mount(router, "/incidents")
	proposals.New(rt.Governance).
		Mount(router, "/proposals")
	if eventDB != nil {
		ledger.New(eventDB, opts.LogsLimit).
			Mount(router, "/ledger")
	}

	if opts.EnableMetrics {
		router.Use(metricsHandler)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	logger.Debug("api router assembled", "origins", origins)
	return handler.ServeHTTP
}
