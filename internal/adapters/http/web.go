// Package web exposes the scheduling engine, client directory and read
// models as a JSON API, plus a WebSocket feed and an ICS calendar export.
package web

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"trainerdesk/internal/adapters/http/middleware"
	clientStore "trainerdesk/internal/adapters/storage/client"
	sessionStore "trainerdesk/internal/adapters/storage/session"
	"trainerdesk/internal/adapters/ws"
	"trainerdesk/internal/application/scheduler"
	"trainerdesk/internal/application/timeutil"
)

// Deps holds everything the HTTP layer needs. All fields are required
// except Hub, which may be nil when the WebSocket feed is disabled.
type Deps struct {
	Controller *scheduler.Controller
	Sessions   sessionStore.Store
	Clients    clientStore.Store
	Hub        *ws.Hub
	Normalizer *timeutil.Normalizer
	Auth       *middleware.PasscodeAuth
	Now        func() time.Time
}

// Server carries handler state. One instance serves the whole API.
type Server struct {
	deps Deps
}

// NewRouter builds the full route table.
//
// /health and POST /api/auth are reachable without a token; everything
// else under /api, plus /ws, requires one when auth is enabled.
func NewRouter(deps Deps) *mux.Router {
	s := &Server{deps: deps}
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/api/auth", middleware.RequestLogger(http.HandlerFunc(s.handleAuth))).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RequestLogger)
	api.Use(deps.Auth.Middleware)
	api.Use(middleware.NewRateLimiter(120, time.Minute).Middleware)

	api.HandleFunc("/calendar/{year:[0-9]+}/{month:[0-9]+}", s.handleGetCalendarMonth).Methods("GET")
	api.HandleFunc("/calendar.ics", s.handleGetCalendarICS).Methods("GET")
	api.HandleFunc("/agenda/{dateKey}", s.handleGetAgenda).Methods("GET")

	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions/{id}", s.handleUpdateSession).Methods("PUT")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	api.HandleFunc("/clients", s.handleListClients).Methods("GET")
	api.HandleFunc("/clients", s.handleSaveClient).Methods("POST")
	api.HandleFunc("/clients/{id}", s.handleGetClient).Methods("GET")
	api.HandleFunc("/clients/{id}", s.handleDeleteClient).Methods("DELETE")
	api.HandleFunc("/clients/{id}/history", s.handleGetClientHistory).Methods("GET")

	// The WebSocket route skips the request logger so the upgrader can
	// hijack the raw connection; auth still applies via query token.
	if deps.Hub != nil {
		r.Handle("/ws", deps.Auth.Middleware(ws.UpgradeHandler(deps.Hub))).Methods("GET")
	}

	return r
}
