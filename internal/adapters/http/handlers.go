package web

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"trainerdesk/internal/application/listutil"
	"trainerdesk/internal/application/projections"
	"trainerdesk/internal/application/scheduler"
	clientDomain "trainerdesk/internal/domain/client"
	sessionDomain "trainerdesk/internal/domain/session"
)

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON serializes v with the JSON content type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}

// sessionJSON is the wire shape of a session.
type sessionJSON struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	DateKey   string    `json:"date_key"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Recurring bool      `json:"recurring"`
}

func toSessionJSON(s sessionDomain.Session) sessionJSON {
	return sessionJSON{
		ID:        s.ID,
		ClientID:  s.ClientID,
		DateKey:   s.DateKey,
		StartAt:   s.StartAt,
		EndAt:     s.EndAt,
		Status:    s.Status,
		Location:  s.Location,
		Notes:     s.Notes,
		Recurring: s.Recurring,
	}
}

func toSessionJSONList(sessions []sessionDomain.Session) []sessionJSON {
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionJSON(s))
	}
	return out
}

// clientJSON is the wire shape of a client.
type clientJSON struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status"`
}

func toClientJSON(c clientDomain.Client) clientJSON {
	return clientJSON{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		Status:    c.Status,
	}
}

// --- Health and auth ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Passcode string `json:"passcode"`
	}
	if err := strictDecode(r, &body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.deps.Auth.Enabled() {
		writeJSON(w, http.StatusOK, map[string]string{"token": ""})
		return
	}
	token, ok := s.deps.Auth.Exchange(body.Passcode)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// --- Calendar and agenda ---

func (s *Server) handleGetCalendarMonth(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		http.Error(w, "invalid year or month", http.StatusBadRequest)
		return
	}

	if err := s.deps.Controller.SelectMonth(r.Context(), year, time.Month(month)); err != nil {
		internalError(w, err)
		return
	}

	view := s.deps.Controller.MonthView()
	days := make(map[string][]sessionJSON, len(view))
	for key, bucket := range view {
		days[key] = toSessionJSONList(bucket)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"state": s.deps.Controller.State(),
		"days":  days,
	})
}

func (s *Server) handleGetAgenda(w http.ResponseWriter, r *http.Request) {
	query := projections.GetDayAgendaQuery{DateKey: mux.Vars(r)["dateKey"]}
	result, err := projections.QueryGetDayAgenda(r.Context(), query, projections.GetDayAgendaDeps{
		Repo:       s.deps.Sessions,
		Clients:    s.deps.Clients,
		Normalizer: s.deps.Normalizer,
	})
	if err != nil {
		http.Error(w, "invalid date key", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Sessions ---

// createSessionBody is the POST /api/sessions request shape.
type createSessionBody struct {
	ClientID    string    `json:"client_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status"`
	Location    string    `json:"location"`
	Notes       string    `json:"notes"`
	RepeatWeeks int       `json:"repeat_weeks"`
	Override    bool      `json:"override"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if err := strictDecode(r, &body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.deps.Controller.CreateSession(r.Context(), scheduler.CreateSessionInput{
		ClientID:    body.ClientID,
		Start:       body.Start,
		End:         body.End,
		Status:      body.Status,
		Location:    body.Location,
		Notes:       body.Notes,
		RepeatWeeks: body.RepeatWeeks,
		Override:    body.Override,
	})
	if err != nil {
		if scheduler.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		internalError(w, err)
		return
	}

	if result.HasConflicts() {
		writeJSON(w, http.StatusConflict, map[string]any{
			"conflicts": toSessionJSONList(result.Conflicts),
			"candidate": toSessionJSON(result.Candidate),
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created": toSessionJSONList(result.Created),
	})
}

// updateSessionBody is the PUT /api/sessions/{id} request shape.
type updateSessionBody struct {
	ClientID string    `json:"client_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Status   string    `json:"status"`
	Location string    `json:"location"`
	Notes    string    `json:"notes"`
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	existing, err := s.deps.Sessions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		internalError(w, err)
		return
	}

	var body updateSessionBody
	if err := strictDecode(r, &body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated := existing
	updated.ClientID = body.ClientID
	updated.StartAt = body.Start
	updated.EndAt = body.End
	updated.Status = body.Status
	updated.Location = body.Location
	updated.Notes = body.Notes

	saved, err := s.deps.Controller.EditSession(r.Context(), updated)
	if err != nil {
		if scheduler.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(saved))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	found, err := s.deps.Controller.DeleteSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		internalError(w, err)
		return
	}
	if !found {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Clients ---

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	params := listutil.ParseListParams(r.URL.Query())

	clients, err := s.deps.Clients.List(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}

	matched := make([]clientJSON, 0, len(clients))
	for _, c := range clients {
		if params.Status != "" && c.Status != params.Status {
			continue
		}
		if params.Search != "" && !clientMatches(c, params.Search) {
			continue
		}
		matched = append(matched, toClientJSON(c))
	}

	page := listutil.NewPageInfo(params.Page, params.PerPage, len(matched))
	start := page.Offset()
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clients": matched[start:end],
		"page":    page,
	})
}

// clientMatches does a case-insensitive substring match over the
// client's name and email.
func clientMatches(c clientDomain.Client, search string) bool {
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(c.DisplayName()), needle) ||
		strings.Contains(strings.ToLower(c.Email), needle)
}

func (s *Server) handleSaveClient(w http.ResponseWriter, r *http.Request) {
	var body clientJSON
	if err := strictDecode(r, &body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c := clientDomain.Client{
		ID:        body.ID,
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Phone:     body.Phone,
		Notes:     body.Notes,
		Status:    body.Status,
	}
	created := c.ID == ""
	if created {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = clientDomain.StatusActive
	}
	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.deps.Clients.Save(r.Context(), c); err != nil {
		internalError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toClientJSON(c))
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Clients.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "client not found", http.StatusNotFound)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientJSON(c))
}

func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Clients.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		internalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetClientHistory(w http.ResponseWriter, r *http.Request) {
	query := projections.GetClientHistoryQuery{
		ClientID: mux.Vars(r)["id"],
	}
	if statuses := r.URL.Query()["status"]; len(statuses) > 0 {
		query.Statuses = statuses
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, s.deps.Normalizer.Location())
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		query.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, s.deps.Normalizer.Location())
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}
		query.To = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	result, err := projections.QueryGetClientHistory(r.Context(), query, projections.GetClientHistoryDeps{
		Repo:       s.deps.Sessions,
		Normalizer: s.deps.Normalizer,
		Now:        s.deps.Now,
	})
	if err != nil {
		if errors.Is(err, projections.ErrMissingClientID) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
