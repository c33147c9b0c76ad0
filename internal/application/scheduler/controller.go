package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// State is the controller's observable lifecycle state.
type State string

// Controller states.
const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Change kinds emitted through the OnChange hook.
const (
	ChangeMonthLoaded    = "month_loaded"
	ChangeSessionCreated = "session_created"
	ChangeSessionUpdated = "session_updated"
	ChangeSessionDeleted = "session_deleted"
)

// ChangeEvent describes a schedule mutation or load for observers (the UI,
// the WebSocket hub).
type ChangeEvent struct {
	Kind      string   `json:"kind"`
	MonthKeys []string `json:"month_keys,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
	DateKey   string   `json:"date_key,omitempty"`
}

// CreateSessionInput carries input for creating a session (single or weekly
// recurring).
type CreateSessionInput struct {
	ClientID    string
	Start       time.Time
	End         time.Time
	Status      string // defaults to booked
	Location    string
	Notes       string
	RepeatWeeks int  // 0 = single session, n >= 1 = n additional weekly sessions
	Override    bool // persist even when conflicts exist
}

// CreateResult is the structured outcome of a create request. A non-empty
// Conflicts slice means nothing was persisted and the caller must cancel,
// reschedule, or retry with Override.
type CreateResult struct {
	Created   []session.Session
	Conflicts []session.Session
	Candidate session.Session
}

// HasConflicts reports whether the create was blocked by collisions.
func (r CreateResult) HasConflicts() bool {
	return len(r.Conflicts) > 0
}

// ControllerDeps holds dependencies for a Controller.
type ControllerDeps struct {
	Repo         SessionRepository
	Normalizer   *timeutil.Normalizer
	PaddingWeeks int // range padding for the selected month; neighbors fetch unpadded
	Now          func() time.Time
	OnChange     func(ChangeEvent) // optional; must not block
}

// Controller orchestrates month navigation, day selection and session writes
// over a MonthCache. It is the only component in the engine with mutable
// state; one Controller serves one calendar screen, so a single mutex
// serializes access. Fetch failures preserve whatever the cache already
// holds; write failures never touch the cache.
type Controller struct {
	mu    sync.Mutex
	repo  SessionRepository
	norm  *timeutil.Normalizer
	cache *MonthCache

	paddingWeeks int
	now          func() time.Time
	onChange     func(ChangeEvent)

	state        State
	currentYear  int
	currentMonth time.Month
	selectedDay  string
}

// NewController creates a Controller in the Idle state with an empty cache.
// PRE: deps.Repo and deps.Normalizer are non-nil
func NewController(deps ControllerDeps) *Controller {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	padding := deps.PaddingWeeks
	if padding < 0 {
		padding = 0
	}
	return &Controller{
		repo:         deps.Repo,
		norm:         deps.Normalizer,
		cache:        NewMonthCache(),
		paddingWeeks: padding,
		now:          now,
		onChange:     deps.OnChange,
		state:        StateIdle,
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentMonth returns the month the controller is focused on.
func (c *Controller) CurrentMonth() (int, time.Month) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentYear, c.currentMonth
}

// SelectedDay returns the currently selected date key, if any.
func (c *Controller) SelectedDay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDay
}

// SelectMonth focuses the controller on a month, fetching it (padded) on a
// cache miss and prefetching both adjacent months unpadded. Cache hits
// short-circuit repository access. A fetch failure for the requested month
// moves the controller to Error and keeps existing cache contents; prefetch
// failures are logged and otherwise ignored.
// PRE: month is 1..12
func (c *Controller) SelectMonth(ctx context.Context, year int, month time.Month) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentYear = year
	c.currentMonth = month

	monthKey := timeutil.MonthKeyFor(year, month)
	if !c.cache.Has(monthKey) {
		c.state = StateLoading
		if err := c.fetchMonth(ctx, year, month, c.paddingWeeks); err != nil {
			c.state = StateError
			slog.Error("schedule_event", "event", "month_fetch_failed", "month", monthKey, "error", err.Error())
			return err
		}
	}
	c.state = StateReady
	c.emit(ChangeEvent{Kind: ChangeMonthLoaded, MonthKeys: []string{monthKey}})

	// Best-effort prefetch of neighbors. Unpadded, so padded boundary weeks
	// of the selected month are not fetched twice.
	for _, offset := range []int{-1, 1} {
		ny, nm := addMonths(year, month, offset)
		neighborKey := timeutil.MonthKeyFor(ny, nm)
		if c.cache.Has(neighborKey) {
			continue
		}
		if err := c.fetchMonth(ctx, ny, nm, 0); err != nil {
			slog.Warn("schedule_event", "event", "prefetch_failed", "month", neighborKey, "error", err.Error())
		}
	}
	return nil
}

// SelectDay records the selected day and returns its agenda sorted by start
// instant ascending. Pure cache read; no repository access.
func (c *Controller) SelectDay(dateKey string) []session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selectedDay = dateKey
	bucket := c.cache.Bucket(dateKey)
	sort.Slice(bucket, func(i, j int) bool {
		return bucket[i].StartAt.Before(bucket[j].StartAt)
	})
	return bucket
}

// MonthView returns the focused month's sessions grouped by date key,
// covering the padded range so leading and trailing calendar cells are
// included. Days without sessions are omitted. Pure cache read.
func (c *Controller) MonthView() map[string][]session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	start, end := c.norm.MonthRange(c.currentYear, c.currentMonth, c.paddingWeeks)
	view := make(map[string][]session.Session)
	for day := c.norm.ToLocalDate(start); !day.After(end); day = day.AddDate(0, 0, 1) {
		key := c.norm.DateKey(day)
		if bucket := c.cache.Bucket(key); len(bucket) > 0 {
			sort.Slice(bucket, func(i, j int) bool {
				return bucket[i].StartAt.Before(bucket[j].StartAt)
			})
			view[key] = bucket
		}
	}
	return view
}

// CreateSession validates and persists a new session, or a weekly series when
// RepeatWeeks >= 1. Non-recurring creates are checked against the target day
// bucket and return a conflict result instead of persisting unless Override
// is set. Recurring creates expand first and persist the whole batch; the
// repository is not assumed to apply the batch transactionally, so a partial
// failure surfaces as an error after zero cache mutations.
func (c *Controller) CreateSession(ctx context.Context, input CreateSessionInput) (CreateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if input.ClientID == "" {
		return CreateResult{}, validationErr(ErrMissingClient)
	}
	if !input.Start.Before(input.End) {
		return CreateResult{}, validationErr(ErrStartNotBeforeEnd)
	}

	status := input.Status
	if status == "" {
		status = session.StatusBooked
	}
	candidate := session.Session{
		ClientID:  input.ClientID,
		DateKey:   c.norm.DateKey(input.Start),
		StartAt:   input.Start.UTC(),
		EndAt:     input.End.UTC(),
		Status:    status,
		Location:  input.Location,
		Notes:     input.Notes,
		CreatedAt: c.now().UTC(),
	}
	result := CreateResult{Candidate: candidate}

	if input.RepeatWeeks >= 1 {
		return c.createSeries(ctx, candidate, input.RepeatWeeks)
	}

	if !input.Override {
		conflicts := FindConflicts(candidate.StartAt, candidate.EndAt, c.cache.Bucket(candidate.DateKey), "")
		if len(conflicts) > 0 {
			result.Conflicts = conflicts
			slog.Info("schedule_event", "event", "conflict_detected", "date", candidate.DateKey, "count", len(conflicts))
			return result, nil
		}
	}

	created, err := c.repo.Create(ctx, candidate)
	if err != nil {
		return result, repoErr("create", err)
	}
	c.cache.Put(created.DateKey, created)
	c.invalidateAndRefresh(ctx, created.MonthKey())
	result.Created = []session.Session{created}

	slog.Info("schedule_event", "event", "session_created", "session_id", created.ID, "date", created.DateKey, "override", input.Override)
	c.emit(ChangeEvent{Kind: ChangeSessionCreated, SessionID: created.ID, DateKey: created.DateKey, MonthKeys: []string{created.MonthKey()}})
	return result, nil
}

// createSeries expands the base candidate into a weekly batch and persists
// it. Per-instance conflict checks are intentionally skipped on the
// recurring path, matching the single-user booking flow this engine serves.
func (c *Controller) createSeries(ctx context.Context, base session.Session, weeks int) (CreateResult, error) {
	result := CreateResult{Candidate: base}

	expanded, err := ExpandWeekly(base, weeks, c.norm)
	if err != nil {
		return result, validationErr(err)
	}
	batch := append([]session.Session{base}, expanded...)

	created, err := c.repo.CreateBatch(ctx, batch)
	if err != nil {
		return result, repoErr("create", err)
	}

	grouped := make(map[string][]session.Session, len(created))
	monthKeys := make([]string, 0, 2)
	seen := make(map[string]bool)
	for _, s := range created {
		grouped[s.DateKey] = append(grouped[s.DateKey], s)
		if mk := s.MonthKey(); !seen[mk] {
			seen[mk] = true
			monthKeys = append(monthKeys, mk)
		}
	}
	c.cache.Merge(grouped)
	for _, mk := range monthKeys {
		c.invalidateAndRefresh(ctx, mk)
	}
	result.Created = created

	slog.Info("schedule_event", "event", "series_created", "count", len(created), "base_date", base.DateKey, "weeks", weeks)
	c.emit(ChangeEvent{Kind: ChangeSessionCreated, DateKey: base.DateKey, MonthKeys: monthKeys})
	return result, nil
}

// EditSession persists an updated session. When the date moved, the cached
// entry relocates from its old bucket to the new one; both months are marked
// stale. The cache is untouched when the repository rejects the update.
func (c *Controller) EditSession(ctx context.Context, updated session.Session) (session.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	updated.DateKey = c.norm.DateKey(updated.StartAt)
	updated.StartAt = updated.StartAt.UTC()
	updated.EndAt = updated.EndAt.UTC()
	updated.UpdatedAt = c.now().UTC()
	if err := updated.Validate(); err != nil {
		return session.Session{}, validationErr(err)
	}

	persisted, err := c.repo.Update(ctx, updated)
	if err != nil {
		return session.Session{}, repoErr("update", err)
	}

	monthKeys := []string{persisted.MonthKey()}
	if old, ok := c.cache.Remove(persisted.ID); ok && old.MonthKey() != persisted.MonthKey() {
		monthKeys = append(monthKeys, old.MonthKey())
	}
	c.cache.Put(persisted.DateKey, persisted)
	for _, mk := range monthKeys {
		c.invalidateAndRefresh(ctx, mk)
	}

	slog.Info("schedule_event", "event", "session_updated", "session_id", persisted.ID, "date", persisted.DateKey)
	c.emit(ChangeEvent{Kind: ChangeSessionUpdated, SessionID: persisted.ID, DateKey: persisted.DateKey, MonthKeys: monthKeys})
	return persisted, nil
}

// DeleteSession removes a session from the repository and its cache bucket.
// Returns false without error when the id was not found.
func (c *Controller) DeleteSession(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deleted, err := c.repo.Delete(ctx, id)
	if err != nil {
		return false, repoErr("delete", err)
	}
	if !deleted {
		return false, nil
	}

	if removed, ok := c.cache.Remove(id); ok {
		c.invalidateAndRefresh(ctx, removed.MonthKey())
		slog.Info("schedule_event", "event", "session_deleted", "session_id", id, "date", removed.DateKey)
		c.emit(ChangeEvent{Kind: ChangeSessionDeleted, SessionID: id, DateKey: removed.DateKey, MonthKeys: []string{removed.MonthKey()}})
	}
	return true, nil
}

// Refresh re-fetches the focused month, e.g. after an Error state.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentYear == 0 {
		return nil
	}
	c.cache.Invalidate(timeutil.MonthKeyFor(c.currentYear, c.currentMonth))
	c.state = StateLoading
	if err := c.fetchMonth(ctx, c.currentYear, c.currentMonth, c.paddingWeeks); err != nil {
		c.state = StateError
		return err
	}
	c.state = StateReady
	return nil
}

// fetchMonth loads a month's range from the repository and merges it into
// the cache. Caller holds the mutex.
func (c *Controller) fetchMonth(ctx context.Context, year int, month time.Month, paddingWeeks int) error {
	start, end := c.norm.MonthRange(year, month, paddingWeeks)
	sessions, err := c.repo.LoadSessions(ctx, start, end, Filters{})
	if err != nil {
		return repoErr("fetch", err)
	}

	grouped := make(map[string][]session.Session)
	for _, s := range sessions {
		// Normalize: the date key bucket is always derived from the stored
		// start instant, regardless of what the repository returned.
		s.DateKey = c.norm.DateKey(s.StartAt)
		grouped[s.DateKey] = append(grouped[s.DateKey], s)
	}
	c.cache.Merge(grouped)
	c.cache.MarkFetched(timeutil.MonthKeyFor(year, month))
	return nil
}

// invalidateAndRefresh marks a month stale after a write and, when it is the
// focused month, re-fetches it so subsequent reads are authoritative. A
// refresh failure leaves the merged write in place and moves the controller
// to Error; stale-but-available beats empty.
func (c *Controller) invalidateAndRefresh(ctx context.Context, monthKey string) {
	c.cache.Invalidate(monthKey)
	if c.currentYear == 0 || monthKey != timeutil.MonthKeyFor(c.currentYear, c.currentMonth) {
		return
	}
	c.state = StateLoading
	if err := c.fetchMonth(ctx, c.currentYear, c.currentMonth, c.paddingWeeks); err != nil {
		c.state = StateError
		slog.Error("schedule_event", "event", "refresh_failed", "month", monthKey, "error", err.Error())
		return
	}
	c.state = StateReady
}

func (c *Controller) emit(ev ChangeEvent) {
	if c.onChange != nil {
		c.onChange(ev)
	}
}

// addMonths normalizes year/month arithmetic across year boundaries.
func addMonths(year int, month time.Month, offset int) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, offset, 0)
	return t.Year(), t.Month()
}
