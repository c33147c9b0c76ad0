package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"trainerdesk/internal/application/timeutil"
	"trainerdesk/internal/domain/session"
)

// mockRepo implements SessionRepository for controller tests.
type mockRepo struct {
	sessions   map[string]session.Session
	nextID     int
	loadCalls  int
	loadRanges [][2]time.Time
	failLoad   error
	failWrite  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: make(map[string]session.Session)}
}

func (m *mockRepo) LoadSessions(_ context.Context, start, end time.Time, f Filters) ([]session.Session, error) {
	m.loadCalls++
	m.loadRanges = append(m.loadRanges, [2]time.Time{start, end})
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	var out []session.Session
	for _, s := range m.sessions {
		if s.StartAt.Before(start) || s.StartAt.After(end) {
			continue
		}
		if f.ClientID != "" && s.ClientID != f.ClientID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, s session.Session) (session.Session, error) {
	if m.failWrite != nil {
		return session.Session{}, m.failWrite
	}
	m.nextID++
	s.ID = fmt.Sprintf("gen-%03d", m.nextID)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockRepo) CreateBatch(ctx context.Context, batch []session.Session) ([]session.Session, error) {
	out := make([]session.Session, 0, len(batch))
	for _, s := range batch {
		created, err := m.Create(ctx, s)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, s session.Session) (session.Session, error) {
	if m.failWrite != nil {
		return session.Session{}, m.failWrite
	}
	if _, ok := m.sessions[s.ID]; !ok {
		return session.Session{}, errors.New("not found")
	}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockRepo) Delete(_ context.Context, id string) (bool, error) {
	if m.failWrite != nil {
		return false, m.failWrite
	}
	if _, ok := m.sessions[id]; !ok {
		return false, nil
	}
	delete(m.sessions, id)
	return true, nil
}

func (m *mockRepo) seed(id, clientID string, start, end time.Time) {
	m.sessions[id] = session.Session{
		ID:       id,
		ClientID: clientID,
		DateKey:  start.UTC().Format(timeutil.DateKeyLayout),
		StartAt:  start.UTC(),
		EndAt:    end.UTC(),
		Status:   session.StatusBooked,
	}
}

func newTestController(repo *mockRepo) *Controller {
	return NewController(ControllerDeps{
		Repo:         repo,
		Normalizer:   timeutil.NewNormalizer(time.UTC),
		PaddingWeeks: 1,
		Now:          func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
}

// TestController_SelectMonth tests fetch, prefetch and cache hits.
func TestController_SelectMonth(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)

	if ctrl.State() != StateIdle {
		t.Fatalf("expected initial state idle, got %s", ctrl.State())
	}
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctrl.State() != StateReady {
		t.Errorf("expected state ready, got %s", ctrl.State())
	}
	// Requested month plus two neighbor prefetches.
	if repo.loadCalls != 3 {
		t.Errorf("expected 3 repository loads (month + 2 neighbors), got %d", repo.loadCalls)
	}
	// Requested month used the padded range, neighbors did not.
	wantPaddedStart := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC) // 7 days before 2024-03-01
	if !repo.loadRanges[0][0].Equal(wantPaddedStart) {
		t.Errorf("padded month range start = %v, want %v", repo.loadRanges[0][0], wantPaddedStart)
	}
	if got := repo.loadRanges[1][0].Format(timeutil.DateKeyLayout); got != "2024-02-01" {
		t.Errorf("neighbor range start = %s, want unpadded 2024-02-01", got)
	}

	// Re-selecting a cached month makes no further repository calls.
	calls := repo.loadCalls
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loadCalls != calls {
		t.Errorf("cache hit should short-circuit loads, got %d extra", repo.loadCalls-calls)
	}
}

// TestController_SelectMonth_FetchFailure tests the Error transition and
// that existing cache contents survive a failed fetch.
func TestController_SelectMonth_FetchFailure(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)

	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.failLoad = errors.New("disk gone")
	err := ctrl.SelectMonth(context.Background(), 2024, time.June)
	if err == nil {
		t.Fatal("expected fetch error")
	}
	if !IsRepository(err) {
		t.Errorf("expected RepositoryError, got %T", err)
	}
	if ctrl.State() != StateError {
		t.Errorf("expected state error, got %s", ctrl.State())
	}
	// March data is still served from cache.
	if got := ctrl.SelectDay("2024-03-04"); len(got) != 1 {
		t.Errorf("expected stale cache preserved, got %d sessions", len(got))
	}

	// Retry transitions Error -> Loading -> Ready.
	repo.failLoad = nil
	if err := ctrl.SelectMonth(context.Background(), 2024, time.June); err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	if ctrl.State() != StateReady {
		t.Errorf("expected state ready after retry, got %s", ctrl.State())
	}
}

// TestController_SelectDay_Sorted tests that the agenda is ordered by start
// instant ascending regardless of fetch order.
func TestController_SelectDay_Sorted(t *testing.T) {
	repo := newMockRepo()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	repo.seed("late", "c1", day.Add(15*time.Hour), day.Add(16*time.Hour))
	repo.seed("early", "c2", day.Add(8*time.Hour), day.Add(9*time.Hour))
	repo.seed("mid", "c3", day.Add(12*time.Hour), day.Add(13*time.Hour))
	ctrl := newTestController(repo)

	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agenda := ctrl.SelectDay("2024-03-04")
	if len(agenda) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(agenda))
	}
	wantOrder := []string{"early", "mid", "late"}
	for i, want := range wantOrder {
		if agenda[i].ID != want {
			t.Errorf("agenda[%d] = %s, want %s", i, agenda[i].ID, want)
		}
	}
	if ctrl.SelectedDay() != "2024-03-04" {
		t.Errorf("SelectedDay = %s", ctrl.SelectedDay())
	}
}

// TestController_CreateSession_ConflictBlocks replays the booked-overlap
// scenario: 09:00-10:00 exists, creating 09:30-10:30 must report exactly one
// conflict and persist nothing until overridden.
func TestController_CreateSession_ConflictBlocks(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input := CreateSessionInput{
		ClientID: "c2",
		Start:    time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
	}
	res, err := ctrl.CreateSession(context.Background(), input)
	if err != nil {
		t.Fatalf("conflict should not be an error, got %v", err)
	}
	if !res.HasConflicts() {
		t.Fatal("expected a conflict result")
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].ID != "s1" {
		t.Errorf("expected exactly the original session as conflict, got %v", res.Conflicts)
	}
	if len(res.Created) != 0 {
		t.Error("nothing should be persisted on conflict")
	}
	if len(repo.sessions) != 1 {
		t.Errorf("repository gained sessions on conflict: %d", len(repo.sessions))
	}

	// Explicit override persists despite the collision.
	input.Override = true
	res, err = ctrl.CreateSession(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 1 {
		t.Fatalf("expected 1 created session on override, got %d", len(res.Created))
	}
	if got := ctrl.SelectDay("2024-03-04"); len(got) != 2 {
		t.Errorf("expected 2 sessions in day bucket after override, got %d", len(got))
	}
}

// TestController_CreateSession_Validation tests pre-I/O rejection.
func TestController_CreateSession_Validation(t *testing.T) {
	repo := newMockRepo()
	ctrl := newTestController(repo)

	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input CreateSessionInput
	}{
		{"missing client", CreateSessionInput{Start: start, End: start.Add(time.Hour)}},
		{"start equals end", CreateSessionInput{ClientID: "c1", Start: start, End: start}},
		{"start after end", CreateSessionInput{ClientID: "c1", Start: start.Add(time.Hour), End: start}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ctrl.CreateSession(context.Background(), tt.input)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !IsValidation(err) {
				t.Errorf("expected ValidationError, got %T: %v", err, err)
			}
			if repo.loadCalls != 0 || len(repo.sessions) != 0 {
				t.Error("validation failures must not reach the repository")
			}
		})
	}
}

// TestController_CreateSession_Recurring tests weekly batch creation across
// a month boundary.
func TestController_CreateSession_Recurring(t *testing.T) {
	repo := newMockRepo()
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := ctrl.CreateSession(context.Background(), CreateSessionInput{
		ClientID:    "c1",
		Start:       time.Date(2024, 3, 25, 17, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 25, 18, 0, 0, 0, time.UTC),
		RepeatWeeks: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Created) != 3 {
		t.Fatalf("expected base + 2 expansions = 3 created, got %d", len(res.Created))
	}
	if res.Created[0].Recurring {
		t.Error("base session should not be marked recurring")
	}
	for i, s := range res.Created[1:] {
		if !s.Recurring {
			t.Errorf("expansion %d should be marked recurring", i)
		}
		if s.ID == "" {
			t.Errorf("expansion %d should have an id after persistence", i)
		}
	}
	wantKeys := []string{"2024-03-25", "2024-04-01", "2024-04-08"}
	for i, s := range res.Created {
		if s.DateKey != wantKeys[i] {
			t.Errorf("created[%d] date key = %s, want %s", i, s.DateKey, wantKeys[i])
		}
	}
	// The April instances land in the (prefetched) neighbor month's buckets.
	if got := ctrl.SelectDay("2024-04-01"); len(got) != 1 {
		t.Errorf("expected April bucket populated, got %d", len(got))
	}
}

// TestController_EditSession_RelocatesBucket replays the reschedule
// scenario: moving 2024-03-04 to 2024-03-11 leaves the old bucket and joins
// the new one with the same id.
func TestController_EditSession_RelocatesBucket(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	moved := repo.sessions["s1"]
	moved.StartAt = time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	moved.EndAt = time.Date(2024, 3, 11, 10, 0, 0, 0, time.UTC)

	persisted, err := ctrl.EditSession(context.Background(), moved)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted.DateKey != "2024-03-11" {
		t.Errorf("date key = %s, want 2024-03-11", persisted.DateKey)
	}
	if got := ctrl.SelectDay("2024-03-04"); len(got) != 0 {
		t.Errorf("old bucket should be empty, has %d", len(got))
	}
	newBucket := ctrl.SelectDay("2024-03-11")
	if len(newBucket) != 1 || newBucket[0].ID != "s1" {
		t.Errorf("new bucket should hold s1, got %v", newBucket)
	}
}

// TestController_EditSession_AcrossMonths tests that moving a session into
// another month marks that month stale for re-fetch.
func TestController_EditSession_AcrossMonths(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 28, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 28, 10, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	moved := repo.sessions["s1"]
	moved.StartAt = time.Date(2024, 4, 4, 9, 0, 0, 0, time.UTC)
	moved.EndAt = time.Date(2024, 4, 4, 10, 0, 0, 0, time.UTC)
	if _, err := ctrl.EditSession(context.Background(), moved); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// April was prefetched, then invalidated by the move; selecting it must
	// hit the repository again.
	calls := repo.loadCalls
	if err := ctrl.SelectMonth(context.Background(), 2024, time.April); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.loadCalls == calls {
		t.Error("expected stale April to be re-fetched after cross-month edit")
	}
	bucket := ctrl.SelectDay("2024-04-04")
	if len(bucket) != 1 || bucket[0].ID != "s1" {
		t.Errorf("expected s1 in April bucket, got %v", bucket)
	}
}

// TestController_DeleteSession replays the delete scenario: the day bucket
// shrinks by one and no longer includes the id.
func TestController_DeleteSession(t *testing.T) {
	repo := newMockRepo()
	repo.seed("s1", "c1", time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	repo.seed("s2", "c2", time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC))
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := ctrl.SelectDay("2024-03-04")
	if len(before) != 2 {
		t.Fatalf("precondition: expected 2 sessions, got %d", len(before))
	}

	deleted, err := ctrl.DeleteSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !deleted {
		t.Fatal("expected delete to succeed")
	}
	after := ctrl.SelectDay("2024-03-04")
	if len(after) != 1 {
		t.Fatalf("expected bucket to shrink to 1, got %d", len(after))
	}
	if after[0].ID == "s1" {
		t.Error("deleted id still present in bucket")
	}
	if _, ok := repo.sessions["s1"]; ok {
		t.Error("repository still holds deleted session")
	}

	// Deleting an unknown id reports false without error.
	deleted, err = ctrl.DeleteSession(context.Background(), "ghost")
	if err != nil || deleted {
		t.Errorf("expected (false, nil) for unknown id, got (%v, %v)", deleted, err)
	}
}

// TestController_WriteFailureLeavesCacheUntouched tests that a failed create
// surfaces a typed error and never enters the cache.
func TestController_WriteFailureLeavesCacheUntouched(t *testing.T) {
	repo := newMockRepo()
	ctrl := newTestController(repo)
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.failWrite = errors.New("disk full")
	_, err := ctrl.CreateSession(context.Background(), CreateSessionInput{
		ClientID: "c1",
		Start:    time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	if err == nil {
		t.Fatal("expected write error")
	}
	if !IsRepository(err) {
		t.Errorf("expected RepositoryError, got %T", err)
	}
	// Write failures do not flip the controller into Error; only fetches do.
	if ctrl.State() != StateReady {
		t.Errorf("expected state ready after write failure, got %s", ctrl.State())
	}
	if got := ctrl.SelectDay("2024-03-04"); len(got) != 0 {
		t.Errorf("failed write leaked into cache: %v", got)
	}
}

// TestController_OnChange tests that mutations notify the observer hook.
func TestController_OnChange(t *testing.T) {
	repo := newMockRepo()
	var events []ChangeEvent
	ctrl := NewController(ControllerDeps{
		Repo:       repo,
		Normalizer: timeutil.NewNormalizer(time.UTC),
		OnChange:   func(ev ChangeEvent) { events = append(events, ev) },
	})
	if err := ctrl.SelectMonth(context.Background(), 2024, time.March); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ctrl.CreateSession(context.Background(), CreateSessionInput{
		ClientID: "c1",
		Start:    time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ctrl.DeleteSession(context.Background(), res.Created[0].ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	want := []string{ChangeMonthLoaded, ChangeSessionCreated, ChangeSessionDeleted}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d events %v, got %v", len(want), want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}
