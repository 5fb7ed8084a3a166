package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/localstore"
	"github.com/owlet-labs/owletsync/internal/remote"
	"github.com/owlet-labs/owletsync/internal/schema"
)

const remoteChildID = "3f1d2a84-9c0b-4e6d-8a2f-5b7c9d1e0f3a"

// fakeQuerier records remote writes on a channel. Select returns no rows.
type fakeQuerier struct {
	writes chan string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{writes: make(chan string, 16)}
}

func (f *fakeQuerier) Select(ctx context.Context, table string, order remote.Order, dest any) error {
	return json.Unmarshal([]byte("[]"), dest)
}

func (f *fakeQuerier) Insert(ctx context.Context, table string, row any) error {
	f.writes <- "insert"
	return nil
}

func (f *fakeQuerier) Update(ctx context.Context, table, id string, patch any) error {
	f.writes <- "update"
	return nil
}

func (f *fakeQuerier) Delete(ctx context.Context, table, id string) error {
	f.writes <- "delete"
	return nil
}

type fakeNet struct {
	mu     sync.Mutex
	online bool
}

func (f *fakeNet) IsOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

// newTestManager wires a Manager over a sessions store backed by fakes.
func newTestManager(t *testing.T, online bool) (*Manager, *cache.Store[schema.SessionRecord], *fakeQuerier) {
	t.Helper()

	rmt := newFakeQuerier()
	logger := log.New(os.Stderr, "[session-test] ", 0)
	sessions := cache.New(cache.Config[schema.SessionRecord]{
		Table:      "sessions",
		OrderBy:    remote.Order{Column: "starttime", Descending: true},
		NaturalKey: schema.SessionRecord.NaturalKey,
	}, cache.Deps{
		Remote: rmt,
		Net:    &fakeNet{online: online},
		Logger: logger,
	})

	clock := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	mgr := NewManager(Config{
		Sessions: sessions,
		UserID:   "user-1",
		Logger:   logger,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})

	return mgr, sessions, rmt
}

func expectInsert(t *testing.T, rmt *fakeQuerier) {
	t.Helper()
	select {
	case kind := <-rmt.writes:
		if kind != "insert" {
			t.Fatalf("expected remote insert, got %s", kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("remote insert never happened")
	}
}

func expectNoWrite(t *testing.T, rmt *fakeQuerier) {
	t.Helper()
	select {
	case kind := <-rmt.writes:
		t.Fatalf("unexpected remote %s", kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEndWithoutStartIsNoop(t *testing.T) {
	mgr, sessions, rmt := newTestManager(t, true)

	mgr.EndSession()

	if sessions.Count() != 0 {
		t.Errorf("expected no record, got %d", sessions.Count())
	}
	expectNoWrite(t, rmt)
}

func TestEndSessionRemoteChild(t *testing.T) {
	mgr, sessions, rmt := newTestManager(t, true)

	mgr.StartChildSession(schema.NewChildID(remoteChildID), schema.ActivityLesson)
	mgr.EndSession()

	if sessions.Count() != 1 {
		t.Fatalf("expected 1 record, got %d", sessions.Count())
	}
	rec := sessions.Items()[0]
	if rec.SessionStatus != schema.SessionCompleted {
		t.Errorf("expected completed status, got %s", rec.SessionStatus)
	}
	if rec.ActivityType != schema.ActivityLesson {
		t.Errorf("expected lesson activity, got %s", rec.ActivityType)
	}
	if rec.EndTime == "" || rec.StartTime == "" || rec.Date == "" {
		t.Errorf("incomplete record: %+v", rec)
	}
	if rec.UserID != "user-1" {
		t.Errorf("expected user id stamped, got %q", rec.UserID)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("record does not validate: %v", err)
	}

	expectInsert(t, rmt)
	if mgr.Active() {
		t.Error("session should not be active after end")
	}
}

func TestEndSessionLocalChildNeverTouchesNetwork(t *testing.T) {
	mgr, sessions, rmt := newTestManager(t, true)

	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityGame)
	mgr.EndSession()

	if sessions.Count() != 1 {
		t.Fatalf("expected local history recorded, got %d", sessions.Count())
	}
	expectNoWrite(t, rmt)
}

func TestEndSessionRemoteChildOffline(t *testing.T) {
	mgr, sessions, rmt := newTestManager(t, false)

	mgr.StartChildSession(schema.NewChildID(remoteChildID), schema.ActivityQuiz)
	mgr.EndSession()

	if sessions.Count() != 1 {
		t.Fatalf("expected local record despite being offline, got %d", sessions.Count())
	}
	expectNoWrite(t, rmt)
}

func TestRestartMarksPriorSessionStalled(t *testing.T) {
	mgr, sessions, _ := newTestManager(t, false)

	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityLesson)
	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityGame)
	mgr.EndSession()

	items := sessions.Items()
	if len(items) != 2 {
		t.Fatalf("expected stalled + completed records, got %d", len(items))
	}

	// Entries are prepended: completed first, stalled second.
	if items[0].SessionStatus != schema.SessionCompleted || items[0].ActivityType != schema.ActivityGame {
		t.Errorf("unexpected newest record: %+v", items[0])
	}
	if items[1].SessionStatus != schema.SessionStalled || items[1].ActivityType != schema.ActivityLesson {
		t.Errorf("abandoned session not recorded as stalled: %+v", items[1])
	}
	if items[1].EndTime == "" {
		t.Error("stalled record should carry an end time")
	}
}

func TestResetDiscardsSession(t *testing.T) {
	mgr, sessions, rmt := newTestManager(t, true)

	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityAuth)
	mgr.ResetSession()
	mgr.EndSession()

	if sessions.Count() != 0 {
		t.Errorf("reset should leave no record, got %d", sessions.Count())
	}
	expectNoWrite(t, rmt)
	if mgr.Active() {
		t.Error("session should not be active after reset")
	}
}

func TestExitedMidGameRecordedAndCleared(t *testing.T) {
	mgr, sessions, _ := newTestManager(t, false)

	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityGame)
	mgr.MarkExitedMidGame()
	mgr.EndSession()

	if got := sessions.Items()[0].SessionDetails; got != exitedMidGameDetail {
		t.Errorf("expected %q in sessiondetails, got %q", exitedMidGameDetail, got)
	}

	// The flag does not leak into the next session.
	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityGame)
	mgr.EndSession()

	if got := sessions.Items()[0].SessionDetails; got != "" {
		t.Errorf("flag leaked into new session: %q", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	mgr, _, _ := newTestManager(t, false)

	mgr.StartChildSession(schema.NewLocalChildID("demo-child"), schema.ActivityQuiz)
	mgr.MarkExitedMidGame()
	st := mgr.State()

	// A fresh manager picks up where the old one left off.
	mgr2, sessions2, _ := newTestManager(t, false)
	mgr2.Restore(st)

	if !mgr2.Active() {
		t.Fatal("restored manager should have an active session")
	}
	child, kind, _ := mgr2.Current()
	if child.String() != "demo-child" || kind != schema.ActivityQuiz {
		t.Errorf("restored fields mismatch: %s %s", child, kind)
	}

	mgr2.EndSession()
	if sessions2.Count() != 1 {
		t.Errorf("restored session should close into a record, got %d", sessions2.Count())
	}
	if got := sessions2.Items()[0].SessionDetails; got != exitedMidGameDetail {
		t.Errorf("restored flag lost: %q", got)
	}

	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("state should marshal: %v", err)
	}
	var decoded State
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("state should unmarshal: %v", err)
	}
	if decoded != st {
		t.Errorf("state JSON round trip mismatch: %+v vs %+v", decoded, st)
	}
}

// fakeUpserter records upsert calls for registry tests.
type fakeUpserter struct {
	mu         sync.Mutex
	calls      int
	onConflict string
	err        error
}

func (f *fakeUpserter) Upsert(ctx context.Context, table, onConflict string, row any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.onConflict = onConflict
	return f.err
}

func newTestRegistry(t *testing.T, up *fakeUpserter, online bool) *Registry {
	t.Helper()

	kv, err := localstore.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open localstore: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	return NewRegistry(kv, up, &fakeNet{online: online}, log.New(os.Stderr, "[registry-test] ", 0))
}

func TestRegistrySaveAndLoad(t *testing.T) {
	up := &fakeUpserter{}
	reg := newTestRegistry(t, up, true)

	profile := schema.ParentProfile{Email: "parent@example.com", Name: "Alex"}
	if err := reg.SaveProfile(context.Background(), profile); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	got, ok, err := reg.Profile()
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if !ok {
		t.Fatal("expected a saved profile")
	}
	if got.Email != profile.Email || got.Name != profile.Name {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if up.calls != 1 {
		t.Errorf("expected 1 upsert, got %d", up.calls)
	}
	if up.onConflict != "email" {
		t.Errorf("expected upsert keyed on email, got %q", up.onConflict)
	}
}

func TestRegistryOfflineSkipsUpsert(t *testing.T) {
	up := &fakeUpserter{}
	reg := newTestRegistry(t, up, false)

	if err := reg.SaveProfile(context.Background(), schema.ParentProfile{Email: "parent@example.com"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	if up.calls != 0 {
		t.Errorf("offline save must not upsert, got %d calls", up.calls)
	}
	if _, ok, _ := reg.Profile(); !ok {
		t.Error("local profile should persist regardless of connectivity")
	}
}

func TestRegistryRemoteFailureIsSwallowed(t *testing.T) {
	up := &fakeUpserter{err: errors.New("service unavailable")}
	reg := newTestRegistry(t, up, true)

	if err := reg.SaveProfile(context.Background(), schema.ParentProfile{Email: "parent@example.com"}); err != nil {
		t.Errorf("remote failure must not surface: %v", err)
	}
}

func TestRegistryRejectsInvalidProfile(t *testing.T) {
	up := &fakeUpserter{}
	reg := newTestRegistry(t, up, true)

	if err := reg.SaveProfile(context.Background(), schema.ParentProfile{}); err == nil {
		t.Error("expected validation error for empty email")
	}

	if _, ok, _ := reg.Profile(); ok {
		t.Error("invalid profile must not persist")
	}
}

func TestRegistryClear(t *testing.T) {
	up := &fakeUpserter{}
	reg := newTestRegistry(t, up, false)

	_ = reg.SaveProfile(context.Background(), schema.ParentProfile{Email: "parent@example.com"})
	if err := reg.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, ok, _ := reg.Profile(); ok {
		t.Error("profile should be gone after Clear")
	}
}
