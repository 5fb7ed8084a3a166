// Package session tracks the currently active child session and converts it
// into a durable record on close.
//
// The manager owns only the transient fields of the session in progress
// (child, activity, start time). History lives in the sessions cache store;
// the manager appends to it and never reads it back.
package session

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/schema"
)

// exitedMidGameDetail is recorded in sessiondetails when the player left a
// game without finishing it.
const exitedMidGameDetail = "exited_mid_game"

// Config wires a Manager to its collaborators.
type Config struct {
	// Sessions is the cache store session records are appended to.
	Sessions *cache.Store[schema.SessionRecord]

	// UserID is the owning account id stamped onto every record.
	UserID string

	Logger *log.Logger

	// Now overrides the wall clock. Nil means time.Now.
	Now func() time.Time
}

// Manager tracks one active session at a time.
type Manager struct {
	sessions *cache.Store[schema.SessionRecord]
	userID   string
	logger   *log.Logger
	now      func() time.Time

	mu            sync.Mutex
	active        bool
	child         schema.ChildID
	kind          schema.ActivityKind
	date          string
	start         string
	exitedMidGame bool
}

// NewManager creates a Manager with no active session.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{
		sessions: cfg.Sessions,
		userID:   cfg.UserID,
		logger:   logger,
		now:      now,
	}
}

// StartChildSession begins a new session for the child, capturing the wall
// clock as the start instant. A session still in progress is closed out as
// stalled and appended to history before the new one begins.
func (m *Manager) StartChildSession(childID schema.ChildID, kind schema.ActivityKind) {
	m.mu.Lock()
	var stalled *schema.SessionRecord
	if m.active {
		rec := m.buildLocked(schema.SessionStalled)
		stalled = &rec
	}

	now := m.now()
	m.active = true
	m.child = childID
	m.kind = kind
	m.date = schema.FormatDate(now)
	m.start = schema.FormatTime(now)
	m.exitedMidGame = false
	m.mu.Unlock()

	if stalled != nil {
		m.logger.Printf("Closing abandoned %s session for child %s as stalled", stalled.ActivityType, stalled.ChildID)
		m.append(*stalled)
	}

	m.logger.Printf("Started %s session for child %s", kind, childID)
}

// MarkExitedMidGame flags the active session as abandoned mid-game. The flag
// is carried into sessiondetails on close and cleared by the next start.
func (m *Manager) MarkExitedMidGame() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}
	m.exitedMidGame = true
}

// EndSession closes the active session: captures the end instant, appends an
// immutable completed record to the session history, and mirrors it to the
// remote service when the child id is remote-shaped. Without an active
// session the call logs a warning and does nothing.
func (m *Manager) EndSession() {
	m.mu.Lock()
	if !m.active || m.child.IsZero() || m.kind == "" || m.date == "" || m.start == "" {
		m.mu.Unlock()
		m.logger.Printf("Warning: endSession called without an active session, ignoring")
		return
	}

	rec := m.buildLocked(schema.SessionCompleted)
	m.clearLocked()
	m.mu.Unlock()

	m.append(rec)
	m.logger.Printf("Ended %s session for child %s", rec.ActivityType, rec.ChildID)
}

// ResetSession clears the transient fields without producing a record. Used
// for abandon-without-save flows.
func (m *Manager) ResetSession() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// Active reports whether a session is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Current returns the active session's child and activity. The bool is false
// when no session is in progress.
func (m *Manager) Current() (schema.ChildID, schema.ActivityKind, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.child, m.kind, m.active
}

// State is the serializable form of the transient session fields, used to
// carry an active session across short-lived CLI invocations.
type State struct {
	Active        bool                `json:"active"`
	ChildID       schema.ChildID      `json:"childid"`
	ActivityType  schema.ActivityKind `json:"activitytype"`
	Date          string              `json:"date"`
	StartTime     string              `json:"starttime"`
	ExitedMidGame bool                `json:"exited_mid_game"`
}

// State snapshots the transient fields.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return State{
		Active:        m.active,
		ChildID:       m.child,
		ActivityType:  m.kind,
		Date:          m.date,
		StartTime:     m.start,
		ExitedMidGame: m.exitedMidGame,
	}
}

// Restore replaces the transient fields with a previously captured state.
func (m *Manager) Restore(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = st.Active
	m.child = st.ChildID
	m.kind = st.ActivityType
	m.date = st.Date
	m.start = st.StartTime
	m.exitedMidGame = st.ExitedMidGame
}

// append records the session locally, attempting the remote leg only for
// remote-shaped child ids. Purely-local child profiles accumulate history
// without ever touching the network.
func (m *Manager) append(rec schema.SessionRecord) {
	if rec.ChildID.IsRemote() {
		m.sessions.AddEntry(rec)
	} else {
		m.sessions.AddLocalEntry(rec)
	}
}

// buildLocked materializes the transient fields into a record with the given
// terminal status. Caller holds m.mu.
func (m *Manager) buildLocked(status schema.SessionStatus) schema.SessionRecord {
	details := ""
	if m.exitedMidGame {
		details = exitedMidGameDetail
	}

	return schema.SessionRecord{
		ID:             uuid.NewString(),
		ActivityType:   m.kind,
		ChildID:        m.child,
		Date:           m.date,
		StartTime:      m.start,
		EndTime:        schema.FormatTime(m.now()),
		SessionStatus:  status,
		SessionDetails: details,
		UserID:         m.userID,
	}
}

// clearLocked resets the transient fields. Caller holds m.mu.
func (m *Manager) clearLocked() {
	m.active = false
	m.child = schema.ChildID{}
	m.kind = ""
	m.date = ""
	m.start = ""
	m.exitedMidGame = false
}
