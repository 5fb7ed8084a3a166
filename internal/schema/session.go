package schema

import (
	"fmt"
	"time"
)

// ActivityKind names what the child was doing during a session.
type ActivityKind string

const (
	ActivityAuth   ActivityKind = "auth"
	ActivityLesson ActivityKind = "lesson"
	ActivityQuiz   ActivityKind = "quiz"
	ActivityGame   ActivityKind = "game"
)

// SessionStatus is the lifecycle state of a session record.
type SessionStatus string

const (
	// SessionInProgress marks a session that has started but not ended.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted marks a session closed normally. Completed records
	// are immutable.
	SessionCompleted SessionStatus = "completed"
	// SessionStalled marks a session abandoned without an explicit end,
	// e.g. a new session started while one was still in progress.
	SessionStalled SessionStatus = "stalled"
)

// SessionRecord is one bounded activity interval for a child. Field names
// match the sessions table columns exactly.
type SessionRecord struct {
	ID             string        `json:"id,omitempty"`
	ActivityType   ActivityKind  `json:"activitytype"`
	ChildID        ChildID       `json:"childid"`
	Date           string        `json:"date"`
	StartTime      string        `json:"starttime"`
	EndTime        string        `json:"endtime,omitempty"`
	SessionStatus  SessionStatus `json:"sessionstatus"`
	SessionDetails string        `json:"sessiondetails,omitempty"`
	UserID         string        `json:"user_id,omitempty"`
}

// RowID returns the opaque row identifier.
func (s SessionRecord) RowID() string { return s.ID }

// NaturalKey is child + start time: the same interval is never recorded twice.
func (s SessionRecord) NaturalKey() string {
	return s.ChildID.String() + "|" + s.StartTime
}

// Validate checks required SessionRecord fields.
func (s SessionRecord) Validate() error {
	if s.ChildID.IsZero() {
		return fmt.Errorf("childid is required")
	}
	if s.ActivityType == "" {
		return fmt.Errorf("activitytype is required")
	}
	if s.Date == "" {
		return fmt.Errorf("date is required")
	}
	if s.StartTime == "" {
		return fmt.Errorf("starttime is required")
	}
	if s.SessionStatus == "" {
		return fmt.Errorf("sessionstatus is required")
	}
	if s.SessionStatus == SessionCompleted && s.EndTime == "" {
		return fmt.Errorf("completed session requires endtime")
	}
	return nil
}

// FormatDate renders a wall-clock date the way the sessions table stores it.
func FormatDate(t time.Time) string { return t.Format("2006-01-02") }

// FormatTime renders a wall-clock instant the way the sessions table stores it.
func FormatTime(t time.Time) string { return t.Format(time.RFC3339) }
