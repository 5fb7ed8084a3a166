// Package realtime provides the change-notification feed for remote tables.
//
// The feed carries no row payload consumed by the caches: a notification only
// says that some row in a table changed, and subscribers respond by re-pulling
// the whole table. Subscriber is the client side; Hub is the serving side used
// by the daemon to republish sync events and by tests to simulate the feed.
package realtime

import "time"

// EventKind is the type of table change.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is one change notification for a table.
type Event struct {
	Table     string    `json:"table"`
	Event     EventKind `json:"event"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// clientMessage is what subscribers send to the hub.
type clientMessage struct {
	Action string `json:"action"` // join, leave
	Table  string `json:"table"`
}
