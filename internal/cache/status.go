package cache

// Status is the sync state of a cache store. A store is in exactly one
// status at a time.
type Status int

const (
	// StatusIdle means the store is at rest; cached items are servable.
	StatusIdle Status = iota
	// StatusLoading means an initial fetch is in flight.
	StatusLoading
	// StatusSyncing means a manually triggered refresh is in flight.
	StatusSyncing
	// StatusError means the last sync failed. The error does not clear
	// automatically; the next successful sync clears it.
	StatusError
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSyncing:
		return "syncing"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}
