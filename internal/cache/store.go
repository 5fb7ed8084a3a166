// Package cache implements the local-first entity cache stores.
//
// One generic engine serves every entity type; per-entity behavior (table,
// canonical ordering, natural dedup key) is configuration. Each store owns an
// in-memory collection persisted as a snapshot in the local key-value store,
// serves reads from cache when offline, pushes writes to the remote service
// opportunistically, and re-pulls the whole table whenever the change feed
// signals that something changed.
//
// Failure never crosses the store boundary: sync errors are logged and
// surfaced through Status, write errors are logged and the local mutation
// stands. Callers read Status rather than handling errors.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/owlet-labs/owletsync/internal/localstore"
	"github.com/owlet-labs/owletsync/internal/realtime"
	"github.com/owlet-labs/owletsync/internal/remote"
)

// remoteWriteTimeout bounds a fire-and-forget remote write.
const remoteWriteTimeout = 15 * time.Second

// Row is the constraint every cached entity satisfies.
type Row interface {
	// RowID returns the opaque string that uniquely identifies the row.
	RowID() string
}

// Querier is the slice of the remote client the engine needs.
type Querier interface {
	Select(ctx context.Context, table string, order remote.Order, dest any) error
	Insert(ctx context.Context, table string, row any) error
	Update(ctx context.Context, table, id string, patch any) error
	Delete(ctx context.Context, table, id string) error
}

// Connectivity reports current network reachability.
type Connectivity interface {
	IsOnline() bool
}

// Feed establishes change-notification subscriptions per table.
type Feed interface {
	Subscribe(table string, fn func(realtime.Event)) (func(), error)
}

// Deps are the collaborators shared by every store. Constructed once at
// process start and injected; stores never reach for globals.
type Deps struct {
	KV     *localstore.Store
	Remote Querier
	Net    Connectivity
	Feed   Feed // optional; nil disables change-feed subscriptions
	Logger *log.Logger
}

// Config parametrizes one store instance.
type Config[T Row] struct {
	// Table is the remote table name. Also the snapshot key.
	Table string

	// OrderBy is the canonical display ordering for full-table reads.
	OrderBy remote.Order

	// NaturalKey returns the domain uniqueness key for log-type entities.
	// Nil for read-only reference entities (no local inserts).
	NaturalKey func(T) string
}

// snapshot is the persisted form of a store. Status is always written as
// idle: loading/syncing/error are process-lifetime concerns.
type snapshot[T Row] struct {
	Items        []T        `json:"items"`
	Status       string     `json:"status"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Store caches one remote entity collection with offline resilience.
type Store[T Row] struct {
	cfg    Config[T]
	deps   Deps
	logger *log.Logger

	mu           sync.Mutex
	items        []T
	status       Status
	errMsg       string
	lastSyncedAt *time.Time

	// gen tags each sync so a stale in-flight result cannot overwrite
	// the outcome of a more recently issued one.
	gen uint64

	// writes tracks in-flight remote mirrors so a short-lived process can
	// drain them before exit.
	writes sync.WaitGroup

	unsubscribe func()
}

// New creates a store and rehydrates its persisted snapshot.
func New[T Row](cfg Config[T], deps Deps) *Store[T] {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}

	s := &Store[T]{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		status: StatusIdle,
	}

	if err := s.hydrate(); err != nil {
		logger.Printf("Warning: failed to hydrate %s: %v", cfg.Table, err)
	}

	return s
}

// Name returns the store's snapshot/table name.
func (s *Store[T]) Name() string { return s.cfg.Table }

// Items returns a copy of the cached collection.
func (s *Store[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Count returns the number of cached rows.
func (s *Store[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Status returns the store's current sync status.
func (s *Store[T]) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the human-readable cause when Status is StatusError, and the
// empty string in every other status. The cause belongs to the error state;
// a store that settled back to idle (for example an offline fetch serving
// cache) must not report a stale failure.
func (s *Store[T]) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusError {
		return ""
	}
	return s.errMsg
}

// LastSyncedAt returns when the last successful sync completed, or nil if
// the store has never synced.
func (s *Store[T]) LastSyncedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSyncedAt == nil {
		return nil
	}
	t := *s.lastSyncedAt
	return &t
}

// Fetch loads the store. Offline, the last persisted snapshot keeps serving
// and the store settles to idle — connectivity absence is an expected state,
// never an error and never a reason to clear the UI. Online, the table is
// re-pulled and the change-feed subscription is (re-)established.
//
// A fetch while one is already loading is a no-op.
func (s *Store[T]) Fetch(ctx context.Context) {
	s.mu.Lock()
	if s.status == StatusLoading {
		s.mu.Unlock()
		return
	}
	s.status = StatusLoading
	s.mu.Unlock()

	if !s.deps.Net.IsOnline() {
		s.mu.Lock()
		s.status = StatusIdle
		s.mu.Unlock()
		s.logger.Printf("Offline, serving %d cached %s rows", s.Count(), s.cfg.Table)
		return
	}

	// Subscribe regardless of the sync outcome: after a transient failure
	// the next change notification is a retry trigger.
	s.sync(ctx)
	s.resubscribe()
}

// Refresh re-pulls the whole table. Exposed for manual pulls; also the
// change-feed trigger.
func (s *Store[T]) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.status != StatusLoading {
		s.status = StatusSyncing
	}
	s.mu.Unlock()

	s.sync(ctx)
}

// sync queries all rows and replaces the collection wholesale: the server is
// the source of truth for what a full table read returns. Reports whether
// the sync succeeded.
func (s *Store[T]) sync(ctx context.Context) bool {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	var rows []T
	err := s.deps.Remote.Select(ctx, s.cfg.Table, s.cfg.OrderBy, &rows)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// A newer sync was issued while this one was in flight; its
		// result wins regardless of completion order.
		s.logger.Printf("Discarding stale %s sync result (gen %d < %d)", s.cfg.Table, gen, s.gen)
		return false
	}

	if err != nil {
		s.status = StatusError
		s.errMsg = err.Error()
		s.logger.Printf("Sync of %s failed: %v", s.cfg.Table, err)
		return false
	}

	s.items = rows
	now := time.Now()
	s.lastSyncedAt = &now
	s.status = StatusIdle
	s.errMsg = ""
	s.persistLocked()

	s.logger.Printf("Synced %s: %d rows", s.cfg.Table, len(rows))
	return true
}

// AddEntry inserts a log entry: optimistic local prepend, then a
// fire-and-forget remote insert when online. An entry whose natural key
// already exists is silently skipped. Returns once the local mutation is
// applied; a remote failure is logged and never rolls the local insert back.
func (s *Store[T]) AddEntry(row T) {
	if s.addLocal(row) {
		s.mirror(func(ctx context.Context) error {
			return s.deps.Remote.Insert(ctx, s.cfg.Table, row)
		}, "insert")
	}
}

// AddLocalEntry inserts a log entry locally without attempting the remote
// leg, regardless of connectivity. Used for rows owned by purely-local
// child profiles.
func (s *Store[T]) AddLocalEntry(row T) {
	s.addLocal(row)
}

// addLocal applies the optimistic insert. Reports whether the row was added.
func (s *Store[T]) addLocal(row T) bool {
	s.mu.Lock()
	if s.cfg.NaturalKey != nil {
		key := s.cfg.NaturalKey(row)
		for _, existing := range s.items {
			if s.cfg.NaturalKey(existing) == key {
				s.mu.Unlock()
				s.logger.Printf("Skipping duplicate %s entry: %s", s.cfg.Table, key)
				return false
			}
		}
	}

	s.items = append([]T{row}, s.items...)
	s.persistLocked()
	s.mu.Unlock()
	return true
}

// UpdateEntry applies mutate to the row with the given id locally, then
// mirrors the updated row to the remote service when online.
func (s *Store[T]) UpdateEntry(id string, mutate func(*T)) {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Printf("Warning: update of unknown %s row %s ignored", s.cfg.Table, id)
		return
	}
	mutate(&s.items[idx])
	updated := s.items[idx]
	s.persistLocked()
	s.mu.Unlock()

	s.mirror(func(ctx context.Context) error {
		return s.deps.Remote.Update(ctx, s.cfg.Table, id, updated)
	}, "update")
}

// RemoveEntry removes the row with the given id locally, then mirrors the
// delete to the remote service when online.
func (s *Store[T]) RemoveEntry(id string) {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.Printf("Warning: removal of unknown %s row %s ignored", s.cfg.Table, id)
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.mirror(func(ctx context.Context) error {
		return s.deps.Remote.Delete(ctx, s.cfg.Table, id)
	}, "delete")
}

// ClearAll drops the change subscription, empties the collection, and resets
// the persisted snapshot. Used on sign-out and profile switches.
func (s *Store[T]) ClearAll() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.items = nil
	s.status = StatusIdle
	s.errMsg = ""
	s.lastSyncedAt = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	if s.deps.KV != nil {
		if err := s.deps.KV.Delete(s.cfg.Table); err != nil {
			s.logger.Printf("Warning: failed to clear %s snapshot: %v", s.cfg.Table, err)
		}
	}
}

// mirror runs the remote leg of a mutation in the background when online.
// Offline, the write is dropped from the remote's perspective; there is no
// outbox, and re-submission is the caller's action.
func (s *Store[T]) mirror(op func(ctx context.Context) error, kind string) {
	if !s.deps.Net.IsOnline() {
		s.logger.Printf("Offline, skipping remote %s on %s", kind, s.cfg.Table)
		return
	}

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), remoteWriteTimeout)
		defer cancel()

		if err := op(ctx); err != nil {
			s.logger.Printf("Warning: remote %s on %s failed: %v", kind, s.cfg.Table, err)
		}
	}()
}

// Flush blocks until every in-flight remote write has completed. One-shot
// callers drain before exiting so fire-and-forget writes issued while online
// actually reach the wire.
func (s *Store[T]) Flush() {
	s.writes.Wait()
}

// resubscribe replaces the store's change-feed subscription so repeated
// fetches never accumulate duplicate listeners.
func (s *Store[T]) resubscribe() {
	if s.deps.Feed == nil {
		return
	}

	s.mu.Lock()
	old := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if old != nil {
		old()
	}

	cancel, err := s.deps.Feed.Subscribe(s.cfg.Table, func(realtime.Event) {
		s.Refresh(context.Background())
	})
	if err != nil {
		s.logger.Printf("Warning: failed to subscribe to %s changes: %v", s.cfg.Table, err)
		return
	}

	s.mu.Lock()
	s.unsubscribe = cancel
	s.mu.Unlock()
}

// indexOfLocked finds a row by id. Caller holds s.mu.
func (s *Store[T]) indexOfLocked(id string) int {
	for i, row := range s.items {
		if row.RowID() == id {
			return i
		}
	}
	return -1
}

// persistLocked writes the snapshot. Caller holds s.mu. Persistence failures
// are logged; the in-memory collection stays authoritative.
func (s *Store[T]) persistLocked() {
	if s.deps.KV == nil {
		return
	}

	items := s.items
	if items == nil {
		items = []T{}
	}
	snap := snapshot[T]{
		Items:        items,
		Status:       StatusIdle.String(),
		LastSyncedAt: s.lastSyncedAt,
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Printf("Warning: failed to marshal %s snapshot: %v", s.cfg.Table, err)
		return
	}

	if err := s.deps.KV.Put(s.cfg.Table, data); err != nil {
		s.logger.Printf("Warning: failed to persist %s snapshot: %v", s.cfg.Table, err)
	}
}

// hydrate restores the persisted snapshot into the in-memory collection.
// Status always rests at idle after hydration.
func (s *Store[T]) hydrate() error {
	if s.deps.KV == nil {
		return nil
	}

	data, ok, err := s.deps.KV.Get(s.cfg.Table)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	var snap snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	s.mu.Lock()
	s.items = snap.Items
	s.status = StatusIdle
	s.lastSyncedAt = snap.LastSyncedAt
	s.mu.Unlock()

	return nil
}
