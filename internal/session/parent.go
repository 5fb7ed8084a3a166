package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/localstore"
	"github.com/owlet-labs/owletsync/internal/schema"
)

// parentSnapshotKey is the local store name the profile persists under.
const parentSnapshotKey = "parent_profile"

// parentsTable is the remote table holding supervising accounts.
const parentsTable = "parents"

// Upserter is the slice of the remote client the registry needs.
type Upserter interface {
	Upsert(ctx context.Context, table, onConflict string, row any) error
}

// Registry holds the supervising parent profile. The profile persists locally
// and is upserted remotely keyed on email, so each address has exactly one
// remote record no matter how many devices save it.
type Registry struct {
	kv     *localstore.Store
	remote Upserter
	net    cache.Connectivity
	logger *log.Logger
}

// NewRegistry creates a Registry over the shared collaborators.
func NewRegistry(kv *localstore.Store, remote Upserter, net cache.Connectivity, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Registry{kv: kv, remote: remote, net: net, logger: logger}
}

// SaveProfile validates and persists the profile locally, then mirrors it to
// the remote service when online. The local save is authoritative; a remote
// failure is logged and never reported to the caller.
func (r *Registry) SaveProfile(ctx context.Context, profile schema.ParentProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid parent profile: %w", err)
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal parent profile: %w", err)
	}
	if err := r.kv.Put(parentSnapshotKey, data); err != nil {
		return fmt.Errorf("failed to persist parent profile: %w", err)
	}

	if !r.net.IsOnline() {
		r.logger.Printf("Offline, skipping remote upsert of parent profile")
		return nil
	}

	if err := r.remote.Upsert(ctx, parentsTable, "email", profile); err != nil {
		r.logger.Printf("Warning: remote upsert of parent profile failed: %v", err)
	}
	return nil
}

// Profile returns the locally persisted profile. The bool is false when no
// profile has been saved.
func (r *Registry) Profile() (schema.ParentProfile, bool, error) {
	data, ok, err := r.kv.Get(parentSnapshotKey)
	if err != nil {
		return schema.ParentProfile{}, false, fmt.Errorf("failed to read parent profile: %w", err)
	}
	if !ok {
		return schema.ParentProfile{}, false, nil
	}

	var profile schema.ParentProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return schema.ParentProfile{}, false, fmt.Errorf("failed to decode parent profile: %w", err)
	}
	return profile, true, nil
}

// Clear removes the locally persisted profile. Used on sign-out.
func (r *Registry) Clear() error {
	return r.kv.Delete(parentSnapshotKey)
}
