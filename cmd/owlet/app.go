package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/config"
	"github.com/owlet-labs/owletsync/internal/localstore"
	"github.com/owlet-labs/owletsync/internal/netwatch"
	"github.com/owlet-labs/owletsync/internal/realtime"
	"github.com/owlet-labs/owletsync/internal/remote"
	"github.com/owlet-labs/owletsync/internal/session"
)

// sessionStateKey is where the active session's transient fields persist
// between CLI invocations.
const sessionStateKey = "active_session"

// app bundles the wired-up collaborators every command needs. Construction is
// explicit: config, then storage, then remote client, then oracle, then the
// stores on top.
type app struct {
	cfg      config.Config
	loader   *config.Loader
	kv       *localstore.Store
	client   *remote.Client
	oracle   *netwatch.Oracle
	feed     *realtime.Subscriber // nil when no feed URL is configured
	stores   *cache.Stores
	registry *session.Registry
	manager  *session.Manager
}

// newApp builds the application context. When probe is true, connectivity is
// determined by a one-shot health check; daemon mode instead runs the
// oracle's probe loop.
func newApp(probe bool) (*app, error) {
	logger := log.New(os.Stderr, "[owlet] ", log.LstdFlags)

	loader := config.NewLoader(logger)
	cfg, err := loader.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	kv, err := localstore.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	client := remote.New(cfg.RemoteURL, cfg.APIKey, logger)

	oracle := netwatch.New(&netwatch.Config{
		Probe:    client.Health,
		Interval: cfg.ProbeInterval,
		Logger:   logger,
	})

	if probe {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		oracle.SetOnline(client.Health(ctx) == nil)
		cancel()
	}

	var feed *realtime.Subscriber
	if cfg.FeedURL != "" {
		feed = realtime.NewSubscriber(cfg.FeedURL, logger)
	}

	deps := cache.Deps{
		KV:     kv,
		Remote: client,
		Net:    oracle,
		Logger: logger,
	}
	if feed != nil {
		deps.Feed = feed
	}

	a := &app{
		cfg:      cfg,
		loader:   loader,
		kv:       kv,
		client:   client,
		oracle:   oracle,
		feed:     feed,
		stores:   cache.NewStores(deps),
		registry: session.NewRegistry(kv, client, oracle, logger),
	}

	a.manager = session.NewManager(session.Config{
		Sessions: a.stores.Sessions,
		UserID:   cfg.UserID,
		Logger:   logger,
	})
	a.restoreSession()

	return a, nil
}

// close drains in-flight remote writes and releases the app's resources.
// The drain matters in one-shot commands: a session end or log insert issues
// its remote leg in the background, and exiting before it lands would drop a
// write that was attempted while online.
func (a *app) close() {
	a.stores.Flush()
	if a.feed != nil {
		_ = a.feed.Close()
	}
	if err := a.kv.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close local store: %v\n", err)
	}
}

// restoreSession rehydrates the active session, if any, into the manager.
func (a *app) restoreSession() {
	data, ok, err := a.kv.Get(sessionStateKey)
	if err != nil || !ok {
		return
	}

	var st session.State
	if err := json.Unmarshal(data, &st); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: discarding corrupt session state: %v\n", err)
		_ = a.kv.Delete(sessionStateKey)
		return
	}
	a.manager.Restore(st)
}

// saveSession persists the manager's transient fields for the next
// invocation. An inactive session clears the key.
func (a *app) saveSession() error {
	st := a.manager.State()
	if !st.Active {
		return a.kv.Delete(sessionStateKey)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	return a.kv.Put(sessionStateKey, data)
}

// mustApp builds the app or exits.
func mustApp(probe bool) *app {
	a, err := newApp(probe)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return a
}
