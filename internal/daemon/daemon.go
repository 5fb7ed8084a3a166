// Package daemon provides the background sync daemon that keeps every entity
// cache store fresh.
//
// The daemon:
// 1. Probes connectivity through the oracle
// 2. Fetches every store on startup and on every reconnect transition
// 3. Periodically re-pulls every store while online
// 4. Keeps the change-feed subscriber connected
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/netwatch"
	"github.com/owlet-labs/owletsync/internal/realtime"
)

// feedReconnectDelay is how long to wait before redialing a dropped feed.
const feedReconnectDelay = 5 * time.Second

// Config holds configuration for the daemon.
type Config struct {
	// RefreshInterval is how often to re-pull every store while online.
	RefreshInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 5 * time.Minute,
		Logger:          log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// NewLogger builds the daemon logger. A non-empty logFile routes output
// through a rotating file writer.
func NewLogger(logFile string) *log.Logger {
	if logFile == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, "[daemon] ", log.LstdFlags)
}

// Daemon orchestrates the oracle, the change-feed subscriber, and the stores.
type Daemon struct {
	stores *cache.Stores
	oracle *netwatch.Oracle
	feed   *realtime.Subscriber // optional
	hub    *realtime.Hub        // optional
	config *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. feed and hub may be nil.
func New(stores *cache.Stores, oracle *netwatch.Oracle, feed *realtime.Subscriber, hub *realtime.Hub, config *Config) *Daemon {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RefreshInterval == 0 {
		config.RefreshInterval = 5 * time.Minute
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		stores: stores,
		oracle: oracle,
		feed:   feed,
		hub:    hub,
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Start the connectivity probe loop and the optional hub
// 2. Connect the change feed and fetch every store
// 3. Re-fetch everything whenever connectivity comes back
// 4. Periodically refresh all stores while online
//
// This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.hub != nil {
		if err := d.hub.Start(); err != nil {
			return err
		}
		d.config.Logger.Printf("Hub listening at %s", d.hub.URL())
	}

	d.oracle.Start()
	d.connectFeed()
	d.fetchAll()

	d.wg.Add(3)
	go d.watchConnectivity()
	go d.refreshLoop()
	go d.feedLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()
	d.oracle.Stop()
	if d.feed != nil {
		if err := d.feed.Close(); err != nil {
			d.config.Logger.Printf("Error closing feed: %v", err)
		}
	}
	if d.hub != nil {
		if err := d.hub.Stop(); err != nil {
			d.config.Logger.Printf("Error stopping hub: %v", err)
		}
	}

	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// fetchAll fetches every store. Each store decides on its own whether to
// serve cache or re-pull based on the oracle.
func (d *Daemon) fetchAll() {
	for _, store := range d.stores.All() {
		store.Fetch(d.ctx)
	}
}

// refreshAll re-pulls every store.
func (d *Daemon) refreshAll() {
	for _, store := range d.stores.All() {
		store.Refresh(d.ctx)
	}
}

// watchConnectivity re-fetches everything when connectivity comes back. The
// full resync on reconnect is deliberate: offline writes have no durable
// outbox, so the server state is re-pulled wholesale.
func (d *Daemon) watchConnectivity() {
	defer d.wg.Done()

	id, ch := d.oracle.Subscribe()
	defer d.oracle.Unsubscribe(id)

	for {
		select {
		case <-d.ctx.Done():
			return

		case online, ok := <-ch:
			if !ok {
				return
			}
			if online {
				d.config.Logger.Println("Reconnected, resyncing all stores")
				d.connectFeed()
				d.fetchAll()
			}
		}
	}
}

// refreshLoop periodically re-pulls every store while online.
func (d *Daemon) refreshLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if d.oracle.IsOnline() {
				d.refreshAll()
			}
		}
	}
}

// feedLoop redials the change feed when the connection drops.
func (d *Daemon) feedLoop() {
	defer d.wg.Done()

	if d.feed == nil {
		return
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-d.feed.Closed():
			select {
			case <-d.ctx.Done():
				return
			case <-time.After(feedReconnectDelay):
			}

			if d.oracle.IsOnline() {
				d.config.Logger.Println("Feed dropped, redialing")
				d.connectFeed()
			}
		}
	}
}

// connectFeed dials the change feed. Failure is logged, not fatal: the
// periodic refresh loop still converges without notifications.
func (d *Daemon) connectFeed() {
	if d.feed == nil || d.feed.Connected() {
		return
	}

	ctx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()

	if err := d.feed.Connect(ctx); err != nil {
		d.config.Logger.Printf("Warning: failed to connect change feed: %v", err)
	}
}
