// Package netwatch provides the connectivity oracle: a process-wide,
// synchronously queryable view of network reachability.
//
// The oracle probes the remote service on an interval and notifies
// subscribers on reachability transitions. Lack of connectivity is a
// recognized state, not an error: consumers redirect to cache-only behavior
// when the oracle reports offline.
package netwatch

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// ProbeFunc checks reachability. A nil return means the network is reachable.
type ProbeFunc func(ctx context.Context) error

// Config holds oracle configuration.
type Config struct {
	// Probe is the reachability check. Required for Start.
	Probe ProbeFunc

	// Interval is how often to probe (default: 15s).
	Interval time.Duration

	// ProbeTimeout bounds a single probe (default: 5s).
	ProbeTimeout time.Duration

	// Logger for oracle activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval:     15 * time.Second,
		ProbeTimeout: 5 * time.Second,
		Logger:       log.New(os.Stderr, "[netwatch] ", log.LstdFlags),
	}
}

// Oracle reports current network reachability.
//
// Multiple stores subscribe to the same oracle independently; a reconnect
// transition fans out to every subscriber.
type Oracle struct {
	config *Config

	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an oracle. The oracle starts offline until the first probe or
// SetOnline call; call Start to begin probing.
func New(config *Config) *Oracle {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval == 0 {
		config.Interval = 15 * time.Second
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[netwatch] ", log.LstdFlags)
	}
	return &Oracle{
		config: config,
		subs:   make(map[int]chan bool),
	}
}

// IsOnline reports current reachability.
func (o *Oracle) IsOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// SetOnline forces the reachability state, notifying subscribers on change.
// Used for tests and forced-offline mode; the probe loop will overwrite it
// on its next tick if running.
func (o *Oracle) SetOnline(online bool) {
	o.transition(online)
}

// Subscribe registers for reachability transitions. The returned channel
// receives the new state on every change. Use the returned ID with
// Unsubscribe when done.
func (o *Oracle) Subscribe() (int, <-chan bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	ch := make(chan bool, 4)
	o.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (o *Oracle) Unsubscribe(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if ch, ok := o.subs[id]; ok {
		delete(o.subs, id)
		close(ch)
	}
}

// Start begins the probe loop. It probes once immediately, then on the
// configured interval, until Stop is called.
func (o *Oracle) Start() {
	if o.config.Probe == nil {
		o.config.Logger.Println("Warning: no probe configured, oracle state is manual only")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.wg.Add(1)
	go o.probeLoop(ctx)
}

// Stop halts the probe loop and waits for it to exit.
func (o *Oracle) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.wg.Wait()
		o.cancel = nil
	}
}

// probeLoop runs reachability probes until the context is cancelled.
func (o *Oracle) probeLoop(ctx context.Context) {
	defer o.wg.Done()

	o.probeOnce(ctx)

	ticker := time.NewTicker(o.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.probeOnce(ctx)
		}
	}
}

// probeOnce runs a single bounded probe and applies the result.
func (o *Oracle) probeOnce(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, o.config.ProbeTimeout)
	defer cancel()

	err := o.config.Probe(probeCtx)
	o.transition(err == nil)
}

// transition applies a new reachability state and notifies subscribers if
// it changed. Notifications never block: a subscriber with a full channel
// misses intermediate transitions but always converges via IsOnline.
func (o *Oracle) transition(online bool) {
	o.mu.Lock()
	if o.online == online {
		o.mu.Unlock()
		return
	}
	o.online = online

	subs := make([]chan bool, 0, len(o.subs))
	for _, ch := range o.subs {
		subs = append(subs, ch)
	}
	o.mu.Unlock()

	if online {
		o.config.Logger.Println("Network reachable")
	} else {
		o.config.Logger.Println("Network unreachable")
	}

	for _, ch := range subs {
		select {
		case ch <- online:
		default:
		}
	}
}
