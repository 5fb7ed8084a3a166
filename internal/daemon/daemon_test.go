package daemon

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/owlet-labs/owletsync/internal/cache"
	"github.com/owlet-labs/owletsync/internal/netwatch"
	"github.com/owlet-labs/owletsync/internal/remote"
)

// fakeQuerier counts full-table reads. Every select returns no rows.
type fakeQuerier struct {
	mu      sync.Mutex
	selects int
}

func (f *fakeQuerier) Select(ctx context.Context, table string, order remote.Order, dest any) error {
	f.mu.Lock()
	f.selects++
	f.mu.Unlock()
	return json.Unmarshal([]byte("[]"), dest)
}

func (f *fakeQuerier) Insert(ctx context.Context, table string, row any) error { return nil }

func (f *fakeQuerier) Update(ctx context.Context, table, id string, patch any) error { return nil }

func (f *fakeQuerier) Delete(ctx context.Context, table, id string) error { return nil }

func (f *fakeQuerier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selects
}

// startTestDaemon runs a daemon over fake stores and a manual oracle.
func startTestDaemon(t *testing.T, online bool, config *Config) (*fakeQuerier, *netwatch.Oracle, context.CancelFunc) {
	t.Helper()

	logger := log.New(os.Stderr, "[daemon-test] ", 0)
	fq := &fakeQuerier{}
	oracle := netwatch.New(&netwatch.Config{Logger: logger})
	oracle.SetOnline(online)

	stores := cache.NewStores(cache.Deps{
		Remote: fq,
		Net:    oracle,
		Logger: logger,
	})

	if config == nil {
		config = &Config{RefreshInterval: time.Hour, Logger: logger}
	}
	d := New(stores, oracle, nil, nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	return fq, oracle, cancel
}

// waitForCount polls until the querier has seen at least n selects.
func waitForCount(t *testing.T, fq *fakeQuerier, n int) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for fq.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected at least %d selects, got %d", n, fq.count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartFetchesEveryStore(t *testing.T) {
	fq, _, _ := startTestDaemon(t, true, nil)

	// Seven entity stores, one full-table read each.
	waitForCount(t, fq, 7)
}

func TestOfflineStartQueriesNothing(t *testing.T) {
	fq, _, _ := startTestDaemon(t, false, nil)

	time.Sleep(200 * time.Millisecond)
	if got := fq.count(); got != 0 {
		t.Errorf("offline start must not query the remote, got %d selects", got)
	}
}

func TestReconnectResyncsEveryStore(t *testing.T) {
	fq, oracle, _ := startTestDaemon(t, false, nil)

	time.Sleep(100 * time.Millisecond)
	oracle.SetOnline(true)

	waitForCount(t, fq, 7)
}

func TestPeriodicRefresh(t *testing.T) {
	logger := log.New(os.Stderr, "[daemon-test] ", 0)
	fq, _, _ := startTestDaemon(t, true, &Config{
		RefreshInterval: 50 * time.Millisecond,
		Logger:          logger,
	})

	// Initial fetch plus at least one full refresh cycle.
	waitForCount(t, fq, 14)
}

func TestGracefulStop(t *testing.T) {
	_, _, cancel := startTestDaemon(t, true, nil)

	// Cleanup asserts the daemon actually exits.
	cancel()
}
