package realtime

import (
	"context"
	"log"
	"os"
	"testing"
	"time"
)

// startTestHub starts a hub on a free port.
func startTestHub(t *testing.T) *Hub {
	t.Helper()

	hub := NewHub(&HubConfig{Port: 0, Logger: log.New(os.Stderr, "[hub-test] ", 0)})
	if err := hub.Start(); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	t.Cleanup(func() { _ = hub.Stop() })

	return hub
}

// connectTestSubscriber dials the hub.
func connectTestSubscriber(t *testing.T, hub *Hub) *Subscriber {
	t.Helper()

	sub := NewSubscriber(hub.URL(), log.New(os.Stderr, "[sub-test] ", 0))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("failed to connect subscriber: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	return sub
}

func TestJoinedTableReceivesEvents(t *testing.T) {
	hub := startTestHub(t)
	sub := connectTestSubscriber(t, hub)

	events := make(chan Event, 10)
	cancel, err := sub.Subscribe("lessons", func(e Event) { events <- e })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	// Give the hub time to process the join message.
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Event{Table: "lessons", Event: EventInsert})

	select {
	case e := <-events:
		if e.Table != "lessons" || e.Event != EventInsert {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestUnjoinedTableReceivesNothing(t *testing.T) {
	hub := startTestHub(t)
	sub := connectTestSubscriber(t, hub)

	events := make(chan Event, 10)
	cancel, err := sub.Subscribe("lessons", func(e Event) { events <- e })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Event{Table: "gamescores", Event: EventInsert})

	select {
	case e := <-events:
		t.Errorf("received event for unjoined table: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	hub := startTestHub(t)
	sub := connectTestSubscriber(t, hub)

	events := make(chan Event, 10)
	cancel, err := sub.Subscribe("lessons", func(e Event) { events <- e })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Event{Table: "lessons", Event: EventUpdate})

	select {
	case e := <-events:
		t.Errorf("received event after cancel: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSubscribeBeforeConnectReplaysJoin(t *testing.T) {
	hub := startTestHub(t)

	sub := NewSubscriber(hub.URL(), log.New(os.Stderr, "[sub-test] ", 0))
	events := make(chan Event, 10)
	cancel, err := sub.Subscribe("sessions", func(e Event) { events <- e })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer ctxCancel()
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer sub.Close()

	time.Sleep(100 * time.Millisecond)

	hub.Broadcast(Event{Table: "sessions", Event: EventInsert})

	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("join registered before Connect was not replayed")
	}
}

func TestClosedSignaledOnDrop(t *testing.T) {
	hub := startTestHub(t)
	sub := connectTestSubscriber(t, hub)

	closed := sub.Closed()

	if err := hub.Stop(); err != nil {
		t.Fatalf("hub Stop failed: %v", err)
	}

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Closed was never signaled after hub shutdown")
	}
}
