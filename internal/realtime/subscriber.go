package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Handler receives change notifications for a joined table.
type Handler func(Event)

// Subscriber maintains one WebSocket connection to the change feed and
// dispatches table notifications to registered handlers.
//
// A table is joined on the wire when its first handler registers and left
// when its last handler cancels. Each cache store holds at most one live
// registration at a time, replacing it on every fetch.
type Subscriber struct {
	url    string
	logger *log.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]map[int]Handler
	nextID   int

	closed chan struct{}
	wg     sync.WaitGroup
}

// NewSubscriber creates a subscriber for the feed at url.
//
// If logger is nil, a default logger writing to stderr is used.
func NewSubscriber(url string, logger *log.Logger) *Subscriber {
	if logger == nil {
		logger = log.New(os.Stderr, "[realtime] ", log.LstdFlags)
	}
	return &Subscriber{
		url:      url,
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
		closed:   make(chan struct{}),
	}
}

// Connect dials the feed and starts the dispatch loop. Tables with
// registered handlers are re-joined, so Connect doubles as the reconnect
// path after a dropped connection.
func (s *Subscriber) Connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial change feed: %w", err)
	}

	closed := make(chan struct{})

	s.mu.Lock()
	s.conn = conn
	s.closed = closed
	tables := make([]string, 0, len(s.handlers))
	for table := range s.handlers {
		tables = append(tables, table)
	}
	s.mu.Unlock()

	for _, table := range tables {
		if err := s.send(clientMessage{Action: "join", Table: table}); err != nil {
			s.logger.Printf("Warning: failed to rejoin %s: %v", table, err)
		}
	}

	s.wg.Add(1)
	go s.readLoop(conn, closed)

	s.logger.Printf("Connected to change feed: %s", s.url)
	return nil
}

// Subscribe registers a handler for a table's change notifications and
// returns a cancel function that removes it.
//
// The join message is sent only for the table's first handler. Subscribe
// succeeds even while disconnected; the join is replayed on Connect.
func (s *Subscriber) Subscribe(table string, fn func(Event)) (func(), error) {
	s.mu.Lock()
	first := len(s.handlers[table]) == 0
	if s.handlers[table] == nil {
		s.handlers[table] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.handlers[table][id] = fn
	connected := s.conn != nil
	s.mu.Unlock()

	if first && connected {
		if err := s.send(clientMessage{Action: "join", Table: table}); err != nil {
			return nil, fmt.Errorf("failed to join %s: %w", table, err)
		}
	}

	cancel := func() {
		s.mu.Lock()
		delete(s.handlers[table], id)
		last := len(s.handlers[table]) == 0
		if last {
			delete(s.handlers, table)
		}
		connected := s.conn != nil
		s.mu.Unlock()

		if last && connected {
			if err := s.send(clientMessage{Action: "leave", Table: table}); err != nil {
				s.logger.Printf("Warning: failed to leave %s: %v", table, err)
			}
		}
	}
	return cancel, nil
}

// Connected reports whether the feed connection is live.
func (s *Subscriber) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Closed is signaled when the connection drops. The daemon watches it to
// trigger reconnects.
func (s *Subscriber) Closed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close shuts the connection down and waits for the dispatch loop to exit.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}
	s.wg.Wait()
	return nil
}

// send writes one message to the feed with a bounded deadline.
func (s *Subscriber) send(msg clientMessage) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal feed message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// readLoop dispatches incoming notifications until the connection drops.
func (s *Subscriber) readLoop(conn *websocket.Conn, closed chan struct{}) {
	defer s.wg.Done()

	for {
		_, data, err := conn.Read(context.Background())
		if err != nil {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()

			close(closed)
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Printf("Warning: malformed feed message: %v", err)
			continue
		}

		s.dispatch(event)
	}
}

// dispatch fans an event out to the table's handlers.
func (s *Subscriber) dispatch(event Event) {
	s.mu.Lock()
	fns := make([]Handler, 0, len(s.handlers[event.Table]))
	for _, fn := range s.handlers[event.Table] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}
