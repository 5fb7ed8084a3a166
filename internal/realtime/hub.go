package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Hub serves the change feed over WebSocket, broadcasting table change
// events to clients that have joined the table.
type Hub struct {
	addr     string
	listener net.Listener
	server   *http.Server

	// client -> set of joined tables
	clients   map[*websocket.Conn]map[string]bool
	clientsMu sync.RWMutex

	broadcast chan Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// HubConfig holds hub configuration.
type HubConfig struct {
	// Port to listen on (0 picks a free port).
	Port int

	// Logger for hub activity (default: log.Default()).
	Logger *log.Logger
}

// NewHub creates a change-feed hub.
func NewHub(config *HubConfig) *Hub {
	if config == nil {
		config = &HubConfig{}
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]map[string]bool),
		broadcast: make(chan Event, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Start begins the HTTP server and WebSocket handler.
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/health", h.handleHealth)

	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	h.wg.Add(1)
	go h.broadcastLoop()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.logger.Printf("Change feed hub listening on %s", ln.Addr())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Printf("Hub server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() error {
	h.logger.Println("Stopping change feed hub")

	h.cancel()

	h.clientsMu.Lock()
	for conn := range h.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Hub shutting down")
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("hub shutdown error: %w", err)
	}

	h.wg.Wait()
	return nil
}

// Broadcast queues an event for delivery to clients joined to its table.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	case <-h.ctx.Done():
	default:
		h.logger.Println("Warning: broadcast channel full, dropping event")
	}
}

// URL returns the ws:// endpoint clients should dial.
func (h *Hub) URL() string {
	if h.listener != nil {
		return "ws://" + h.listener.Addr().String() + "/ws"
	}
	return "ws://localhost" + h.addr + "/ws"
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// broadcastLoop delivers queued events to joined clients.
func (h *Hub) broadcastLoop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.ctx.Done():
			return

		case event := <-h.broadcast:
			if event.Timestamp.IsZero() {
				event.Timestamp = time.Now()
			}

			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Printf("Failed to marshal event: %v", err)
				continue
			}

			h.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for conn, tables := range h.clients {
				if tables[event.Table] {
					conns = append(conns, conn)
				}
			}
			h.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()

				if err != nil {
					h.logger.Printf("Failed to send to client: %v", err)
					h.removeClient(conn)
				}
			}
		}
	}
}

// handleWebSocket upgrades connections and tracks table membership.
func (h *Hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = make(map[string]bool)
	count := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Printf("Feed client connected (total: %d)", count)

	go h.readLoop(conn)
}

// readLoop processes join/leave messages until the client disconnects.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.removeClient(conn)

	for {
		_, data, err := conn.Read(h.ctx)
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Printf("Warning: malformed client message: %v", err)
			continue
		}

		h.clientsMu.Lock()
		tables, ok := h.clients[conn]
		if ok {
			switch msg.Action {
			case "join":
				tables[msg.Table] = true
			case "leave":
				delete(tables, msg.Table)
			}
		}
		h.clientsMu.Unlock()
	}
}

// removeClient safely removes a client connection.
func (h *Hub) removeClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	if _, exists := h.clients[conn]; exists {
		delete(h.clients, conn)
		count := len(h.clients)
		h.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Printf("Feed client disconnected (total: %d)", count)
	} else {
		h.clientsMu.Unlock()
	}
}

// handleHealth returns hub health status.
func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.clientsMu.RLock()
	count := len(h.clients)
	h.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": count,
	})
}
