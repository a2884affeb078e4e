package httpapi

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans out diagnostics snapshots to every connected websocket client
// using a register/unregister/broadcast goroutine.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan interface{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// NewHub builds an empty diagnostics hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan interface{}, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run processes register/unregister/broadcast events until the process
// exits; there is no stop channel because the hub's lifetime matches the
// HTTP server's.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for conn := range h.clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("httpapi: websocket write failed: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast enqueues event for delivery to every connected client.
func (h *Hub) Broadcast(event interface{}) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("httpapi: diagnostics broadcast channel full, dropping snapshot")
	}
}

func (s *Server) handleDiagnosticsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}
	s.hub.register <- conn

	// Drain and discard client messages until disconnect; this is a
	// push-only stream so anything the client sends is ignored.
	go func() {
		defer func() { s.hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
