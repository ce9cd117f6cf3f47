package notify

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openlews/openlews/internal/database"
)

// Hub maintains the set of connected dashboard clients and broadcasts
// alert events to them. Run must be started in its own goroutine before
// the first client connects.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub creates a hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set. All registration and broadcast traffic flows
// through this single goroutine, so no locking is needed.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("WebSocket client connected (%d total)", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("WebSocket client disconnected (%d total)", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

type alertEvent struct {
	Type      string          `json:"type"`
	Event     Event           `json:"event"`
	Alert     *database.Alert `json:"alert"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notify implements Notifier by broadcasting the event to every
// connected client
func (h *Hub) Notify(event Event, alert *database.Alert) {
	payload, err := json.Marshal(alertEvent{
		Type:      "alert",
		Event:     event,
		Alert:     alert,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Warning: failed to encode alert event: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("Warning: websocket broadcast queue full, dropping alert event")
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only public data; origin checks are left to the
	// reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request to a websocket subscription on the
// alert feed
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 32)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
