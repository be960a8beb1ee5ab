package chat

import (
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"

	"message-board/internal/models"

	"github.com/gorilla/websocket"
)

// Hub fans newly saved messages out to every connected feed client. It
// keeps no history; the read page is the source of truth.
type Hub struct {
	Clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan models.DisplayMessage
	Quit       chan struct{}

	active   atomic.Int32
	quitOnce sync.Once
}

type Client struct {
	Conn *websocket.Conn
	Name string
	Send chan []byte
	Hub  *Hub
	once sync.Once
}

func NewHub() *Hub {
	log.Println("[HUB] Initializing new Hub instance...")
	return &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan models.DisplayMessage, 256),
		Quit:       make(chan struct{}),
	}
}

// Publish queues msg for every client without blocking the caller.
func (h *Hub) Publish(msg models.DisplayMessage) {
	select {
	case <-h.Quit:
		return
	default:
	}

	select {
	case h.Broadcast <- msg:
	default:
		log.Println("[HUB] CRITICAL: Broadcast channel full, dropping message update")
	}
}

// ClientCount reports how many clients are registered.
func (h *Hub) ClientCount() int {
	return int(h.active.Load())
}

// Stop closes every client connection and ends Run. Safe to call twice.
func (h *Hub) Stop() {
	h.quitOnce.Do(func() { close(h.Quit) })
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.Quit:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.Quit:
	}
}

func (h *Hub) cleanupClient(c *Client) {
	c.once.Do(func() {
		if client, ok := h.Clients[c.Name]; ok && client == c {
			delete(h.Clients, c.Name)
			h.active.Store(int32(len(h.Clients)))
		}
		c.Conn.Close()
		close(c.Send)
		log.Printf("[HUB] Session closed for %s. Active clients remaining: %d", c.Name, len(h.Clients))
	})
}

func (h *Hub) Run() {
	log.Println("[HUB] Main loop started. Listening for events...")
	for {
		select {
		case <-h.Quit:
			log.Println("[HUB] Quit signal received. Shutting down all client connections...")
			for _, client := range h.Clients {
				h.cleanupClient(client)
			}
			return

		case client := <-h.Register:
			h.Clients[client.Name] = client
			h.active.Store(int32(len(h.Clients)))
			log.Printf("[HUB] Successfully registered %s. Total active: %d", client.Name, len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client.Name]; ok {
				h.cleanupClient(client)
			}

		case message := <-h.Broadcast:
			payload, err := json.Marshal(message)
			if err != nil {
				log.Printf("[HUB] Failed to encode message: %v", err)
				continue
			}

			log.Printf("[HUB] Broadcasting message from %s to %d clients", message.Username, len(h.Clients))
			for _, client := range h.Clients {
				select {
				case client.Send <- payload:
				default:
					log.Printf("[HUB] WARNING: Client %s buffer full. Evicting slow consumer.", client.Name)
					h.cleanupClient(client)
				}
			}
		}
	}
}
