package chatws

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/croquete1/Fitness-Pro-sub002/internal/models"
)

// Hub fans thread-update events out to each participant's connected
// sockets so open inboxes can refresh previews and unread badges without
// polling. Sends themselves travel over HTTP (multipart attachments do not
// fit a socket frame); the socket is notification-only.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *ThreadEvent
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// ThreadEvent is the payload pushed after a send: enough to update an
// inbox row without refetching the thread list.
type ThreadEvent struct {
	Type        string `json:"type"`
	ThreadID    string `json:"thread_id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id,omitempty"`
	Preview     string `json:"preview,omitempty"`
	Timestamp   string `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *ThreadEvent, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// NotifyThreadUpdated pushes a thread_updated event to both participants.
func (h *Hub) NotifyThreadUpdated(thread *models.Thread, senderID, recipientID int64) {
	event := &ThreadEvent{
		Type:        "thread_updated",
		ThreadID:    strconv.FormatInt(thread.ID, 10),
		SenderID:    strconv.FormatInt(senderID, 10),
		RecipientID: strconv.FormatInt(recipientID, 10),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if thread.LastMessagePreview != nil {
		event.Preview = *thread.LastMessagePreview
	}

	select {
	case h.broadcast <- event:
	default:
		log.Printf("chat hub: dropping thread event for thread %s", event.ThreadID)
	}
}

func (h *Hub) deliver(event *ThreadEvent) {
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("chat hub encode event: %v", err)
		return
	}

	h.sendToUser(event.SenderID, encoded)
	if event.RecipientID != "" && event.RecipientID != event.SenderID {
		h.sendToUser(event.RecipientID, encoded)
	}
}

func (h *Hub) sendToUser(userID string, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

// ReadPump drains the connection until the peer goes away. Inbound frames
// carry nothing the server acts on.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
