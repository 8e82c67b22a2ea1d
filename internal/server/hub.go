package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/kehao95/gh-deploybot/internal/message"
)

// Hub fans activity out to the websocket clients of the /ws feed.
// Delivery is best effort: a full client buffer or a full broadcast
// queue drops the message.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcastMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
}

func newHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcastMessage, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.subscribedTo(message.event) {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// join registers c. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

type broadcastMessage struct {
	event string
	data  []byte
}

func (h *Hub) publish(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode activity message failed", "event", event, "err", err)
		return
	}
	select {
	case h.broadcast <- broadcastMessage{event: event, data: data}:
	default:
		h.logger.Warn("broadcast dropped", "event", event)
	}
}

// PublishEvent broadcasts a webhook delivery.
func (h *Hub) PublishEvent(msg message.EventMessage) {
	h.publish(msg.Event, msg)
}

// PublishDispatch broadcasts the outcome of a workflow dispatch.
func (h *Hub) PublishDispatch(msg message.DispatchMessage) {
	h.publish(msg.Event, msg)
}

// Client is one websocket connection to the activity feed.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	events   []string
	eventsMu sync.RWMutex
	logger   *slog.Logger
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "subscribe" {
			continue
		}
		c.setEvents(msg.Events)
		c.logger.Info("ws subscribed", "remote", c.conn.RemoteAddr().String(), "events", msg.Events)
	}
}

func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

type subscribeMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events"`
}

func (c *Client) setEvents(events []string) {
	c.eventsMu.Lock()
	if len(events) == 0 {
		c.events = nil
	} else {
		c.events = append([]string(nil), events...)
	}
	c.eventsMu.Unlock()
}

// subscribedTo reports whether the client wants event. No subscription
// means every event.
func (c *Client) subscribedTo(event string) bool {
	c.eventsMu.RLock()
	defer c.eventsMu.RUnlock()
	return len(c.events) == 0 || slices.Contains(c.events, event)
}
