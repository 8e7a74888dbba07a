// Package sync keeps the state of stores in several processes in step over
// WebSocket.
//
// A Hub relays messages between the peers connected to the same channel. A
// peer is a teddy feature: it publishes the store's state after every flush
// that changed it and replaces the state with whatever other peers publish.
//
//	mux.Handle("/sync", sync.NewHub())
//
//	f := sync.New("ws://localhost:8080/sync")
//	t.Exclusive(func() {
//		t.SetStore(def, teddy.Config{Features: []teddy.Feature{f}})
//	})
package sync

import (
	"encoding/json"
	"log/slog"
	"net/http"
	gosync "sync"

	"github.com/gorilla/websocket"
)

// MessageType identifies a sync message.
type MessageType string

const (
	// MessageState carries the full raw state of a store.
	MessageState MessageType = "state"
)

// Message is exchanged between peers through a hub.
type Message struct {
	Type  MessageType     `json:"type"`
	Peer  string          `json:"peer"`
	State json.RawMessage `json:"state,omitempty"`
}

// ChannelParam is the query parameter naming the channel a peer joins.
const ChannelParam = "channel"

// Hub relays messages between peers on the same channel. The last state
// published on a channel is sent to peers that join later.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       gosync.RWMutex
	channels map[string]map[*client]bool
	last     map[string][]byte
}

type client struct {
	conn    *websocket.Conn
	channel string
	writeMu gosync.Mutex
}

func (c *client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the hub's logger. Default: slog.Default().
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin sets the upgrader's origin check. By default every origin
// is accepted.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHub creates a hub with no peers.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   slog.Default(),
		channels: make(map[string]map[*client]bool),
		last:     make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and relays the peer's messages until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get(ChannelParam)
	if channel == "" {
		http.Error(w, "sync: missing channel", http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("sync: upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, channel: channel}

	h.mu.Lock()
	peers := h.channels[channel]
	if peers == nil {
		peers = make(map[*client]bool)
		h.channels[channel] = peers
	}
	peers[c] = true
	last := h.last[channel]
	h.mu.Unlock()

	if last != nil {
		if err := c.write(last); err != nil {
			h.drop(c)
			return
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("sync: bad message", "channel", channel, "error", err)
			continue
		}
		if msg.Type == MessageState {
			h.mu.Lock()
			h.last[channel] = data
			h.mu.Unlock()
		}
		h.broadcast(c, data)
	}
	h.drop(c)
}

// broadcast sends data to every peer on from's channel except from.
func (h *Hub) broadcast(from *client, data []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.channels[from.channel]))
	for c := range h.channels[from.channel] {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(data); err != nil {
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if peers := h.channels[c.channel]; peers != nil {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.channels, c.channel)
		}
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Peers returns the number of peers connected to channel.
func (h *Hub) Peers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Close disconnects every peer and forgets every channel's last state.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, peers := range h.channels {
		for c := range peers {
			c.conn.Close()
		}
		delete(h.channels, channel)
	}
	h.last = make(map[string][]byte)
}
