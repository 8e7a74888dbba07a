package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/teddy"
)

// Name is the feature name.
const Name = "sync"

// Option configures a Feature.
type Option func(*Feature)

// WithChannel sets the channel every store joins. By default a store joins
// the channel named after its definition, such as "shop.cart".
func WithChannel(name string) Option {
	return func(f *Feature) {
		f.channel = name
	}
}

// WithLogger sets the logger. If nil, the store's logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(f *Feature) {
		f.logger = l
	}
}

// WithDialer sets the WebSocket dialer. Default: websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(f *Feature) {
		if d != nil {
			f.dialer = d
		}
	}
}

// WithHeader sets extra headers sent with the handshake.
func WithHeader(h http.Header) Option {
	return func(f *Feature) {
		f.header = h
	}
}

// WithDialTimeout bounds the handshake. Default: 5s.
func WithDialTimeout(d time.Duration) Option {
	return func(f *Feature) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// Feature connects stores to a hub.
type Feature struct {
	url     string
	channel string
	logger  *slog.Logger
	dialer  *websocket.Dialer
	header  http.Header
	timeout time.Duration

	mu    gosync.Mutex
	peers map[*teddy.Store]*peer
}

// New creates a feature dialing the hub at rawURL (ws:// or wss://).
func New(rawURL string, opts ...Option) *Feature {
	f := &Feature{
		url:     rawURL,
		dialer:  websocket.DefaultDialer,
		timeout: 5 * time.Second,
		peers:   make(map[*teddy.Store]*peer),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns "sync".
func (f *Feature) Name() string {
	return Name
}

type peer struct {
	id      string
	store   *teddy.Store
	channel string
	logger  *slog.Logger
	conn    *websocket.Conn
	watcher *teddy.Watcher
	done    chan struct{}

	writeMu gosync.Mutex

	mu     gosync.Mutex
	last   []byte
	closed bool
}

// Install connects s to the hub and starts publishing its state.
func (f *Feature) Install(s *teddy.Store) error {
	channel := f.channel
	if channel == "" {
		channel = s.Definition().String()
	}
	logger := f.logger
	if logger == nil {
		logger = s.Logger()
	}

	u, err := url.Parse(f.url)
	if err != nil {
		return fmt.Errorf("sync: hub url: %w", err)
	}
	q := u.Query()
	q.Set(ChannelParam, channel)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	conn, _, err := f.dialer.DialContext(ctx, u.String(), f.header)
	if err != nil {
		return fmt.Errorf("sync: dial %s: %w", u.Redacted(), err)
	}

	p := &peer{
		id:      uuid.NewString(),
		store:   s,
		channel: channel,
		logger:  logger.With("channel", channel),
		conn:    conn,
		done:    make(chan struct{}),
	}
	p.last, _ = json.Marshal(s.State())
	p.watcher = s.Watch(teddy.Watch{
		Key:     "feature:" + Name,
		Handler: func(_, _ any) { p.publish() },
	})

	f.mu.Lock()
	f.peers[s] = p
	f.mu.Unlock()

	go p.readLoop()
	return nil
}

// Uninstall disconnects s.
func (f *Feature) Uninstall(s *teddy.Store) error {
	f.mu.Lock()
	p, ok := f.peers[s]
	delete(f.peers, s)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	return p.close()
}

// PeerID returns the id s publishes under, or "" when f is not installed in s.
func (f *Feature) PeerID(s *teddy.Store) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.peers[s]; ok {
		return p.id
	}
	return ""
}

// Done returns a channel closed when the connection of s ends, or nil when
// f is not installed in s.
func (f *Feature) Done(s *teddy.Store) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.peers[s]; ok {
		return p.done
	}
	return nil
}

// publish runs during flush on the store's goroutine.
func (p *peer) publish() {
	data, err := json.Marshal(p.store.State())
	if err != nil {
		p.logger.Error("sync: encode state", "error", err)
		return
	}
	p.mu.Lock()
	// State just applied from the hub is not sent back.
	if p.closed || bytes.Equal(data, p.last) {
		p.mu.Unlock()
		return
	}
	p.last = data
	p.mu.Unlock()

	msg, err := json.Marshal(Message{Type: MessageState, Peer: p.id, State: data})
	if err != nil {
		p.logger.Error("sync: encode message", "error", err)
		return
	}
	p.writeMu.Lock()
	err = p.conn.WriteMessage(websocket.TextMessage, msg)
	p.writeMu.Unlock()
	if err != nil {
		p.logger.Warn("sync: publish failed", "error", err)
	}
}

func (p *peer) readLoop() {
	defer close(p.done)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			closed := p.closed
			p.mu.Unlock()
			if !closed {
				p.logger.Warn("sync: connection lost", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			p.logger.Warn("sync: bad message", "error", err)
			continue
		}
		if msg.Peer == p.id || msg.Type != MessageState {
			continue
		}
		p.apply(msg.State)
	}
}

func (p *peer) apply(state json.RawMessage) {
	p.mu.Lock()
	if p.closed || bytes.Equal(state, p.last) {
		p.mu.Unlock()
		return
	}
	p.last = append([]byte(nil), state...)
	p.mu.Unlock()

	t := p.store.Teddy()
	err := t.Exclusive(func() {
		if p.store.Detached() {
			return
		}
		v, err := t.Runtime().DecodeJSON(state)
		if err != nil {
			p.logger.Warn("sync: decode state", "error", err)
			return
		}
		p.store.ReplaceState(v)
	})
	if err != nil {
		p.logger.Error("sync: apply flush", "error", err)
	}
}

func (p *peer) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.watcher != nil {
		p.watcher.Stop()
	}
	// The hub may already be gone; the close frame is best effort.
	p.writeMu.Lock()
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.writeMu.Unlock()
	return p.conn.Close()
}
