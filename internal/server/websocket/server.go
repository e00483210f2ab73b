package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/brianly1003/wahub/internal/sync"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 15 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 90 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Default send buffer size per client.
	sendBufferSize = 256

	// Application-level keepalive interval, sent as a JSON event.
	heartbeatInterval = 30 * time.Second
)

func newUpgrader(checkOrigin func(*http.Request) bool) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

func allowAllOrigins(*http.Request) bool { return true }

// Registrar is the part of the hub the handler registers clients with.
type Registrar interface {
	Subscribe(sub ports.Subscriber) ports.SubscriptionHandle
	Unsubscribe(h ports.SubscriptionHandle) bool
}

// Command is a control message sent by a client.
//
//	{"command":"subscribe","types":["new_message"]}
//	{"command":"unsubscribe","types":["message_sent"]}
//	{"command":"subscribe_all"}
type Command struct {
	Command string             `json:"command"`
	Types   []events.EventType `json:"types,omitempty"`
}

// CommandResult acknowledges a Command.
type CommandResult struct {
	Event   string `json:"event"`
	Command string `json:"command"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type session struct {
	client *Client
	filter *hub.FilteredSubscriber
	handle ports.SubscriptionHandle
}

// Handler upgrades requests to WebSocket and registers each connection with
// the hub as a stream subscriber.
type Handler struct {
	reg        Registrar
	bufferSize int
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session

	heartbeatDone chan struct{}
	stopOnce      sync.Once
}

// NewHandler creates a WebSocket handler.
func NewHandler(reg Registrar, bufferSize int) *Handler {
	return &Handler{
		reg:           reg,
		bufferSize:    bufferSize,
		upgrader:      newUpgrader(allowAllOrigins),
		sessions:      make(map[string]*session),
		heartbeatDone: make(chan struct{}),
	}
}

// SetCheckOrigin sets the origin policy of upgrade requests. Must be called
// before the handler serves.
func (h *Handler) SetCheckOrigin(fn func(*http.Request) bool) {
	if fn == nil {
		fn = allowAllOrigins
	}
	h.upgrader = newUpgrader(fn)
}

// Start starts the keepalive loop.
func (h *Handler) Start() {
	go h.heartbeatLoop()
}

// Stop stops the keepalive loop and closes every client.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		close(h.heartbeatDone)
	})

	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	h.mu.Unlock()

	for _, s := range sessions {
		s.client.Close()
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := NewClient(conn, h.bufferSize, h.handleMessage, h.removeClient)
	filter := hub.NewFilteredSubscriber(NewClientSubscriber(client))

	// The connected event goes out before any hub event.
	if data, err := events.NewConnectedEvent(client.ID(), time.Now()).ToJSON(); err == nil {
		_ = client.Send(data)
	}

	s := &session{client: client, filter: filter}
	h.mu.Lock()
	h.sessions[client.ID()] = s
	h.mu.Unlock()

	handle := h.reg.Subscribe(filter)
	h.mu.Lock()
	s.handle = handle
	h.mu.Unlock()

	log.Info().
		Str("client_id", client.ID()).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("websocket client connected")

	client.Start()
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Handler) removeClient(c *Client) {
	h.mu.Lock()
	s, ok := h.sessions[c.ID()]
	delete(h.sessions, c.ID())
	h.mu.Unlock()

	if ok {
		h.reg.Unsubscribe(s.handle)
	}
	log.Info().Str("client_id", c.ID()).Msg("websocket client disconnected")
}

func (h *Handler) handleMessage(c *Client, message []byte) {
	h.mu.RLock()
	s, ok := h.sessions[c.ID()]
	h.mu.RUnlock()
	if !ok {
		return
	}

	var cmd Command
	result := CommandResult{Event: "command_result", Success: true}
	if err := json.Unmarshal(message, &cmd); err != nil {
		result.Success = false
		result.Error = "invalid command: " + err.Error()
	} else {
		result.Command = cmd.Command
		switch cmd.Command {
		case "subscribe":
			for _, t := range cmd.Types {
				s.filter.Allow(t)
			}
		case "unsubscribe":
			for _, t := range cmd.Types {
				s.filter.Disallow(t)
			}
		case "subscribe_all":
			s.filter.AllowAll()
		default:
			result.Success = false
			result.Error = "unknown command"
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	_ = c.Send(data)
}

// heartbeatLoop sends a keepalive event to every client at a fixed interval.
func (h *Handler) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.heartbeatDone:
			return
		case now := <-ticker.C:
			data, err := events.NewKeepAliveEvent(now).ToJSON()
			if err != nil {
				continue
			}
			h.mu.RLock()
			for _, s := range h.sessions {
				_ = s.client.Send(data)
			}
			h.mu.RUnlock()
		}
	}
}
