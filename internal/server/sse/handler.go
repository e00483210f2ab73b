package sse

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Handler serves the SSE event stream. Each request becomes a Channel
// registered with the hub for the lifetime of the connection.
type Handler struct {
	reg     Registrar
	opts    Options
	clients atomic.Int64
}

// NewHandler creates an SSE handler.
func NewHandler(reg Registrar, opts Options) *Handler {
	return &Handler{
		reg:  reg,
		opts: opts.withDefaults(),
	}
}

// Clients returns the number of connected SSE clients.
func (h *Handler) Clients() int {
	return int(h.clients.Load())
}

// ServeHTTP handles one SSE connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// SSE connections outlive the server's WriteTimeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("could not clear write deadline for sse client")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	clientID := uuid.New().String()
	ch := NewChannel(clientID, w, flusher.Flush, h.opts)
	ch.Register(h.reg)

	h.clients.Add(1)
	defer h.clients.Add(-1)

	log.Info().
		Str("client_id", clientID).
		Str("remote_addr", r.RemoteAddr).
		Msg("sse client connected")

	err := ch.Run(r.Context())

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("client_id", clientID).
		Int64("sent", ch.Sent()).
		Int64("dropped", ch.Dropped()).
		Msg("sse client closed")
}
