// Package http implements the HTTP API server for wahub.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/pairing"
	"github.com/brianly1003/wahub/internal/security"
	"github.com/brianly1003/wahub/internal/server/http/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
)

// requestTimeout bounds non-streaming requests.
const requestTimeout = 30 * time.Second

// Server is the HTTP API server.
type Server struct {
	server   *http.Server
	addr     string
	version  string
	eventHub ports.EventHub
	statusFn func() map[string]interface{}

	sseHandler  http.Handler
	wsHandler   http.Handler
	store       ports.MessageStore
	sender      ports.Sender
	qr          *pairing.QRGenerator
	rateLimiter *middleware.RateLimiter
	keyFn       middleware.KeyExtractor
	origins     *security.OriginChecker
	debug       *DebugHandler

	mu      sync.Mutex
	handler http.Handler
}

// New creates a new HTTP server.
func New(host string, port int, version string, eventHub ports.EventHub, statusFn func() map[string]interface{}) *Server {
	return &Server{
		addr:     fmt.Sprintf("%s:%d", host, port),
		version:  version,
		eventHub: eventHub,
		statusFn: statusFn,
		origins:  security.NewOriginChecker(nil),
	}
}

// SetSSEHandler sets the handler of /sse/events. Must be called before Start.
func (s *Server) SetSSEHandler(h http.Handler) { s.sseHandler = h }

// SetWebSocketHandler sets the handler of /ws. Must be called before Start.
func (s *Server) SetWebSocketHandler(h http.Handler) { s.wsHandler = h }

// SetMessageStore enables GET /api/messages and /api/chats.
func (s *Server) SetMessageStore(store ports.MessageStore) { s.store = store }

// SetSender enables POST /api/messages/send.
func (s *Server) SetSender(sender ports.Sender) { s.sender = sender }

// SetPairing enables GET /api/pair/qr and /api/pair/info.
func (s *Server) SetPairing(qr *pairing.QRGenerator) { s.qr = qr }

// SetRateLimiter limits the ingestion endpoints per client IP.
func (s *Server) SetRateLimiter(limiter *middleware.RateLimiter) { s.rateLimiter = limiter }

// SetRateLimitKey overrides how ingestion requests are keyed for rate
// limiting. The default is the peer IP.
func (s *Server) SetRateLimitKey(fn middleware.KeyExtractor) { s.keyFn = fn }

// SetOriginChecker replaces the localhost-only CORS policy.
func (s *Server) SetOriginChecker(oc *security.OriginChecker) {
	if oc != nil {
		s.origins = oc
	}
}

// SetDebugHandler enables the /debug/ endpoints.
func (s *Server) SetDebugHandler(h *DebugHandler) { s.debug = h }

// Addr returns the listen address.
func (s *Server) Addr() string { return s.addr }

// Handler returns the router wrapped in the middleware chain. It is built
// once, on first use.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handler == nil {
		s.handler = s.buildHandler()
	}
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Ingestion
	var ingest http.Handler = http.HandlerFunc(s.handleNotification)
	if s.rateLimiter != nil {
		ingest = middleware.RateLimitMiddleware(s.rateLimiter, s.keyFn)(ingest)
		log.Info().Msg("rate limiting enabled for ingestion")
	}
	router.Handle("/api/message-notification", ingest).Methods(http.MethodPost)
	router.Handle("/api/notify", ingest).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/messages/send", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/chats", s.handleListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats/{chat_jid}", s.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/pair/info", s.handlePairInfo).Methods(http.MethodGet)
	api.HandleFunc("/pair/qr", s.handlePairQR).Methods(http.MethodGet)

	// Streams
	if s.sseHandler != nil {
		router.Handle("/sse/events", s.sseHandler).Methods(http.MethodGet)
		router.Handle("/sse", s.sseHandler).Methods(http.MethodGet)
	}
	if s.wsHandler != nil {
		router.Handle("/ws", s.wsHandler)
	}

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	if s.debug != nil {
		s.debug.Register(router)
	}

	// request -> logging -> recover -> cors -> timeout -> router
	var handler http.Handler = router
	handler = timeoutMiddleware(requestTimeout, handler)
	handler = corsMiddleware(s.origins, handler)
	handler = recoverMiddleware(handler)
	handler = requestLoggingMiddleware(handler)
	return handler
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("HTTP server starting")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("HTTP server stopping")
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// requestLoggingMiddleware logs all incoming requests for debugging.
func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("request completed")
	})
}

// recoverMiddleware turns a panic in a handler into a 500 response.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("recovered from handler panic")
				writeResult(w, http.StatusInternalServerError, ResultResponse{
					Message: "internal error",
					Code:    "INTERNAL_ERROR",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// isStreamPath reports paths that hold the connection open.
func isStreamPath(path string) bool {
	return path == "/ws" || path == "/sse" || strings.HasPrefix(path, "/sse/") ||
		strings.HasPrefix(path, "/swagger/") || strings.HasPrefix(path, "/debug/pprof/")
}

// timeoutMiddleware cancels the request context of non-streaming requests
// after timeout.
func timeoutMiddleware(timeout time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware rejects browser requests from origins the checker does not
// allow.
func corsMiddleware(origins *security.OriginChecker, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			if !origins.Allowed(origin) {
				log.Warn().
					Str("origin", origin).
					Str("remote", r.RemoteAddr).
					Msg("CORS request rejected - origin not allowed")
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeResult(w http.ResponseWriter, status int, res ResultResponse) {
	writeJSON(w, status, res)
}
