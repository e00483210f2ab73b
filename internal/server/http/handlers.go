package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/ingest"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// maxNotificationBytes bounds an ingestion body.
const maxNotificationBytes = 1 << 20

const (
	defaultMessagesLimit = 20
	maxMessagesLimit     = 500
)

// handleInfo handles GET /
//
//	@Summary		Service info
//	@Description	Returns the service name, version and endpoint map
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	InfoResponse
//	@Router			/ [get]
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Name:    "wahub",
		Version: s.version,
		Endpoints: map[string]string{
			"notify":  "/api/message-notification",
			"sse":     "/sse/events",
			"ws":      "/ws",
			"status":  "/api/status",
			"health":  "/health",
			"swagger": "/swagger/",
		},
	})
}

// handleHealth handles GET /health
//
//	@Summary		Health check
//	@Description	Returns OK while the server is up
//	@Tags			health
//	@Produce		plain
//	@Success		200	{string}	string	"OK"
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// handleStatus handles GET /api/status
//
//	@Summary		Hub status
//	@Description	Returns subscriber ids, delivery counters and uptime
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Router			/api/status [get]
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.statusFn != nil {
		writeJSON(w, http.StatusOK, s.statusFn())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"subscribers": s.eventHub.SubscriberCount(),
	})
}

// handleNotification handles POST /api/message-notification and /api/notify
//
//	@Summary		Ingest a notification
//	@Description	Normalizes a bridge notification and fans it out to every subscriber
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			notification	body		NotificationRequest	true	"Notification"
//	@Success		200				{object}	ResultResponse
//	@Failure		400				{object}	ResultResponse	"Malformed notification"
//	@Failure		500				{object}	ResultResponse	"Internal error"
//	@Router			/api/message-notification [post]
//	@Router			/api/notify [post]
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBytes))
	if err != nil {
		writeResult(w, http.StatusBadRequest, ResultResponse{
			Message: "failed to read body: " + err.Error(),
			Code:    domain.ErrCodeInvalidPayload,
		})
		return
	}

	event, err := ingest.Normalize(body)
	if err != nil {
		var malformed *domain.MalformedEventError
		if errors.As(err, &malformed) {
			log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejected malformed notification")
			writeResult(w, http.StatusBadRequest, ResultResponse{
				Message: err.Error(),
				Code:    domain.ErrCodeMalformedEvent,
			})
			return
		}
		log.Error().Err(err).Msg("failed to normalize notification")
		writeResult(w, http.StatusInternalServerError, ResultResponse{
			Message: "internal error",
			Code:    domain.ErrCodeInternalError,
		})
		return
	}

	// Async subscribers outlive the request.
	report := s.eventHub.Publish(context.WithoutCancel(r.Context()), event)

	log.Debug().
		Str("event_id", event.ID()).
		Str("event_type", string(event.Type())).
		Str("sender", event.Get(events.KeySender)).
		Int("subscribers", len(report.Outcomes)).
		Msg("notification published")

	writeResult(w, http.StatusOK, ResultResponse{
		Success: true,
		Message: "Notification processed successfully",
		EventID: event.ID(),
	})
}

// handleListMessages handles GET /api/messages
//
//	@Summary		Recent messages
//	@Description	Returns recent messages from the history store, oldest first
//	@Tags			messages
//	@Produce		json
//	@Param			chat_jid	query		string	false	"Chat JID (default: all chats)"
//	@Param			limit		query		int		false	"Maximum messages (default 20, max 500)"
//	@Success		200			{object}	MessagesResponse
//	@Failure		503			{object}	ResultResponse	"History disabled"
//	@Router			/api/messages [get]
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "message history is disabled"})
		return
	}

	limit := parseIntParam(r, "limit", defaultMessagesLimit)
	if limit <= 0 {
		limit = defaultMessagesLimit
	}
	if limit > maxMessagesLimit {
		limit = maxMessagesLimit
	}

	msgs, err := s.store.Recent(r.Context(), r.URL.Query().Get("chat_jid"), limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list messages")
		writeResult(w, http.StatusInternalServerError, ResultResponse{
			Message: "failed to list messages",
			Code:    domain.ErrCodeInternalError,
		})
		return
	}

	writeJSON(w, http.StatusOK, MessagesResponse{Success: true, Messages: msgs, Count: len(msgs)})
}

// handleListChats handles GET /api/chats
//
//	@Summary		Chats
//	@Description	Lists chats from the history store with their latest message, most recent first
//	@Tags			messages
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum chats (default 20, max 500)"
//	@Success		200		{object}	ChatsResponse
//	@Failure		503		{object}	ResultResponse	"History disabled"
//	@Router			/api/chats [get]
func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "message history is disabled"})
		return
	}

	limit := parseIntParam(r, "limit", defaultMessagesLimit)
	if limit <= 0 {
		limit = defaultMessagesLimit
	}
	if limit > maxMessagesLimit {
		limit = maxMessagesLimit
	}

	chats, err := s.store.Chats(r.Context(), "", limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list chats")
		writeResult(w, http.StatusInternalServerError, ResultResponse{
			Message: "failed to list chats",
			Code:    domain.ErrCodeInternalError,
		})
		return
	}

	writeJSON(w, http.StatusOK, ChatsResponse{Success: true, Chats: chats, Count: len(chats)})
}

// handleGetChat handles GET /api/chats/{chat_jid}
//
//	@Summary		Chat
//	@Description	Returns one chat from the history store with its latest message
//	@Tags			messages
//	@Produce		json
//	@Param			chat_jid	path		string	true	"Chat JID"
//	@Success		200			{object}	ChatResponse
//	@Failure		404			{object}	ResultResponse	"Unknown chat"
//	@Failure		503			{object}	ResultResponse	"History disabled"
//	@Router			/api/chats/{chat_jid} [get]
func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "message history is disabled"})
		return
	}

	jid := mux.Vars(r)["chat_jid"]
	chats, err := s.store.Chats(r.Context(), jid, 1)
	if err != nil {
		log.Error().Err(err).Str("chat_jid", jid).Msg("failed to load chat")
		writeResult(w, http.StatusInternalServerError, ResultResponse{
			Message: "failed to load chat",
			Code:    domain.ErrCodeInternalError,
		})
		return
	}
	if len(chats) == 0 {
		writeResult(w, http.StatusNotFound, ResultResponse{Message: "chat not found"})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Success: true, Chat: chats[0]})
}

// handleSendMessage handles POST /api/messages/send
//
//	@Summary		Send a message
//	@Description	Sends a text message through the bridge and broadcasts a message_sent event
//	@Tags			messages
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SendRequest	true	"Message"
//	@Success		200		{object}	ResultResponse
//	@Failure		400		{object}	ResultResponse	"Missing recipient or message"
//	@Failure		502		{object}	ResultResponse	"Bridge error"
//	@Failure		503		{object}	ResultResponse	"Sender not configured"
//	@Router			/api/messages/send [post]
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if s.sender == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "sender is not configured"})
		return
	}

	// The body may be JSON or the fields may come as query parameters.
	req := SendRequest{
		Recipient: r.URL.Query().Get("recipient"),
		Message:   r.URL.Query().Get("message"),
	}
	if r.ContentLength != 0 && strings.Contains(r.Header.Get("Content-Type"), "json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationBytes)).Decode(&req); err != nil {
			writeResult(w, http.StatusBadRequest, ResultResponse{
				Message: "invalid JSON: " + err.Error(),
				Code:    domain.ErrCodeInvalidPayload,
			})
			return
		}
	}
	if strings.TrimSpace(req.Recipient) == "" || req.Message == "" {
		writeResult(w, http.StatusBadRequest, ResultResponse{
			Message: "recipient and message are required",
			Code:    domain.ErrCodeInvalidPayload,
		})
		return
	}

	res, err := s.sender.Send(r.Context(), req.Recipient, req.Message)
	if err != nil {
		s.eventHub.Publish(context.WithoutCancel(r.Context()),
			events.NewMessageSentEvent(req.Recipient, false, err.Error()))
		writeResult(w, http.StatusBadGateway, ResultResponse{
			Message: err.Error(),
			Code:    domain.ErrCodeSendFailed,
		})
		return
	}

	s.eventHub.Publish(context.WithoutCancel(r.Context()),
		events.NewMessageSentEvent(req.Recipient, res.Success, res.Status))
	writeResult(w, http.StatusOK, ResultResponse{Success: res.Success, Message: res.Status})
}

// handlePairInfo handles GET /api/pair/info
//
//	@Summary		Stream endpoints
//	@Description	Returns the URLs encoded in the pairing QR code
//	@Tags			pairing
//	@Produce		json
//	@Success		200	{object}	pairing.StreamInfo
//	@Failure		503	{object}	ResultResponse	"Pairing disabled"
//	@Router			/api/pair/info [get]
func (s *Server) handlePairInfo(w http.ResponseWriter, r *http.Request) {
	if s.qr == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "pairing is not configured"})
		return
	}
	writeJSON(w, http.StatusOK, s.qr.GetStreamInfo())
}

// handlePairQR handles GET /api/pair/qr
//
//	@Summary		Pairing QR code
//	@Description	Returns a PNG QR code of the stream endpoints
//	@Tags			pairing
//	@Produce		png
//	@Param			size	query		int	false	"QR code size in pixels (default 256, max 512)"
//	@Success		200		{file}		binary
//	@Failure		500		{object}	ResultResponse	"Failed to generate QR code"
//	@Router			/api/pair/qr [get]
func (s *Server) handlePairQR(w http.ResponseWriter, r *http.Request) {
	if s.qr == nil {
		writeResult(w, http.StatusServiceUnavailable, ResultResponse{Message: "pairing is not configured"})
		return
	}

	size := parseIntParam(r, "size", 256)
	if size <= 0 || size > 512 {
		size = 256
	}

	png, err := s.qr.GeneratePNG(size)
	if err != nil {
		writeResult(w, http.StatusInternalServerError, ResultResponse{Message: "failed to generate QR code"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
