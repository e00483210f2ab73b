package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/adapters/history"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/brianly1003/wahub/internal/pairing"
	"github.com/brianly1003/wahub/internal/security"
	"github.com/brianly1003/wahub/internal/server/http/middleware"
	"github.com/brianly1003/wahub/internal/testutil"
)

func newTestServer(t *testing.T) (*Server, *hub.Hub, *testutil.MockSubscriber) {
	t.Helper()
	h := hub.New()
	if err := h.Start(); err != nil {
		t.Fatalf("failed to start hub: %v", err)
	}
	t.Cleanup(func() { _ = h.Stop() })

	sub := testutil.NewMockSubscriber("recorder")
	h.Subscribe(sub)

	return New("127.0.0.1", 0, "test", h, nil), h, sub
}

func do(t *testing.T, s *Server, method, path, contentType string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) ResultResponse {
	t.Helper()
	var res ResultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", rec.Body.String(), err)
	}
	return res
}

func TestNew(t *testing.T) {
	s := New("localhost", 8766, "1.0.0", testutil.NewMockEventHub(), nil)
	if s.Addr() != "localhost:8766" {
		t.Errorf("expected addr localhost:8766, got %s", s.Addr())
	}
}

func TestServer_Health(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("expected body OK, got %q", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/health", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestServer_Info(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/", "", "")
	var info InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if info.Name != "wahub" || info.Version != "test" {
		t.Errorf("unexpected info %+v", info)
	}
	if info.Endpoints["sse"] != "/sse/events" {
		t.Errorf("expected sse endpoint, got %v", info.Endpoints)
	}
}

func TestServer_Notification(t *testing.T) {
	s, _, sub := newTestServer(t)

	for _, path := range []string{"/api/message-notification", "/api/notify"} {
		sub.ClearEvents()
		rec := do(t, s, http.MethodPost, path, "application/json",
			`{"type":"new_message","sender":"555","content":"hello"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", path, rec.Code, rec.Body.String())
		}
		res := decodeResult(t, rec)
		if !res.Success || res.Message != "Notification processed successfully" || res.EventID == "" {
			t.Errorf("%s: unexpected result %+v", path, res)
		}

		evts := sub.Events()
		if len(evts) != 1 {
			t.Fatalf("%s: expected 1 delivered event, got %d", path, len(evts))
		}
		if evts[0].Get(events.KeySender) != "555" || evts[0].Get(events.KeyChatJID) != "555" {
			t.Errorf("%s: unexpected payload %v", path, evts[0].Payload())
		}
	}
}

func TestServer_NotificationMalformed(t *testing.T) {
	s, _, sub := newTestServer(t)

	bodies := []string{
		``,
		`{}`,
		`not json`,
		`[1,2]`,
		`{"type":"new_message"}`,
		`{"sender":"555"}`,
	}
	for _, body := range bodies {
		rec := do(t, s, http.MethodPost, "/api/message-notification", "application/json", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected status 400, got %d", body, rec.Code)
			continue
		}
		res := decodeResult(t, rec)
		if res.Success || res.Code != "MALFORMED_EVENT" {
			t.Errorf("body %q: unexpected result %+v", body, res)
		}
	}

	if sub.EventCount() != 0 {
		t.Errorf("malformed notifications must not be delivered, got %d", sub.EventCount())
	}
}

func TestServer_NotificationSubscriberFailure(t *testing.T) {
	s, h, _ := newTestServer(t)
	failing := testutil.NewMockSubscriber("failing")
	failing.SetDeliverFunc(func(_ context.Context, _ events.Event) error {
		panic("boom")
	})
	h.Subscribe(failing)

	rec := do(t, s, http.MethodPost, "/api/notify", "application/json", `{"type":"new_message","chat_jid":"g@g.us"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscriber failures must not reach the caller, got %d", rec.Code)
	}
}

func TestServer_RecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("unexpected")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/notify", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	if res := decodeResult(t, rec); res.Success {
		t.Error("expected success=false")
	}
}

func TestServer_Status(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/status", "", "")
	if !strings.Contains(rec.Body.String(), `"subscribers":1`) {
		t.Errorf("unexpected status %s", rec.Body.String())
	}

	s.statusFn = func() map[string]interface{} { return map[string]interface{}{"custom": true} }
	s.handler = nil
	rec = do(t, s, http.MethodGet, "/api/status", "", "")
	if !strings.Contains(rec.Body.String(), `"custom":true`) {
		t.Errorf("unexpected status %s", rec.Body.String())
	}
}

func TestServer_Messages(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/messages", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", rec.Code)
	}

	store, err := history.Open(history.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	for i, content := range []string{"one", "two", "three"} {
		_ = store.Save(t.Context(), ports.StoredMessage{
			ID:        content,
			ChatJID:   "chat",
			Sender:    "555",
			Content:   content,
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
	}

	s.SetMessageStore(store)
	s.handler = nil

	rec = do(t, s, http.MethodGet, "/api/messages?chat_jid=chat&limit=2", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var res MessagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if res.Count != 2 || res.Messages[0].Content != "two" || res.Messages[1].Content != "three" {
		t.Errorf("unexpected messages %+v", res)
	}
}

func TestServer_Chats(t *testing.T) {
	s, _, _ := newTestServer(t)

	if rec := do(t, s, http.MethodGet, "/api/chats", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a store, got %d", rec.Code)
	}

	store, err := history.Open(history.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	for i, m := range []struct{ id, chat, content string }{
		{"1", "555@s.whatsapp.net", "hello"},
		{"2", "777@s.whatsapp.net", "hey"},
		{"3", "555@s.whatsapp.net", "again"},
	} {
		_ = store.Save(t.Context(), ports.StoredMessage{
			ID:        m.id,
			ChatJID:   m.chat,
			Sender:    "555",
			Content:   m.content,
			Timestamp: time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		})
	}
	s.SetMessageStore(store)
	s.handler = nil

	rec := do(t, s, http.MethodGet, "/api/chats", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var list ChatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if list.Count != 2 || list.Chats[0].ChatJID != "555@s.whatsapp.net" || list.Chats[0].MessageCount != 2 {
		t.Errorf("unexpected chats %+v", list)
	}

	rec = do(t, s, http.MethodGet, "/api/chats/777@s.whatsapp.net", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var one ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &one); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if one.Chat.LastContent != "hey" {
		t.Errorf("unexpected chat %+v", one.Chat)
	}

	if rec := do(t, s, http.MethodGet, "/api/chats/unknown", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown chat, got %d", rec.Code)
	}
}

func TestServer_SendMessage(t *testing.T) {
	s, _, sub := newTestServer(t)
	sender := testutil.NewMockSender()
	s.SetSender(sender)

	rec := do(t, s, http.MethodPost, "/api/messages/send", "application/json",
		`{"recipient":"555@s.whatsapp.net","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if res := decodeResult(t, rec); !res.Success || res.Message != "Message sent" {
		t.Errorf("unexpected result %+v", res)
	}
	if sent := sender.Sent(); len(sent) != 1 || sent[0].Recipient != "555@s.whatsapp.net" {
		t.Errorf("unexpected sent messages %+v", sent)
	}

	evts := sub.Events()
	if len(evts) != 1 || evts[0].Type() != events.EventTypeMessageSent {
		t.Fatalf("expected a message_sent event, got %v", evts)
	}

	// Query parameters work as well.
	rec = do(t, s, http.MethodPost, "/api/messages/send?recipient=777&message=yo", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200 for query params, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodPost, "/api/messages/send", "application/json", `{"recipient":"555"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing message, got %d", rec.Code)
	}

	sender.SetResult(ports.SendResult{}, errors.New("bridge down"))
	rec = do(t, s, http.MethodPost, "/api/messages/send", "application/json", `{"recipient":"555","message":"x"}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", rec.Code)
	}
}

func TestServer_Pairing(t *testing.T) {
	s, _, _ := newTestServer(t)

	if rec := do(t, s, http.MethodGet, "/api/pair/qr", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without pairing, got %d", rec.Code)
	}

	s.SetPairing(pairing.NewQRGenerator("http://localhost:8766", "test"))
	s.handler = nil

	rec := do(t, s, http.MethodGet, "/api/pair/qr?size=128", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %s", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG body")
	}

	rec = do(t, s, http.MethodGet, "/api/pair/info", "", "")
	if !strings.Contains(rec.Body.String(), "/sse/events") {
		t.Errorf("unexpected pair info %s", rec.Body.String())
	}
}

func TestServer_CORS(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("expected localhost origin to be allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}
}

func TestServer_AllowedOrigins(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.SetOriginChecker(security.NewOriginChecker([]string{"https://dash.example.com"}))

	req := httptest.NewRequest(http.MethodOptions, "/api/notify", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected preflight status 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://dash.example.com" {
		t.Error("expected configured origin to be allowed")
	}
}

func TestServer_RateLimitTrustedProxy(t *testing.T) {
	s, _, _ := newTestServer(t)
	rl := middleware.NewRateLimiter(middleware.WithRate(0.001), middleware.WithBurst(1))
	defer rl.Close()
	s.SetRateLimiter(rl)
	trusted, _ := security.ParseTrustedProxies([]string{"192.0.2.0/24"})
	s.SetRateLimitKey(middleware.ClientIPKeyExtractor(trusted))

	body := `{"type":"new_message","sender":"555"}`
	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/notify", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s: expected status 200, got %d", client, rec.Code)
		}
	}
}

func TestServer_RateLimit(t *testing.T) {
	s, _, _ := newTestServer(t)
	rl := middleware.NewRateLimiter(middleware.WithRate(0.001), middleware.WithBurst(1))
	defer rl.Close()
	s.SetRateLimiter(rl)

	body := `{"type":"new_message","sender":"555"}`
	if rec := do(t, s, http.MethodPost, "/api/notify", "application/json", body); rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/notify", "application/json", body); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
}

func TestServer_StartStop(t *testing.T) {
	s, _, _ := newTestServer(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Stop(t.Context()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
