package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/adapters/history"
	"github.com/brianly1003/wahub/internal/adapters/responder"
	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/brianly1003/wahub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(sender, content string, extra ...string) events.Event {
	payload := map[string]string{
		events.KeySender:  sender,
		events.KeyChatJID: sender + "@s.whatsapp.net",
		events.KeyContent: content,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		payload[extra[i]] = extra[i+1]
	}
	return events.NewMessageEvent(payload)
}

func newKeyword(t *testing.T, cfg KeywordConfig) (*KeywordHandler, *testutil.MockSender) {
	t.Helper()
	rules, err := responder.NewRulesResponder("")
	require.NoError(t, err)
	sender := testutil.NewMockSender()
	h := NewKeywordHandler(rules, sender, cfg)
	h.now = func() time.Time { return time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC) }
	return h, sender
}

func TestKeywordHandler_Replies(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{})
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message("555", "ping")))
	require.NoError(t, h.Handle(ctx, message("555", "", events.KeyMediaType, "image", events.KeyFilename, "cat.jpg")))
	require.NoError(t, h.Handle(ctx, message("555", "/time")))
	require.NoError(t, h.Handle(ctx, message("555", "zzz")))

	sent := sender.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "555@s.whatsapp.net", sent[0].Recipient)
	assert.Equal(t, "Pong! 🏓", sent[0].Text)
	assert.Equal(t, "Thanks for the image! I received your file: cat.jpg", sent[1].Text)
	assert.Equal(t, "Current time: 2026-02-03 04:05:06", sent[2].Text)

	st := h.Stats()
	assert.Equal(t, int64(4), st.Processed)
	assert.Equal(t, int64(3), st.Replies)
}

func TestKeywordHandler_Commands(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{Important: []string{"boss"}})
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message("555", "/help")))
	require.NoError(t, h.Handle(ctx, message("555", "/status")))
	require.NoError(t, h.Handle(ctx, message("555", "/block 999")))
	require.NoError(t, h.Handle(ctx, message("555", "/stats")))
	require.NoError(t, h.Handle(ctx, message("555", "/unblock 999")))
	require.NoError(t, h.Handle(ctx, message("555", "/nope")))

	sent := sender.Sent()
	require.Len(t, sent, 6)
	assert.Contains(t, sent[0].Text, "Available commands:")
	assert.Equal(t, "Bot Status: Online\nMessages processed: 2\nAuto-reply: Enabled", sent[1].Text)
	assert.Equal(t, "Sender 999 has been blocked.", sent[2].Text)
	assert.Equal(t, "Message Statistics:\nTotal processed: 4\nBlocked senders: 1\nImportant contacts: 1", sent[3].Text)
	assert.Equal(t, "Sender 999 has been unblocked.", sent[4].Text)
	assert.Contains(t, sent[5].Text, "Unknown command: /nope")
	assert.Empty(t, h.BlockedSenders())
}

func TestKeywordHandler_BlockedSender(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{Blocked: []string{"999"}})
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message("999", "ping")))
	assert.Empty(t, sender.Sent())
	assert.Equal(t, int64(0), h.Stats().Processed)

	require.NoError(t, h.Handle(ctx, message("555", "/block")))
	require.NoError(t, h.Handle(ctx, message("555", "ping")))
	assert.Len(t, sender.Sent(), 1)
	assert.Equal(t, []string{"555", "999"}, h.BlockedSenders())
}

func TestKeywordHandler_UrgentForward(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{ForwardTo: "ops@g.us"})

	require.NoError(t, h.Handle(context.Background(), message("555", "URGENT please call")))

	sent := sender.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, "ops@g.us", sent[0].Recipient)
	assert.Equal(t, "URGENT from 555: URGENT please call", sent[0].Text)
}

func TestKeywordHandler_IgnoresOwnMessages(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{})

	require.NoError(t, h.Handle(context.Background(), message("555", "ping", keyFromMe, "true")))
	assert.Empty(t, sender.Sent())
}

func TestKeywordHandler_SendError(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{})
	sender.SetResult(ports.SendResult{}, errors.New("bridge down"))

	err := h.Handle(context.Background(), message("555", "ping"))
	assert.Error(t, err)
	assert.Equal(t, int64(0), h.Stats().Replies)
}

func TestKeywordHandler_ViaHub(t *testing.T) {
	h, sender := newKeyword(t, KeywordConfig{})
	eh := hub.New()
	require.NoError(t, eh.Start())
	defer eh.Stop()

	eh.Subscribe(h.Subscriber())

	eh.Publish(context.Background(), events.NewEvent(events.EventTypeMessageSent, map[string]string{events.KeyContent: "ping"}))
	assert.Empty(t, sender.Sent())

	report := eh.Publish(context.Background(), message("555", "ping"))
	out, ok := report.Outcome(KeywordID)
	require.True(t, ok)
	assert.Equal(t, ports.StatusDelivered, out.Status)
	assert.Len(t, sender.Sent(), 1)
}

type captureResponder struct {
	mu      sync.Mutex
	prompts []ports.Prompt
	reply   string
	err     error
}

func (c *captureResponder) Name() string { return "capture" }

func (c *captureResponder) Respond(_ context.Context, p ports.Prompt) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, p)
	return c.reply, c.err
}

func (c *captureResponder) last() ports.Prompt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts[len(c.prompts)-1]
}

func TestAutoReplyHandler_UsesHistory(t *testing.T) {
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	rec := NewRecorder(store)
	require.NoError(t, rec.Handle(ctx, message("555", "earlier", events.KeyMessageID, "m1", events.KeyTimestamp, "2026-01-01T10:00:00Z")))

	current := message("555", "what now?", events.KeyMessageID, "m2", events.KeyTimestamp, "2026-01-01T10:01:00Z")
	require.NoError(t, rec.Handle(ctx, current))
	assert.Equal(t, int64(2), rec.Recorded())

	resp := &captureResponder{reply: "sure"}
	sender := testutil.NewMockSender()
	h := NewAutoReplyHandler(resp, sender, store, 0)

	require.NoError(t, h.Handle(ctx, current))

	p := resp.last()
	assert.Equal(t, "what now?", p.Content)
	require.Len(t, p.History, 1)
	assert.Equal(t, "earlier", p.History[0].Content)

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "555@s.whatsapp.net", sent[0].Recipient)
	assert.Equal(t, "sure", sent[0].Text)

	recent, err := store.Recent(ctx, "555@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.True(t, recent[2].FromMe)
	assert.Equal(t, int64(1), h.Stats().Replies)
}

func TestAutoReplyHandler_HistoryExcludesMessageWithoutID(t *testing.T) {
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	rec := NewRecorder(store)
	current := message("555", "hello")
	require.NoError(t, rec.Handle(ctx, current))

	recent, err := store.Recent(ctx, "555@s.whatsapp.net", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, current.ID(), recent[0].ID)

	resp := &captureResponder{reply: "hi"}
	h := NewAutoReplyHandler(resp, testutil.NewMockSender(), store, 0)
	require.NoError(t, h.Handle(ctx, current))

	assert.Empty(t, resp.last().History, "message being answered must not be in its own history")
}

func TestAutoReplyHandler_Skips(t *testing.T) {
	resp := &captureResponder{}
	sender := testutil.NewMockSender()
	h := NewAutoReplyHandler(resp, sender, nil, 5)
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, message("555", "")))
	require.NoError(t, h.Handle(ctx, message("555", "hi", keyFromMe, "true")))
	// Empty reply means do not answer.
	require.NoError(t, h.Handle(ctx, message("555", "hi")))

	assert.Empty(t, sender.Sent())
	assert.Equal(t, int64(3), h.Stats().Skipped)
}

func TestAutoReplyHandler_Errors(t *testing.T) {
	resp := &captureResponder{err: errors.New("model offline")}
	sender := testutil.NewMockSender()
	h := NewAutoReplyHandler(resp, sender, nil, 5)

	assert.Error(t, h.Handle(context.Background(), message("555", "hi")))

	resp.err = nil
	resp.reply = "ok"
	sender.SetResult(ports.SendResult{}, errors.New("bridge down"))
	assert.Error(t, h.Handle(context.Background(), message("555", "hi")))
	assert.Equal(t, int64(2), h.Stats().Failures)
}

func TestAutoReplyHandler_AsyncSubscriber(t *testing.T) {
	resp := &captureResponder{reply: "ok"}
	sender := testutil.NewMockSender()
	h := NewAutoReplyHandler(resp, sender, nil, 5)

	sub := h.Subscriber()
	modal, ok := sub.(ports.ModalSubscriber)
	require.True(t, ok)
	assert.Equal(t, ports.InvokeAsync, modal.Mode())

	eh := hub.New()
	require.NoError(t, eh.Start())
	defer eh.Stop()
	eh.Subscribe(sub)

	eh.Publish(context.Background(), message("555", "hello"))
	assert.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestParseTimestamp(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), parseTimestamp("2026-01-01T10:00:00Z", fallback))
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), parseTimestamp("2026-01-01 10:00:00", fallback))
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), parseTimestamp("1700000000", fallback))
	assert.Equal(t, fallback, parseTimestamp("", fallback))
	assert.Equal(t, fallback, parseTimestamp("yesterday", fallback))
}
