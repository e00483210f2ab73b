package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEventLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		}
	}
}

func TestHandler_StreamsHubEvents(t *testing.T) {
	h := hub.New()
	require.NoError(t, h.Start())
	defer func() { _ = h.Stop() }()

	handler := NewHandler(h, Options{})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readEventLine(t, reader))

	require.Eventually(t, func() bool { return h.SubscriberCount() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, handler.Clients())

	h.Publish(context.Background(), events.NewMessageEvent(map[string]string{"sender": "555", "content": "hello"}))
	assert.Equal(t, "new_message", readEventLine(t, reader))

	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, data, `"content":"hello"`)

	cancel()
	require.Eventually(t, func() bool { return h.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return handler.Clients() == 0 }, time.Second, 5*time.Millisecond)
}
