package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/send", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"Message sent to 555"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/", time.Second)
	res, err := s.Send(context.Background(), "555@s.whatsapp.net", "hello")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "Message sent to 555", res.Status)
	assert.Equal(t, "555@s.whatsapp.net", got.Recipient)
	assert.Equal(t, "hello", got.Message)
}

func TestHTTPSender_BridgeReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"not connected"}`))
	}))
	defer srv.Close()

	res, err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), "1", "x")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "not connected", res.Status)
}

func TestHTTPSender_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), "1", "x")
	assert.ErrorIs(t, err, domain.ErrSendFailed)
}

func TestHTTPSender_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSender(url, time.Second).Send(context.Background(), "1", "x")
	assert.ErrorIs(t, err, domain.ErrSendFailed)
}

func TestHTTPSender_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), "1", "x")
	assert.ErrorIs(t, err, domain.ErrSendFailed)
}

func TestLogSender(t *testing.T) {
	res, err := NewLogSender().Send(context.Background(), "1", "x")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestRateLimited_PerRecipient(t *testing.T) {
	next := testutil.NewMockSender()
	s := NewRateLimited(next, 0.001, 1)

	_, err := s.Send(context.Background(), "a", "1")
	require.NoError(t, err)

	// A different recipient has its own bucket.
	_, err = s.Send(context.Background(), "b", "1")
	require.NoError(t, err)

	// The same recipient has to wait; the context ends first.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Send(ctx, "a", "2")
	assert.True(t, errors.Is(err, domain.ErrRateLimited))

	assert.Len(t, next.Sent(), 2)
}

func TestNew(t *testing.T) {
	s, err := New(Config{Mode: "log"})
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = New(Config{Mode: "http", URL: "http://localhost:8080"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSender{}, s)

	s, err = New(Config{Mode: "log", RatePerSec: 1})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, s)

	_, err = New(Config{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}
