// Package bridge sends outbound WhatsApp messages through the bridge's REST API.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/brianly1003/wahub/internal/domain"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Sender modes.
const (
	ModeHTTP = "http"
	ModeLog  = "log"
)

const (
	sendPath       = "/api/send"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config configures the outbound sender.
type Config struct {
	URL        string
	Mode       string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// New returns the sender selected by cfg.Mode, wrapped with a per-recipient
// rate limit when cfg.RatePerSec is positive.
func New(cfg Config) (ports.Sender, error) {
	var s ports.Sender
	switch strings.ToLower(cfg.Mode) {
	case "", ModeHTTP:
		s = NewHTTPSender(cfg.URL, cfg.Timeout)
	case ModeLog:
		s = NewLogSender()
	default:
		return nil, fmt.Errorf("unknown bridge mode %q", cfg.Mode)
	}
	if cfg.RatePerSec > 0 {
		s = NewRateLimited(s, cfg.RatePerSec, cfg.Burst)
	}
	return s, nil
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

// HTTPSender posts messages to the bridge.
type HTTPSender struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSender creates a sender for the bridge at baseURL.
func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPSender{
		endpoint: strings.TrimRight(baseURL, "/") + sendPath,
		client:   &http.Client{Timeout: timeout},
	}
}

// Send posts {"recipient","message"} and reads {"success","message"} back.
// Transport failures and non-2xx responses are returned as errors wrapping
// ErrSendFailed.
func (s *HTTPSender) Send(ctx context.Context, recipient, text string) (ports.SendResult, error) {
	body, err := json.Marshal(sendRequest{Recipient: recipient, Message: text})
	if err != nil {
		return ports.SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("%w: read response: %v", domain.ErrSendFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ports.SendResult{Status: strings.TrimSpace(string(raw))},
			fmt.Errorf("%w: HTTP %d", domain.ErrSendFailed, resp.StatusCode)
	}

	var result ports.SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ports.SendResult{}, fmt.Errorf("%w: decode response: %v", domain.ErrSendFailed, err)
	}

	log.Debug().
		Str("recipient", recipient).
		Bool("success", result.Success).
		Str("status", result.Status).
		Msg("message sent via bridge")
	return result, nil
}

// LogSender only logs outbound messages. It is used for dry runs.
type LogSender struct{}

// NewLogSender creates a dry-run sender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the message and reports success.
func (LogSender) Send(_ context.Context, recipient, text string) (ports.SendResult, error) {
	log.Info().
		Str("recipient", recipient).
		Str("message", text).
		Msg("dry-run send")
	return ports.SendResult{Success: true, Status: "dry run"}, nil
}

// RateLimited applies a token bucket per recipient in front of another
// sender.
type RateLimited struct {
	next  ports.Sender
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimited wraps next with a per-recipient limit of perSec messages per
// second.
func NewRateLimited(next ports.Sender, perSec float64, burst int) *RateLimited {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:     next,
		limit:    rate.Limit(perSec),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Send waits for the recipient's bucket and forwards the message. If ctx
// ends first, ErrRateLimited is returned.
func (r *RateLimited) Send(ctx context.Context, recipient, text string) (ports.SendResult, error) {
	if err := r.limiter(recipient).Wait(ctx); err != nil {
		return ports.SendResult{}, fmt.Errorf("%w: %s: %v", domain.ErrRateLimited, recipient, err)
	}
	return r.next.Send(ctx, recipient, text)
}

func (r *RateLimited) limiter(recipient string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[recipient]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[recipient] = l
	}
	return l
}

var (
	_ ports.Sender = (*HTTPSender)(nil)
	_ ports.Sender = LogSender{}
	_ ports.Sender = (*RateLimited)(nil)
)
