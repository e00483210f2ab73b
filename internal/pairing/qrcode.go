// Package pairing renders the hub's stream endpoints as a QR code so a phone
// or another machine can subscribe without typing URLs.
package pairing

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/skip2/go-qrcode"
)

// StreamInfo contains the information encoded in the QR code.
type StreamInfo struct {
	HTTP      string `json:"http"`
	SSE       string `json:"sse"`
	WebSocket string `json:"ws,omitempty"`
	Notify    string `json:"notify"`
	Instance  string `json:"instance,omitempty"`
}

// QRGenerator generates QR codes for the stream endpoints.
type QRGenerator struct {
	baseURL   string
	instance  string
	websocket bool
}

// NewQRGenerator creates a generator for a server reachable at baseURL
// (e.g. http://192.168.1.10:8766 or a tunnel URL).
func NewQRGenerator(baseURL, instance string) *QRGenerator {
	return &QRGenerator{
		baseURL:   strings.TrimRight(baseURL, "/"),
		instance:  instance,
		websocket: true,
	}
}

// SetWebSocket controls whether the WebSocket URL is advertised.
func (g *QRGenerator) SetWebSocket(enabled bool) {
	g.websocket = enabled
}

// GetStreamInfo returns the advertised endpoints.
func (g *QRGenerator) GetStreamInfo() *StreamInfo {
	info := &StreamInfo{
		HTTP:     g.baseURL,
		SSE:      g.baseURL + "/sse/events",
		Notify:   g.baseURL + "/api/message-notification",
		Instance: g.instance,
	}
	if g.websocket {
		info.WebSocket = wsURL(g.baseURL) + "/ws"
	}
	return info
}

// wsURL maps http(s) to ws(s).
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// GenerateJSON returns the stream info as JSON.
func (g *QRGenerator) GenerateJSON() (string, error) {
	data, err := json.Marshal(g.GetStreamInfo())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GenerateTerminal generates a QR code for terminal display.
func (g *QRGenerator) GenerateTerminal() (string, error) {
	jsonData, err := g.GenerateJSON()
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(jsonData, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

// GeneratePNG generates a PNG image of the QR code.
func (g *QRGenerator) GeneratePNG(size int) ([]byte, error) {
	jsonData, err := g.GenerateJSON()
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(jsonData, qrcode.Medium, size)
}

// Print writes the QR code and the SSE URL to w.
func (g *QRGenerator) Print(w io.Writer) error {
	qrStr, err := g.GenerateTerminal()
	if err != nil {
		return fmt.Errorf("generate qr code: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Scan to subscribe to wahub events:")
	fmt.Fprintln(w)
	for _, line := range strings.Split(qrStr, "\n") {
		if line != "" {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  SSE: %s\n", g.GetStreamInfo().SSE)
	fmt.Fprintln(w)
	return nil
}
