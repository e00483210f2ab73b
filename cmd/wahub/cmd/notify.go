package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var (
	notifyURL     string
	notifySender  string
	notifyChat    string
	notifyType    string
	notifyMediaTy string
)

// notifyCmd posts a test notification to a running server.
var notifyCmd = &cobra.Command{
	Use:   "notify [content]",
	Short: "Send a test notification to a running server",
	Long: `Post a message notification to a running wahub server, the same way the
WhatsApp bridge does. Useful to exercise the bots and live streams.

Examples:
  wahub notify "hello"
  wahub notify --sender 15551234567 "/help"
  wahub notify --chat 123456789@g.us --sender 15551234567 "urgent: call me"
  wahub notify --media image`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVar(&notifyURL, "url", "", "server URL (default: from config)")
	notifyCmd.Flags().StringVar(&notifySender, "sender", "test", "sender JID or phone number")
	notifyCmd.Flags().StringVar(&notifyChat, "chat", "", "chat JID (default: sender)")
	notifyCmd.Flags().StringVar(&notifyType, "type", "new_message", "event type")
	notifyCmd.Flags().StringVar(&notifyMediaTy, "media", "", "media type (image, video, audio, document)")
}

// cliLogger is the human-facing logger of the client commands.
func cliLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// notifyResult mirrors the server's {success, message} envelope.
type notifyResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	EventID string `json:"event_id,omitempty"`
	Code    string `json:"code,omitempty"`
}

func runNotify(cmd *cobra.Command, args []string) error {
	logger := cliLogger(os.Stderr)

	baseURL := notifyURL
	if baseURL == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		baseURL = cfg.Server.BaseURL()
	}

	content := ""
	if len(args) > 0 {
		content = args[0]
	}

	body, err := buildNotification(notifyType, notifySender, notifyChat, content, notifyMediaTy, time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	endpoint := strings.TrimRight(baseURL, "/") + "/api/message-notification"
	logger.Debug("posting notification", "url", endpoint, "body", string(body))

	res, status, err := postNotification(ctx, endpoint, body)
	if err != nil {
		logger.Error("notification failed", "url", endpoint, "err", err)
		return err
	}
	if !res.Success {
		logger.Error("server rejected notification", "status", status, "code", res.Code, "message", res.Message)
		return fmt.Errorf("server returned %d: %s", status, res.Message)
	}

	logger.Info("notification delivered", "event_id", res.EventID, "message", res.Message)
	return nil
}

// buildNotification builds the bridge-style notification body.
func buildNotification(eventType, sender, chat, content, mediaType string, now time.Time) ([]byte, error) {
	if sender == "" && chat == "" {
		return nil, fmt.Errorf("sender or chat is required")
	}
	if chat == "" {
		chat = sender
	}
	fields := map[string]string{
		"type":       eventType,
		"message_id": fmt.Sprintf("cli-%d", now.UnixNano()),
		"chat_jid":   chat,
		"sender":     sender,
		"content":    content,
		"timestamp":  now.UTC().Format(time.RFC3339),
	}
	if mediaType != "" {
		fields["media_type"] = mediaType
	}
	return json.Marshal(fields)
}

func postNotification(ctx context.Context, endpoint string, body []byte) (notifyResult, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return notifyResult{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return notifyResult{}, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	var res notifyResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&res); err != nil {
		return notifyResult{}, resp.StatusCode, fmt.Errorf("invalid response (status %d): %w", resp.StatusCode, err)
	}
	return res, resp.StatusCode, nil
}
