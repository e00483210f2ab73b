package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brianly1003/wahub/internal/config"
	"github.com/brianly1003/wahub/internal/pairing"
	"github.com/spf13/cobra"
)

var (
	qrJSON bool
	qrPNG  string
	qrSize int
)

// qrCmd displays the pairing QR code.
var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Display a QR code with the stream endpoints",
	Long: `Display a QR code encoding the SSE, WebSocket and notify URLs so a
client can subscribe without typing them.

If a wahub server is running, its advertised endpoints are used.
Otherwise they are derived from the configuration.

Examples:
  wahub qr                 # Display QR code in terminal
  wahub qr --json          # Output endpoints as JSON
  wahub qr --png qr.png    # Write a PNG file`,
	RunE: runQR,
}

func init() {
	qrCmd.Flags().BoolVar(&qrJSON, "json", false, "output endpoints as JSON")
	qrCmd.Flags().StringVar(&qrPNG, "png", "", "write the QR code as PNG to this file")
	qrCmd.Flags().IntVar(&qrSize, "size", 256, "PNG size in pixels")
}

func runQR(cmd *cobra.Command, args []string) error {
	logger := cliLogger(os.Stderr)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	gen := pairing.NewQRGenerator(cfg.Server.BaseURL(), "")
	gen.SetWebSocket(cfg.WebSocket.Enabled)

	if info, err := getStreamInfoFromServer(cfg); err == nil {
		logger.Info("connected to running wahub server", "instance", info.Instance)
		gen = pairing.NewQRGenerator(info.HTTP, info.Instance)
		gen.SetWebSocket(info.WebSocket != "")
	} else {
		logger.Warn("no running wahub server found, using config", "err", err)
	}

	switch {
	case qrJSON:
		data, err := json.MarshalIndent(gen.GetStreamInfo(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	case qrPNG != "":
		png, err := gen.GeneratePNG(qrSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(qrPNG, png, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", qrPNG, err)
		}
		logger.Info("QR code written", "path", qrPNG)
		return nil
	default:
		return gen.Print(os.Stdout)
	}
}

func getStreamInfoFromServer(cfg *config.Config) (*pairing.StreamInfo, error) {
	url := strings.TrimRight(cfg.Server.BaseURL(), "/") + "/api/pair/info"

	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var info pairing.StreamInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
