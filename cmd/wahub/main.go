// Package main is the entry point for wahub.
//
//	@title			wahub API
//	@version		1.0
//	@description	WhatsApp notification hub.
//	@description	Ingests bridge notifications and fans them out to bots, history and live SSE/WebSocket streams.
//
//	@contact.name	Brian Ly
//	@contact.url	https://github.com/brianly1003/wahub
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8766
//	@BasePath	/
//	@schemes	http
//
//	@tag.name			health
//	@tag.description	Health check endpoints
//	@tag.name			status
//	@tag.description	Hub status endpoints
//	@tag.name			events
//	@tag.description	Notification ingestion
//	@tag.name			messages
//	@tag.description	Message history and outbound sends
//	@tag.name			pairing
//	@tag.description	Stream endpoint discovery
package main

import (
	"fmt"
	"os"

	"github.com/brianly1003/wahub/cmd/wahub/cmd"

	_ "github.com/brianly1003/wahub/api/swagger" // swagger docs
)

// Version information (set by ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Pass version info to cmd package
	cmd.SetVersionInfo(Version, BuildTime, GitCommit)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
