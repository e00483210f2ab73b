//go:build deadlock

// Package sync provides mutex types that can be swapped for deadlock detection.
// Built with -tags deadlock, the hub and stream locks are go-deadlock locks that
// report lock-order inversions and locks held longer than the timeout.
package sync

import (
	"os"
	"sync"
	"time"

	"github.com/sasha-s/go-deadlock"
)

// Mutex is a go-deadlock mutex.
type Mutex = deadlock.Mutex

// RWMutex is a go-deadlock reader/writer mutex.
type RWMutex = deadlock.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// DetectionEnabled reports whether locks are checked for deadlocks.
const DetectionEnabled = true

func init() {
	// Longer than the default hub delivery timeout.
	deadlock.Opts.DeadlockTimeout = 30 * time.Second

	if os.Getenv("WAHUB_NO_DEADLOCK_DETECT") != "" {
		deadlock.Opts.Disable = true
		return
	}

	deadlock.Opts.PrintAllCurrentGoroutines = true
	println("[DEADLOCK DETECTION ENABLED] Using go-deadlock for hub and stream locks")
}
