//go:build !deadlock

// Package sync provides mutex types that can be swapped for deadlock detection.
// By default these are the standard sync types. Build with -tags deadlock to
// use go-deadlock instead.
package sync

import "sync"

// Mutex is a mutual exclusion lock.
type Mutex = sync.Mutex

// RWMutex is a reader/writer mutual exclusion lock.
type RWMutex = sync.RWMutex

// Once is the standard sync.Once.
type Once = sync.Once

// WaitGroup is the standard sync.WaitGroup.
type WaitGroup = sync.WaitGroup

// DetectionEnabled reports whether locks are checked for deadlocks.
const DetectionEnabled = false
