// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrEventDropped     = errors.New("event dropped: subscriber queue full")
	ErrDeliveryTimeout  = errors.New("delivery timed out")
	ErrSubscriberPanic  = errors.New("subscriber panicked")
	ErrInvalidPayload   = errors.New("invalid payload")
	ErrSendFailed       = errors.New("send failed")
	ErrRateLimited      = errors.New("rate limited")
)

// Error codes for client responses.
const (
	ErrCodeMalformedEvent = "MALFORMED_EVENT"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeSendFailed     = "SEND_FAILED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// MalformedEventError is returned when a raw notification cannot be
// normalized into an Event. It is the only validation failure of the hub.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed event: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed event: %s", e.Reason)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// NewMalformedEventError creates a new MalformedEventError.
func NewMalformedEventError(reason string, err error) *MalformedEventError {
	return &MalformedEventError{
		Reason: reason,
		Err:    err,
	}
}

// SubscriberDeliveryError represents a failed invocation of one subscriber
// for one event. It never propagates past the delivery engine.
type SubscriberDeliveryError struct {
	SubscriberID string
	EventID      string
	Err          error
}

func (e *SubscriberDeliveryError) Error() string {
	return fmt.Sprintf("deliver event %s to %s: %v", e.EventID, e.SubscriberID, e.Err)
}

func (e *SubscriberDeliveryError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the delivery failed because it ran out of time.
func (e *SubscriberDeliveryError) Timeout() bool {
	return errors.Is(e.Err, ErrDeliveryTimeout)
}

// NewSubscriberDeliveryError creates a new SubscriberDeliveryError.
func NewSubscriberDeliveryError(subscriberID, eventID string, err error) *SubscriberDeliveryError {
	return &SubscriberDeliveryError{
		SubscriberID: subscriberID,
		EventID:      eventID,
		Err:          err,
	}
}

// ConnectionClosedError is returned by stream subscribers whose underlying
// connection can no longer accept events.
type ConnectionClosedError struct {
	SubscriberID string
	Err          error
}

func (e *ConnectionClosedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection %s closed: %v", e.SubscriberID, e.Err)
	}
	return fmt.Sprintf("connection %s closed", e.SubscriberID)
}

func (e *ConnectionClosedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSubscriberClosed
}

// NewConnectionClosedError creates a new ConnectionClosedError.
func NewConnectionClosedError(subscriberID string, err error) *ConnectionClosedError {
	return &ConnectionClosedError{
		SubscriberID: subscriberID,
		Err:          err,
	}
}

// IsConnectionClosed reports whether err signals a closed stream connection.
func IsConnectionClosed(err error) bool {
	var cc *ConnectionClosedError
	return errors.As(err, &cc) || errors.Is(err, ErrSubscriberClosed)
}

// IsMalformedEvent reports whether err is a MalformedEventError.
func IsMalformedEvent(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}
