package handlers

import (
	"context"
	"sync/atomic"

	"github.com/brianly1003/wahub/internal/domain/events"
	"github.com/brianly1003/wahub/internal/domain/ports"
	"github.com/brianly1003/wahub/internal/hub"
	"github.com/rs/zerolog/log"
)

// RecorderID is the subscriber ID of the history recorder.
const RecorderID = "history-recorder"

// Recorder writes every incoming message to the history store.
type Recorder struct {
	store    ports.MessageStore
	recorded atomic.Int64
}

// NewRecorder creates a recorder.
func NewRecorder(store ports.MessageStore) *Recorder {
	return &Recorder{store: store}
}

// Handle stores the message carried by e.
func (r *Recorder) Handle(ctx context.Context, e events.Event) error {
	msg := storedFromEvent(e)
	if err := r.store.Save(ctx, msg); err != nil {
		return err
	}
	r.recorded.Add(1)
	log.Debug().
		Str("event_id", e.ID()).
		Str("chat_jid", msg.ChatJID).
		Msg("message recorded")
	return nil
}

// Recorded returns how many messages were stored.
func (r *Recorder) Recorded() int64 {
	return r.recorded.Load()
}

// Subscriber returns the recorder as a blocking new_message subscriber.
func (r *Recorder) Subscriber() ports.Subscriber {
	return messageOnly(hub.NewBlockingCallback(RecorderID, r.Handle))
}
