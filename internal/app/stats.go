package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// startStatsJob logs the delivery counters on the configured schedule.
func (a *App) startStatsJob() {
	if !a.cfg.Stats.Enabled {
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(a.cfg.Stats.Schedule, a.logStats); err != nil {
		log.Warn().Err(err).Str("schedule", a.cfg.Stats.Schedule).Msg("invalid stats schedule, stats job disabled")
		return
	}
	c.Start()
	a.scheduler = c
}

// logStats writes one stats line.
func (a *App) logStats() {
	stats := a.hub.Stats()
	ev := log.Info().
		Int64("published", stats.Published).
		Int64("delivered", stats.Delivered).
		Int64("failed", stats.Failed).
		Int64("async_failed", stats.AsyncFailed).
		Int64("dropped", stats.Dropped).
		Int("subscribers", stats.Subscribers)

	if a.sseHandler != nil {
		ev = ev.Int("sse_clients", a.sseHandler.Clients())
	}
	if a.keywords != nil {
		ks := a.keywords.Stats()
		ev = ev.Int64("keyword_replies", ks.Replies)
	}
	if a.autoReply != nil {
		as := a.autoReply.Stats()
		ev = ev.Int64("auto_replies", as.Replies).Int64("auto_reply_failures", as.Failures)
	}
	if a.store != nil {
		if n, err := a.store.Count(context.Background()); err == nil {
			ev = ev.Int("stored_messages", n)
		}
	}
	ev.Msg("hub stats")
}
