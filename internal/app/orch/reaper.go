package orch

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// RunReaper deletes rooms that have been waiting longer than ttl, every
// interval, until ctx is done.
func (o *Orchestrator) RunReaper(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	log.Info().Str("module", "app.reaper").Dur("ttl", ttl).Dur("interval", interval).Msg("reaper started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.reaper").Msg("reaper stopped")
			return
		case now := <-ticker.C:
			o.ReapIdle(ctx, now.Add(-ttl))
		}
	}
}

// ReapIdle expires waiting rooms created before cutoff and tells anyone
// still subscribed that the room is gone. It returns the number removed.
func (o *Orchestrator) ReapIdle(ctx context.Context, cutoff time.Time) int {
	rooms, err := o.Matcher.ExpireIdle(ctx, cutoff, func(room domain.Room) {
		members := o.Channels.Drop(core.RoomChannel(room.Name))
		o.deliver(roomEvent(EventRoomGone, room.Name), members)
		log.Info().Str("module", "app.reaper").Str("room", string(room.Name)).Int("members", len(members)).Msg("idle room expired")
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.reaper").Msg("expire waiting rooms")
		return 0
	}
	return len(rooms)
}
