package app

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// Broker resolves the targets of direct requests through the lobby.
// An empty result means the target is gone and the request is dropped.
type Broker struct {
	presence *Presence
}

func NewBroker(p *Presence) *Broker {
	return &Broker{presence: p}
}

// RouteByUserID resolves a connection request target.
func (b *Broker) RouteByUserID(from core.SessionID, userID domain.UserID) (core.SessionID, bool) {
	sid, ok := b.presence.FindByUserID(userID)
	if !ok || sid == from {
		log.Debug().Str("module", "app.broker").Str("from", string(from)).Str("user", string(userID)).Msg("target not present, dropping")
		return "", false
	}
	return sid, true
}

// RouteByDisplayName resolves rejections and room hand-offs to the first
// connection with that display name.
func (b *Broker) RouteByDisplayName(from core.SessionID, name string) (core.SessionID, bool) {
	for _, sid := range b.presence.FindByDisplayName(name) {
		if sid != from {
			return sid, true
		}
	}
	log.Debug().Str("module", "app.broker").Str("from", string(from)).Str("name", name).Msg("target not present, dropping")
	return "", false
}

// FanOutByDisplayName resolves chat recipients: every connection with that
// display name except the sender's own.
func (b *Broker) FanOutByDisplayName(from core.SessionID, name string) []core.SessionID {
	var out []core.SessionID
	for _, sid := range b.presence.FindByDisplayName(name) {
		if sid != from {
			out = append(out, sid)
		}
	}
	return out
}
