package orch

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/app"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// ICEProvider hands out the STUN/TURN servers a participant needs before
// the peer connection starts.
type ICEProvider interface {
	Servers(token string) []webrtc.ICEServer
}

// Orchestrator runs every event once the gateway has decoded it: it
// mutates the registries and the room store first, then notifies.
type Orchestrator struct {
	Registry *app.Registry
	Presence *app.Presence
	Rooms    core.RoomStore
	Channels core.ChannelManager
	Matcher  *app.Matchmaker
	Broker   *app.Broker
	Policy   app.Policy
	ICE      ICEProvider

	// DefaultNamespace is used when a random match request names none.
	DefaultNamespace domain.Namespace
}

func (o *Orchestrator) defaultNamespace() domain.Namespace {
	if o.DefaultNamespace == "" {
		return domain.NamespaceRoulette
	}
	return o.DefaultNamespace
}

// Send delivers v to one session.
func (o *Orchestrator) Send(sid core.SessionID, v any) {
	o.deliver(v, []core.SessionID{sid})
}

func (o *Orchestrator) broadcastAll(v any) {
	sessions := o.Registry.Sessions()
	sids := make([]core.SessionID, 0, len(sessions))
	for _, s := range sessions {
		sids = append(sids, s.ID())
	}
	o.deliver(v, sids)
}

// toChannel sends v to every member of ch except the sender.
func (o *Orchestrator) toChannel(ch core.ChannelName, except core.SessionID, v any) {
	members := o.Channels.Members(ch)
	sids := make([]core.SessionID, 0, len(members))
	for _, sid := range members {
		if sid != except {
			sids = append(sids, sid)
		}
	}
	o.deliver(v, sids)
}

func (o *Orchestrator) broadcastRoster(roster app.Roster, changed domain.UserID) {
	o.broadcastAll(RosterChanged{
		Envelope:      typed(EventRosterChanged),
		Roster:        roster.Entries(),
		ChangedUserID: changed,
	})
}

func (o *Orchestrator) deliver(v any, sids []core.SessionID) {
	if len(sids) == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal event")
		return
	}
	for _, sid := range sids {
		sess, ok := o.Registry.Get(sid)
		if !ok {
			continue
		}
		if err := sess.Signal().TrySend(data); err != nil {
			o.onSendFailure(sid, err)
		}
	}
}

func (o *Orchestrator) onSendFailure(sid core.SessionID, err error) {
	log.Warn().Err(err).Str("module", "app.orch").Str("sid", string(sid)).Msg("send failed")
	if o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sid) {
	case app.KickMember:
		o.Registry.Cancel(sid)
	case app.NoAction:
	}
}
