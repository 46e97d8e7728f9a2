package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// OnConnect registers a new connection and greets it with its id.
func (o *Orchestrator) OnConnect(sess core.Session, cancel context.CancelFunc) {
	sid := sess.ID()
	o.Registry.Bind(sess, cancel)
	o.Channels.Join(core.IdentityChannel(sid), sid)
	o.Send(sid, ConnectionStarted{Envelope: typed(EventConnectionStarted), SID: sid})
}

// OnDisconnect runs the whole cleanup for a connection, whatever state it
// was in. It is safe to call more than once.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	logger := log.With().Str("module", "app.orch").Str("sid", string(sid)).Logger()

	joined := o.Channels.ChannelsOf(sid)
	for _, ch := range joined {
		if ch == core.IdentityChannel(sid) {
			continue
		}
		o.leaveOnDisconnect(ctx, sid, domain.RoomName(ch))
	}
	o.Channels.LeaveAll(sid)
	o.Registry.Unbind(sid)

	if roster, removed := o.Presence.Leave(sid); removed {
		o.broadcastRoster(roster, "")
	}
	logger.Info().Int("channels", len(joined)).Msg("disconnected")
}

// leaveOnDisconnect tells the rest of the room that sid is gone and
// deletes a pool room left waiting with nobody in it. Private rooms stay
// so the invited partner can still come. A room paired in the meantime
// is kept and its new member gets the peer-left.
func (o *Orchestrator) leaveOnDisconnect(ctx context.Context, sid core.SessionID, name domain.RoomName) {
	ch := core.RoomChannel(name)
	left := false
	err := o.Matcher.WithRoom(ctx, name, func(room *domain.Room) error {
		o.toChannel(ch, sid, roomEvent(EventPeerLeft, name))
		o.Channels.Leave(ch, sid)
		left = true
		if room == nil || !room.Waiting() || room.Namespace == domain.NamespacePrivate {
			return nil
		}
		if len(o.Channels.Members(ch)) > 0 {
			return nil
		}
		if err := o.Rooms.DeleteRoom(ctx, name); err != nil {
			return err
		}
		log.Info().Str("module", "app.orch").Str("room", string(name)).Msg("abandoned room deleted")
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(name)).Msg("cleanup on disconnect")
	}
	if !left {
		o.toChannel(ch, sid, roomEvent(EventPeerLeft, name))
		o.Channels.Leave(ch, sid)
	}
}

func (o *Orchestrator) EnterLobby(sid core.SessionID, entry domain.PresenceEntry) {
	roster := o.Presence.Join(sid, entry)
	o.broadcastRoster(roster, entry.UserID)
}

// RequestDirectConnect forwards the caller's opaque card to the target user.
func (o *Orchestrator) RequestDirectConnect(sid core.SessionID, target domain.UserID, callerInfo json.RawMessage) {
	to, ok := o.Broker.RouteByUserID(sid, target)
	if !ok {
		return
	}
	o.Send(to, DirectConnectRequest{Envelope: typed(EventDirectConnectRequest), FromUser: callerInfo})
}

func (o *Orchestrator) RejectDirectConnect(sid core.SessionID, targetName string) {
	to, ok := o.Broker.RouteByDisplayName(sid, targetName)
	if !ok {
		return
	}
	o.Send(to, typed(EventDirectConnectRejected))
}

func (o *Orchestrator) SendRoomHandoff(sid core.SessionID, targetName string, room domain.RoomName) {
	to, ok := o.Broker.RouteByDisplayName(sid, targetName)
	if !ok {
		return
	}
	o.Send(to, roomEvent(EventRoomHandoff, room))
}

// SendChatMessage joins the sender to the chat channel if needed and
// delivers the message to every connection of the recipient.
func (o *Orchestrator) SendChatMessage(
	sid core.SessionID,
	room domain.RoomName,
	recipient string,
	message string,
	roomContext json.RawMessage,
) error {
	sender, ok := o.Presence.Get(sid)
	if !ok {
		return domain.ErrNotInLobby
	}
	ch := core.RoomChannel(room)
	if !o.Channels.Has(ch, sid) {
		o.Channels.Join(ch, sid)
	}
	targets := o.Broker.FanOutByDisplayName(sid, recipient)
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(room)).Int("targets", len(targets)).Msg("chat message")
	o.deliver(ChatMessage{
		Envelope:    typed(EventChatMessage),
		Sender:      sender,
		Message:     message,
		RoomContext: roomContext,
	}, targets)
	return nil
}

// SendUserInfo attaches the room to the sender's lobby entry and introduces
// the sender to the room.
func (o *Orchestrator) SendUserInfo(sid core.SessionID, userName string, userID domain.UserID, room domain.RoomName) {
	if !o.inRoom(sid, room) {
		return
	}
	roster, attached := o.Presence.AttachRoom(sid, room)
	o.toChannel(core.RoomChannel(room), sid, PeerInfo{
		Envelope: typed(EventPeerInfo),
		UserName: userName,
		UserID:   userID,
		RoomID:   room,
	})
	if attached {
		o.broadcastRoster(roster, "")
	}
}

// Lobby is the current roster, for introspection.
func (o *Orchestrator) Lobby() []domain.PresenceEntry {
	return o.Presence.Snapshot().Entries()
}

// ActiveChannels lists the channels with at least one member.
func (o *Orchestrator) ActiveChannels() []core.ChannelInfo {
	return o.Channels.List()
}
