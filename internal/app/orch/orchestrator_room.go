package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/app"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

func (o *Orchestrator) sendICE(sid core.SessionID, token domain.OccupantToken) {
	if o.ICE == nil {
		return
	}
	o.Send(sid, ICEConfig{Envelope: typed(EventICEConfig), ICEServers: o.ICE.Servers(string(token))})
}

// StartDirectSession is the private chevruta path: the first participant
// waits in the named room, the second one joins it.
func (o *Orchestrator) StartDirectSession(ctx context.Context, sid core.SessionID, owner domain.OccupantToken, name domain.RoomName) error {
	o.sendICE(sid, owner)

	_, err := o.Matcher.StartDirect(ctx, owner, name, func(m app.Match) { o.applyMatch(sid, m) })
	switch {
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomNotWaiting):
		o.Send(sid, roomEvent(EventRoomFull, name))
		return nil
	case err != nil:
		return fmt.Errorf("start direct session: %w", err)
	}
	return nil
}

// StartRandomMatch pairs the requester with someone waiting in ns or
// leaves it waiting in a new room.
func (o *Orchestrator) StartRandomMatch(
	ctx context.Context,
	sid core.SessionID,
	requester, lastPartner domain.OccupantToken,
	ns domain.Namespace,
) error {
	if ns == "" {
		ns = o.defaultNamespace()
	}
	o.sendICE(sid, requester)

	if ns == domain.NamespaceRoulette {
		count, err := o.Rooms.CountByNamespace(ctx, ns)
		if err != nil {
			return fmt.Errorf("count pool: %w", err)
		}
		o.broadcastAll(PoolSize{Envelope: typed(EventPoolSize), Namespace: ns, Count: count})
	}

	_, err := o.Matcher.FindOrCreateMatch(ctx, requester, lastPartner, ns, func(m app.Match) { o.applyMatch(sid, m) })
	if err != nil {
		return fmt.Errorf("start random match: %w", err)
	}
	return nil
}

// applyMatch runs under the matchmaker's namespace lock.
func (o *Orchestrator) applyMatch(sid core.SessionID, m app.Match) {
	ch := core.RoomChannel(m.Room.Name)
	o.Channels.Join(ch, sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(m.Room.Name)).Stringer("action", m.Action).Msg("match applied")

	switch m.Action {
	case app.MatchCreate, app.MatchWait:
		o.Send(sid, roomEvent(EventRoomCreated, m.Room.Name))
	case app.MatchJoin:
		joined := roomEvent(EventRoomJoined, m.Room.Name)
		o.toChannel(ch, sid, joined)
		o.Send(sid, joined)
	}
}

// CheckRoomExists tells a reconnecting participant whether its room is
// still usable: paired, or still held by the asker.
func (o *Orchestrator) CheckRoomExists(ctx context.Context, sid core.SessionID, name domain.RoomName, asker domain.OccupantToken) error {
	room, err := o.Rooms.GetRoom(ctx, name)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		o.Send(sid, roomEvent(EventRoomGone, name))
		return nil
	case err != nil:
		return fmt.Errorf("check room: %w", err)
	}
	if !room.Waiting() || room.HeldBy(asker) {
		o.Send(sid, roomEvent(EventRoomExists, name))
		return nil
	}
	o.Send(sid, roomEvent(EventRoomGone, name))
	return nil
}

// JoinRoom subscribes the connection to a chat channel.
func (o *Orchestrator) JoinRoom(sid core.SessionID, name domain.RoomName) {
	o.Channels.Join(core.RoomChannel(name), sid)
}

// LeaveRoom is the "bye": the peer is told, the room is deleted and the
// caller gets an ack.
func (o *Orchestrator) LeaveRoom(ctx context.Context, sid core.SessionID, name domain.RoomName) error {
	ch := core.RoomChannel(name)
	err := o.Matcher.WithRoom(ctx, name, func(*domain.Room) error {
		o.toChannel(ch, sid, roomEvent(EventPeerLeft, name))
		o.Channels.Leave(ch, sid)
		return o.Rooms.DeleteRoom(ctx, name)
	})
	if err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(name)).Msg("bye")
	o.Send(sid, roomEvent(EventLeftRoom, name))
	return nil
}

// CloseRoom evicts every member of a room and deletes it.
func (o *Orchestrator) CloseRoom(ctx context.Context, name domain.RoomName) error {
	err := o.Matcher.WithRoom(ctx, name, func(room *domain.Room) error {
		members := o.Channels.Drop(core.RoomChannel(name))
		if room == nil && len(members) == 0 {
			return domain.ErrRoomNotFound
		}
		o.deliver(roomEvent(EventPeerLeft, name), members)
		log.Info().Str("module", "app.orch").Str("room", string(name)).Int("members", len(members)).Msg("room closed")
		if room == nil {
			return nil
		}
		return o.Rooms.DeleteRoom(ctx, name)
	})
	if errors.Is(err, domain.ErrRoomNotFound) {
		return domain.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("close room: %w", err)
	}
	return nil
}

// inRoom guards room-scoped forwards: only members may talk to a room.
func (o *Orchestrator) inRoom(sid core.SessionID, name domain.RoomName) bool {
	if o.Channels.Has(core.RoomChannel(name), sid) {
		return true
	}
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(name)).Msg("not a member, dropping")
	return false
}

// RelaySignal passes SDP and ICE payloads to the other side untouched.
func (o *Orchestrator) RelaySignal(sid core.SessionID, name domain.RoomName, payload json.RawMessage) {
	if !o.inRoom(sid, name) {
		return
	}
	o.toChannel(core.RoomChannel(name), sid, Signal{Envelope: typed(EventSignal), RoomID: name, Payload: payload})
}

func (o *Orchestrator) ReportUser(sid core.SessionID, name domain.RoomName) {
	if !o.inRoom(sid, name) {
		return
	}
	log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(name)).Msg("user reported")
	o.toChannel(core.RoomChannel(name), sid, roomEvent(EventUserReported, name))
}

// SendSources shares what the sender is currently reading.
func (o *Orchestrator) SendSources(sid core.SessionID, name domain.RoomName, displayName string, sources json.RawMessage) {
	if !o.inRoom(sid, name) {
		return
	}
	o.toChannel(core.RoomChannel(name), sid, GotSources{
		Envelope:    typed(EventGotSources),
		DisplayName: displayName,
		Sources:     sources,
	})
}

// RoomInfo returns the stored room.
func (o *Orchestrator) RoomInfo(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	return o.Rooms.GetRoom(ctx, name)
}

// PoolSize counts the rooms of ns.
func (o *Orchestrator) PoolSize(ctx context.Context, ns domain.Namespace) (int, error) {
	if ns == "" {
		ns = o.defaultNamespace()
	}
	return o.Rooms.CountByNamespace(ctx, ns)
}
