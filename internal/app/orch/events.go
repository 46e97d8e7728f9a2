package orch

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// Outbound event types.
const (
	EventConnectionStarted     = "connection-started"
	EventRosterChanged         = "lobby-roster-changed"
	EventDirectConnectRequest  = "direct-connect-request"
	EventDirectConnectRejected = "direct-connect-rejected"
	EventRoomHandoff           = "room-handoff"
	EventChatMessage           = "chat-message-received"
	EventRoomExists            = "room-exists"
	EventRoomGone              = "room-gone"
	EventICEConfig             = "ice-server-config"
	EventRoomCreated           = "room-created"
	EventRoomJoined            = "room-joined"
	EventRoomFull              = "room-full"
	EventPoolSize              = "pool-size"
	EventLeftRoom              = "left-room"
	EventPeerLeft              = "peer-left"
	EventSignal                = "signal"
	EventUserReported          = "user-reported"
	EventPeerInfo              = "peer-info"
	EventGotSources            = "got-sources"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Codes carried by error events.
const (
	CodeUnknownEvent    = "unknown_event"
	CodeMalformedEvent  = "malformed_event"
	CodeStoreFailure    = "store_failure"
	CodeRoomUnavailable = "room_unavailable"
	CodeNotInLobby      = "not_in_lobby"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

type Envelope struct {
	Type string `json:"type"`
}

type ConnectionStarted struct {
	Envelope
	SID core.SessionID `json:"sid"`
}

type RosterChanged struct {
	Envelope
	Roster        []domain.PresenceEntry `json:"roster"`
	ChangedUserID domain.UserID          `json:"changedUserId,omitempty"`
}

type DirectConnectRequest struct {
	Envelope
	FromUser json.RawMessage `json:"fromUser,omitempty"`
}

// RoomEvent is every event that only names a room.
type RoomEvent struct {
	Envelope
	RoomID domain.RoomName `json:"roomId"`
}

type ChatMessage struct {
	Envelope
	Sender      domain.PresenceEntry `json:"sender"`
	Message     string               `json:"message"`
	RoomContext json.RawMessage      `json:"roomContext,omitempty"`
}

type ICEConfig struct {
	Envelope
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type PoolSize struct {
	Envelope
	Namespace domain.Namespace `json:"namespace"`
	Count     int              `json:"count"`
}

type Signal struct {
	Envelope
	RoomID  domain.RoomName `json:"roomId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type PeerInfo struct {
	Envelope
	UserName string          `json:"userName"`
	UserID   domain.UserID   `json:"userId"`
	RoomID   domain.RoomName `json:"roomId"`
}

type GotSources struct {
	Envelope
	DisplayName string          `json:"displayName"`
	Sources     json.RawMessage `json:"sources,omitempty"`
}

type ErrorEvent struct {
	Envelope
	Error string `json:"error"`
}

func typed(t string) Envelope { return Envelope{Type: t} }

func roomEvent(t string, room domain.RoomName) RoomEvent {
	return RoomEvent{Envelope: typed(t), RoomID: room}
}

// NewError builds the error event sent for code.
func NewError(code string) ErrorEvent {
	return ErrorEvent{Envelope: typed(EventError), Error: code}
}

// NewPong answers a keepalive.
func NewPong() Envelope { return typed(EventPong) }
