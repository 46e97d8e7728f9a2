package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/DafChat/internal/domain"
)

// EventType is the closed set of events a client may send.
type EventType string

const (
	EventEnterLobby           EventType = "enter-lobby"
	EventRequestDirectConnect EventType = "request-direct-connect"
	EventRejectDirectConnect  EventType = "reject-direct-connect"
	EventSendRoomHandoff      EventType = "send-room-handoff"
	EventJoinRoom             EventType = "join-room"
	EventSendChatMessage      EventType = "send-chat-message"
	EventCheckRoomExists      EventType = "check-room-exists"
	EventStartDirectSession   EventType = "start-direct-session"
	EventStartRandomMatch     EventType = "start-random-match"
	EventLeaveRoom            EventType = "leave-room"
	EventRelaySignal          EventType = "relay-signal"
	EventReportUser           EventType = "report-user"
	EventSendUserInfo         EventType = "send-user-info"
	EventSendSources          EventType = "send-sources"
	EventPing                 EventType = "ping"
)

const maxTokenLen = 128

var (
	errMissingField = errors.New("missing required field")
	errTooLong      = errors.New("field too long")
)

type validator interface {
	Validate() error
}

// decode parses a frame into msg and validates it. Every failure is a
// domain.ErrMalformedEvent.
func decode(data []byte, msg validator) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	return nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", errMissingField, field)
	}
	return nil
}

func token(field, value string, needed bool) error {
	if needed && value == "" {
		return fmt.Errorf("%w: %s", errMissingField, field)
	}
	if len(value) > maxTokenLen {
		return fmt.Errorf("%w: %s", errTooLong, field)
	}
	return nil
}

func roomID(field string, name domain.RoomName) error {
	if err := domain.ValidateRoomName(name); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

type EnterLobby struct {
	UserID      domain.UserID `json:"userId"`
	DisplayName string        `json:"displayName"`
	AvatarRef   string        `json:"avatarRef"`
	OrgTag      string        `json:"orgTag"`
	LobbyID     string        `json:"lobbyId"`
}

func (m EnterLobby) Entry() (*domain.PresenceEntry, error) {
	return domain.NewPresenceEntry(m.UserID, m.DisplayName, m.AvatarRef, m.OrgTag, m.LobbyID)
}

func (m EnterLobby) Validate() error {
	_, err := m.Entry()
	return err
}

type RequestDirectConnect struct {
	TargetUserID domain.UserID   `json:"targetUserId"`
	CallerInfo   json.RawMessage `json:"callerInfo"`
}

func (m RequestDirectConnect) Validate() error {
	return token("targetUserId", string(m.TargetUserID), true)
}

type RejectDirectConnect struct {
	TargetDisplayName string `json:"targetDisplayName"`
}

func (m RejectDirectConnect) Validate() error {
	return required("targetDisplayName", m.TargetDisplayName)
}

type SendRoomHandoff struct {
	TargetDisplayName string          `json:"targetDisplayName"`
	RoomID            domain.RoomName `json:"roomId"`
}

func (m SendRoomHandoff) Validate() error {
	if err := required("targetDisplayName", m.TargetDisplayName); err != nil {
		return err
	}
	return roomID("roomId", m.RoomID)
}

type JoinRoom struct {
	RoomID domain.RoomName `json:"roomId"`
}

func (m JoinRoom) Validate() error { return roomID("roomId", m.RoomID) }

// ChatContext is the part of a chat's opaque room context the server reads.
type ChatContext struct {
	RoomID        domain.RoomName `json:"roomId"`
	RecipientName string          `json:"recipientName"`
}

type SendChatMessage struct {
	RoomContext json.RawMessage `json:"roomContext"`
	Message     string          `json:"message"`

	ctx ChatContext
}

func (m *SendChatMessage) Validate() error {
	if len(m.RoomContext) == 0 {
		return fmt.Errorf("%w: roomContext", errMissingField)
	}
	if err := json.Unmarshal(m.RoomContext, &m.ctx); err != nil {
		return fmt.Errorf("roomContext: %w", err)
	}
	if err := roomID("roomContext.roomId", m.ctx.RoomID); err != nil {
		return err
	}
	return required("roomContext.recipientName", m.ctx.RecipientName)
}

func (m *SendChatMessage) Context() ChatContext { return m.ctx }

type CheckRoomExists struct {
	RoomID     domain.RoomName      `json:"roomId"`
	OwnerToken domain.OccupantToken `json:"ownerToken"`
}

func (m CheckRoomExists) Validate() error {
	if err := roomID("roomId", m.RoomID); err != nil {
		return err
	}
	return token("ownerToken", string(m.OwnerToken), false)
}

type StartDirectSession struct {
	OwnerToken domain.OccupantToken `json:"ownerToken"`
	RoomID     domain.RoomName      `json:"roomId"`
}

func (m StartDirectSession) Validate() error {
	if err := token("ownerToken", string(m.OwnerToken), true); err != nil {
		return err
	}
	return roomID("roomId", m.RoomID)
}

type StartRandomMatch struct {
	RequesterToken   domain.OccupantToken `json:"requesterToken"`
	LastPartnerToken domain.OccupantToken `json:"lastPartnerToken"`
	Namespace        domain.Namespace     `json:"namespace"`
}

func (m StartRandomMatch) Validate() error {
	if err := token("requesterToken", string(m.RequesterToken), true); err != nil {
		return err
	}
	if err := token("lastPartnerToken", string(m.LastPartnerToken), false); err != nil {
		return err
	}
	if m.Namespace == domain.NamespacePrivate {
		return fmt.Errorf("namespace %q is reserved", m.Namespace)
	}
	return token("namespace", string(m.Namespace), false)
}

type LeaveRoom struct {
	RoomID domain.RoomName `json:"roomId"`
}

func (m LeaveRoom) Validate() error { return roomID("roomId", m.RoomID) }

type RelaySignal struct {
	RoomID  domain.RoomName `json:"roomId"`
	Payload json.RawMessage `json:"payload"`
}

func (m RelaySignal) Validate() error {
	if err := roomID("roomId", m.RoomID); err != nil {
		return err
	}
	if len(m.Payload) == 0 {
		return fmt.Errorf("%w: payload", errMissingField)
	}
	return nil
}

type ReportUser struct {
	RoomID domain.RoomName `json:"roomId"`
}

func (m ReportUser) Validate() error { return roomID("roomId", m.RoomID) }

type SendUserInfo struct {
	UserName string          `json:"userName"`
	UserID   domain.UserID   `json:"userId"`
	RoomID   domain.RoomName `json:"roomId"`
}

func (m SendUserInfo) Validate() error {
	if err := token("userId", string(m.UserID), false); err != nil {
		return err
	}
	return roomID("roomId", m.RoomID)
}

type SendSources struct {
	RoomID      domain.RoomName `json:"roomId"`
	DisplayName string          `json:"displayName"`
	Sources     json.RawMessage `json:"sources"`
}

func (m SendSources) Validate() error { return roomID("roomId", m.RoomID) }
