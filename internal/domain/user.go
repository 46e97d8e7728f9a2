// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen      = 128
	MaxDisplayNameLen = 128
	MaxRoomNameLen    = 64
)

var (
	ErrUserIDEmpty        = errors.New("user id empty")
	ErrUserIDTooLong      = errors.New("user id too long")
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrRoomNameEmpty      = errors.New("room name empty")
	ErrRoomNameTooLong    = errors.New("room name too long")
)

type UserID string

// PresenceEntry is what the lobby roster shows for one connection.
type PresenceEntry struct {
	UserID      UserID   `json:"userId"`
	DisplayName string   `json:"displayName"`
	AvatarRef   string   `json:"avatarRef,omitempty"`
	OrgTag      string   `json:"orgTag,omitempty"`
	LobbyID     string   `json:"lobbyId,omitempty"`
	RoomID      RoomName `json:"roomId,omitempty"`
}

// NewPresenceEntry is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewPresenceEntry(userID UserID, displayName, avatarRef, orgTag, lobbyID string) (*PresenceEntry, error) {
	if len(userID) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(userID) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &PresenceEntry{
		UserID:      userID,
		DisplayName: displayName,
		AvatarRef:   avatarRef,
		OrgTag:      orgTag,
		LobbyID:     lobbyID,
	}, nil
}
