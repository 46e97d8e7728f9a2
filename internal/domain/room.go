package domain

import "time"

type (
	RoomName      string
	Namespace     string
	OccupantToken string
)

const (
	// NamespacePrivate holds explicit 1:1 chevruta rooms.
	NamespacePrivate Namespace = "private"
	// NamespaceRoulette is the default random matchmaking pool.
	NamespaceRoulette Namespace = "dafRoulette"
)

// Room is a signaling room row. A non-empty Occupant means one participant
// is waiting and a second one may join; an empty Occupant means the room is
// paired.
type Room struct {
	Name      RoomName      `json:"name"`
	Occupant  OccupantToken `json:"occupant,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	Namespace Namespace     `json:"namespace"`
}

func (r Room) Waiting() bool { return r.Occupant != "" }

// HeldBy reports whether token is the participant waiting in the room.
func (r Room) HeldBy(token OccupantToken) bool {
	return r.Occupant != "" && r.Occupant == token
}

func ValidateRoomName(name RoomName) error {
	if len(name) == 0 {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}
