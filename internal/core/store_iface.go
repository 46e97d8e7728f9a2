package core

import (
	"context"
	"time"

	"github.com/dkeye/DafChat/internal/domain"
)

// RoomStore is the registry of signaling rooms. Every mutation must be
// visible to the next query; matchmaking correctness depends on it.
type RoomStore interface {
	// CreateRoom inserts a waiting room. An empty name is replaced by a
	// generated one. Returns domain.ErrDuplicateName on collision.
	CreateRoom(ctx context.Context, name domain.RoomName, occupant domain.OccupantToken, ns domain.Namespace) (*domain.Room, error)
	GetRoom(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	// FindAvailable returns the waiting rooms of ns, oldest first.
	FindAvailable(ctx context.Context, ns domain.Namespace) ([]domain.Room, error)
	// MarkJoined clears the occupant of a waiting room.
	MarkJoined(ctx context.Context, name domain.RoomName) error
	DeleteRoom(ctx context.Context, name domain.RoomName) error
	CountByNamespace(ctx context.Context, ns domain.Namespace) (int, error)
	// ExpireWaiting deletes waiting rooms created before the cutoff and
	// returns them.
	ExpireWaiting(ctx context.Context, before time.Time) ([]domain.Room, error)
	Close() error
}
