package store

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dkeye/DafChat/internal/domain"
)

// generateName returns a random room name.
func generateName() domain.RoomName {
	return domain.RoomName(strings.ReplaceAll(uuid.NewString(), "-", ""))
}
