package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

type memoryRow struct {
	room domain.Room
	seq  uint64
}

// Memory is a threadsafe in-memory RoomStore.
type Memory struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*memoryRow
	seq   uint64
	now   func() time.Time
}

var _ core.RoomStore = (*Memory)(nil)

type MemoryOption func(*Memory)

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		rooms: make(map[domain.RoomName]*memoryRow),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) CreateRoom(_ context.Context, name domain.RoomName, occupant domain.OccupantToken, ns domain.Namespace) (*domain.Room, error) {
	if name == "" {
		name = generateName()
	}
	if err := domain.ValidateRoomName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[name]; ok {
		return nil, domain.ErrDuplicateName
	}
	m.seq++
	row := &memoryRow{
		room: domain.Room{
			Name:      name,
			Occupant:  occupant,
			CreatedAt: m.now(),
			Namespace: ns,
		},
		seq: m.seq,
	}
	m.rooms[name] = row
	log.Debug().Str("module", "store.memory").Str("room", string(name)).Str("namespace", string(ns)).Msg("room created")
	room := row.room
	return &room, nil
}

func (m *Memory) GetRoom(_ context.Context, name domain.RoomName) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rooms[name]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room := row.room
	return &room, nil
}

func (m *Memory) FindAvailable(_ context.Context, ns domain.Namespace) ([]domain.Room, error) {
	m.mu.RLock()
	rows := make([]*memoryRow, 0, len(m.rooms))
	for _, row := range m.rooms {
		if row.room.Namespace == ns && row.room.Waiting() {
			rows = append(rows, row)
		}
	}
	m.mu.RUnlock()

	sortRows(rows)
	out := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.room)
	}
	return out, nil
}

func (m *Memory) MarkJoined(_ context.Context, name domain.RoomName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rooms[name]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if !row.room.Waiting() {
		return domain.ErrRoomNotWaiting
	}
	row.room.Occupant = ""
	log.Debug().Str("module", "store.memory").Str("room", string(name)).Msg("room joined")
	return nil
}

func (m *Memory) DeleteRoom(_ context.Context, name domain.RoomName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, name)
	return nil
}

func (m *Memory) CountByNamespace(_ context.Context, ns domain.Namespace) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, row := range m.rooms {
		if row.room.Namespace == ns {
			n++
		}
	}
	return n, nil
}

func (m *Memory) ExpireWaiting(_ context.Context, before time.Time) ([]domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []*memoryRow
	for name, row := range m.rooms {
		if row.room.Waiting() && row.room.CreatedAt.Before(before) {
			rows = append(rows, row)
			delete(m.rooms, name)
		}
	}
	sortRows(rows)
	out := make([]domain.Room, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.room)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }

// sortRows orders by creation time, then by insertion order for equal times.
func sortRows(rows []*memoryRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.room.CreatedAt.Equal(b.room.CreatedAt) {
			return a.room.CreatedAt.Before(b.room.CreatedAt)
		}
		return a.seq < b.seq
	})
}
