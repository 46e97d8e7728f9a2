package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

type MatchAction int

const (
	// MatchCreate: a new room was created and the requester waits in it.
	MatchCreate MatchAction = iota
	// MatchJoin: the requester joined a waiting participant's room.
	MatchJoin
	// MatchWait: the requester already waits in the requested room.
	MatchWait
)

func (a MatchAction) String() string {
	switch a {
	case MatchCreate:
		return "create"
	case MatchJoin:
		return "join"
	case MatchWait:
		return "wait"
	}
	return fmt.Sprintf("MatchAction(%d)", int(a))
}

type Match struct {
	Action MatchAction
	Room   domain.Room
	// Partner is the participant who was waiting, set for MatchJoin.
	Partner domain.OccupantToken
}

// ApplyFunc runs while the namespace lock is still held, so channel
// membership and notifications land before any other change to the room.
type ApplyFunc func(Match)

// Matchmaker pairs participants through the room store. Every
// read-then-write sequence on rooms, matching and deletion alike, runs
// under the namespace's lock, so two requests can never claim the same
// waiting room and a room is never deleted under a fresh match.
type Matchmaker struct {
	store core.RoomStore

	mu    sync.Mutex
	locks map[domain.Namespace]*sync.Mutex
}

func NewMatchmaker(store core.RoomStore) *Matchmaker {
	return &Matchmaker{
		store: store,
		locks: make(map[domain.Namespace]*sync.Mutex),
	}
}

func (m *Matchmaker) lock(ns domain.Namespace) func() {
	m.mu.Lock()
	l, ok := m.locks[ns]
	if !ok {
		l = &sync.Mutex{}
		m.locks[ns] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// lockAll takes every namespace lock in name order.
func (m *Matchmaker) lockAll() func() {
	m.mu.Lock()
	names := make([]domain.Namespace, 0, len(m.locks))
	for ns := range m.locks {
		names = append(names, ns)
	}
	slices.Sort(names)
	held := make([]*sync.Mutex, 0, len(names))
	for _, ns := range names {
		held = append(held, m.locks[ns])
	}
	m.mu.Unlock()

	for _, l := range held {
		l.Lock()
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

// FindOrCreateMatch joins the oldest waiting room of ns whose occupant is
// neither lastPartner nor the requester, or creates a room for the
// requester to wait in. A candidate that vanished or got paired since the
// scan is skipped. Other store errors are returned as is, never retried.
func (m *Matchmaker) FindOrCreateMatch(
	ctx context.Context,
	requester, lastPartner domain.OccupantToken,
	ns domain.Namespace,
	apply ApplyFunc,
) (Match, error) {
	unlock := m.lock(ns)
	defer unlock()

	logger := log.With().Str("module", "app.matchmaker").Str("namespace", string(ns)).Str("requester", string(requester)).Logger()

	rooms, err := m.store.FindAvailable(ctx, ns)
	if err != nil {
		return Match{}, fmt.Errorf("find available: %w", err)
	}
	for _, room := range rooms {
		if lastPartner != "" && room.Occupant == lastPartner {
			logger.Debug().Str("room", string(room.Name)).Msg("skipping repeat partner")
			continue
		}
		if room.Occupant == requester {
			continue
		}
		err := m.store.MarkJoined(ctx, room.Name)
		if errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrRoomNotWaiting) {
			logger.Debug().Err(err).Str("room", string(room.Name)).Msg("candidate gone, scanning on")
			continue
		}
		if err != nil {
			return Match{}, fmt.Errorf("mark joined %s: %w", room.Name, err)
		}
		partner := room.Occupant
		room.Occupant = ""
		logger.Info().Str("room", string(room.Name)).Msg("matched")
		return m.applied(apply, Match{Action: MatchJoin, Room: room, Partner: partner}), nil
	}

	room, err := m.store.CreateRoom(ctx, "", requester, ns)
	if err != nil {
		return Match{}, fmt.Errorf("create room: %w", err)
	}
	logger.Info().Str("room", string(room.Name)).Int("scanned", len(rooms)).Msg("no eligible room, created one")
	return m.applied(apply, Match{Action: MatchCreate, Room: *room}), nil
}

func (m *Matchmaker) applied(apply ApplyFunc, match Match) Match {
	if apply != nil {
		apply(match)
	}
	return match
}

// StartDirect is the private chevruta path: the first participant creates
// the named room, the second one joins it, anyone after that finds it full.
func (m *Matchmaker) StartDirect(ctx context.Context, owner domain.OccupantToken, name domain.RoomName, apply ApplyFunc) (Match, error) {
	unlock := m.lock(domain.NamespacePrivate)
	defer unlock()

	logger := log.With().Str("module", "app.matchmaker").Str("room", string(name)).Str("owner", string(owner)).Logger()

	room, err := m.store.GetRoom(ctx, name)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		created, err := m.store.CreateRoom(ctx, name, owner, domain.NamespacePrivate)
		if err != nil {
			return Match{}, fmt.Errorf("create room: %w", err)
		}
		logger.Info().Msg("private room created")
		return m.applied(apply, Match{Action: MatchCreate, Room: *created}), nil
	case err != nil:
		return Match{}, fmt.Errorf("get room: %w", err)
	}

	if room.Namespace != domain.NamespacePrivate {
		return Match{}, domain.ErrDuplicateName
	}
	if !room.Waiting() {
		return Match{Room: *room}, domain.ErrRoomFull
	}
	if room.HeldBy(owner) {
		return m.applied(apply, Match{Action: MatchWait, Room: *room}), nil
	}
	if err := m.store.MarkJoined(ctx, name); err != nil {
		return Match{}, fmt.Errorf("mark joined: %w", err)
	}
	partner := room.Occupant
	room.Occupant = ""
	logger.Info().Msg("private room joined")
	return m.applied(apply, Match{Action: MatchJoin, Room: *room, Partner: partner}), nil
}

// WithRoom runs fn with the namespace of name locked and the room read
// again under that lock. room is nil when the store has no such room.
func (m *Matchmaker) WithRoom(ctx context.Context, name domain.RoomName, fn func(room *domain.Room) error) error {
	room, err := m.store.GetRoom(ctx, name)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return fn(nil)
	case err != nil:
		return fmt.Errorf("get room: %w", err)
	}

	unlock := m.lock(room.Namespace)
	defer unlock()

	room, err = m.store.GetRoom(ctx, name)
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return fn(nil)
	case err != nil:
		return fmt.Errorf("get room: %w", err)
	}
	return fn(room)
}

// ExpireIdle deletes the rooms still waiting since before cutoff. apply
// sees each one before any namespace lock is released.
func (m *Matchmaker) ExpireIdle(ctx context.Context, cutoff time.Time, apply func(domain.Room)) ([]domain.Room, error) {
	unlock := m.lockAll()
	defer unlock()

	rooms, err := m.store.ExpireWaiting(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("expire waiting: %w", err)
	}
	if apply != nil {
		for _, room := range rooms {
			apply(room)
		}
	}
	return rooms, nil
}
