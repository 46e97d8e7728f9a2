package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

// RosterEntry is one lobby member. The connection id stays server-side.
type RosterEntry struct {
	SID core.SessionID `json:"-"`
	domain.PresenceEntry
}

// Roster is the lobby in join order.
type Roster []RosterEntry

// Entries strips connection ids for the wire.
func (r Roster) Entries() []domain.PresenceEntry {
	out := make([]domain.PresenceEntry, 0, len(r))
	for _, e := range r {
		out = append(out, e.PresenceEntry)
	}
	return out
}

// Presence is the lobby registry. It owns every PresenceEntry; callers only
// get copies.
type Presence struct {
	mu      sync.RWMutex
	entries map[core.SessionID]*domain.PresenceEntry
	order   []core.SessionID
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[core.SessionID]*domain.PresenceEntry)}
}

// Join upserts the entry for sid and returns the post-mutation roster.
// A re-join keeps the connection's position and its attached room.
func (p *Presence) Join(sid core.SessionID, entry domain.PresenceEntry) Roster {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.entries[sid]; ok {
		if entry.RoomID == "" {
			entry.RoomID = old.RoomID
		}
	} else {
		p.order = append(p.order, sid)
	}
	e := entry
	p.entries[sid] = &e
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("user", string(entry.UserID)).Int("size", len(p.order)).Msg("entered lobby")
	return p.snapshotLocked()
}

// FindByUserID returns the first connection, in join order, registered
// under userID. Reconnects without cleanup leave duplicates; the oldest wins.
func (p *Presence) FindByUserID(userID domain.UserID) (core.SessionID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, sid := range p.order {
		if p.entries[sid].UserID == userID {
			return sid, true
		}
	}
	return "", false
}

// FindByDisplayName returns every connection registered under name, in
// join order.
func (p *Presence) FindByDisplayName(name string) []core.SessionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []core.SessionID
	for _, sid := range p.order {
		if p.entries[sid].DisplayName == name {
			out = append(out, sid)
		}
	}
	return out
}

func (p *Presence) AttachRoom(sid core.SessionID, room domain.RoomName) (Roster, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[sid]
	if !ok {
		return nil, false
	}
	e.RoomID = room
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Str("room", string(room)).Msg("room attached")
	return p.snapshotLocked(), true
}

// Leave removes sid. The bool reports whether an entry existed.
func (p *Presence) Leave(sid core.SessionID) (Roster, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[sid]; !ok {
		return p.snapshotLocked(), false
	}
	delete(p.entries, sid)
	for i, s := range p.order {
		if s == sid {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "app.presence").Str("sid", string(sid)).Int("size", len(p.order)).Msg("left lobby")
	return p.snapshotLocked(), true
}

func (p *Presence) Get(sid core.SessionID) (domain.PresenceEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[sid]
	if !ok {
		return domain.PresenceEntry{}, false
	}
	return *e, true
}

func (p *Presence) Snapshot() Roster {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked()
}

func (p *Presence) snapshotLocked() Roster {
	out := make(Roster, 0, len(p.order))
	for _, sid := range p.order {
		out = append(out, RosterEntry{SID: sid, PresenceEntry: *p.entries[sid]})
	}
	return out
}
