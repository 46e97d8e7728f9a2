package core

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// channelManager is a threadsafe in-memory membership table.
type channelManager struct {
	mu        sync.RWMutex
	byChannel map[ChannelName]map[SessionID]struct{}
	bySID     map[SessionID]map[ChannelName]struct{}
}

func NewChannelManager() ChannelManager {
	return &channelManager{
		byChannel: make(map[ChannelName]map[SessionID]struct{}),
		bySID:     make(map[SessionID]map[ChannelName]struct{}),
	}
}

func (m *channelManager) Join(ch ChannelName, sid SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members, ok := m.byChannel[ch]
	if !ok {
		members = make(map[SessionID]struct{})
		m.byChannel[ch] = members
	}
	members[sid] = struct{}{}

	chans, ok := m.bySID[sid]
	if !ok {
		chans = make(map[ChannelName]struct{})
		m.bySID[sid] = chans
	}
	chans[ch] = struct{}{}
	log.Debug().Str("module", "core.channel").Str("sid", string(sid)).Str("channel", string(ch)).Msg("joined")
}

func (m *channelManager) Leave(ch ChannelName, sid SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(ch, sid)
	log.Debug().Str("module", "core.channel").Str("sid", string(sid)).Str("channel", string(ch)).Msg("left")
}

func (m *channelManager) LeaveAll(sid SessionID) []ChannelName {
	m.mu.Lock()
	defer m.mu.Unlock()
	chans := m.bySID[sid]
	out := make([]ChannelName, 0, len(chans))
	for ch := range chans {
		out = append(out, ch)
	}
	for _, ch := range out {
		m.removeLocked(ch, sid)
	}
	sortChannels(out)
	return out
}

func (m *channelManager) Drop(ch ChannelName) []SessionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.byChannel[ch]
	out := make([]SessionID, 0, len(members))
	for sid := range members {
		out = append(out, sid)
	}
	for _, sid := range out {
		m.removeLocked(ch, sid)
	}
	sortSessions(out)
	return out
}

func (m *channelManager) Has(ch ChannelName, sid SessionID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byChannel[ch][sid]
	return ok
}

func (m *channelManager) Members(ch ChannelName) []SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members := m.byChannel[ch]
	out := make([]SessionID, 0, len(members))
	for sid := range members {
		out = append(out, sid)
	}
	sortSessions(out)
	return out
}

func (m *channelManager) ChannelsOf(sid SessionID) []ChannelName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chans := m.bySID[sid]
	out := make([]ChannelName, 0, len(chans))
	for ch := range chans {
		out = append(out, ch)
	}
	sortChannels(out)
	return out
}

func (m *channelManager) List() []ChannelInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChannelInfo, 0, len(m.byChannel))
	for ch, members := range m.byChannel {
		out = append(out, ChannelInfo{Name: ch, MemberCount: len(members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// removeLocked drops empty sets so the maps do not grow with dead channels.
func (m *channelManager) removeLocked(ch ChannelName, sid SessionID) {
	if members, ok := m.byChannel[ch]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(m.byChannel, ch)
		}
	}
	if chans, ok := m.bySID[sid]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(m.bySID, sid)
		}
	}
}

func sortSessions(s []SessionID) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

func sortChannels(s []ChannelName) {
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}
