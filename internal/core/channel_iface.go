package core

import "github.com/dkeye/DafChat/internal/domain"

// ChannelName names a fan-out group of sessions. Room names are channel
// names; every session also owns a private channel named after its id.
type ChannelName string

func RoomChannel(name domain.RoomName) ChannelName { return ChannelName(name) }

func IdentityChannel(sid SessionID) ChannelName { return ChannelName(sid) }

type ChannelInfo struct {
	Name        ChannelName `json:"name"`
	MemberCount int         `json:"member_count"`
}

// ChannelManager tracks which sessions belong to which channels.
// It never touches transport resources.
type ChannelManager interface {
	Join(ch ChannelName, sid SessionID)
	Leave(ch ChannelName, sid SessionID)
	// LeaveAll removes sid from every channel and returns the channels it was in.
	LeaveAll(sid SessionID) []ChannelName
	// Drop deletes a channel and returns its former members.
	Drop(ch ChannelName) []SessionID
	Has(ch ChannelName, sid SessionID) bool
	Members(ch ChannelName) []SessionID
	ChannelsOf(sid SessionID) []ChannelName
	List() []ChannelInfo
}
