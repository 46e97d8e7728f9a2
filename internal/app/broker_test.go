package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DafChat/internal/core"
)

func TestBroker_RouteByUserID(t *testing.T) {
	p := NewPresence()
	p.Join("s1", entry("u1", "Alice"))
	p.Join("s2", entry("u2", "Bob"))
	b := NewBroker(p)

	sid, ok := b.RouteByUserID("s1", "u2")
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s2"), sid)

	_, ok = b.RouteByUserID("s1", "u9")
	assert.False(t, ok)

	_, ok = b.RouteByUserID("s1", "u1")
	assert.False(t, ok, "sender is never its own target")
}

func TestBroker_RouteByDisplayNameSkipsSender(t *testing.T) {
	p := NewPresence()
	p.Join("s1", entry("u1", "Guest"))
	p.Join("s2", entry("u2", "Guest"))
	b := NewBroker(p)

	sid, ok := b.RouteByDisplayName("s1", "Guest")
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s2"), sid)

	sid, ok = b.RouteByDisplayName("s3", "Guest")
	require.True(t, ok)
	assert.Equal(t, core.SessionID("s1"), sid)
}

func TestBroker_FanOut(t *testing.T) {
	p := NewPresence()
	p.Join("s1", entry("u1", "Alice"))
	p.Join("s2", entry("u2", "Bob"))
	p.Join("s3", entry("u2", "Bob"))
	b := NewBroker(p)

	assert.Equal(t, []core.SessionID{"s2", "s3"}, b.FanOutByDisplayName("s1", "Bob"))
	assert.Equal(t, []core.SessionID{"s3"}, b.FanOutByDisplayName("s2", "Bob"))
	assert.Empty(t, b.FanOutByDisplayName("s1", "Nobody"))
}
