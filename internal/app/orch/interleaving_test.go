package orch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DafChat/internal/domain"
)

func createdRoom(t *testing.T, c *testClient) domain.RoomName {
	t.Helper()
	created := c.conn.ofType(t, EventRoomCreated)
	require.Len(t, created, 1)
	return domain.RoomName(created[0]["roomId"].(string))
}

func TestOnDisconnect_MatchDuringCleanupGetsPeerLeft(t *testing.T) {
	ctx := context.Background()
	o, hooks, mem := newHookEnv(t)
	a := connect(o, "s-a")
	b := connect(o, "s-b")
	require.NoError(t, o.StartRandomMatch(ctx, a.sid, "u-a", "", ""))
	room := createdRoom(t, a)

	// b is matched while a's disconnect cleanup looks the room up.
	hooks.beforeGet(func(domain.RoomName) {
		require.NoError(t, o.StartRandomMatch(ctx, b.sid, "u-b", "", ""))
	})
	o.OnDisconnect(ctx, a.sid)

	types := b.conn.types(t)
	joined, left := indexOf(types, EventRoomJoined), indexOf(types, EventPeerLeft)
	require.NotEqual(t, -1, joined, "b was never matched: %v", types)
	require.NotEqual(t, -1, left, "b never heard a left: %v", types)
	assert.Less(t, joined, left)
	assert.Equal(t, string(room), b.conn.ofType(t, EventPeerLeft)[0]["roomId"])

	got, err := mem.GetRoom(ctx, room)
	require.NoError(t, err)
	assert.False(t, got.Waiting())
}

func TestStartRandomMatch_CandidateDeletedAfterScan(t *testing.T) {
	ctx := context.Background()
	o, hooks, mem := newHookEnv(t)
	a := connect(o, "s-a")
	b := connect(o, "s-b")
	require.NoError(t, o.StartRandomMatch(ctx, a.sid, "u-a", "", ""))
	room := createdRoom(t, a)

	hooks.afterScan(func([]domain.Room) {
		require.NoError(t, mem.DeleteRoom(ctx, room))
	})
	require.NoError(t, o.StartRandomMatch(ctx, b.sid, "u-b", "", ""))

	created := createdRoom(t, b)
	assert.NotEqual(t, room, created)
	assert.Empty(t, b.conn.ofType(t, EventError))
}

func TestLeaveRoom_WaitsForMatchInFlight(t *testing.T) {
	ctx := context.Background()
	o, hooks, mem := newHookEnv(t)
	a := connect(o, "s-a")
	b := connect(o, "s-b")
	require.NoError(t, o.StartRandomMatch(ctx, a.sid, "u-a", "", ""))
	room := createdRoom(t, a)

	done := make(chan error, 1)
	hooks.afterScan(func([]domain.Room) {
		go func() { done <- o.LeaveRoom(ctx, a.sid, room) }()
	})
	require.NoError(t, o.StartRandomMatch(ctx, b.sid, "u-b", "", ""))
	require.NoError(t, <-done)

	types := b.conn.types(t)
	joined, left := indexOf(types, EventRoomJoined), indexOf(types, EventPeerLeft)
	require.NotEqual(t, -1, joined, "b was never matched: %v", types)
	require.NotEqual(t, -1, left, "b never heard the bye: %v", types)
	assert.Less(t, joined, left)
	assert.Len(t, a.conn.ofType(t, EventLeftRoom), 1)

	_, err := mem.GetRoom(ctx, room)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestReapIdle_WaitsForMatchInFlight(t *testing.T) {
	ctx := context.Background()
	o, hooks, mem := newHookEnv(t)
	a := connect(o, "s-a")
	b := connect(o, "s-b")
	require.NoError(t, o.StartRandomMatch(ctx, a.sid, "u-a", "", ""))
	room := createdRoom(t, a)

	reaped := make(chan int, 1)
	hooks.afterScan(func([]domain.Room) {
		go func() { reaped <- o.ReapIdle(ctx, time.Now().Add(time.Hour)) }()
	})
	require.NoError(t, o.StartRandomMatch(ctx, b.sid, "u-b", "", ""))
	assert.Zero(t, <-reaped)

	assert.Len(t, b.conn.ofType(t, EventRoomJoined), 1)
	assert.Empty(t, a.conn.ofType(t, EventRoomGone))
	assert.Empty(t, b.conn.ofType(t, EventRoomGone))
	got, err := mem.GetRoom(ctx, room)
	require.NoError(t, err)
	assert.False(t, got.Waiting())
}

func TestOnDisconnect_RacingMatchNeverStrandsJoiner(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		o, mem := newTestEnv(t)
		a := connect(o, "s-a")
		b := connect(o, "s-b")
		require.NoError(t, o.StartRandomMatch(ctx, a.sid, "u-a", "", ""))
		room := createdRoom(t, a)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.OnDisconnect(ctx, a.sid)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, o.StartRandomMatch(ctx, b.sid, "u-b", "", ""))
		}()
		wg.Wait()

		_, err := mem.GetRoom(ctx, room)
		if len(b.conn.ofType(t, EventRoomJoined)) == 1 {
			// b got a's room: it must also learn a is gone.
			types := b.conn.types(t)
			assert.Less(t, indexOf(types, EventRoomJoined), indexOf(types, EventPeerLeft), "run %d: %v", i, types)
			assert.NoError(t, err)
		} else {
			assert.Len(t, b.conn.ofType(t, EventRoomCreated), 1, "run %d", i)
			assert.ErrorIs(t, err, domain.ErrRoomNotFound, "run %d", i)
		}
	}
}
