package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DafChat/internal/app"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
	"github.com/dkeye/DafChat/internal/store"
)

var errFull = errors.New("buffer full")

// captureConn records every frame sent to a session.
type captureConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (c *captureConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *captureConn) Close() {}

func (c *captureConn) events(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(f, &m))
		out = append(out, m)
	}
	return out
}

func (c *captureConn) types(t *testing.T) []string {
	var out []string
	for _, e := range c.events(t) {
		out = append(out, e["type"].(string))
	}
	return out
}

// ofType returns the recorded events of type typ.
func (c *captureConn) ofType(t *testing.T, typ string) []map[string]any {
	var out []map[string]any
	for _, e := range c.events(t) {
		if e["type"] == typ {
			out = append(out, e)
		}
	}
	return out
}

func (c *captureConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

type staticICE struct{}

func (staticICE) Servers(string) []webrtc.ICEServer {
	return []webrtc.ICEServer{{URLs: []string{"stun:stun.example.org:3478"}}}
}

func newOrchestrator(rooms core.RoomStore) *Orchestrator {
	presence := app.NewPresence()
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Presence: presence,
		Rooms:    rooms,
		Channels: core.NewChannelManager(),
		Matcher:  app.NewMatchmaker(rooms),
		Broker:   app.NewBroker(presence),
		Policy:   app.SimplePolicy{},
		ICE:      staticICE{},
	}
}

type testClient struct {
	sid       core.SessionID
	conn      *captureConn
	ctx       context.Context
	cancelled func() bool
}

func connect(o *Orchestrator, sid core.SessionID) *testClient {
	conn := &captureConn{}
	ctx, cancel := context.WithCancel(context.Background())
	o.OnConnect(core.NewSession(sid, "ct-"+string(sid), conn), cancel)
	return &testClient{
		sid:       sid,
		conn:      conn,
		ctx:       ctx,
		cancelled: func() bool { return ctx.Err() != nil },
	}
}

func newTestEnv(t *testing.T) (*Orchestrator, *store.Memory) {
	t.Helper()
	rooms := store.NewMemory()
	t.Cleanup(func() { _ = rooms.Close() })
	return newOrchestrator(rooms), rooms
}

// hookStore runs a one-shot hook inside a store call, to land another
// operation at an exact point of the one in flight.
type hookStore struct {
	core.RoomStore

	mu        sync.Mutex
	onGet     func(domain.RoomName)
	afterFind func([]domain.Room)
}

func (h *hookStore) beforeGet(fn func(domain.RoomName)) {
	h.mu.Lock()
	h.onGet = fn
	h.mu.Unlock()
}

func (h *hookStore) afterScan(fn func([]domain.Room)) {
	h.mu.Lock()
	h.afterFind = fn
	h.mu.Unlock()
}

func (h *hookStore) GetRoom(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	h.mu.Lock()
	fn := h.onGet
	h.onGet = nil
	h.mu.Unlock()
	if fn != nil {
		fn(name)
	}
	return h.RoomStore.GetRoom(ctx, name)
}

func (h *hookStore) FindAvailable(ctx context.Context, ns domain.Namespace) ([]domain.Room, error) {
	rooms, err := h.RoomStore.FindAvailable(ctx, ns)
	h.mu.Lock()
	fn := h.afterFind
	h.afterFind = nil
	h.mu.Unlock()
	if fn != nil && err == nil {
		fn(rooms)
	}
	return rooms, err
}

func newHookEnv(t *testing.T) (*Orchestrator, *hookStore, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })
	hooks := &hookStore{RoomStore: mem}
	return newOrchestrator(hooks), hooks, mem
}

// indexOf returns the position of the first event of type typ, or -1.
func indexOf(types []string, typ string) int {
	for i, got := range types {
		if got == typ {
			return i
		}
	}
	return -1
}
