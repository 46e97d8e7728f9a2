package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/DafChat/internal/adapters/signal"
	"github.com/dkeye/DafChat/internal/app"
	"github.com/dkeye/DafChat/internal/app/orch"
	"github.com/dkeye/DafChat/internal/config"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/store"
)

func newServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rooms := store.NewMemory()
	presence := app.NewPresence()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Presence: presence,
		Rooms:    rooms,
		Channels: core.NewChannelManager(),
		Matcher:  app.NewMatchmaker(rooms),
		Broker:   app.NewBroker(presence),
		Policy:   app.SimplePolicy{},
	}
	cfg := &config.Config{
		Mode:           "test",
		Secret:         "test-secret",
		ReadLimit:      32768,
		PingPeriod:     time.Minute,
		SendBuffer:     16,
		AllowedOrigins: []string{"*"},
	}
	srv := httptest.NewServer(SetupRouter(ctx, cfg, o, signal.NewMatchRateLimiter(10, time.Minute)))
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// readUntil skips events until one of type typ arrives.
func readUntil(t *testing.T, ws *websocket.Conn, typ string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var ev map[string]any
		require.NoError(t, ws.ReadJSON(&ev))
		if ev["type"] == typ {
			return ev
		}
	}
}

func TestBannerAndHealth(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "The DafRoulette WebRTC Server lives here.", string(body))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestSessionCookieIssued(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionName {
			found = true
		}
	}
	assert.True(t, found)
}

func TestWebSocket_RandomMatchPair(t *testing.T) {
	srv, o := newServer(t)
	a := dial(t, srv)
	b := dial(t, srv)

	started := readUntil(t, a, orch.EventConnectionStarted)
	assert.NotEmpty(t, started["sid"])
	readUntil(t, b, orch.EventConnectionStarted)

	require.NoError(t, a.WriteJSON(map[string]any{"type": "start-random-match", "requesterToken": "u-a"}))
	created := readUntil(t, a, orch.EventRoomCreated)

	require.NoError(t, b.WriteJSON(map[string]any{"type": "start-random-match", "requesterToken": "u-b"}))
	joinedB := readUntil(t, b, orch.EventRoomJoined)
	joinedA := readUntil(t, a, orch.EventRoomJoined)
	assert.Equal(t, created["roomId"], joinedA["roomId"])
	assert.Equal(t, created["roomId"], joinedB["roomId"])

	require.NoError(t, a.WriteJSON(map[string]any{
		"type":    "relay-signal",
		"roomId":  created["roomId"],
		"payload": map[string]any{"type": "offer", "sdp": "v=0"},
	}))
	sig := readUntil(t, b, orch.EventSignal)
	assert.Equal(t, "offer", sig["payload"].(map[string]any)["type"])

	require.NoError(t, a.WriteJSON(map[string]any{"type": "leave-room", "roomId": created["roomId"]}))
	readUntil(t, a, orch.EventLeftRoom)
	readUntil(t, b, orch.EventPeerLeft)

	count, err := o.PoolSize(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWebSocket_DisconnectUpdatesLobby(t *testing.T) {
	srv, o := newServer(t)
	a := dial(t, srv)
	b := dial(t, srv)
	readUntil(t, a, orch.EventConnectionStarted)
	readUntil(t, b, orch.EventConnectionStarted)

	require.NoError(t, a.WriteJSON(map[string]any{"type": "enter-lobby", "userId": "u-a", "displayName": "Alice"}))
	roster := readUntil(t, b, orch.EventRosterChanged)
	assert.Len(t, roster["roster"], 1)

	require.NoError(t, a.Close())
	roster = readUntil(t, b, orch.EventRosterChanged)
	assert.Empty(t, roster["roster"])

	assert.Eventually(t, func() bool { return o.Registry.Count() == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestWebSocket_UnknownEvent(t *testing.T) {
	srv, _ := newServer(t)
	a := dial(t, srv)
	readUntil(t, a, orch.EventConnectionStarted)

	require.NoError(t, a.WriteJSON(map[string]any{"type": "ipaddr"}))
	ev := readUntil(t, a, orch.EventError)
	assert.Equal(t, orch.CodeUnknownEvent, ev["error"])
}
