package signal

import (
	"context"
	"errors"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/app/orch"
	"github.com/dkeye/DafChat/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	SendBuffer     int
	AllowedOrigins []string
	Limiter        *MatchRateLimiter
}

type SignalWSController struct {
	Orch *orch.Orchestrator

	limiter    *MatchRateLimiter
	upgrader   websocket.Upgrader
	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration
	sendBuffer int
	handlers   map[EventType]handlerFunc
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	ctl := &SignalWSController{
		Orch:       o,
		limiter:    opts.Limiter,
		readLimit:  opts.ReadLimit,
		pingPeriod: opts.PingPeriod,
		pongWait:   opts.PingPeriod * 10 / 9,
		sendBuffer: opts.SendBuffer,
	}
	origins := opts.AllowedOrigins
	ctl.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return originAllowed(r.Header.Get("Origin"), origins) },
	}
	ctl.handlers = ctl.routes()
	return ctl
}

// originAllowed matches the browser origin against the allow-list.
// Patterns may hold a wildcard label, e.g. https://*.example.org.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, p := range allowed {
		if p == "*" || p == origin {
			return true
		}
		if ok, _ := path.Match(p, origin); ok {
			return true
		}
	}
	return false
}

// WsSignalConn is the send side of one WebSocket. Only writePump writes
// to the socket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal upgrades the request and runs the connection until either
// side closes it or ctx is done.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	clientToken := c.GetString("client_token")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", clientToken).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer),
	}
	sess := core.NewSession(sid, clientToken, conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.OnConnect(sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
