package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/app/orch"
	"github.com/dkeye/DafChat/internal/core"
	"github.com/dkeye/DafChat/internal/domain"
)

const writeWait = 5 * time.Second

type handlerFunc func(ctx context.Context, sid core.SessionID, data []byte) error

func (ctl *SignalWSController) routes() map[EventType]handlerFunc {
	return map[EventType]handlerFunc{
		EventEnterLobby:           ctl.handleEnterLobby,
		EventRequestDirectConnect: ctl.handleRequestDirectConnect,
		EventRejectDirectConnect:  ctl.handleRejectDirectConnect,
		EventSendRoomHandoff:      ctl.handleSendRoomHandoff,
		EventJoinRoom:             ctl.handleJoinRoom,
		EventSendChatMessage:      ctl.handleSendChatMessage,
		EventCheckRoomExists:      ctl.handleCheckRoomExists,
		EventStartDirectSession:   ctl.handleStartDirectSession,
		EventStartRandomMatch:     ctl.handleStartRandomMatch,
		EventLeaveRoom:            ctl.handleLeaveRoom,
		EventRelaySignal:          ctl.handleRelaySignal,
		EventReportUser:           ctl.handleReportUser,
		EventSendUserInfo:         ctl.handleSendUserInfo,
		EventSendSources:          ctl.handleSendSources,
		EventPing:                 ctl.handlePing,
	}
}

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		cancel()
		c.Close()
		ctl.limiter.Forget(sid)
		ctl.Orch.OnDisconnect(context.WithoutCancel(ctx), sid)
	}()

	if ctl.readLimit > 0 {
		c.conn.SetReadLimit(ctl.readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(ctx, sid, data)
		}
	}
}

// handleFrame dispatches one event. A failing handler never takes the
// connection down; the client gets an error event instead.
func (ctl *SignalWSController) handleFrame(ctx context.Context, sid core.SessionID, data []byte) {
	var env struct {
		Type EventType `json:"type"`
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signal").Str("sid", string(sid)).Str("type", string(env.Type)).Interface("panic", r).Msg("handler panic")
			ctl.Orch.Send(sid, orch.NewError(orch.CodeInternal))
		}
	}()

	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		ctl.Orch.Send(sid, orch.NewError(orch.CodeMalformedEvent))
		return
	}
	h, ok := ctl.handlers[env.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", string(env.Type)).Msg("unknown event")
		ctl.Orch.Send(sid, orch.NewError(orch.CodeUnknownEvent))
		return
	}
	if err := h(ctx, sid, data); err != nil {
		ctl.replyError(sid, env.Type, err)
	}
}

func (ctl *SignalWSController) replyError(sid core.SessionID, t EventType, err error) {
	code := errorCode(err)
	level := zerolog.WarnLevel
	if code == orch.CodeStoreFailure || code == orch.CodeInternal {
		level = zerolog.ErrorLevel
	}
	log.WithLevel(level).Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", string(t)).Str("code", code).Msg("event failed")
	ctl.Orch.Send(sid, orch.NewError(code))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedEvent):
		return orch.CodeMalformedEvent
	case errors.Is(err, domain.ErrDuplicateName):
		return orch.CodeRoomUnavailable
	case errors.Is(err, domain.ErrNotInLobby):
		return orch.CodeNotInLobby
	case errors.Is(err, ErrRateLimited):
		return orch.CodeRateLimited
	case errors.Is(err, domain.ErrStoreIO):
		return orch.CodeStoreFailure
	}
	return orch.CodeInternal
}
