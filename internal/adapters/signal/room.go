package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
)

func (ctl *SignalWSController) handleJoinRoom(_ context.Context, sid core.SessionID, data []byte) error {
	var p JoinRoom
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.JoinRoom(sid, p.RoomID)
	return nil
}

func (ctl *SignalWSController) handleCheckRoomExists(ctx context.Context, sid core.SessionID, data []byte) error {
	var p CheckRoomExists
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.CheckRoomExists(ctx, sid, p.RoomID, p.OwnerToken)
}

func (ctl *SignalWSController) handleStartDirectSession(ctx context.Context, sid core.SessionID, data []byte) error {
	var p StartDirectSession
	if err := decode(data, &p); err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(p.RoomID)).Msg("start direct session")
	return ctl.Orch.StartDirectSession(ctx, sid, p.OwnerToken, p.RoomID)
}

func (ctl *SignalWSController) handleStartRandomMatch(ctx context.Context, sid core.SessionID, data []byte) error {
	var p StartRandomMatch
	if err := decode(data, &p); err != nil {
		return err
	}
	if !ctl.limiter.Allow(sid) {
		return ErrRateLimited
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("namespace", string(p.Namespace)).Msg("start random match")
	return ctl.Orch.StartRandomMatch(ctx, sid, p.RequesterToken, p.LastPartnerToken, p.Namespace)
}

func (ctl *SignalWSController) handleLeaveRoom(ctx context.Context, sid core.SessionID, data []byte) error {
	var p LeaveRoom
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.LeaveRoom(ctx, sid, p.RoomID)
}

func (ctl *SignalWSController) handleRelaySignal(_ context.Context, sid core.SessionID, data []byte) error {
	var p RelaySignal
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.RelaySignal(sid, p.RoomID, p.Payload)
	return nil
}

func (ctl *SignalWSController) handleReportUser(_ context.Context, sid core.SessionID, data []byte) error {
	var p ReportUser
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.ReportUser(sid, p.RoomID)
	return nil
}

func (ctl *SignalWSController) handleSendSources(_ context.Context, sid core.SessionID, data []byte) error {
	var p SendSources
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.SendSources(sid, p.RoomID, p.DisplayName, p.Sources)
	return nil
}
