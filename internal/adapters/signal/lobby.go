package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/DafChat/internal/core"
)

func (ctl *SignalWSController) handleEnterLobby(_ context.Context, sid core.SessionID, data []byte) error {
	var p EnterLobby
	if err := decode(data, &p); err != nil {
		return err
	}
	entry, err := p.Entry()
	if err != nil {
		return err
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("user", string(entry.UserID)).Msg("enter lobby")
	ctl.Orch.EnterLobby(sid, *entry)
	return nil
}

func (ctl *SignalWSController) handleRequestDirectConnect(_ context.Context, sid core.SessionID, data []byte) error {
	var p RequestDirectConnect
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.RequestDirectConnect(sid, p.TargetUserID, p.CallerInfo)
	return nil
}

func (ctl *SignalWSController) handleRejectDirectConnect(_ context.Context, sid core.SessionID, data []byte) error {
	var p RejectDirectConnect
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.RejectDirectConnect(sid, p.TargetDisplayName)
	return nil
}

func (ctl *SignalWSController) handleSendRoomHandoff(_ context.Context, sid core.SessionID, data []byte) error {
	var p SendRoomHandoff
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.SendRoomHandoff(sid, p.TargetDisplayName, p.RoomID)
	return nil
}

func (ctl *SignalWSController) handleSendChatMessage(_ context.Context, sid core.SessionID, data []byte) error {
	var p SendChatMessage
	if err := decode(data, &p); err != nil {
		return err
	}
	chat := p.Context()
	return ctl.Orch.SendChatMessage(sid, chat.RoomID, chat.RecipientName, p.Message, p.RoomContext)
}

func (ctl *SignalWSController) handleSendUserInfo(_ context.Context, sid core.SessionID, data []byte) error {
	var p SendUserInfo
	if err := decode(data, &p); err != nil {
		return err
	}
	ctl.Orch.SendUserInfo(sid, p.UserName, p.UserID, p.RoomID)
	return nil
}
