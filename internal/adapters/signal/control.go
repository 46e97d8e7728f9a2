package signal

import (
	"context"

	"github.com/dkeye/DafChat/internal/app/orch"
	"github.com/dkeye/DafChat/internal/core"
)

func (ctl *SignalWSController) handlePing(_ context.Context, sid core.SessionID, _ []byte) error {
	ctl.Orch.Send(sid, orch.NewPong())
	return nil
}
