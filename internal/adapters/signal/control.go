package signal

import "github.com/dkeye/Huddle/internal/domain"

func (ctl *SignalWSController) handlePing(id domain.ConnID) {
	ctl.Orch.Pong(id)
}
