package signal

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/adapters/rtc"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleRegister(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[registerPayload](raw)
	if err != nil {
		// An empty user id is a silent no-op.
		log.Debug().Err(err).Str("module", "signal").Str("conn", string(id)).Msg("register ignored")
		return
	}
	ctl.Orch.RegisterSession(id, domain.UserID(p.UserID))
}

func (ctl *SignalWSController) handleInitiateCall(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[initiateCallPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.InitiateCall(id, domain.UserID(p.CallerID), p.CallerName, domain.UserID(p.TargetUserID), domain.MeetingID(p.MeetingID))
}

func (ctl *SignalWSController) handleAcceptCall(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[acceptCallPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.AcceptCall(domain.ConnID(p.CallerConnectionID), domain.MeetingID(p.MeetingID))
}

func (ctl *SignalWSController) handleDeclineCall(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[declineCallPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.DeclineCall(domain.ConnID(p.CallerConnectionID))
}

func (ctl *SignalWSController) handleRelay(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[signalPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	if ctl.opts.ValidateSDP {
		if err := rtc.CheckSignal(p.Type, p.Data); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("conn", string(id)).Str("type", p.Type).Msg("rejected signal")
			ctl.Orch.SendError(id, err.Error())
			return
		}
	}
	ctl.Orch.Relay(id, domain.ConnID(p.To), p.Type, p.Data)
}
