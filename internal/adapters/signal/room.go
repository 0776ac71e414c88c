package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(ctx context.Context, id domain.ConnID, raw json.RawMessage) {
	p, err := decode[joinPayload](raw)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.Orch.SendError(id, err.Error())
		return
	}
	name, err := domain.NormalizeUsername(p.Name)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}

	meeting := domain.MeetingID(p.MeetingID)
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("meeting", p.MeetingID).Msg("join")
	if err := ctl.Orch.Join(ctx, id, meeting, name, role); err != nil {
		if !errors.Is(err, orch.ErrInvalidMeeting) {
			log.Error().Err(err).Str("module", "signal").Str("meeting", p.MeetingID).Msg("join failed")
		}
		ctl.Orch.SendError(id, err.Error())
	}
}

// handleLeave leaves one meeting, or all of them; the connection stays open.
func (ctl *SignalWSController) handleLeave(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[leavePayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	log.Info().Str("module", "signal").Str("conn", string(id)).Str("meeting", p.MeetingID).Msg("leave")
	ctl.Orch.Leave(id, domain.MeetingID(p.MeetingID))
}
