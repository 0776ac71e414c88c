package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleChat(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[chatPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.Chat(id, domain.MeetingID(p.MeetingID), p.Message)
}

func (ctl *SignalWSController) handleReaction(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[reactionPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.React(id, p.Emoji)
}

func (ctl *SignalWSController) handleCaption(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[captionPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	ctl.Orch.Caption(id, p.Text)
}

func (ctl *SignalWSController) handleEnableDelegate(id domain.ConnID, raw json.RawMessage) {
	p, err := decode[delegatePayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	owner := domain.UserID(p.UserID)
	if owner == "" {
		owner, _ = ctl.Orch.Registry.UserOf(id)
	}
	if err := ctl.Orch.EnableDelegate(domain.MeetingID(p.MeetingID), p.Name, p.Style, owner); err != nil {
		ctl.Orch.SendError(id, err.Error())
	}
}

func (ctl *SignalWSController) handleTranscripts(ctx context.Context, id domain.ConnID, raw json.RawMessage) {
	p, err := decode[transcriptsPayload](raw)
	if err != nil {
		ctl.Orch.SendError(id, err.Error())
		return
	}
	if err := ctl.Orch.SendTranscripts(ctx, id, domain.MeetingID(p.MeetingID)); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("meeting", p.MeetingID).Msg("transcripts")
		ctl.Orch.SendError(id, "transcripts unavailable")
	}
}
