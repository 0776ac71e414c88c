package orch

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
)

const systemSender = "System"

// Any "you" in the text wakes every delegate in the room, "your" included.
// TODO: narrow once product decides how delegates are addressed.
const youTrigger = "you"

// EnableDelegate registers an AI persona in a live room. Registering a name
// twice is a no-op and announces nothing.
func (o *Orchestrator) EnableDelegate(meeting domain.MeetingID, name, style string, owner domain.UserID) error {
	room, ok := o.Rooms.Get(meeting)
	if !ok {
		return ErrNoRoom
	}
	d := domain.Delegate{Name: name, Style: style, Owner: owner}
	added, res, err := room.AddDelegate(d, func() core.Frame {
		return core.MustEncode(core.EvChatMessage, core.ChatMessage{
			From:         systemSender,
			Message:      fmt.Sprintf("AI delegate for %s is now active.", name),
			ConnectionID: core.SystemSenderID,
			IsSystem:     true,
		})
	})
	if err != nil {
		return ErrNoRoom
	}
	if added {
		o.settle(meeting, res)
	}
	return nil
}

// SendTranscripts sends the stored history of meeting to conn.
func (o *Orchestrator) SendTranscripts(ctx context.Context, conn domain.ConnID, meeting domain.MeetingID) error {
	history := []domain.TranscriptLine{}
	if o.Transcripts != nil {
		ctx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
		defer cancel()
		lines, err := o.Transcripts.TranscriptHistory(ctx, meeting)
		if err != nil {
			return fmt.Errorf("transcript history: %w", err)
		}
		if lines != nil {
			history = lines
		}
	}
	return o.send(conn, core.EvTranscriptHistory, core.TranscriptHistory{MeetingID: meeting, History: history})
}

func (o *Orchestrator) persistTranscript(line domain.TranscriptLine) {
	if o.Transcripts == nil {
		return
	}
	o.async("transcript", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
		defer cancel()
		if err := o.Transcripts.AppendTranscript(ctx, line); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("meeting", string(line.MeetingID)).Msg("transcript not persisted")
		}
	})
}

// ShouldTrigger reports whether a caption by speaker addresses delegate d.
func ShouldTrigger(d domain.Delegate, speaker, text string) bool {
	fold := cases.Fold()
	if fold.String(speaker) == fold.String(d.Name) {
		return false
	}
	folded := fold.String(text)
	if d.Name != "" && strings.Contains(folded, fold.String(d.Name)) {
		return true
	}
	return strings.Contains(folded, youTrigger)
}

func (o *Orchestrator) triggerDelegates(room *app.Room, line domain.TranscriptLine) {
	if o.Generator == nil {
		return
	}
	for _, d := range room.Delegates() {
		if !ShouldTrigger(d, line.Speaker, line.Text) {
			continue
		}
		o.async("delegate", func(ctx context.Context) {
			o.respondAs(ctx, room, d, line)
		})
	}
}

func (o *Orchestrator) respondAs(ctx context.Context, room *app.Room, d domain.Delegate, line domain.TranscriptLine) {
	logger := log.With().Str("module", "orch.delegate").Str("meeting", string(room.ID())).Str("delegate", d.Name).Logger()

	ctx, cancel := context.WithTimeout(ctx, o.opts.GenerateTimeout)
	defer cancel()
	if err := o.aiSlots.Acquire(ctx, 1); err != nil {
		logger.Warn().Err(err).Msg("no generation slot")
		return
	}
	defer o.aiSlots.Release(1)

	system := o.systemPrompt(ctx, d)
	prompt := fmt.Sprintf("In a live meeting, %s just said: %q\nReply as %s in one or two short sentences.", line.Speaker, line.Text, d.Name)
	reply, err := o.Generator.Generate(ctx, system, prompt)
	if err != nil {
		logger.Warn().Err(err).Msg("generation failed")
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	o.publish(room, core.DelegateSenderID, true, func(domain.Participant, bool) core.Frame {
		return core.MustEncode(core.EvChatMessage, core.ChatMessage{
			From:         d.Name + " (AI)",
			Message:      reply,
			ConnectionID: core.DelegateSenderID,
			IsAI:         true,
		})
	})
	logger.Info().Msg("delegate replied")
}

func (o *Orchestrator) systemPrompt(ctx context.Context, d domain.Delegate) string {
	if o.Personas != nil && d.Owner != "" {
		p, ok, err := o.Personas.SystemPrompt(ctx, d.Owner)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("module", "orch.delegate").Str("user", string(d.Owner)).Msg("persona lookup")
		case ok && strings.TrimSpace(p) != "":
			return p
		}
	}
	return fmt.Sprintf("You are acting as %s, style: %s", d.Name, d.Style)
}
