package orch

import (
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const unknownSender = "Unknown"

// Chat broadcasts to every member of meeting, sender included.
func (o *Orchestrator) Chat(conn domain.ConnID, meeting domain.MeetingID, message string) {
	room, ok := o.Rooms.Get(meeting)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(conn)).Str("meeting", string(meeting)).Msg("chat for meeting without room")
		return
	}
	o.publish(room, conn, true, func(sender domain.Participant, ok bool) core.Frame {
		name := unknownSender
		if ok {
			name = sender.Name
		}
		return core.MustEncode(core.EvChatMessage, core.ChatMessage{From: name, Message: message, ConnectionID: conn})
	})
}

// React broadcasts an emoji to each room the sender is in.
func (o *Orchestrator) React(conn domain.ConnID, emoji string) {
	f := core.MustEncode(core.EvReaction, core.Reaction{Emoji: emoji, ConnectionID: conn})
	o.eachRoomOf(conn, func(room *app.Room) {
		o.publish(room, conn, true, func(domain.Participant, bool) core.Frame { return f })
	})
}

func (o *Orchestrator) RaiseHand(conn domain.ConnID) {
	o.eachRoomOf(conn, func(room *app.Room) {
		o.publish(room, conn, true, func(sender domain.Participant, ok bool) core.Frame {
			name := unknownSender
			if ok {
				name = sender.Name
			}
			return core.MustEncode(core.EvHandRaised, core.HandRaised{Name: name, ConnectionID: conn})
		})
	})
}

// Caption broadcasts to everyone but the speaker, then persists the line and
// evaluates delegates asynchronously.
func (o *Orchestrator) Caption(conn domain.ConnID, text string) {
	now := o.opts.Now()
	o.eachRoomOf(conn, func(room *app.Room) {
		speaker := unknownSender
		published := o.publish(room, conn, false, func(sender domain.Participant, ok bool) core.Frame {
			if ok {
				speaker = sender.Name
			}
			return core.MustEncode(core.EvCaption, core.Caption{From: speaker, Text: text, ConnectionID: conn})
		})
		if !published {
			return
		}
		line := domain.TranscriptLine{MeetingID: room.ID(), Speaker: speaker, Text: text, Timestamp: now}
		o.persistTranscript(line)
		o.triggerDelegates(room, line)
	})
}

func (o *Orchestrator) eachRoomOf(conn domain.ConnID, fn func(*app.Room)) {
	for _, id := range o.Registry.MeetingsOf(conn) {
		room, ok := o.Rooms.Get(id)
		if !ok {
			continue
		}
		fn(room)
	}
}

// publish reports whether the frame went out; a closed room is not an error.
func (o *Orchestrator) publish(room *app.Room, from domain.ConnID, includeSender bool, build func(domain.Participant, bool) core.Frame) bool {
	res, err := room.Publish(from, includeSender, build)
	if err != nil {
		if !errors.Is(err, app.ErrRoomClosed) {
			log.Warn().Err(err).Str("module", "orch").Str("meeting", string(room.ID())).Msg("publish")
		}
		return false
	}
	o.settle(room.ID(), res)
	return true
}
