package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join validates the meeting against the directory, then adds conn to the
// live room. The joiner gets room_info with everyone already present, and
// the whole room, joiner included, gets user_joined.
func (o *Orchestrator) Join(ctx context.Context, conn domain.ConnID, meeting domain.MeetingID, name string, role domain.Role) error {
	if err := domain.CheckMeetingID(meeting); err != nil {
		return ErrInvalidMeeting
	}
	if o.Meetings != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
		exists, err := o.Meetings.Exists(lookupCtx, meeting)
		cancel()
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("meeting", string(meeting)).Msg("meeting lookup")
			return ErrMeetingLookup
		}
		if !exists {
			return ErrInvalidMeeting
		}
	}
	if role == "" {
		role = domain.RoleGuest
	}

	p := domain.Participant{ConnID: conn, Name: name, Role: role}
	res, err := o.Rooms.Join(meeting, p, func(prior []domain.Participant) (core.Frame, core.Frame) {
		users := make([]core.RoomUser, 0, len(prior))
		for _, u := range prior {
			users = append(users, core.RoomUser{ConnectionID: u.ConnID, Name: u.Name})
		}
		return core.MustEncode(core.EvRoomInfo, core.RoomInfo{MeetingID: meeting, Users: users}),
			core.MustEncode(core.EvUserJoined, core.UserJoined{ConnectionID: conn, Name: name, Role: role})
	})
	if err != nil {
		if errors.Is(err, app.ErrConnGone) {
			return ErrNotConnected
		}
		return err
	}
	o.settle(meeting, res.Published)
	return nil
}

// Leave removes conn from one meeting, or from every meeting when meeting is
// empty. The transport stays open.
func (o *Orchestrator) Leave(conn domain.ConnID, meeting domain.MeetingID) {
	var meetings []domain.MeetingID
	if meeting == "" {
		meetings = o.Registry.DetachAll(conn)
	} else if o.Registry.Detach(conn, meeting) {
		meetings = []domain.MeetingID{meeting}
	}
	o.leaveRooms(conn, meetings)
	_ = o.send(conn, core.EvLeft, nil)
}

// Disconnect releases everything the connection may hold: presence,
// memberships and the transport entry. Safe to call for a connection that
// never registered or joined, and safe to call twice.
func (o *Orchestrator) Disconnect(conn domain.ConnID) {
	meetings := o.Registry.Unbind(conn)
	o.leaveRooms(conn, meetings)
	log.Info().Str("module", "orch").Str("conn", string(conn)).Int("rooms", len(meetings)).Msg("disconnected")
}

func (o *Orchestrator) leaveRooms(conn domain.ConnID, meetings []domain.MeetingID) {
	if len(meetings) == 0 {
		return
	}
	results := o.Rooms.Leave(conn, meetings, func(id domain.MeetingID) core.Frame {
		return core.MustEncode(core.EvUserLeft, core.UserLeft{ConnectionID: conn, MeetingID: id})
	})
	for _, r := range results {
		o.settle(r.MeetingID, r.Published)
		if r.Emptied {
			o.meetingEmptied(r.MeetingID)
		}
	}
}

func (o *Orchestrator) meetingEmptied(id domain.MeetingID) {
	if o.Meetings == nil || o.opts.KeepOnEmpty {
		return
	}
	o.async("meeting_emptied", func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
		defer cancel()
		if err := o.Meetings.MeetingEmptied(ctx, id); err != nil {
			log.Error().Err(err).Str("module", "orch").Str("meeting", string(id)).Msg("meeting end bookkeeping failed")
			return
		}
		log.Info().Str("module", "orch").Str("meeting", string(id)).Msg("meeting ended")
	})
}
