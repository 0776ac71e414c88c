package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const callFailedOffline = "offline"

// RegisterSession records that userID is reachable on conn.
func (o *Orchestrator) RegisterSession(conn domain.ConnID, userID domain.UserID) {
	o.Registry.Register(conn, userID)
}

// Relay forwards a signaling payload to one connection. The target is
// trusted as given; unknown targets are dropped silently.
func (o *Orchestrator) Relay(from, to domain.ConnID, payloadType string, data json.RawMessage) {
	f, err := core.Encode(core.EvSignal, core.Signal{From: from, Type: payloadType, Data: data})
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(from)).Msg("signal encode")
		return
	}
	if err := o.Registry.Send(to, f); err != nil {
		o.logUndelivered("signal", to, err)
	}
}

// InitiateCall rings targetUserID. No ring state is kept; the callee answers
// using the caller connection id carried in receiving_call.
func (o *Orchestrator) InitiateCall(conn domain.ConnID, callerUserID domain.UserID, callerName string, targetUserID domain.UserID, meeting domain.MeetingID) {
	if callerUserID == "" {
		callerUserID, _ = o.Registry.UserOf(conn)
	}
	target, ok := o.Registry.Resolve(targetUserID)
	if ok {
		err := o.send(target, core.EvReceivingCall, core.ReceivingCall{
			CallerUserID:       callerUserID,
			CallerName:         callerName,
			CallerConnectionID: conn,
			MeetingID:          meeting,
		})
		if err == nil {
			log.Info().Str("module", "orch").Str("caller", string(conn)).Str("target_user", string(targetUserID)).Msg("ringing")
			return
		}
		if !errors.Is(err, app.ErrUnknownConn) {
			o.logUndelivered("receiving_call", target, err)
			return
		}
		// Presence pointed at a dead connection.
		o.Registry.Unregister(target)
	}
	_ = o.send(conn, core.EvCallFailed, core.CallFailed{Reason: callFailedOffline})
}

func (o *Orchestrator) AcceptCall(callerConn domain.ConnID, meeting domain.MeetingID) {
	if err := o.send(callerConn, core.EvCallAccepted, core.CallAccepted{MeetingID: meeting}); err != nil {
		o.logUndelivered("call_accepted", callerConn, err)
	}
}

func (o *Orchestrator) DeclineCall(callerConn domain.ConnID) {
	if err := o.send(callerConn, core.EvCallDeclined, struct{}{}); err != nil {
		o.logUndelivered("call_declined", callerConn, err)
	}
}

func (o *Orchestrator) logUndelivered(what string, to domain.ConnID, err error) {
	ev := log.Debug()
	if !errors.Is(err, app.ErrUnknownConn) {
		ev = log.Warn()
	}
	ev.Err(err).Str("module", "orch").Str("type", what).Str("to", string(to)).Msg("not delivered")
}
