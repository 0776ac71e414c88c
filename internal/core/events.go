package core

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

// Outbound event names.
const (
	EvReceivingCall     = "receiving_call"
	EvCallFailed        = "call_failed"
	EvCallAccepted      = "call_accepted"
	EvCallDeclined      = "call_declined"
	EvRoomInfo          = "room_info"
	EvUserJoined        = "user_joined"
	EvUserLeft          = "user_left"
	EvSignal            = "signal"
	EvChatMessage       = "chat_message"
	EvReaction          = "reaction"
	EvHandRaised        = "hand_raised"
	EvCaption           = "caption_broadcast"
	EvTranscriptHistory = "transcript_history"
	EvError             = "error"
	EvPong              = "pong"
	EvLeft              = "left"
)

// Reserved synthetic sender ids for chat messages not sent by a connection.
const (
	SystemSenderID   domain.ConnID = "system"
	DelegateSenderID domain.ConnID = "ai-delegate"
)

// Envelope is the wire frame: {"type": ..., "payload": {...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ReceivingCall struct {
	CallerUserID       domain.UserID    `json:"callerUserId"`
	CallerName         string           `json:"callerName"`
	CallerConnectionID domain.ConnID    `json:"callerConnectionId"`
	MeetingID          domain.MeetingID `json:"meetingId"`
}

type CallFailed struct {
	Reason string `json:"reason"`
}

type CallAccepted struct {
	MeetingID domain.MeetingID `json:"meetingId"`
}

type RoomUser struct {
	ConnectionID domain.ConnID `json:"connectionId"`
	Name         string        `json:"name"`
}

type RoomInfo struct {
	MeetingID domain.MeetingID `json:"meetingId"`
	Users     []RoomUser       `json:"users"`
}

type UserJoined struct {
	ConnectionID domain.ConnID `json:"connectionId"`
	Name         string        `json:"name"`
	Role         domain.Role   `json:"role"`
}

type UserLeft struct {
	ConnectionID domain.ConnID    `json:"connectionId"`
	MeetingID    domain.MeetingID `json:"meetingId"`
}

type Signal struct {
	From domain.ConnID   `json:"from"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ChatMessage struct {
	From         string        `json:"from"`
	Message      string        `json:"message"`
	ConnectionID domain.ConnID `json:"connectionId"`
	IsAI         bool          `json:"isAi,omitempty"`
	IsSystem     bool          `json:"isSystem,omitempty"`
}

type Reaction struct {
	Emoji        string        `json:"emoji"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type HandRaised struct {
	Name         string        `json:"name"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type Caption struct {
	From         string        `json:"from"`
	Text         string        `json:"text"`
	ConnectionID domain.ConnID `json:"connectionId"`
}

type TranscriptHistory struct {
	MeetingID domain.MeetingID        `json:"meetingId"`
	History   []domain.TranscriptLine `json:"history"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Encode builds a wire frame. Payload types above always marshal, so an
// error here means a caller passed something exotic; it is returned for logging.
func Encode(eventType string, payload any) (Frame, error) {
	env := Envelope{Type: eventType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return Frame(b), nil
}

// MustEncode is Encode for the fixed payload types in this file.
func MustEncode(eventType string, payload any) Frame {
	f, err := Encode(eventType, payload)
	if err != nil {
		panic(err)
	}
	return f
}
