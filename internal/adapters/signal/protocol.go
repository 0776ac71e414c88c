package signal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	errBadPayload  = "bad_payload"
	errRateLimited = "rate_limited"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type registerPayload struct {
	UserID string `json:"userId" validate:"required,max=64"`
}

type initiateCallPayload struct {
	TargetUserID string `json:"targetUserId" validate:"required,max=64"`
	CallerName   string `json:"callerName" validate:"max=64"`
	CallerID     string `json:"callerId" validate:"max=64"`
	MeetingID    string `json:"meetingId" validate:"max=64"`
}

type acceptCallPayload struct {
	CallerConnectionID string `json:"callerConnectionId" validate:"required,max=64"`
	MeetingID          string `json:"meetingId" validate:"max=64"`
}

type declineCallPayload struct {
	CallerConnectionID string `json:"callerConnectionId" validate:"required,max=64"`
}

type joinPayload struct {
	MeetingID string `json:"meetingId" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=64"`
	Role      string `json:"role" validate:"omitempty,oneof=host guest"`
}

type leavePayload struct {
	MeetingID string `json:"meetingId" validate:"max=64"`
}

type signalPayload struct {
	To   string          `json:"to" validate:"required,max=64"`
	Type string          `json:"type" validate:"required,max=32"`
	Data json.RawMessage `json:"data"`
}

type chatPayload struct {
	MeetingID string `json:"meetingId" validate:"required,max=64"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type reactionPayload struct {
	Emoji string `json:"emoji" validate:"required,max=32"`
}

type captionPayload struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type delegatePayload struct {
	MeetingID string `json:"meetingId" validate:"required,max=64"`
	Name      string `json:"name" validate:"required,max=64"`
	Style     string `json:"style" validate:"max=500"`
	UserID    string `json:"userId" validate:"max=64"`
}

type transcriptsPayload struct {
	MeetingID string `json:"meetingId" validate:"required,max=64"`
}

// decode unmarshals and validates one inbound payload. The error text is
// safe to send back to the client.
func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errors.New(errBadPayload)
	}
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
			}
			return p, fmt.Errorf("invalid_payload: %s", strings.Join(fields, ","))
		}
		return p, errors.New(errBadPayload)
	}
	return p, nil
}
