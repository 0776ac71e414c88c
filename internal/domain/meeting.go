package domain

import (
	"errors"
	"math/rand/v2"
	"regexp"
	"time"
)

type MeetingID string

type MeetingStatus string

const (
	MeetingActive MeetingStatus = "active"
	MeetingEnded  MeetingStatus = "ended"
)

var ErrInvalidMeetingID = errors.New("invalid meeting id")

var meetingCodeRe = regexp.MustCompile(`^[a-z]{3}-[a-z]{4}-[a-z]{3}$`)

// Meeting is the persisted record behind a room. The room itself lives only in memory.
type Meeting struct {
	ID        MeetingID     `json:"meetingId" bson:"_id"`
	HostID    UserID        `json:"hostId,omitempty" bson:"host_id,omitempty"`
	Type      string        `json:"type" bson:"type"`
	Status    MeetingStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"createdAt" bson:"created_at"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" bson:"ended_at,omitempty"`
}

const codeLetters = "abcdefghijklmnopqrstuvwxyz"

// NewMeetingCode returns a fresh code in the abc-defg-hij shape.
func NewMeetingCode() MeetingID {
	b := make([]byte, 0, 12)
	for i, n := range []int{3, 4, 3} {
		if i > 0 {
			b = append(b, '-')
		}
		for range n {
			b = append(b, codeLetters[rand.IntN(len(codeLetters))])
		}
	}
	return MeetingID(b)
}

// IsMeetingCode reports whether id has the shape produced by NewMeetingCode.
func IsMeetingCode(id MeetingID) bool {
	return meetingCodeRe.MatchString(string(id))
}

// CheckMeetingID rejects ids that can never name a stored meeting.
func CheckMeetingID(id MeetingID) error {
	if id == "" || len(id) > MaxUserIDLen {
		return ErrInvalidMeetingID
	}
	return nil
}
