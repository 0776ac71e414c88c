package domain

import "time"

// TranscriptLine is one captured utterance. Immutable once stored.
type TranscriptLine struct {
	MeetingID MeetingID `json:"meetingId" bson:"meeting_id"`
	Speaker   string    `json:"speaker" bson:"speaker"`
	Text      string    `json:"text" bson:"text"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
}
