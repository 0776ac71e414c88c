package core

import (
	"context"
	"errors"

	"github.com/dkeye/Huddle/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// MeetingDirectory is the persisted view of meetings the hub consults.
type MeetingDirectory interface {
	// Exists gates joins.
	Exists(ctx context.Context, id domain.MeetingID) (bool, error)
	// MeetingEmptied is called once when the last participant of a live room leaves.
	MeetingEmptied(ctx context.Context, id domain.MeetingID) error
}

// MeetingStore adds the CRUD surface used by the REST adapter.
type MeetingStore interface {
	MeetingDirectory
	CreateMeeting(ctx context.Context, m domain.Meeting) error
	GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error)
}

type TranscriptStore interface {
	AppendTranscript(ctx context.Context, line domain.TranscriptLine) error
	// TranscriptHistory returns lines ordered by timestamp, oldest first.
	TranscriptHistory(ctx context.Context, id domain.MeetingID) ([]domain.TranscriptLine, error)
}

type PersonaStore interface {
	// SystemPrompt returns ok=false when the user has no persona.
	SystemPrompt(ctx context.Context, userID domain.UserID) (prompt string, ok bool, err error)
	// SaveSystemPrompt replaces the persona of userID.
	SaveSystemPrompt(ctx context.Context, userID domain.UserID, prompt string) error
}

type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Store bundles every persistence collaborator; both store adapters implement it.
type Store interface {
	MeetingStore
	TranscriptStore
	PersonaStore
	Close(ctx context.Context) error
}
