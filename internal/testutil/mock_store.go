package testutil

import (
	"context"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockStore is a thread-safe in-memory meeting directory, transcript store
// and persona store for testing.
type MockStore struct {
	mu sync.Mutex

	Meetings    map[domain.MeetingID]bool
	Lines       []domain.TranscriptLine
	Personas    map[domain.UserID]string
	EmptiedRuns map[domain.MeetingID]int

	ExistsErr  error
	EmptiedErr error
	AppendErr  error
	HistoryErr error
	PersonaErr error

	// Appended, when set, receives every line passed to AppendTranscript.
	Appended chan domain.TranscriptLine
}

func NewMockStore(meetings ...domain.MeetingID) *MockStore {
	m := &MockStore{
		Meetings:    make(map[domain.MeetingID]bool),
		Personas:    make(map[domain.UserID]string),
		EmptiedRuns: make(map[domain.MeetingID]int),
	}
	for _, id := range meetings {
		m.Meetings[id] = true
	}
	return m
}

func (m *MockStore) AddMeeting(id domain.MeetingID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Meetings[id] = true
}

func (m *MockStore) Exists(_ context.Context, id domain.MeetingID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.Meetings[id], nil
}

func (m *MockStore) MeetingEmptied(_ context.Context, id domain.MeetingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmptiedRuns[id]++
	return m.EmptiedErr
}

func (m *MockStore) EmptiedCount(id domain.MeetingID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EmptiedRuns[id]
}

func (m *MockStore) AppendTranscript(_ context.Context, line domain.TranscriptLine) error {
	m.mu.Lock()
	if m.AppendErr != nil {
		m.mu.Unlock()
		return m.AppendErr
	}
	m.Lines = append(m.Lines, line)
	ch := m.Appended
	m.mu.Unlock()
	if ch != nil {
		ch <- line
	}
	return nil
}

func (m *MockStore) TranscriptHistory(_ context.Context, id domain.MeetingID) ([]domain.TranscriptLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HistoryErr != nil {
		return nil, m.HistoryErr
	}
	var out []domain.TranscriptLine
	for _, l := range m.Lines {
		if l.MeetingID == id {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MockStore) SystemPrompt(_ context.Context, userID domain.UserID) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersonaErr != nil {
		return "", false, m.PersonaErr
	}
	p, ok := m.Personas[userID]
	return p, ok, nil
}

func (m *MockStore) SaveSystemPrompt(_ context.Context, userID domain.UserID, prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Personas[userID] = prompt
	return nil
}

// MockGenerator is a testify mock of core.TextGenerator.
type MockGenerator struct {
	mock.Mock
}

func (g *MockGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	args := g.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}
