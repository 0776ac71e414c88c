// Package memstore keeps meetings, transcripts and personas in process
// memory. Used for the "memory" driver and in tests.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
)

type Store struct {
	mu          sync.RWMutex
	meetings    map[domain.MeetingID]domain.Meeting
	transcripts map[domain.MeetingID][]domain.TranscriptLine
	personas    map[domain.UserID]string
	now         func() time.Time
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		meetings:    make(map[domain.MeetingID]domain.Meeting),
		transcripts: make(map[domain.MeetingID][]domain.TranscriptLine),
		personas:    make(map[domain.UserID]string),
		now:         time.Now,
	}
}

func (s *Store) CreateMeeting(_ context.Context, m domain.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; ok {
		return core.ErrDuplicate
	}
	s.meetings[m.ID] = m
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id domain.MeetingID) (domain.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return domain.Meeting{}, core.ErrNotFound
	}
	return m, nil
}

func (s *Store) Exists(_ context.Context, id domain.MeetingID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.meetings[id]
	return ok, nil
}

func (s *Store) MeetingEmptied(_ context.Context, id domain.MeetingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return core.ErrNotFound
	}
	now := s.now().UTC()
	m.Status = domain.MeetingEnded
	m.EndedAt = &now
	s.meetings[id] = m
	return nil
}

func (s *Store) AppendTranscript(_ context.Context, line domain.TranscriptLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[line.MeetingID] = append(s.transcripts[line.MeetingID], line)
	return nil
}

func (s *Store) TranscriptHistory(_ context.Context, id domain.MeetingID) ([]domain.TranscriptLine, error) {
	s.mu.RLock()
	out := slices.Clone(s.transcripts[id])
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b domain.TranscriptLine) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})
	if out == nil {
		out = []domain.TranscriptLine{}
	}
	return out, nil
}

func (s *Store) SystemPrompt(_ context.Context, userID domain.UserID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[userID]
	return p, ok && p != "", nil
}

func (s *Store) SaveSystemPrompt(_ context.Context, userID domain.UserID, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas[userID] = prompt
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
