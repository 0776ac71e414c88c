// Package storetest is the behaviour every core.Store backend must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s. Each subtest uses fresh ids so a shared database is fine.
func Run(t *testing.T, s core.Store) {
	t.Helper()
	suffix := time.Now().Format("150405.000000000")

	t.Run("meeting lifecycle", func(t *testing.T) {
		ctx := context.Background()
		id := domain.MeetingID("life-" + suffix)

		ok, err := s.Exists(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = s.GetMeeting(ctx, id)
		assert.ErrorIs(t, err, core.ErrNotFound)

		created := time.Now().UTC().Truncate(time.Millisecond)
		require.NoError(t, s.CreateMeeting(ctx, domain.Meeting{
			ID:        id,
			HostID:    "host-1",
			Type:      "instant",
			Status:    domain.MeetingActive,
			CreatedAt: created,
		}))
		assert.ErrorIs(t, s.CreateMeeting(ctx, domain.Meeting{ID: id, Status: domain.MeetingActive, CreatedAt: created}), core.ErrDuplicate)

		ok, err = s.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		m, err := s.GetMeeting(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.UserID("host-1"), m.HostID)
		assert.Equal(t, "instant", m.Type)
		assert.Equal(t, domain.MeetingActive, m.Status)
		assert.True(t, created.Equal(m.CreatedAt))
		assert.Nil(t, m.EndedAt)

		require.NoError(t, s.MeetingEmptied(ctx, id))
		m, err = s.GetMeeting(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.MeetingEnded, m.Status)
		require.NotNil(t, m.EndedAt)

		// Ended meetings stay joinable.
		ok, err = s.Exists(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("emptied unknown meeting", func(t *testing.T) {
		err := s.MeetingEmptied(context.Background(), domain.MeetingID("ghost-"+suffix))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("transcripts ordered by timestamp", func(t *testing.T) {
		ctx := context.Background()
		id := domain.MeetingID("tr-" + suffix)
		base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

		lines := []domain.TranscriptLine{
			{MeetingID: id, Speaker: "Bob", Text: "second", Timestamp: base.Add(2 * time.Second)},
			{MeetingID: id, Speaker: "Alice", Text: "first", Timestamp: base.Add(time.Second)},
			{MeetingID: id, Speaker: "Alice", Text: "third", Timestamp: base.Add(3 * time.Second)},
			{MeetingID: "other-" + id, Speaker: "Eve", Text: "elsewhere", Timestamp: base},
		}
		for _, l := range lines {
			require.NoError(t, s.AppendTranscript(ctx, l))
		}

		got, err := s.TranscriptHistory(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "first", got[0].Text)
		assert.Equal(t, "second", got[1].Text)
		assert.Equal(t, "third", got[2].Text)
		assert.Equal(t, "Bob", got[1].Speaker)
		assert.True(t, base.Add(time.Second).Equal(got[0].Timestamp))

		empty, err := s.TranscriptHistory(ctx, domain.MeetingID("none-"+suffix))
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("personas", func(t *testing.T) {
		ctx := context.Background()
		uid := domain.UserID("user-" + suffix)

		_, ok, err := s.SystemPrompt(ctx, uid)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.SaveSystemPrompt(ctx, uid, "Be brief."))
		require.NoError(t, s.SaveSystemPrompt(ctx, uid, "Be very brief."))

		p, ok, err := s.SystemPrompt(ctx, uid)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "Be very brief.", p)
	})
}
