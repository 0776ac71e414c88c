// Package sqlitestore persists meetings, transcripts and personas in a
// single SQLite file.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ core.Store = (*Store)(nil)

// Open creates the database file if needed and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Str("module", "sqlitestore").Str("path", path).Msg("opened")
	return &Store{db: db, path: path, now: time.Now}, nil
}

func (s *Store) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CreateMeeting(ctx context.Context, m domain.Meeting) error {
	if m.Status == "" {
		m.Status = domain.MeetingActive
	}
	if m.Type == "" {
		m.Type = "instant"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meetings (id, host_id, type, status, created_at, ended_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(m.ID),
		nullableString(string(m.HostID)),
		m.Type,
		string(m.Status),
		formatTime(m.CreatedAt),
		nullableTime(m.EndedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.ErrDuplicate
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var (
		m               domain.Meeting
		hostID, endedAt sql.NullString
		status, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, host_id, type, status, created_at, ended_at FROM meetings WHERE id = ?`, string(id),
	).Scan(&m.ID, &hostID, &m.Type, &status, &created, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Meeting{}, core.ErrNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("get meeting: %w", err)
	}
	m.HostID = domain.UserID(hostID.String)
	m.Status = domain.MeetingStatus(status)
	if m.CreatedAt, err = parseTime(created); err != nil {
		return domain.Meeting{}, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return domain.Meeting{}, err
		}
		m.EndedAt = &t
	}
	return m, nil
}

func (s *Store) Exists(ctx context.Context, id domain.MeetingID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM meetings WHERE id = ?`, string(id)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("meeting exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MeetingEmptied(ctx context.Context, id domain.MeetingID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE meetings SET status = ?, ended_at = ? WHERE id = ?`,
		string(domain.MeetingEnded), formatTime(s.now()), string(id),
	)
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) AppendTranscript(ctx context.Context, line domain.TranscriptLine) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcripts (meeting_id, speaker, text, ts) VALUES (?, ?, ?, ?)`,
		string(line.MeetingID), line.Speaker, line.Text, line.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (s *Store) TranscriptHistory(ctx context.Context, id domain.MeetingID) ([]domain.TranscriptLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT speaker, text, ts FROM transcripts WHERE meeting_id = ? ORDER BY ts, id`, string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	out := []domain.TranscriptLine{}
	for rows.Next() {
		var (
			line domain.TranscriptLine
			ts   int64
		)
		if err := rows.Scan(&line.Speaker, &line.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		line.MeetingID = id
		line.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}
	return out, nil
}

func (s *Store) SystemPrompt(ctx context.Context, userID domain.UserID) (string, bool, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx,
		`SELECT generated_prompt FROM personas WHERE user_id = ?`, string(userID),
	).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get persona: %w", err)
	}
	return prompt, prompt != "", nil
}

func (s *Store) SaveSystemPrompt(ctx context.Context, userID domain.UserID, prompt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personas (user_id, generated_prompt, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(user_id) DO UPDATE SET generated_prompt = excluded.generated_prompt, updated_at = excluded.updated_at`,
		string(userID), prompt, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", v, err)
	}
	return t, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
