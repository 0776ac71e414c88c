// Package mongostore is the MongoDB backend: active_meetings, transcripts
// and personas collections.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	meetingsCollection    = "active_meetings"
	transcriptsCollection = "transcripts"
	personasCollection    = "personas"
)

type Store struct {
	client      *mongo.Client
	meetings    *mongo.Collection
	transcripts *mongo.Collection
	personas    *mongo.Collection
	now         func() time.Time
}

var _ core.Store = (*Store)(nil)

type personaDoc struct {
	UserID          string    `bson:"user_id"`
	GeneratedPrompt string    `bson:"generated_prompt"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

// Open connects, pings and ensures indexes.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:      client,
		meetings:    db.Collection(meetingsCollection),
		transcripts: db.Collection(transcriptsCollection),
		personas:    db.Collection(personasCollection),
		now:         time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	log.Info().Str("module", "mongostore").Str("db", database).Msg("connected")
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.transcripts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "meeting_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("transcripts index: %w", err)
	}
	_, err = s.personas.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("personas index: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) CreateMeeting(ctx context.Context, m domain.Meeting) error {
	if m.Status == "" {
		m.Status = domain.MeetingActive
	}
	if m.Type == "" {
		m.Type = "instant"
	}
	m.CreatedAt = m.CreatedAt.UTC()
	if _, err := s.meetings.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.ErrDuplicate
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *Store) GetMeeting(ctx context.Context, id domain.MeetingID) (domain.Meeting, error) {
	var m domain.Meeting
	err := s.meetings.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Meeting{}, core.ErrNotFound
	}
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("find meeting: %w", err)
	}
	return m, nil
}

func (s *Store) Exists(ctx context.Context, id domain.MeetingID) (bool, error) {
	n, err := s.meetings.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count meeting: %w", err)
	}
	return n > 0, nil
}

func (s *Store) MeetingEmptied(ctx context.Context, id domain.MeetingID) error {
	res, err := s.meetings.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"status": domain.MeetingEnded, "ended_at": s.now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) AppendTranscript(ctx context.Context, line domain.TranscriptLine) error {
	line.Timestamp = line.Timestamp.UTC()
	if _, err := s.transcripts.InsertOne(ctx, line); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (s *Store) TranscriptHistory(ctx context.Context, id domain.MeetingID) ([]domain.TranscriptLine, error) {
	cur, err := s.transcripts.Find(ctx,
		bson.M{"meeting_id": string(id)},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("find transcripts: %w", err)
	}
	out := []domain.TranscriptLine{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode transcripts: %w", err)
	}
	return out, nil
}

func (s *Store) SystemPrompt(ctx context.Context, userID domain.UserID) (string, bool, error) {
	var doc personaDoc
	err := s.personas.FindOne(ctx, bson.M{"user_id": string(userID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find persona: %w", err)
	}
	return doc.GeneratedPrompt, doc.GeneratedPrompt != "", nil
}

func (s *Store) SaveSystemPrompt(ctx context.Context, userID domain.UserID, prompt string) error {
	_, err := s.personas.UpdateOne(ctx,
		bson.M{"user_id": string(userID)},
		bson.M{"$set": personaDoc{UserID: string(userID), GeneratedPrompt: prompt, UpdatedAt: s.now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save persona: %w", err)
	}
	return nil
}
