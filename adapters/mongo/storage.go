// Package mongo provides a MongoDB-backed storage repository, selected at
// startup when MONGODB_URI is set. The wire entities carry json tags, so
// documents are stored via explicit bson maps keyed by the entity ID.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// Storage implements repositories.Storage on MongoDB collections.
type Storage struct {
	sessions      *mongo.Collection
	speakers      *mongo.Collection
	messages      *mongo.Collection
	personalities *mongo.Collection
	analytics     *mongo.Collection
	memories      *mongo.Collection
}

var _ repositories.Storage = (*Storage)(nil)

// NewStorage creates the repository over the given database.
func NewStorage(client *Client) *Storage {
	db := client.Database
	return &Storage{
		sessions:      db.Collection("sessions"),
		speakers:      db.Collection("speakers"),
		messages:      db.Collection("messages"),
		personalities: db.Collection("personalities"),
		analytics:     db.Collection("analytics"),
		memories:      db.Collection("memories"),
	}
}

func (s *Storage) CreateSession(ctx context.Context, session *entities.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	_, err := s.sessions.InsertOne(ctx, bson.M{
		"_id":        session.ID,
		"title":      session.Title,
		"status":     session.Status,
		"created_at": session.CreatedAt,
		"updated_at": session.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*entities.Session, error) {
	var doc struct {
		ID        string                 `bson:"_id"`
		Title     string                 `bson:"title"`
		Status    entities.SessionStatus `bson:"status"`
		CreatedAt time.Time              `bson:"created_at"`
		UpdatedAt time.Time              `bson:"updated_at"`
	}
	err := s.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &entities.Session{
		ID:        doc.ID,
		Title:     doc.Title,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Storage) UpdateSession(ctx context.Context, session *entities.Session) error {
	session.UpdatedAt = time.Now()
	result, err := s.sessions.UpdateOne(ctx, bson.M{"_id": session.ID}, bson.M{"$set": bson.M{
		"title":      session.Title,
		"status":     session.Status,
		"updated_at": session.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*entities.Session, error) {
	cursor, err := s.sessions.Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*entities.Session
	for cursor.Next(ctx) {
		var doc struct {
			ID        string                 `bson:"_id"`
			Title     string                 `bson:"title"`
			Status    entities.SessionStatus `bson:"status"`
			CreatedAt time.Time              `bson:"created_at"`
			UpdatedAt time.Time              `bson:"updated_at"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		out = append(out, &entities.Session{
			ID:        doc.ID,
			Title:     doc.Title,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return out, cursor.Err()
}

func (s *Storage) CreateSpeaker(ctx context.Context, speaker *entities.Speaker) error {
	if speaker.CreatedAt.IsZero() {
		speaker.CreatedAt = time.Now()
	}
	_, err := s.speakers.InsertOne(ctx, bson.M{
		"_id":        speaker.ID,
		"session_id": speaker.SessionID,
		"name":       speaker.Name,
		"role":       speaker.Role,
		"created_at": speaker.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create speaker: %w", err)
	}
	return nil
}

func (s *Storage) GetSpeaker(ctx context.Context, id string) (*entities.Speaker, error) {
	var doc struct {
		ID        string    `bson:"_id"`
		SessionID string    `bson:"session_id"`
		Name      string    `bson:"name"`
		Role      string    `bson:"role"`
		CreatedAt time.Time `bson:"created_at"`
	}
	err := s.speakers.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get speaker: %w", err)
	}
	return &entities.Speaker{
		ID:        doc.ID,
		SessionID: doc.SessionID,
		Name:      doc.Name,
		Role:      doc.Role,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (s *Storage) ListSpeakers(ctx context.Context, sessionID string) ([]*entities.Speaker, error) {
	cursor, err := s.speakers.Find(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to list speakers: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*entities.Speaker
	for cursor.Next(ctx) {
		var doc struct {
			ID        string    `bson:"_id"`
			SessionID string    `bson:"session_id"`
			Name      string    `bson:"name"`
			Role      string    `bson:"role"`
			CreatedAt time.Time `bson:"created_at"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode speaker: %w", err)
		}
		out = append(out, &entities.Speaker{
			ID:        doc.ID,
			SessionID: doc.SessionID,
			Name:      doc.Name,
			Role:      doc.Role,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, cursor.Err()
}

func (s *Storage) CreateMessage(ctx context.Context, message *entities.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	_, err := s.messages.InsertOne(ctx, bson.M{
		"_id":             message.ID,
		"session_id":      message.SessionID,
		"speaker_id":      message.SpeakerID,
		"text":            message.Text,
		"confidence":      message.Confidence,
		"is_ai_generated": message.IsAIGenerated,
		"created_at":      message.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *Storage) ListMessages(ctx context.Context, sessionID string, limit int) ([]*entities.Message, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var newestFirst []*entities.Message
	for cursor.Next(ctx) {
		var doc struct {
			ID            string    `bson:"_id"`
			SessionID     string    `bson:"session_id"`
			SpeakerID     string    `bson:"speaker_id"`
			Text          string    `bson:"text"`
			Confidence    float64   `bson:"confidence"`
			IsAIGenerated bool      `bson:"is_ai_generated"`
			CreatedAt     time.Time `bson:"created_at"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		newestFirst = append(newestFirst, &entities.Message{
			ID:            doc.ID,
			SessionID:     doc.SessionID,
			SpeakerID:     doc.SpeakerID,
			Text:          doc.Text,
			Confidence:    doc.Confidence,
			IsAIGenerated: doc.IsAIGenerated,
			CreatedAt:     doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	// The interface contract is oldest first.
	out := make([]*entities.Message, len(newestFirst))
	for i, message := range newestFirst {
		out[len(newestFirst)-1-i] = message
	}
	return out, nil
}

func (s *Storage) GetPersonality(ctx context.Context, sessionID string) (*entities.Personality, error) {
	var doc struct {
		SessionID string    `bson:"_id"`
		Name      string    `bson:"name"`
		VoiceID   string    `bson:"voice_id"`
		Style     string    `bson:"style"`
		Humor     float64   `bson:"humor"`
		Energy    float64   `bson:"energy"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	err := s.personalities.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get personality: %w", err)
	}
	return &entities.Personality{
		SessionID: doc.SessionID,
		Name:      doc.Name,
		VoiceID:   doc.VoiceID,
		Style:     doc.Style,
		Humor:     doc.Humor,
		Energy:    doc.Energy,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Storage) UpdatePersonality(ctx context.Context, personality *entities.Personality) error {
	if personality.UpdatedAt.IsZero() {
		personality.UpdatedAt = time.Now()
	}
	_, err := s.personalities.UpdateOne(ctx,
		bson.M{"_id": personality.SessionID},
		bson.M{"$set": bson.M{
			"name":       personality.Name,
			"voice_id":   personality.VoiceID,
			"style":      personality.Style,
			"humor":      personality.Humor,
			"energy":     personality.Energy,
			"updated_at": personality.UpdatedAt,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update personality: %w", err)
	}
	return nil
}

func (s *Storage) GetAnalytics(ctx context.Context, sessionID string) (*entities.Analytics, error) {
	var doc struct {
		SessionID        string    `bson:"_id"`
		TotalTranscripts int       `bson:"total_transcripts"`
		TotalResponses   int       `bson:"total_responses"`
		ResponseTimesMs  []int64   `bson:"response_times_ms"`
		UpdatedAt        time.Time `bson:"updated_at"`
	}
	err := s.analytics.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analytics: %w", err)
	}
	return &entities.Analytics{
		SessionID:        doc.SessionID,
		TotalTranscripts: doc.TotalTranscripts,
		TotalResponses:   doc.TotalResponses,
		ResponseTimesMs:  doc.ResponseTimesMs,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func (s *Storage) UpdateAnalytics(ctx context.Context, analytics *entities.Analytics) error {
	if analytics.UpdatedAt.IsZero() {
		analytics.UpdatedAt = time.Now()
	}
	_, err := s.analytics.UpdateOne(ctx,
		bson.M{"_id": analytics.SessionID},
		bson.M{"$set": bson.M{
			"total_transcripts": analytics.TotalTranscripts,
			"total_responses":   analytics.TotalResponses,
			"response_times_ms": analytics.ResponseTimesMs,
			"updated_at":        analytics.UpdatedAt,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update analytics: %w", err)
	}
	return nil
}

func (s *Storage) GetSessionMemory(ctx context.Context, sessionID string) (*entities.SessionMemory, error) {
	var doc struct {
		SessionID string    `bson:"_id"`
		Summary   string    `bson:"summary"`
		Topics    []string  `bson:"topics"`
		UpdatedAt time.Time `bson:"updated_at"`
	}
	err := s.memories.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session memory: %w", err)
	}
	return &entities.SessionMemory{
		SessionID: doc.SessionID,
		Summary:   doc.Summary,
		Topics:    doc.Topics,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Storage) UpdateSessionMemory(ctx context.Context, memory *entities.SessionMemory) error {
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = time.Now()
	}
	_, err := s.memories.UpdateOne(ctx,
		bson.M{"_id": memory.SessionID},
		bson.M{"$set": bson.M{
			"summary":    memory.Summary,
			"topics":     memory.Topics,
			"updated_at": memory.UpdatedAt,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to update session memory: %w", err)
	}
	return nil
}
