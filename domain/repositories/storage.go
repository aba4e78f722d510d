package repositories

import (
	"context"
	"errors"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
)

// ErrNotFound is returned by storage implementations when a key does not
// resolve to an entity.
var ErrNotFound = errors.New("not found")

// Storage defines the key-based repository the hub and orchestrator consume.
// Implementations are free to be ephemeral; nothing in this system assumes
// durability.
type Storage interface {
	CreateSession(ctx context.Context, session *entities.Session) error
	GetSession(ctx context.Context, id string) (*entities.Session, error)
	UpdateSession(ctx context.Context, session *entities.Session) error
	ListSessions(ctx context.Context) ([]*entities.Session, error)

	CreateSpeaker(ctx context.Context, speaker *entities.Speaker) error
	GetSpeaker(ctx context.Context, id string) (*entities.Speaker, error)
	ListSpeakers(ctx context.Context, sessionID string) ([]*entities.Speaker, error)

	CreateMessage(ctx context.Context, message *entities.Message) error
	// ListMessages returns up to limit most recent messages for the session,
	// oldest first. limit <= 0 returns all.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*entities.Message, error)

	GetPersonality(ctx context.Context, sessionID string) (*entities.Personality, error)
	UpdatePersonality(ctx context.Context, personality *entities.Personality) error

	GetAnalytics(ctx context.Context, sessionID string) (*entities.Analytics, error)
	UpdateAnalytics(ctx context.Context, analytics *entities.Analytics) error

	GetSessionMemory(ctx context.Context, sessionID string) (*entities.SessionMemory, error)
	UpdateSessionMemory(ctx context.Context, memory *entities.SessionMemory) error
}
