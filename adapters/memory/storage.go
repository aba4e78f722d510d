// Package memory provides the ephemeral in-memory storage repository. It
// is the default backend: the system makes no durability promises.
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// Storage is a mutex-guarded in-memory implementation of
// repositories.Storage.
type Storage struct {
	mu sync.RWMutex

	sessions      map[string]*entities.Session
	speakers      map[string]*entities.Speaker
	messages      map[string][]*entities.Message // keyed by session ID
	personalities map[string]*entities.Personality
	analytics     map[string]*entities.Analytics
	memories      map[string]*entities.SessionMemory

	logger   *zap.Logger
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ repositories.Storage = (*Storage)(nil)

// New creates an empty store.
func New(logger *zap.Logger) *Storage {
	return &Storage{
		sessions:      make(map[string]*entities.Session),
		speakers:      make(map[string]*entities.Speaker),
		messages:      make(map[string][]*entities.Message),
		personalities: make(map[string]*entities.Personality),
		analytics:     make(map[string]*entities.Analytics),
		memories:      make(map[string]*entities.SessionMemory),
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// StartSweep launches a background loop that marks sessions idle for
// longer than maxIdle as ended. Stop it with StopSweep.
func (s *Storage) StartSweep(maxIdle time.Duration) {
	go func() {
		ticker := time.NewTicker(maxIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweep(maxIdle)
			}
		}
	}()
	s.logger.Info("Session sweep started", zap.Duration("maxIdle", maxIdle))
}

// StopSweep stops the background sweep loop.
func (s *Storage) StopSweep() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Storage) sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.Status == entities.SessionStatusActive && session.UpdatedAt.Before(cutoff) {
			session.Status = entities.SessionStatusEnded
			s.logger.Info("Ended idle session", zap.String("sessionID", session.ID))
		}
	}
}

func (s *Storage) CreateSession(ctx context.Context, session *entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *Storage) UpdateSession(ctx context.Context, session *entities.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return repositories.ErrNotFound
	}
	session.UpdatedAt = time.Now()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *Storage) ListSessions(ctx context.Context) ([]*entities.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		cp := *session
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Storage) CreateSpeaker(ctx context.Context, speaker *entities.Speaker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speaker.CreatedAt.IsZero() {
		speaker.CreatedAt = time.Now()
	}
	cp := *speaker
	s.speakers[speaker.ID] = &cp
	return nil
}

func (s *Storage) GetSpeaker(ctx context.Context, id string) (*entities.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	speaker, ok := s.speakers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *speaker
	return &cp, nil
}

func (s *Storage) ListSpeakers(ctx context.Context, sessionID string) ([]*entities.Speaker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.Speaker
	for _, speaker := range s.speakers {
		if speaker.SessionID == sessionID {
			cp := *speaker
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Storage) CreateMessage(ctx context.Context, message *entities.Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	cp := *message
	s.messages[message.SessionID] = append(s.messages[message.SessionID], &cp)
	return nil
}

func (s *Storage) ListMessages(ctx context.Context, sessionID string, limit int) ([]*entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[sessionID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]*entities.Message, 0, len(all)-start)
	for _, message := range all[start:] {
		cp := *message
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Storage) GetPersonality(ctx context.Context, sessionID string) (*entities.Personality, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personality, ok := s.personalities[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *personality
	return &cp, nil
}

func (s *Storage) UpdatePersonality(ctx context.Context, personality *entities.Personality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if personality.UpdatedAt.IsZero() {
		personality.UpdatedAt = time.Now()
	}
	cp := *personality
	s.personalities[personality.SessionID] = &cp
	return nil
}

func (s *Storage) GetAnalytics(ctx context.Context, sessionID string) (*entities.Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	analytics, ok := s.analytics[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *analytics
	cp.ResponseTimesMs = append([]int64(nil), analytics.ResponseTimesMs...)
	return &cp, nil
}

func (s *Storage) UpdateAnalytics(ctx context.Context, analytics *entities.Analytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *analytics
	cp.ResponseTimesMs = append([]int64(nil), analytics.ResponseTimesMs...)
	s.analytics[analytics.SessionID] = &cp
	return nil
}

func (s *Storage) GetSessionMemory(ctx context.Context, sessionID string) (*entities.SessionMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memory, ok := s.memories[sessionID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *memory
	return &cp, nil
}

func (s *Storage) UpdateSessionMemory(ctx context.Context, memory *entities.SessionMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if memory.UpdatedAt.IsZero() {
		memory.UpdatedAt = time.Now()
	}
	cp := *memory
	s.memories[memory.SessionID] = &cp
	return nil
}
