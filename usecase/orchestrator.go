package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// contextWindow is how many recent messages are handed to the generator.
const contextWindow = 20

// SessionBroadcaster re-enters the router to fan a finished AI response out
// to a whole session. Implemented by the hub.
type SessionBroadcaster interface {
	BroadcastAIResponse(sessionID string, message *entities.Message, audioBase64 string)
}

// ResponseObserver records response latency samples. Implemented by the
// metrics package; optional.
type ResponseObserver interface {
	ObserveAIResponse(seconds float64)
}

// Orchestrator coordinates the AI response sequence: fetch conversation
// context, generate a reply, persist it, synthesize speech, broadcast, and
// update analytics. Failure at any step aborts the sequence without a
// partial broadcast. Calls for the same session serialize through a
// per-session mutex; overlapping calls for different sessions run
// concurrently.
type Orchestrator struct {
	storage     repositories.Storage
	generator   repositories.ResponseGenerator
	synthesizer repositories.SpeechSynthesizer
	broadcaster SessionBroadcaster
	observer    ResponseObserver
	logger      *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

// sessionLock is a ref-counted per-session mutex. The map entry is removed
// when the last holder releases it, so ended sessions leave nothing behind.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewOrchestrator creates an orchestrator. broadcaster must be set before
// the first RequestResponse call; observer may be nil.
func NewOrchestrator(
	storage repositories.Storage,
	generator repositories.ResponseGenerator,
	synthesizer repositories.SpeechSynthesizer,
	observer ResponseObserver,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		storage:     storage,
		generator:   generator,
		synthesizer: synthesizer,
		observer:    observer,
		logger:      logger,
		sessions:    make(map[string]*sessionLock),
	}
}

// SetBroadcaster injects the hub after construction; the hub and the
// orchestrator reference each other, so one side is wired late.
func (o *Orchestrator) SetBroadcaster(b SessionBroadcaster) {
	o.broadcaster = b
}

func (o *Orchestrator) acquireSession(sessionID string) *sessionLock {
	o.mu.Lock()
	lock, ok := o.sessions[sessionID]
	if !ok {
		lock = &sessionLock{}
		o.sessions[sessionID] = lock
	}
	lock.refs++
	o.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (o *Orchestrator) releaseSession(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	o.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(o.sessions, sessionID)
	}
	o.mu.Unlock()
}

// RequestResponse runs the full response sequence for a session. The
// returned error carries the failure reason for the requesting connection;
// no retry is attempted here.
func (o *Orchestrator) RequestResponse(ctx context.Context, sessionID, transcript string) error {
	lock := o.acquireSession(sessionID)
	defer o.releaseSession(sessionID, lock)

	start := time.Now()

	recent, err := o.storage.ListMessages(ctx, sessionID, contextWindow)
	if err != nil {
		return fmt.Errorf("fetch conversation context: %w", err)
	}
	personality, err := o.storage.GetPersonality(ctx, sessionID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("fetch personality: %w", err)
	}
	memory, err := o.storage.GetSessionMemory(ctx, sessionID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("fetch session memory: %w", err)
	}

	text, confidence, err := o.generator.Generate(ctx, repositories.GenerationContext{
		Transcript:     transcript,
		RecentMessages: recent,
		Personality:    personality,
		Memory:         memory,
	})
	if err != nil {
		return fmt.Errorf("generate response: %w", err)
	}

	message := &entities.Message{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		Text:          text,
		Confidence:    confidence,
		IsAIGenerated: true,
		CreatedAt:     time.Now(),
	}
	if err := o.storage.CreateMessage(ctx, message); err != nil {
		return fmt.Errorf("persist response: %w", err)
	}

	voiceID := ""
	if personality != nil {
		voiceID = personality.VoiceID
	}
	audio, err := o.synthesizer.Synthesize(ctx, text, voiceID)
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}

	o.broadcaster.BroadcastAIResponse(sessionID, message, base64.StdEncoding.EncodeToString(audio))

	elapsed := time.Since(start)
	o.updateAnalytics(ctx, sessionID, elapsed)
	if o.observer != nil {
		o.observer.ObserveAIResponse(elapsed.Seconds())
	}

	o.logger.Info("AI response completed",
		zap.String("sessionID", sessionID),
		zap.Duration("elapsed", elapsed),
		zap.Float64("confidence", confidence))
	return nil
}

// updateAnalytics bumps the running counters. A failure here is logged and
// swallowed: the response has already been broadcast.
func (o *Orchestrator) updateAnalytics(ctx context.Context, sessionID string, elapsed time.Duration) {
	analytics, err := o.storage.GetAnalytics(ctx, sessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		analytics = &entities.Analytics{SessionID: sessionID}
	} else if err != nil {
		o.logger.Error("Failed to fetch analytics",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return
	}

	analytics.TotalResponses++
	analytics.ResponseTimesMs = append(analytics.ResponseTimesMs, elapsed.Milliseconds())
	analytics.UpdatedAt = time.Now()

	if err := o.storage.UpdateAnalytics(ctx, analytics); err != nil {
		o.logger.Error("Failed to update analytics",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}
}
