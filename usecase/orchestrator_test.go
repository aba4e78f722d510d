package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/adapters/memory"
	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

type broadcastCall struct {
	sessionID string
	message   *entities.Message
	audio     string
}

func (b *recordingBroadcaster) BroadcastAIResponse(sessionID string, message *entities.Message, audioBase64 string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{sessionID, message, audioBase64})
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

type fakeGenerator struct {
	text    string
	err     error
	inCall  atomic.Int64
	overlap atomic.Bool
	seen    []repositories.GenerationContext
	mu      sync.Mutex
}

func (g *fakeGenerator) Generate(ctx context.Context, genCtx repositories.GenerationContext) (string, float64, error) {
	if g.inCall.Add(1) > 1 {
		g.overlap.Store(true)
	}
	defer g.inCall.Add(-1)
	time.Sleep(10 * time.Millisecond)

	g.mu.Lock()
	g.seen = append(g.seen, genCtx)
	g.mu.Unlock()
	return g.text, 0.85, g.err
}

type fakeSynthesizer struct {
	voiceIDs []string
	err      error
	mu       sync.Mutex
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	s.mu.Lock()
	s.voiceIDs = append(s.voiceIDs, voiceID)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []byte("audio-" + text), nil
}

type fixture struct {
	orch        *Orchestrator
	storage     *memory.Storage
	generator   *fakeGenerator
	synthesizer *fakeSynthesizer
	broadcaster *recordingBroadcaster
}

func newFixture() *fixture {
	logger := zap.NewNop()
	storage := memory.New(logger)
	generator := &fakeGenerator{text: "a thoughtful reply"}
	synthesizer := &fakeSynthesizer{}
	broadcaster := &recordingBroadcaster{}

	orch := NewOrchestrator(storage, generator, synthesizer, nil, logger)
	orch.SetBroadcaster(broadcaster)

	return &fixture{orch, storage, generator, synthesizer, broadcaster}
}

func TestRequestResponseSequence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.orch.RequestResponse(ctx, "s1", "what just happened?"); err != nil {
		t.Fatalf("RequestResponse: %v", err)
	}

	if f.broadcaster.count() != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", f.broadcaster.count())
	}
	call := f.broadcaster.calls[0]
	if call.sessionID != "s1" {
		t.Errorf("broadcast to wrong session %q", call.sessionID)
	}
	if call.message.Text != "a thoughtful reply" || !call.message.IsAIGenerated {
		t.Errorf("broadcast message wrong: %+v", call.message)
	}
	if call.audio != base64.StdEncoding.EncodeToString([]byte("audio-a thoughtful reply")) {
		t.Errorf("broadcast audio wrong: %q", call.audio)
	}

	// The reply is part of the conversation history.
	messages, err := f.storage.ListMessages(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != call.message.ID {
		t.Errorf("persisted history mismatch: %+v", messages)
	}

	analytics, err := f.storage.GetAnalytics(ctx, "s1")
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}
	if analytics.TotalResponses != 1 || len(analytics.ResponseTimesMs) != 1 {
		t.Errorf("analytics not updated: %+v", analytics)
	}
}

func TestRequestResponseUsesRecentContext(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		err := f.storage.CreateMessage(ctx, &entities.Message{
			ID:        "m" + string(rune('a'+i)),
			SessionID: "s1",
			Text:      "line",
		})
		if err != nil {
			t.Fatalf("CreateMessage: %v", err)
		}
	}
	if err := f.storage.UpdatePersonality(ctx, &entities.Personality{
		SessionID: "s1",
		Name:      "Ash",
		VoiceID:   "v9",
	}); err != nil {
		t.Fatalf("UpdatePersonality: %v", err)
	}

	if err := f.orch.RequestResponse(ctx, "s1", "and then?"); err != nil {
		t.Fatalf("RequestResponse: %v", err)
	}

	f.generator.mu.Lock()
	genCtx := f.generator.seen[len(f.generator.seen)-1]
	f.generator.mu.Unlock()

	if len(genCtx.RecentMessages) != 20 {
		t.Errorf("expected a 20-message window, got %d", len(genCtx.RecentMessages))
	}
	if genCtx.Personality == nil || genCtx.Personality.Name != "Ash" {
		t.Errorf("personality missing from context: %+v", genCtx.Personality)
	}
	if genCtx.Transcript != "and then?" {
		t.Errorf("transcript missing from context: %q", genCtx.Transcript)
	}

	// The configured voice drives synthesis.
	f.synthesizer.mu.Lock()
	voiceID := f.synthesizer.voiceIDs[len(f.synthesizer.voiceIDs)-1]
	f.synthesizer.mu.Unlock()
	if voiceID != "v9" {
		t.Errorf("expected personality voice v9, got %q", voiceID)
	}
}

func TestRequestResponseGenerationFailureAborts(t *testing.T) {
	f := newFixture()
	f.generator.err = errors.New("model unavailable")
	ctx := context.Background()

	err := f.orch.RequestResponse(ctx, "s1", "thoughts?")
	if err == nil {
		t.Fatal("expected error from failed generation")
	}
	if f.broadcaster.count() != 0 {
		t.Errorf("broadcast happened despite failure: %d calls", f.broadcaster.count())
	}
	messages, _ := f.storage.ListMessages(ctx, "s1", 0)
	if len(messages) != 0 {
		t.Errorf("message persisted despite failed generation: %+v", messages)
	}
	if _, err := f.storage.GetAnalytics(ctx, "s1"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("analytics updated despite failure: %v", err)
	}
}

func TestRequestResponseSynthesisFailureAbortsBroadcast(t *testing.T) {
	f := newFixture()
	f.synthesizer.err = errors.New("tts quota exceeded")
	ctx := context.Background()

	err := f.orch.RequestResponse(ctx, "s1", "thoughts?")
	if err == nil {
		t.Fatal("expected error from failed synthesis")
	}
	if f.broadcaster.count() != 0 {
		t.Errorf("broadcast happened despite failed synthesis: %d calls", f.broadcaster.count())
	}
}

func TestRequestResponseSerializesPerSession(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.orch.RequestResponse(ctx, "s1", "go"); err != nil {
				t.Errorf("RequestResponse: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.generator.overlap.Load() {
		t.Error("concurrent generation observed for a single session")
	}
	if f.broadcaster.count() != 5 {
		t.Errorf("expected 5 broadcasts, got %d", f.broadcaster.count())
	}

	analytics, err := f.storage.GetAnalytics(ctx, "s1")
	if err != nil {
		t.Fatalf("GetAnalytics: %v", err)
	}
	if analytics.TotalResponses != 5 || len(analytics.ResponseTimesMs) != 5 {
		t.Errorf("analytics lost updates: %+v", analytics)
	}
	if got := f.lockCount(); got != 0 {
		t.Errorf("expected no lingering session locks, got %d", got)
	}
}

func (f *fixture) lockCount() int {
	f.orch.mu.Lock()
	defer f.orch.mu.Unlock()
	return len(f.orch.sessions)
}

func TestRequestResponseReleasesSessionLocks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, sessionID := range []string{"s1", "s2", "s1"} {
		if err := f.orch.RequestResponse(ctx, sessionID, "go"); err != nil {
			t.Fatalf("RequestResponse(%s): %v", sessionID, err)
		}
	}

	if got := f.lockCount(); got != 0 {
		t.Errorf("session lock map not emptied, %d entries remain", got)
	}

	// Failures release their lock too.
	f.generator.err = errors.New("model unavailable")
	if err := f.orch.RequestResponse(ctx, "s3", "go"); err == nil {
		t.Fatal("expected error")
	}
	if got := f.lockCount(); got != 0 {
		t.Errorf("failed sequence leaked a session lock, %d entries remain", got)
	}
}
