package tts

import (
	"context"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// MockTTS returns a short fixed byte pattern instead of real audio.
type MockTTS struct {
	logger *zap.Logger
}

var _ repositories.SpeechSynthesizer = (*MockTTS)(nil)

// NewMockTTS creates a mock synthesizer.
func NewMockTTS(logger *zap.Logger) *MockTTS {
	return &MockTTS{logger: logger}
}

func (m *MockTTS) Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error) {
	m.logger.Info("Mock speech synthesis",
		zap.String("voiceID", voiceID),
		zap.Int("textLength", len(text)))

	// A recognizable placeholder: one byte per character of text.
	audio := make([]byte, len(text))
	for i := range audio {
		audio[i] = byte(i % 251)
	}
	return audio, nil
}
