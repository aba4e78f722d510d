package stt

import (
	"context"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// MockTranscriber returns canned transcripts keyed off the burst size.
type MockTranscriber struct {
	logger *zap.Logger
}

var _ repositories.Transcriber = (*MockTranscriber)(nil)

// NewMockTranscriber creates a mock transcriber.
func NewMockTranscriber(logger *zap.Logger) *MockTranscriber {
	return &MockTranscriber{logger: logger}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	m.logger.Info("Mock transcription", zap.Int("audioBytes", len(audio)))

	switch {
	case len(audio) == 0:
		return "", 0, nil
	case len(audio) > 20000:
		return "Welcome back everyone, today we are digging into something special.", 0.94, nil
	default:
		return "Let's keep that thread going.", 0.9, nil
	}
}
