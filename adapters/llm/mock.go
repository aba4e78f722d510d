package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// MockGenerator is a deterministic stand-in for development and tests.
type MockGenerator struct {
	logger *zap.Logger
}

var _ repositories.ResponseGenerator = (*MockGenerator)(nil)

// NewMockGenerator creates a mock response generator.
func NewMockGenerator(logger *zap.Logger) *MockGenerator {
	return &MockGenerator{logger: logger}
}

// Generate echoes a canned reply keyed off the transcript.
func (m *MockGenerator) Generate(ctx context.Context, genCtx repositories.GenerationContext) (string, float64, error) {
	m.logger.Info("Mock response generation",
		zap.String("transcript", genCtx.Transcript),
		zap.Int("contextMessages", len(genCtx.RecentMessages)))

	if genCtx.Transcript == "" {
		return "That's a great point - let me add some context for our listeners.", 0.8, nil
	}
	return fmt.Sprintf("Interesting take on %q - here's another angle worth discussing.", genCtx.Transcript), 0.85, nil
}
