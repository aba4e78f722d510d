package repositories

import (
	"context"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
)

// GenerationContext is the conversation context assembled by the
// orchestrator before calling the response generator.
type GenerationContext struct {
	Transcript     string
	RecentMessages []*entities.Message
	Personality    *entities.Personality
	Memory         *entities.SessionMemory
}

// ResponseGenerator abstracts the external AI text-generation service.
type ResponseGenerator interface {
	// Generate produces the co-host's reply for the given context along with
	// a confidence score in [0,1]. May take significant wall-clock time.
	Generate(ctx context.Context, genCtx GenerationContext) (text string, confidence float64, err error)
}
