package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

const defaultModel = "gemini-2.0-flash"

// GeminiGenerator implements the response-generation collaborator on
// Google's Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.ResponseGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator. apiKey is required; model falls
// back to the default.
func NewGeminiGenerator(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &GeminiGenerator{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Generate builds a prompt from the conversation context and asks the
// model for a co-host reply. Gemini does not report a usable confidence,
// so a fixed one is returned.
func (g *GeminiGenerator) Generate(ctx context.Context, genCtx repositories.GenerationContext) (string, float64, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(genCtx), genai.RoleUser),
	}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", 0, fmt.Errorf("gemini generate failed: %w", err)
	}

	text := response.Text()
	if text == "" {
		return "", 0, fmt.Errorf("gemini returned an empty response")
	}

	g.logger.Debug("Gemini response generated",
		zap.String("model", g.model),
		zap.Int("length", len(text)))
	return strings.TrimSpace(text), 0.9, nil
}

func buildPrompt(genCtx repositories.GenerationContext) string {
	var b strings.Builder
	b.WriteString("You are a live co-host on an audio show. Reply briefly and conversationally.\n")

	if p := genCtx.Personality; p != nil {
		fmt.Fprintf(&b, "Persona: %s, style %s, humor %.1f, energy %.1f.\n",
			p.Name, p.Style, p.Humor, p.Energy)
	}
	if m := genCtx.Memory; m != nil && m.Summary != "" {
		fmt.Fprintf(&b, "Conversation so far: %s\n", m.Summary)
	}
	for _, msg := range genCtx.RecentMessages {
		role := "host"
		if msg.IsAIGenerated {
			role = "you"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, msg.Text)
	}
	if genCtx.Transcript != "" {
		fmt.Fprintf(&b, "host: %s\n", genCtx.Transcript)
	}
	b.WriteString("you:")
	return b.String()
}
