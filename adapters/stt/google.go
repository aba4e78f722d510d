// Package stt provides transcription collaborators.
package stt

import (
	"context"
	"fmt"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/repositories"
)

// GoogleTranscriber implements the transcription collaborator with Google
// Cloud Speech-to-Text.
type GoogleTranscriber struct {
	config repositories.AudioConfig
	logger *zap.Logger
}

var _ repositories.Transcriber = (*GoogleTranscriber)(nil)

// NewGoogleTranscriber creates a transcriber for the given audio format.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleTranscriber(config repositories.AudioConfig, logger *zap.Logger) *GoogleTranscriber {
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.Encoding == "" {
		config.Encoding = "LINEAR16"
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	return &GoogleTranscriber{config: config, logger: logger}
}

// Transcribe converts one audio burst to text.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, audio []byte) (string, float64, error) {
	if len(audio) == 0 {
		return "", 0, fmt.Errorf("no audio data")
	}

	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	encoding, err := audioEncoding(g.config.Encoding)
	if err != nil {
		return "", 0, err
	}

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        encoding,
			SampleRateHertz: int32(g.config.SampleRate),
			LanguageCode:    g.config.Language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("recognize failed: %w", err)
	}

	var text string
	var confidence float64
	for _, result := range resp.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		best := result.Alternatives[0]
		if text != "" {
			text += " "
		}
		text += best.Transcript
		confidence = float64(best.Confidence)
	}

	g.logger.Debug("Transcription completed",
		zap.Int("audioBytes", len(audio)),
		zap.Int("textLength", len(text)),
		zap.Float64("confidence", confidence))
	return text, confidence, nil
}

// audioEncoding converts a config string to the Speech API enum.
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED,
			fmt.Errorf("unsupported audio encoding: %s", encoding)
	}
}
