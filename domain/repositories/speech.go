package repositories

import "context"

// SpeechSynthesizer abstracts text-to-speech services.
type SpeechSynthesizer interface {
	// Synthesize converts text to audio bytes using the given voice.
	Synthesize(ctx context.Context, text string, voiceID string) ([]byte, error)
}

// Transcriber abstracts speech-to-text services.
type Transcriber interface {
	// Transcribe converts an audio burst to text with a confidence score.
	Transcribe(ctx context.Context, audio []byte) (text string, confidence float64, err error)
}

// AudioConfig describes the raw audio format handed to a Transcriber.
type AudioConfig struct {
	SampleRate int    `json:"sampleRate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}
