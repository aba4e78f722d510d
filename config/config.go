// Package config collects environment-backed settings.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port string

	JWTSecret string

	MongoURI      string
	MongoDatabase string

	GeminiAPIKey     string
	GeminiModel      string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string

	AudioSampleRate int
	AudioEncoding   string
	AudioLanguage   string
}

// Load reads configuration, applying defaults. A missing .env file is not
// an error.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    getEnv("MONGODB_DATABASE", "aicohost"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:  os.Getenv("ELEVENLABS_VOICE_ID"),
		AudioSampleRate:  getEnvInt("AUDIO_SAMPLE_RATE", 16000),
		AudioEncoding:    getEnv("AUDIO_ENCODING", "LINEAR16"),
		AudioLanguage:    getEnv("AUDIO_LANGUAGE", "en-US"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
