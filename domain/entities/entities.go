package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the lifecycle state of a co-hosting session.
type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusEnded  SessionStatus = "ended"
)

// Session represents one co-hosted conversation. Live connections group
// themselves under its ID; the hub itself never materializes this entity.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Speaker represents a participant identified in the audio stream.
type Speaker struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Message is a single transcript line or AI reply within a session.
type Message struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	SpeakerID     string    `json:"speakerId,omitempty"`
	Text          string    `json:"text"`
	Confidence    float64   `json:"confidence,omitempty"`
	IsAIGenerated bool      `json:"isAIGenerated"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Personality holds the tunable voice and style settings the AI co-host
// speaks with. One per session.
type Personality struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	VoiceID   string    `json:"voiceId"`
	Style     string    `json:"style"`
	Humor     float64   `json:"humor"`
	Energy    float64   `json:"energy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Analytics carries running counters for a session. Updates are
// last-write-wins; the orchestrator serializes its own writes per session.
type Analytics struct {
	SessionID        string    `json:"sessionId"`
	TotalTranscripts int       `json:"totalTranscripts"`
	TotalResponses   int       `json:"totalResponses"`
	ResponseTimesMs  []int64   `json:"responseTimesMs"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// SessionMemory is the running long-form context handed to the response
// generator alongside recent messages.
type SessionMemory struct {
	SessionID string    `json:"sessionId"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *Session) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Status != SessionStatusActive && s.Status != SessionStatusEnded {
		return errors.New("invalid session status")
	}
	return nil
}

func (m *Message) Validate() error {
	if m.SessionID == "" {
		return errors.New("sessionId is required")
	}
	if m.Text == "" {
		return errors.New("text is required")
	}
	return nil
}
