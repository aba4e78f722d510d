package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType is the discriminant of the protocol envelope.
type MessageType string

// The closed enumeration of wire message types. The first block is the
// typed dialect; the second block is legacy types retained for backward
// compatibility with older capture agents and control centers.
const (
	MessageTypeJoinSession    MessageType = "joinSession"
	MessageTypeDesktopConnect MessageType = "desktop_connect"
	MessageTypeTranscript     MessageType = "transcript"
	MessageTypeAudioLevels    MessageType = "audio_levels"
	MessageTypeControlCommand MessageType = "control_command"
	MessageTypeAIResponseCmd  MessageType = "ai_response"
	MessageTypeStatus         MessageType = "status"
	MessageTypeConnected      MessageType = "connected"
	MessageTypeError          MessageType = "error"

	MessageTypeAudioData         MessageType = "audioData"
	MessageTypeRequestAIResponse MessageType = "requestAIResponse"
	MessageTypeHotkey            MessageType = "hotkey"
	MessageTypeUpdatePersonality MessageType = "updatePersonality"

	MessageTypeNewMessage         MessageType = "newMessage"
	MessageTypePersonalityUpdate  MessageType = "personalityUpdate"
	MessageTypeAIResponse         MessageType = "aiResponse"
	MessageTypeHotkeyTriggered    MessageType = "hotkeyTriggered"
	MessageTypePersonalityUpdated MessageType = "personalityUpdated"
)

var knownMessageTypes = map[MessageType]bool{
	MessageTypeJoinSession:        true,
	MessageTypeDesktopConnect:     true,
	MessageTypeTranscript:         true,
	MessageTypeAudioLevels:        true,
	MessageTypeControlCommand:     true,
	MessageTypeAIResponseCmd:      true,
	MessageTypeStatus:             true,
	MessageTypeConnected:          true,
	MessageTypeError:              true,
	MessageTypeAudioData:          true,
	MessageTypeRequestAIResponse:  true,
	MessageTypeHotkey:             true,
	MessageTypeUpdatePersonality:  true,
	MessageTypeNewMessage:         true,
	MessageTypePersonalityUpdate:  true,
	MessageTypeAIResponse:         true,
	MessageTypeHotkeyTriggered:    true,
	MessageTypePersonalityUpdated: true,
}

// Source declares who produced a message.
type Source string

const (
	SourceBrowser Source = "browser"
	SourceDesktop Source = "desktop"
	SourceServer  Source = "server"
)

// Envelope is the unit of communication. Every envelope that leaves the
// hub carries all four fields populated.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Source    Source          `json:"source"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// Known reports whether the type is in the protocol enumeration.
func (e *Envelope) Known() bool {
	return knownMessageTypes[e.Type]
}

// Normalize turns a raw inbound frame into an envelope. Frames arrive in
// two dialects: the typed form already carries source and timestamp and
// passes through; the legacy form lacks both, so the sender's kind (or
// browser, pre-join) is stamped as source, the timestamp is stamped now,
// and the top-level object becomes the payload unless it nests its own
// data field. This is the only place legacy shapes are handled; downstream
// routing sees normalized envelopes only.
func Normalize(raw []byte, fallback Source) (*Envelope, error) {
	var frame struct {
		Type      MessageType     `json:"type"`
		Source    Source          `json:"source"`
		Data      json.RawMessage `json:"data"`
		Timestamp string          `json:"timestamp"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("frame missing type field")
	}

	env := &Envelope{
		Type:      frame.Type,
		Source:    frame.Source,
		Data:      frame.Data,
		Timestamp: frame.Timestamp,
	}

	legacy := frame.Source == "" || frame.Timestamp == ""
	if legacy {
		if env.Source == "" {
			env.Source = fallback
		}
		if env.Timestamp == "" {
			env.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
		}
		// Legacy frames carry their fields at the top level; the whole
		// object becomes the payload unless a nested data field exists.
		if len(frame.Data) == 0 || string(frame.Data) == "null" {
			env.Data = json.RawMessage(raw)
		}
	}

	if len(env.Data) == 0 {
		env.Data = json.RawMessage("null")
	}
	return env, nil
}

// NewServerEnvelope builds a server-sourced envelope, stamping the
// timestamp and marshaling the payload. A payload that fails to marshal is
// a programming error and yields a null data field.
func NewServerEnvelope(t MessageType, payload interface{}) *Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		data = json.RawMessage("null")
	}
	return &Envelope{
		Type:      t,
		Source:    SourceServer,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// JoinPayload is carried by joinSession and desktop_connect, in typed data
// or as legacy top-level fields; normalization folds both into Data.
type JoinPayload struct {
	SessionID  string `json:"sessionId"`
	ClientType string `json:"clientType"`
	IsHost     bool   `json:"isHost"`
}

// StatusPayload is carried by status envelopes the hub emits on session
// membership changes.
type StatusPayload struct {
	Status     string `json:"status"`
	ClientType string `json:"clientType,omitempty"`
	ClientID   string `json:"clientId,omitempty"`
}

// ConnectedPayload is the first message every accepted connection receives.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// ErrorPayload is sent to a single connection on a scoped failure.
type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// TranscriptPayload is relayed desktop -> browsers.
type TranscriptPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	SpeakerID  string  `json:"speakerId,omitempty"`
}

// AudioLevelsPayload carries per-chunk level telemetry.
type AudioLevelsPayload struct {
	LevelDB float64 `json:"levelDb"`
	Speech  bool    `json:"speech"`
}

// ControlCommandPayload is relayed browser -> desktops.
type ControlCommandPayload struct {
	Command string `json:"command"`
}

// AudioDataPayload is the legacy chunk feed into the audio engine.
type AudioDataPayload struct {
	Chunk string `json:"chunk"` // base64 encoded
}

// AIRequestPayload asks the orchestrator for a co-host reply.
type AIRequestPayload struct {
	Transcript string `json:"transcript"`
}

// HotkeyPayload is a browser hotkey press, rebroadcast as hotkeyTriggered.
type HotkeyPayload struct {
	Command    string `json:"command"`
	Transcript string `json:"transcript,omitempty"`
}
