package websocket

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNormalizeTypedPassthrough(t *testing.T) {
	raw := []byte(`{"type":"transcript","source":"desktop","data":{"text":"hello"},"timestamp":"2026-01-02T03:04:05Z"}`)

	env, err := Normalize(raw, SourceBrowser)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if env.Type != MessageTypeTranscript {
		t.Errorf("expected type transcript, got %q", env.Type)
	}
	if env.Source != SourceDesktop {
		t.Errorf("expected source desktop, got %q", env.Source)
	}
	if env.Timestamp != "2026-01-02T03:04:05Z" {
		t.Errorf("timestamp was rewritten: %q", env.Timestamp)
	}

	var payload TranscriptPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Text != "hello" {
		t.Errorf("expected payload text hello, got %q", payload.Text)
	}
}

func TestNormalizeLegacyStampsSourceAndTimestamp(t *testing.T) {
	before := time.Now().UTC()
	raw := []byte(`{"type":"audioData","chunk":"AAAA"}`)

	env, err := Normalize(raw, SourceDesktop)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if env.Source != SourceDesktop {
		t.Errorf("expected fallback source desktop, got %q", env.Source)
	}
	ts, err := time.Parse(time.RFC3339Nano, env.Timestamp)
	if err != nil {
		t.Fatalf("stamped timestamp not RFC3339: %v", err)
	}
	if ts.Before(before.Add(-time.Second)) {
		t.Errorf("stamped timestamp too old: %v", ts)
	}

	// The whole legacy object becomes the payload.
	var payload AudioDataPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Chunk != "AAAA" {
		t.Errorf("expected chunk AAAA, got %q", payload.Chunk)
	}
}

func TestNormalizeLegacyTopLevelFieldsReachableInData(t *testing.T) {
	// A legacy status frame keeps its fields reachable through Data.
	raw := []byte(`{"type":"status","status":"recording"}`)

	env, err := Normalize(raw, SourceBrowser)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	var payload StatusPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.Status != "recording" {
		t.Errorf("expected status recording, got %q", payload.Status)
	}
}

func TestNormalizeLegacyPrefersNestedData(t *testing.T) {
	raw := []byte(`{"type":"joinSession","data":{"sessionId":"s1","clientType":"browser"}}`)

	env, err := Normalize(raw, SourceBrowser)
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	var payload JoinPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.SessionID != "s1" {
		t.Errorf("expected nested data payload, got %q", payload.SessionID)
	}
	// The wrapper object must not leak into the payload as-is.
	if strings.Contains(string(env.Data), `"type"`) {
		t.Errorf("nested data field was replaced by the full frame: %s", env.Data)
	}
}

func TestNormalizeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{"type":`},
		{"missing type", `{"source":"browser"}`},
		{"not an object", `"transcript"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Normalize([]byte(tc.raw), SourceBrowser); err == nil {
				t.Errorf("expected error for %s", tc.raw)
			}
		})
	}
}

func TestEnvelopeKnown(t *testing.T) {
	for _, mt := range []MessageType{
		MessageTypeJoinSession, MessageTypeDesktopConnect, MessageTypeTranscript,
		MessageTypeAudioLevels, MessageTypeControlCommand, MessageTypeAIResponseCmd,
		MessageTypeStatus, MessageTypeAudioData, MessageTypeRequestAIResponse,
		MessageTypeHotkey, MessageTypeUpdatePersonality,
	} {
		env := &Envelope{Type: mt}
		if !env.Known() {
			t.Errorf("%q should be a known type", mt)
		}
	}

	env := &Envelope{Type: "telemetry"}
	if env.Known() {
		t.Error("unknown type reported as known")
	}
}

func TestNewServerEnvelope(t *testing.T) {
	env := NewServerEnvelope(MessageTypeConnected, ConnectedPayload{ClientID: "c1"})

	if env.Source != SourceServer {
		t.Errorf("expected server source, got %q", env.Source)
	}
	if _, err := time.Parse(time.RFC3339Nano, env.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %v", err)
	}

	var payload ConnectedPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload.ClientID != "c1" {
		t.Errorf("expected clientId c1, got %q", payload.ClientID)
	}
}
