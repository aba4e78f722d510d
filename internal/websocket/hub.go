package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
	"github.com/aiandbotsgalore/aicohost/internal/audio"
	"github.com/aiandbotsgalore/aicohost/internal/metrics"
	"github.com/aiandbotsgalore/aicohost/usecase"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the control center origin once it is deployed
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// hotkeyAICommands are the hotkey names that additionally invoke the AI
// orchestrator besides the hotkeyTriggered rebroadcast.
var hotkeyAICommands = map[string]bool{
	"generate_response": true,
	"fact_check":        true,
	"add_insight":       true,
}

// Hub is the session router: it normalizes inbound frames, mutates the
// registry on join events, and fans each message type out to the correct
// peer subset. Routing is role-directional: desktop -> browsers for
// telemetry, browser -> desktops for control.
type Hub struct {
	registry     *Registry
	storage      repositories.Storage
	transcriber  repositories.Transcriber
	orchestrator *usecase.Orchestrator
	metrics      *metrics.Metrics
	logger       *zap.Logger

	audioChunkSize int
}

// NewHub creates the session router and wires itself into the orchestrator
// as its broadcaster.
func NewHub(
	storage repositories.Storage,
	transcriber repositories.Transcriber,
	orchestrator *usecase.Orchestrator,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Hub {
	h := &Hub{
		registry:       NewRegistry(logger),
		storage:        storage,
		transcriber:    transcriber,
		orchestrator:   orchestrator,
		metrics:        m,
		logger:         logger,
		audioChunkSize: audio.DefaultChunkSize,
	}
	orchestrator.SetBroadcaster(h)
	return h
}

// Registry exposes the connection registry, mainly for the REST boundary.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// HandleWebSocket upgrades the request and starts the client pumps. The
// connected envelope is always the first message the client receives.
func HandleWebSocket(hub *Hub, c echo.Context, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		logger: logger,
	}
	client.id = hub.registry.Register(client)
	hub.metrics.ConnectionOpened()

	client.enqueue(NewServerEnvelope(MessageTypeConnected, ConnectedPayload{ClientID: client.id}))

	logger.Info("Client connected", zap.String("connectionID", client.id))

	go client.writePump()
	go client.readPump()

	return nil
}

// route is the hub's ingress: normalize once, then dispatch by type. Role
// violations and unknown types are logged and dropped without an error
// envelope; only unparseable frames are reported back, and only to the
// sender.
func (h *Hub) route(c *Client, raw []byte) {
	conn, _ := h.registry.Get(c.id)

	fallback := SourceBrowser
	if conn.Kind == KindDesktop {
		fallback = SourceDesktop
	}

	env, err := Normalize(raw, fallback)
	if err != nil {
		h.metrics.EnvelopeDropped(metrics.ReasonMalformed)
		h.sendError(c, "invalid message format", err.Error())
		return
	}

	if !env.Known() {
		h.logger.Warn("Ignoring unrecognized message type",
			zap.String("connectionID", c.id),
			zap.String("type", string(env.Type)))
		h.metrics.EnvelopeDropped(metrics.ReasonUnknownType)
		return
	}

	// The routed counter increments only once a frame clears its guards, so
	// routed and dropped partition the inbound traffic.
	switch env.Type {
	case MessageTypeJoinSession, MessageTypeDesktopConnect:
		h.metrics.EnvelopeRouted(string(env.Type))
		h.handleJoin(c, env)

	case MessageTypeTranscript, MessageTypeAudioLevels:
		if !h.requireKind(c, conn, KindDesktop, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.broadcastToKind(conn.SessionID, KindBrowser, env)

	case MessageTypeControlCommand:
		if !h.requireKind(c, conn, KindBrowser, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.handleControlCommand(conn, env)

	case MessageTypeAIResponseCmd:
		// Browser hands an AI reply off to the desktop agent for speech
		// synthesis playback.
		if !h.requireKind(c, conn, KindBrowser, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.broadcastToKind(conn.SessionID, KindDesktop, env)

	case MessageTypeStatus:
		h.metrics.EnvelopeRouted(string(env.Type))
		h.broadcastToSession(conn.SessionID, env, c.id)

	case MessageTypeAudioData:
		h.handleAudioData(c, env)

	case MessageTypeRequestAIResponse:
		if !h.requireKind(c, conn, KindBrowser, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.handleAIRequest(c, conn, env)

	case MessageTypeHotkey:
		if !h.requireKind(c, conn, KindBrowser, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.handleHotkey(c, conn, env)

	case MessageTypeUpdatePersonality:
		if !h.requireKind(c, conn, KindBrowser, env) {
			return
		}
		h.metrics.EnvelopeRouted(string(env.Type))
		h.handleUpdatePersonality(c, conn, env)

	default:
		// Server-emitted types arriving inbound have no routing entry.
		h.logger.Warn("Dropping unroutable message type",
			zap.String("connectionID", c.id),
			zap.String("type", string(env.Type)))
		h.metrics.EnvelopeDropped(metrics.ReasonRoleMismatch)
	}
}

// requireKind enforces the routing table's sender-kind column. Mismatches
// are a logged rejection, never an error envelope.
func (h *Hub) requireKind(c *Client, conn Connection, want ClientKind, env *Envelope) bool {
	if conn.SessionID == "" {
		h.logger.Warn("Dropping message from connection outside any session",
			zap.String("connectionID", c.id),
			zap.String("type", string(env.Type)))
		h.metrics.EnvelopeDropped(metrics.ReasonNotJoined)
		return false
	}
	if conn.Kind != want {
		h.logger.Warn("Dropping message from wrong client kind",
			zap.String("connectionID", c.id),
			zap.String("type", string(env.Type)),
			zap.String("kind", string(conn.Kind)),
			zap.String("want", string(want)))
		h.metrics.EnvelopeDropped(metrics.ReasonRoleMismatch)
		return false
	}
	return true
}

// handleJoin binds the connection to a session and notifies its peers.
// Session and kind are extracted from the normalized payload; the typed
// dialect's data and the legacy top-level fields land in the same place.
func (h *Hub) handleJoin(c *Client, env *Envelope) {
	var payload JoinPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		h.sendError(c, "invalid join payload", err.Error())
		return
	}
	if payload.SessionID == "" {
		h.sendError(c, "sessionId is required", "")
		return
	}

	kind := KindBrowser
	if env.Type == MessageTypeDesktopConnect || payload.ClientType == string(KindDesktop) {
		kind = KindDesktop
	}

	if err := h.registry.SetSession(c.id, payload.SessionID, kind, payload.IsHost); err != nil {
		h.sendError(c, "unable to join session", err.Error())
		return
	}

	if kind == KindDesktop && c.accumulator() == nil {
		h.attachAudioEngine(c, payload.SessionID)
	}

	status := "client_connected"
	if kind == KindDesktop {
		status = "desktop_connected"
	}
	h.broadcastToSession(payload.SessionID, NewServerEnvelope(MessageTypeStatus, StatusPayload{
		Status:     status,
		ClientType: string(kind),
		ClientID:   c.id,
	}), c.id)

	h.logger.Info("Client joined session",
		zap.String("connectionID", c.id),
		zap.String("sessionID", payload.SessionID),
		zap.String("kind", string(kind)),
		zap.Bool("isHost", payload.IsHost))
}

// attachAudioEngine creates the capture-stream accumulator for a desktop
// connection. Level telemetry fans out to the session's browsers; ready
// bursts go to the transcriber.
func (h *Hub) attachAudioEngine(c *Client, sessionID string) {
	acc := audio.NewAccumulator(h.logger,
		audio.WithChunkSize(h.audioChunkSize),
		audio.OnLevel(func(db float64, speech bool) {
			h.broadcastToKind(sessionID, KindBrowser,
				NewServerEnvelope(MessageTypeAudioLevels, AudioLevelsPayload{LevelDB: db, Speech: speech}))
		}),
		audio.OnReady(func(burst []byte) {
			h.metrics.AudioBurstFlushed()
			go h.transcribeBurst(sessionID, burst)
		}),
	)
	acc.Start()
	c.setAccumulator(acc)
}

// handleControlCommand relays a browser command to the session's desktop
// agents. pause/resume additionally toggle their capture accumulators,
// mirroring the engine's hard-stop semantic.
func (h *Hub) handleControlCommand(conn Connection, env *Envelope) {
	var payload ControlCommandPayload
	if err := json.Unmarshal(env.Data, &payload); err == nil {
		switch payload.Command {
		case "pause":
			h.eachDesktopAccumulator(conn.SessionID, (*audio.Accumulator).Stop)
		case "resume":
			h.eachDesktopAccumulator(conn.SessionID, (*audio.Accumulator).Start)
		}
	}
	h.broadcastToKind(conn.SessionID, KindDesktop, env)
}

func (h *Hub) eachDesktopAccumulator(sessionID string, fn func(*audio.Accumulator)) {
	for _, conn := range h.registry.ListBySessionAndKind(sessionID, KindDesktop) {
		if acc := conn.client.accumulator(); acc != nil {
			fn(acc)
		}
	}
}

// handleAudioData feeds a legacy base64 chunk into the sender's audio
// engine. Not forwarded to any peer.
func (h *Hub) handleAudioData(c *Client, env *Envelope) {
	acc := c.accumulator()
	if acc == nil {
		h.logger.Warn("Dropping audioData from connection without a capture stream",
			zap.String("connectionID", c.id))
		h.metrics.EnvelopeDropped(metrics.ReasonRoleMismatch)
		return
	}
	h.metrics.EnvelopeRouted(string(env.Type))

	var payload AudioDataPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		h.sendError(c, "invalid audioData payload", err.Error())
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(payload.Chunk)
	if err != nil {
		h.sendError(c, "invalid audio chunk encoding", err.Error())
		return
	}
	acc.ProcessChunk(chunk)
}

// transcribeBurst hands a flushed audio burst to the transcriber, persists
// the resulting line, and forwards it to the session's browsers.
func (h *Hub) transcribeBurst(sessionID string, burst []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, confidence, err := h.transcriber.Transcribe(ctx, burst)
	if err != nil {
		h.logger.Error("Transcription failed",
			zap.String("sessionID", sessionID),
			zap.Error(err))
		return
	}
	if text == "" {
		return
	}

	message := &entities.Message{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		Text:       text,
		Confidence: confidence,
		CreatedAt:  time.Now(),
	}
	if err := h.storage.CreateMessage(ctx, message); err != nil {
		h.logger.Error("Failed to persist transcript",
			zap.String("sessionID", sessionID),
			zap.Error(err))
	}

	env := &Envelope{
		Type:      MessageTypeTranscript,
		Source:    SourceDesktop,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	env.Data, _ = json.Marshal(TranscriptPayload{Text: text, Confidence: confidence})
	h.broadcastToKind(sessionID, KindBrowser, env)
}

// handleAIRequest invokes the orchestrator off the dispatch goroutine. A
// failed sequence is reported to the requesting connection only; the
// broadcast on success happens inside the orchestrator.
func (h *Hub) handleAIRequest(c *Client, conn Connection, env *Envelope) {
	var payload AIRequestPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		h.sendError(c, "invalid requestAIResponse payload", err.Error())
		return
	}
	go h.runAIRequest(c, conn.SessionID, payload.Transcript)
}

func (h *Hub) runAIRequest(c *Client, sessionID, transcript string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := h.orchestrator.RequestResponse(ctx, sessionID, transcript); err != nil {
		h.logger.Error("AI response failed",
			zap.String("connectionID", c.id),
			zap.String("sessionID", sessionID),
			zap.Error(err))
		h.sendError(c, "AI response failed", err.Error())
	}
}

// handleHotkey rebroadcasts a hotkey press to session peers and, for the
// known AI command names, also kicks off the orchestrator.
func (h *Hub) handleHotkey(c *Client, conn Connection, env *Envelope) {
	var payload HotkeyPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		h.sendError(c, "invalid hotkey payload", err.Error())
		return
	}

	out := &Envelope{
		Type:      MessageTypeHotkeyTriggered,
		Source:    SourceServer,
		Data:      env.Data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	h.broadcastToSession(conn.SessionID, out, c.id)

	if hotkeyAICommands[payload.Command] {
		go h.runAIRequest(c, conn.SessionID, payload.Transcript)
	}
}

// handleUpdatePersonality persists new personality settings and notifies
// session peers.
func (h *Hub) handleUpdatePersonality(c *Client, conn Connection, env *Envelope) {
	var personality entities.Personality
	if err := json.Unmarshal(env.Data, &personality); err != nil {
		h.sendError(c, "invalid personality payload", err.Error())
		return
	}
	personality.SessionID = conn.SessionID
	personality.UpdatedAt = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.storage.UpdatePersonality(ctx, &personality); err != nil {
		h.sendError(c, "failed to update personality", err.Error())
		return
	}

	out := &Envelope{
		Type:      MessageTypePersonalityUpdated,
		Source:    SourceServer,
		Data:      env.Data,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	h.broadcastToSession(conn.SessionID, out, c.id)
}

// BroadcastAIResponse implements usecase.SessionBroadcaster: one aiResponse
// envelope, carrying the persisted message and its synthesized audio, to
// the whole session. A requester that disconnected mid-sequence simply is
// no longer in the list; remaining peers still receive it.
func (h *Hub) BroadcastAIResponse(sessionID string, message *entities.Message, audioBase64 string) {
	env := NewServerEnvelope(MessageTypeAIResponse, map[string]interface{}{
		"message": message,
		"audio":   audioBase64,
	})
	h.broadcastToSession(sessionID, env, "")
}

// handleDisconnect notifies the session (best effort) and removes the
// connection. Invoked from the readPump defer on transport close or error.
func (h *Hub) handleDisconnect(c *Client) {
	if acc := c.accumulator(); acc != nil {
		acc.Stop()
	}

	conn, ok := h.registry.Get(c.id)
	if ok && conn.SessionID != "" {
		h.broadcastToSession(conn.SessionID, NewServerEnvelope(MessageTypeStatus, StatusPayload{
			Status:     "client_disconnected",
			ClientType: string(conn.Kind),
			ClientID:   c.id,
		}), c.id)
	}

	h.registry.Unregister(c.id)
	h.metrics.ConnectionClosed()
	h.logger.Info("Client disconnected", zap.String("connectionID", c.id))
}

// broadcastToSession sends an envelope to every connection in the session
// except excludeID. The registry hands back a snapshot, so joins and
// leaves during iteration are safe; a dead recipient is skipped inside
// enqueue.
func (h *Hub) broadcastToSession(sessionID string, env *Envelope, excludeID string) {
	if sessionID == "" {
		return
	}
	for _, conn := range h.registry.ListBySession(sessionID) {
		if conn.ID == excludeID {
			continue
		}
		conn.client.enqueue(env)
	}
}

// broadcastToKind sends an envelope to the session's connections of one
// kind.
func (h *Hub) broadcastToKind(sessionID string, kind ClientKind, env *Envelope) {
	for _, conn := range h.registry.ListBySessionAndKind(sessionID, kind) {
		conn.client.enqueue(env)
	}
}

// sendError reports a scoped failure to a single connection. The
// connection stays open; nothing propagates to its peers.
func (h *Hub) sendError(c *Client, message, details string) {
	c.enqueue(NewServerEnvelope(MessageTypeError, ErrorPayload{Message: message, Details: details}))
}
