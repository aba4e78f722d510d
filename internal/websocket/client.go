package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/internal/audio"
	"github.com/aiandbotsgalore/aicohost/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Registry-assigned connection ID.
	id string

	logger *zap.Logger

	// Audio accumulator, created when this connection joins as a desktop
	// capture agent.
	mu    sync.Mutex
	audio *audio.Accumulator
}

// enqueue queues an envelope for delivery. A full send buffer means a slow
// or dead recipient; the envelope is dropped so the broadcast loop never
// blocks or fails for the remaining recipients.
func (c *Client) enqueue(env *Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("Failed to marshal envelope", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("Dropping envelope for slow recipient",
			zap.String("connectionID", c.id),
			zap.String("type", string(env.Type)))
		c.hub.metrics.EnvelopeDropped(metrics.ReasonSlowRecipient)
	}
}

// accumulator returns the client's audio engine, if any.
func (c *Client) accumulator() *audio.Accumulator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio
}

func (c *Client) setAccumulator(acc *audio.Accumulator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = acc
}

// readPump pumps messages from the websocket connection to the hub.
// Running it as the single reader goroutine guarantees per-connection
// arrival-order processing.
func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error",
					zap.String("connectionID", c.id),
					zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			c.hub.route(c, message)
		case websocket.BinaryMessage:
			// Capture agents may stream raw audio frames outside the JSON
			// protocol; they feed the same accumulator as legacy audioData.
			if acc := c.accumulator(); acc != nil {
				acc.ProcessChunk(message)
			}
		default:
			c.logger.Warn("Received unknown websocket frame type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("connectionID", c.id),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
