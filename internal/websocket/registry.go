package websocket

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClientKind determines routing eligibility.
type ClientKind string

const (
	KindBrowser ClientKind = "browser"
	KindDesktop ClientKind = "desktop"
)

// ErrSessionMismatch is returned when a connection that already joined a
// session tries to join a different one.
var ErrSessionMismatch = errors.New("connection already joined a different session")

// ErrKindMismatch is returned when a joined connection tries to rejoin as a
// different client kind.
var ErrKindMismatch = errors.New("connection already joined as a different kind")

// ErrNotRegistered is returned for operations on unknown connection IDs.
var ErrNotRegistered = errors.New("connection not registered")

// Connection is the registry's record of one live duplex channel. SessionID
// and Kind are unset until a join message arrives and immutable thereafter.
type Connection struct {
	ID        string
	SessionID string
	Kind      ClientKind
	IsHost    bool

	client *Client
}

// Registry tracks every live connection and its negotiated identity. It is
// a pure data structure: no method performs I/O, all sends happen in the
// hub, which reads connection handles from here. List methods return
// copied slices so broadcasts iterate safely while other connections join
// or leave.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[string]*Connection),
		logger: logger,
	}
}

// Register adds a connection and returns its fresh identifier. Never
// blocks, never fails.
func (r *Registry) Register(client *Client) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.conns[id] = &Connection{ID: id, client: client}
	r.mu.Unlock()
	return id
}

// SetSession binds a connection to a session and client kind. Repeated
// identical calls are idempotent; once joined, both the session ID and the
// kind are immutable and a mismatch on either is rejected.
func (r *Registry) SetSession(id, sessionID string, kind ClientKind, isHost bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrNotRegistered
	}
	if conn.SessionID != "" && conn.SessionID != sessionID {
		r.logger.Warn("Rejected session reassignment",
			zap.String("connectionID", id),
			zap.String("joined", conn.SessionID),
			zap.String("requested", sessionID))
		return ErrSessionMismatch
	}
	if conn.SessionID != "" && conn.Kind != kind {
		r.logger.Warn("Rejected client kind change",
			zap.String("connectionID", id),
			zap.String("joined", string(conn.Kind)),
			zap.String("requested", string(kind)))
		return ErrKindMismatch
	}
	conn.SessionID = sessionID
	conn.Kind = kind
	conn.IsHost = isHost
	return nil
}

// Get returns a copy of the connection record.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// Unregister removes a connection. Safe to call for connections that never
// joined a session; the joined session ID, if any, is returned so the
// caller can notify remaining peers.
func (r *Registry) Unregister(id string) (sessionID string, joined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)
	return conn.SessionID, conn.SessionID != ""
}

// ListBySession returns every connection joined to the session.
func (r *Registry) ListBySession(sessionID string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Connection
	for _, conn := range r.conns {
		if conn.SessionID == sessionID {
			out = append(out, *conn)
		}
	}
	return out
}

// ListBySessionAndKind returns the session's connections of one kind.
func (r *Registry) ListBySessionAndKind(sessionID string, kind ClientKind) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Connection
	for _, conn := range r.conns {
		if conn.SessionID == sessionID && conn.Kind == kind {
			out = append(out, *conn)
		}
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
