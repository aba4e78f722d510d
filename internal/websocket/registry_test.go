package websocket

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 8), logger: zap.NewNop()}
}

func TestRegistryRegisterAssignsUniqueIDs(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	a := r.Register(newTestClient())
	b := r.Register(newTestClient())
	if a == b {
		t.Fatal("two registrations got the same ID")
	}
	if r.Count() != 2 {
		t.Errorf("expected 2 connections, got %d", r.Count())
	}
}

func TestRegistrySetSessionIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Register(newTestClient())

	if err := r.SetSession(id, "s1", KindBrowser, true); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if err := r.SetSession(id, "s1", KindBrowser, true); err != nil {
		t.Fatalf("repeated identical join should be idempotent: %v", err)
	}

	// The connection appears exactly once in session listings.
	if got := len(r.ListBySession("s1")); got != 1 {
		t.Errorf("expected 1 connection in session, got %d", got)
	}
}

func TestRegistrySetSessionRejectsReassignment(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Register(newTestClient())

	if err := r.SetSession(id, "s1", KindDesktop, false); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	err := r.SetSession(id, "s2", KindDesktop, false)
	if !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}

	conn, ok := r.Get(id)
	if !ok {
		t.Fatal("connection disappeared after rejected reassignment")
	}
	if conn.SessionID != "s1" {
		t.Errorf("session changed to %q after rejection", conn.SessionID)
	}
}

func TestRegistrySetSessionRejectsKindChange(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Register(newTestClient())

	if err := r.SetSession(id, "s1", KindBrowser, false); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	err := r.SetSession(id, "s1", KindDesktop, false)
	if !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("expected ErrKindMismatch, got %v", err)
	}

	conn, ok := r.Get(id)
	if !ok {
		t.Fatal("connection disappeared after rejected kind change")
	}
	if conn.Kind != KindBrowser {
		t.Errorf("kind changed to %q after rejection", conn.Kind)
	}
}

func TestRegistrySetSessionUnknownID(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	if err := r.SetSession("missing", "s1", KindBrowser, false); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected ErrNotRegistered, got %v", err)
	}
}

func TestRegistryUnregisterBeforeJoin(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Register(newTestClient())

	sessionID, joined := r.Unregister(id)
	if joined {
		t.Errorf("connection never joined but reported session %q", sessionID)
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}

	// Unregistering again is a no-op.
	if _, joined := r.Unregister(id); joined {
		t.Error("second unregister reported a joined session")
	}
}

func TestRegistryUnregisterReturnsSession(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	id := r.Register(newTestClient())
	if err := r.SetSession(id, "s1", KindDesktop, false); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	sessionID, joined := r.Unregister(id)
	if !joined || sessionID != "s1" {
		t.Errorf("expected (s1, true), got (%q, %v)", sessionID, joined)
	}
}

func TestRegistryListBySessionAndKind(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	browser := r.Register(newTestClient())
	desktop := r.Register(newTestClient())
	other := r.Register(newTestClient())
	pending := r.Register(newTestClient())
	_ = pending

	if err := r.SetSession(browser, "s1", KindBrowser, true); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSession(desktop, "s1", KindDesktop, false); err != nil {
		t.Fatal(err)
	}
	if err := r.SetSession(other, "s2", KindBrowser, false); err != nil {
		t.Fatal(err)
	}

	if got := len(r.ListBySession("s1")); got != 2 {
		t.Errorf("expected 2 in s1, got %d", got)
	}
	desktops := r.ListBySessionAndKind("s1", KindDesktop)
	if len(desktops) != 1 || desktops[0].ID != desktop {
		t.Errorf("expected only the desktop connection, got %+v", desktops)
	}
	if got := len(r.ListBySessionAndKind("s2", KindDesktop)); got != 0 {
		t.Errorf("expected no desktops in s2, got %d", got)
	}
}
