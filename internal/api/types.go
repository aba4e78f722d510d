package api

import "time"

// TokenRequest asks for a client token, optionally scoped to a session.
type TokenRequest struct {
	ClientType string `json:"clientType"`
	SessionID  string `json:"sessionId,omitempty"`
}

// TokenResponse carries an issued client token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CreateSessionRequest creates a new co-hosting session.
type CreateSessionRequest struct {
	Title string `json:"title"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
