package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the claims in a client token.
type Claims struct {
	SessionID  string `json:"session_id,omitempty"`
	ClientType string `json:"client_type"` // "browser" or "desktop"
	jwt.RegisteredClaims
}

// Secret signs client tokens. Overridden from configuration at startup.
var Secret = []byte("dev-secret")

// GenerateClientToken issues a token for a control-center or capture-agent
// client, optionally scoped to a session.
func GenerateClientToken(clientType, sessionID string) (string, error) {
	claims := &Claims{
		SessionID:  sessionID,
		ClientType: clientType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(Secret)
}

// ValidateToken validates a token and returns its claims.
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return Secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
