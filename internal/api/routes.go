// Package api is the REST boundary around the session hub: resource CRUD
// over the storage repository, token issuing, and the WebSocket endpoint.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aiandbotsgalore/aicohost/domain/entities"
	"github.com/aiandbotsgalore/aicohost/domain/repositories"
	"github.com/aiandbotsgalore/aicohost/internal/auth"
	"github.com/aiandbotsgalore/aicohost/internal/metrics"
	"github.com/aiandbotsgalore/aicohost/internal/websocket"
)

// InitRoutes wires all HTTP routes.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, storage repositories.Storage, m *metrics.Metrics, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "aicohost",
		})
	})

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})

	h := &handlers{storage: storage, logger: logger}

	v1 := e.Group("/api/v1")
	v1.POST("/auth/token", h.issueToken)

	v1.GET("/sessions", h.listSessions)
	v1.POST("/sessions", h.createSession)
	v1.GET("/sessions/:id", h.getSession)
	v1.GET("/sessions/:id/speakers", h.listSpeakers)
	v1.POST("/sessions/:id/speakers", h.createSpeaker)
	v1.GET("/sessions/:id/messages", h.listMessages)
	v1.GET("/sessions/:id/personality", h.getPersonality)
	v1.PUT("/sessions/:id/personality", h.updatePersonality)
	v1.GET("/sessions/:id/analytics", h.getAnalytics)
}

type handlers struct {
	storage repositories.Storage
	logger  *zap.Logger
}

func (h *handlers) issueToken(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ClientType != "browser" && req.ClientType != "desktop" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_client_type",
			Message: "clientType must be browser or desktop",
		})
	}

	token, err := auth.GenerateClientToken(req.ClientType, req.SessionID)
	if err != nil {
		h.logger.Error("Failed to generate client token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
}

func (h *handlers) listSessions(c echo.Context) error {
	sessions, err := h.storage.ListSessions(c.Request().Context())
	if err != nil {
		return h.internalError(c, "failed to list sessions", err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *handlers) createSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	session := &entities.Session{
		ID:     uuid.NewString(),
		Title:  req.Title,
		Status: entities.SessionStatusActive,
	}
	if err := h.storage.CreateSession(c.Request().Context(), session); err != nil {
		return h.internalError(c, "failed to create session", err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *handlers) getSession(c echo.Context) error {
	session, err := h.storage.GetSession(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found"})
	}
	if err != nil {
		return h.internalError(c, "failed to get session", err)
	}
	return c.JSON(http.StatusOK, session)
}

func (h *handlers) listSpeakers(c echo.Context) error {
	speakers, err := h.storage.ListSpeakers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.internalError(c, "failed to list speakers", err)
	}
	return c.JSON(http.StatusOK, speakers)
}

func (h *handlers) createSpeaker(c echo.Context) error {
	var speaker entities.Speaker
	if err := c.Bind(&speaker); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	speaker.ID = uuid.NewString()
	speaker.SessionID = c.Param("id")
	if err := h.storage.CreateSpeaker(c.Request().Context(), &speaker); err != nil {
		return h.internalError(c, "failed to create speaker", err)
	}
	return c.JSON(http.StatusCreated, speaker)
}

func (h *handlers) listMessages(c echo.Context) error {
	messages, err := h.storage.ListMessages(c.Request().Context(), c.Param("id"), 0)
	if err != nil {
		return h.internalError(c, "failed to list messages", err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (h *handlers) getPersonality(c echo.Context) error {
	personality, err := h.storage.GetPersonality(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found"})
	}
	if err != nil {
		return h.internalError(c, "failed to get personality", err)
	}
	return c.JSON(http.StatusOK, personality)
}

func (h *handlers) updatePersonality(c echo.Context) error {
	var personality entities.Personality
	if err := c.Bind(&personality); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	personality.SessionID = c.Param("id")
	if err := h.storage.UpdatePersonality(c.Request().Context(), &personality); err != nil {
		return h.internalError(c, "failed to update personality", err)
	}
	return c.JSON(http.StatusOK, personality)
}

func (h *handlers) getAnalytics(c echo.Context) error {
	analytics, err := h.storage.GetAnalytics(c.Request().Context(), c.Param("id"))
	if errors.Is(err, repositories.ErrNotFound) {
		// A session with no activity yet has empty analytics, not a 404.
		return c.JSON(http.StatusOK, &entities.Analytics{SessionID: c.Param("id")})
	}
	if err != nil {
		return h.internalError(c, "failed to get analytics", err)
	}
	return c.JSON(http.StatusOK, analytics)
}

func (h *handlers) internalError(c echo.Context, message string, err error) error {
	h.logger.Error(message, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: message,
	})
}
