package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/middleware"
	"mistake-service/internal/models"
)

type SessionService interface {
	StartSession(ctx context.Context, userID string, limit int) (*models.StartedSession, error)
	CompleteSession(ctx context.Context, userID, sessionID string) (*models.PracticeSession, error)
}

type SessionHandler struct {
	sessions SessionService
	log      logrus.FieldLogger
}

func NewSessionHandler(sessions SessionService, log logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.WithField("handler", "practice_sessions"),
	}
}

func (h *SessionHandler) RegisterRoutes(protected fiber.Router) {
	group := protected.Group("/practice-sessions")

	group.Post("/", h.StartSession, middleware.PermissionRequired(middleware.WriteMistakePermission))
	group.Post("/:id/complete", h.CompleteSession, middleware.PermissionRequired(middleware.WriteMistakePermission))
}

func (h *SessionHandler) StartSession(c fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	started, err := h.sessions.StartSession(ctx, middleware.UserID(c), limit)
	if err != nil {
		return respondError(c, h.log, err, "Failed to start practice session", nil)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Practice session started",
		"data":    started,
	})
}

func (h *SessionHandler) CompleteSession(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := h.sessions.CompleteSession(ctx, middleware.UserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err, "Failed to complete practice session", nil)
	}
	return c.JSON(fiber.Map{
		"message": "Practice session completed",
		"data":    session,
	})
}
