package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/feedback"
	"mistake-service/internal/middleware"
	"mistake-service/internal/models"
)

type MistakeService interface {
	RecordMistakes(ctx context.Context, userID string, candidates []models.CandidateMistake) (models.RecordResult, error)
	RecordPracticeResult(ctx context.Context, userID, mistakeID string, success bool, userAnswer string) (*models.PracticeOutcome, error)
	GetDueMistakes(ctx context.Context, userID string, limit int) ([]models.PracticeItem, error)
	GetStatistics(ctx context.Context, userID string) (*models.MistakeStatistics, error)
	ListMistakes(ctx context.Context, userID, status string) ([]models.Mistake, error)
}

type MistakeHandler struct {
	mistakes MistakeService
	log      logrus.FieldLogger
}

func NewMistakeHandler(mistakes MistakeService, log logrus.FieldLogger) *MistakeHandler {
	return &MistakeHandler{
		mistakes: mistakes,
		log:      log.WithField("handler", "mistakes"),
	}
}

// RegisterRoutes expects a router already guarded by middleware.Authenticate.
// fiber runs the trailing handlers first, so the permission check goes last.
func (h *MistakeHandler) RegisterRoutes(protected fiber.Router) {
	group := protected.Group("/mistakes")

	group.Post("/", h.RecordMistakes, middleware.PermissionRequired(middleware.WriteMistakePermission))
	group.Post("/extract", h.ExtractMistakes, middleware.PermissionRequired(middleware.WriteMistakePermission))
	group.Get("/", h.ListMistakes, middleware.PermissionRequired(middleware.ReadMistakePermission))
	group.Get("/due", h.GetDueMistakes, middleware.PermissionRequired(middleware.ReadMistakePermission))
	group.Get("/statistics", h.GetStatistics, middleware.PermissionRequired(middleware.ReadMistakePermission))
	group.Post("/:id/practice", h.RecordPracticeResult, middleware.PermissionRequired(middleware.WriteMistakePermission))
}

type recordMistakesRequest struct {
	Mistakes []models.CandidateMistake `json:"mistakes"`
}

type extractMistakesRequest struct {
	Transcription    string                   `json:"transcription"`
	Feedback         json.RawMessage          `json:"feedback"`
	SituationContext *models.SituationContext `json:"situation_context,omitempty"`
}

type practiceRequest struct {
	WasSuccessful *bool  `json:"was_successful"`
	UserAnswer    string `json:"user_answer,omitempty"`
}

func (h *MistakeHandler) RecordMistakes(c fiber.Ctx) error {
	var req recordMistakesRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Mistakes) == 0 {
		return badRequest(c, "At least one mistake is required")
	}

	return h.record(c, req.Mistakes)
}

func (h *MistakeHandler) ExtractMistakes(c fiber.Ctx) error {
	var req extractMistakesRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(req.Feedback) == 0 {
		return badRequest(c, "Feedback is required")
	}

	detailed, err := feedback.Parse(req.Feedback)
	if err != nil {
		return respondError(c, h.log, err, "Invalid feedback document", nil)
	}

	return h.record(c, feedback.Extract(req.Transcription, detailed, req.SituationContext))
}

func (h *MistakeHandler) record(c fiber.Ctx, candidates []models.CandidateMistake) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.mistakes.RecordMistakes(ctx, middleware.UserID(c), candidates)
	if err != nil {
		return respondError(c, h.log, err, "Failed to record mistakes", fiber.Map{"data": result})
	}

	status := fiber.StatusCreated
	message := "Mistakes recorded successfully"
	if len(result.Skipped) > 0 {
		status = fiber.StatusMultiStatus
		message = "Some mistakes were skipped"
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"data":    result,
	})
}

func (h *MistakeHandler) ListMistakes(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mistakes, err := h.mistakes.ListMistakes(ctx, middleware.UserID(c), c.Query("status"))
	if err != nil {
		return respondError(c, h.log, err, "Failed to list mistakes", nil)
	}
	return c.JSON(fiber.Map{
		"data": mistakes,
	})
}

func (h *MistakeHandler) GetDueMistakes(c fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	items, err := h.mistakes.GetDueMistakes(ctx, middleware.UserID(c), limit)
	if err != nil {
		return respondError(c, h.log, err, "Failed to get due mistakes", nil)
	}
	return c.JSON(fiber.Map{
		"data": items,
	})
}

func (h *MistakeHandler) GetStatistics(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := h.mistakes.GetStatistics(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, h.log, err, "Failed to get statistics", nil)
	}
	return c.JSON(fiber.Map{
		"data": stats,
	})
}

func (h *MistakeHandler) RecordPracticeResult(c fiber.Ctx) error {
	var req practiceRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.WasSuccessful == nil {
		return badRequest(c, "was_successful is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome, err := h.mistakes.RecordPracticeResult(ctx, middleware.UserID(c), c.Params("id"), *req.WasSuccessful, req.UserAnswer)
	if err != nil {
		return respondError(c, h.log, err, "Failed to record practice result", nil)
	}
	return c.JSON(fiber.Map{
		"data": outcome,
	})
}

// queryLimit returns 0 when no limit is given so the tracker applies its default
func queryLimit(c fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
