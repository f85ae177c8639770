package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/models"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrNothingDue):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrSessionCompleted):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError logs once and writes the error envelope. Server-side failures get a
// generic message; caller errors are echoed back.
func respondError(c fiber.Ctx, log logrus.FieldLogger, err error, message string, extra fiber.Map) error {
	status := statusFor(err)

	entry := log.WithError(err).WithFields(logrus.Fields{
		"path":   c.Path(),
		"status": status,
	})
	body := fiber.Map{"error": message}
	if status >= fiber.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
		body["error"] = err.Error()
	}

	for k, v := range extra {
		body[k] = v
	}
	return c.Status(status).JSON(body)
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": message,
	})
}
