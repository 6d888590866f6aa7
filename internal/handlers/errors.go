package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"accessgate/internal/apperr"
)

// ErrorHandler answers every failed request with {"error": code, "message": msg}.
// Internal failures are logged and never leak their cause.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "http_error"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "not_found"
		case fiber.StatusMethodNotAllowed:
			code = "method_not_allowed"
		case fiber.StatusRequestEntityTooLarge:
			code = "body_too_large"
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": code, "message": fe.Message})
	}

	e := apperr.As(err)
	if e.Kind == apperr.KindInternal {
		log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
	}

	return c.Status(apperr.Status(e)).JSON(fiber.Map{
		"error":   e.Code,
		"message": e.Message,
	})
}
