package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"accessgate/internal/apperr"
	"accessgate/internal/database"
)

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware(c *fiber.Ctx) error {
	user := c.Locals("user").(database.User)

	if !user.IsAdmin {
		log.Debugw("admin route refused", "user_id", user.ID, "path", c.Path())
		return apperr.ErrForbidden
	}

	return c.Next()
}
