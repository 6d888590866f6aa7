package middleware

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/apperr"
	"accessgate/internal/auth"
	"accessgate/internal/platform"
	"accessgate/internal/platform/activity"
)

const HeaderSessionState = "X-Session-State"

// ActivityMiddleware counts the request as user activity on the session.
// A session that idled past its timeout is refused even when the token is
// still valid. Must run after AuthMiddleware.
func ActivityMiddleware(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	claims := c.Locals("claims").(*auth.Claims)

	state := p.Tracker.Touch(claims.ID, claims.SessionTimeout(), claims.ExpiresAt.Time)
	c.Set(HeaderSessionState, state.String())

	if state == activity.Expired {
		return apperr.ErrSessionExpired
	}

	return c.Next()
}
