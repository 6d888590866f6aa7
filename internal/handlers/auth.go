package handlers

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/apperr"
	"accessgate/internal/auth"
	"accessgate/internal/config"
	"accessgate/internal/middleware"
	"accessgate/internal/platform"
	"accessgate/internal/platform/activity"
)

func clientIP(c *fiber.Ctx) string {
	return c.IP()
}

func SigninWithPassword(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	type LoginInput struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Invalid input")
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	result, err := p.Users.Authenticate(c.UserContext(), input.Email, input.Password, clientIP(c), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Logout ends the session of the presented token. Other sessions of the same
// user stay valid.
func Logout(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	claims := c.Locals("claims").(*auth.Claims)

	p.Tracker.End(claims.ID, claims.ExpiresAt.Time)

	return c.SendStatus(fiber.StatusNoContent)
}

// GetSession reports the idle state of the current session. Polling it does
// not count as activity.
func GetSession(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	claims := c.Locals("claims").(*auth.Claims)

	snap, ok := p.Tracker.Status(claims.ID)
	if !ok {
		p.Tracker.Touch(claims.ID, claims.SessionTimeout(), claims.ExpiresAt.Time)
		snap, _ = p.Tracker.Status(claims.ID)
	}

	c.Set(middleware.HeaderSessionState, snap.StateName)
	if snap.State == activity.Expired {
		return apperr.ErrSessionExpired
	}

	return c.JSON(fiber.Map{
		"state":            snap.StateName,
		"last_activity":    snap.LastActivity,
		"idle_seconds":     int64(snap.IdleFor.Seconds()),
		"expires_at":       snap.ExpiresAt,
		"token_expires_at": claims.ExpiresAt.Time,
		"check_interval":   int64(p.Tracker.CheckInterval().Seconds()),
	})
}
