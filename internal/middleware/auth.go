package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"accessgate/internal/apperr"
	"accessgate/internal/platform"
)

// AuthMiddleware resolves the bearer token into the calling user. Invalid and
// expired tokens are answered alike; the reason is only logged.
func AuthMiddleware(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return apperr.ErrMissingToken
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

	claims, err := p.Tokens.Verify(token)
	if err != nil {
		log.Debugw("token rejected", "reason", apperr.As(err).Code, "ip", c.IP())
		return apperr.ErrNotAuthenticated
	}

	userID, err := claims.UserID()
	if err != nil {
		return apperr.ErrNotAuthenticated
	}

	user, err := p.Users.Get(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrUserNotFound) {
			log.Debugw("token rejected", "reason", "unknown_user", "user_id", userID)
			return apperr.ErrNotAuthenticated
		}
		return err
	}

	if !user.IsActive {
		return apperr.ErrAccountInactive
	}

	c.Locals("claims", claims)
	c.Locals("user", *user)

	return c.Next()
}
