package handlers

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/apperr"
	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/platform"
	"accessgate/pkg/utils"
)

func GetCurrentUser(c *fiber.Ctx) error {
	user := c.Locals("user").(database.User)

	return c.JSON(user)
}

func GetCurrentUserStats(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	user := c.Locals("user").(database.User)

	stats, err := p.Audit.Stats(c.UserContext(), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(stats)
}

// InsertCookie authorizes a cookie insertion on a website. Every attempt
// lands in the audit log, denied ones included.
func InsertCookie(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	user := c.Locals("user").(database.User)

	type CookieInsertionInput struct {
		Website string `json:"website" validate:"required,max=253"`
	}

	var input CookieInsertionInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Invalid input")
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	if err := p.Permissions.AuthorizeCookieInsertion(c.UserContext(), user.ID, input.Website); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"website": utils.NormalizeWebsite(input.Website),
		"allowed": true,
	})
}
