package mngmt

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/database"
	"accessgate/internal/platform"
)

func GetUserAudit(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	history, err := p.Audit.History(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(history)
}

// ExportUserAudit stores the ledger of a user in the export bucket.
func ExportUserAudit(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	admin := c.Locals("user").(database.User)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	key, err := p.Export.Export(c.UserContext(), uid, admin.ID)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}
