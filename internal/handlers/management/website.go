package mngmt

import (
	"github.com/gofiber/fiber/v2"

	"accessgate/internal/platform"
)

type Website struct {
	Website string `json:"website"`
}

// GetWebsites lists every website that appears in any permission set,
// sorted ascending.
func GetWebsites(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	websites, err := p.Permissions.ListDistinctWebsites(c.UserContext())
	if err != nil {
		return err
	}

	result := make([]Website, len(websites))
	for i, w := range websites {
		result[i] = Website{Website: w}
	}

	return c.JSON(result)
}
