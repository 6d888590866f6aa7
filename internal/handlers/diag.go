package handlers

import "github.com/gofiber/fiber/v2"

// GetIP echoes the client address as it would be recorded in the login
// history.
func GetIP(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ip": clientIP(c)})
}
