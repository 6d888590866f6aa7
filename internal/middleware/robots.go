package middleware

import "github.com/gofiber/fiber/v2"

const robotsBody = "User-agent: *\nDisallow: /\n"

// RobotsMiddleware keeps crawlers away from the API.
func RobotsMiddleware(c *fiber.Ctx) error {
	if c.Path() == "/robots.txt" {
		c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
		c.Type("txt")
		return c.SendString(robotsBody)
	}
	return c.Next()
}
