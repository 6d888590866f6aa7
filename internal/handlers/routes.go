package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	mngmt "accessgate/internal/handlers/management"
	"accessgate/internal/middleware"
	"accessgate/internal/platform"
)

// NewApp builds the HTTP application around p.
func NewApp(p *platform.Platform) *fiber.App {
	// X-Forwarded-For is only honoured from the configured proxies, so the
	// origin written to the login history cannot be chosen by the client.
	app := fiber.New(fiber.Config{
		AppName:                 "accessgate",
		ErrorHandler:            ErrorHandler,
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            10 * time.Second,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          p.Config.TrustedProxies,
		EnableIPValidation:      true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(compress.New())
	app.Use(helmet.New())
	app.Use(healthcheck.New())
	app.Use(middleware.RobotsMiddleware)

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("platform", p)
		return c.Next()
	})

	Register(app)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.ErrNotFound
	})

	return app
}

func Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/diag/ip", GetIP)

	auth := api.Group("/auth")
	auth.Post("/signin", SigninWithPassword)
	auth.Post("/logout", middleware.AuthMiddleware, Logout)
	auth.Get("/session", middleware.AuthMiddleware, GetSession)

	user := api.Group("/user", middleware.AuthMiddleware, middleware.ActivityMiddleware)
	user.Get("/me", GetCurrentUser)
	user.Get("/me/stats", GetCurrentUserStats)
	user.Post("/cookie-insertions", InsertCookie)

	admin := api.Group("/admin", middleware.AuthMiddleware, middleware.ActivityMiddleware, middleware.AdminMiddleware)
	admin.Get("/websites", mngmt.GetWebsites)
	admin.Post("/users", mngmt.CreateUser)
	admin.Get("/users", mngmt.GetAllUsers)
	admin.Post("/users/bulk-active", mngmt.BulkSetActive)
	admin.Get("/users/:user_id", mngmt.GetUser)
	admin.Put("/users/:user_id", mngmt.UpdateUser)
	admin.Put("/users/:user_id/permissions", mngmt.SetUserPermissions)
	admin.Put("/users/:user_id/permissions/:website", mngmt.GrantPermission)
	admin.Delete("/users/:user_id/permissions/:website", mngmt.RevokePermission)
	admin.Get("/users/:user_id/audit", mngmt.GetUserAudit)
	admin.Post("/users/:user_id/audit/export", mngmt.ExportUserAudit)
}
