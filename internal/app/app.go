package app

import (
	"office2pdf/internal/handlers"
	"office2pdf/internal/stats"
	u "office2pdf/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// Deps are the collaborators SetupApp wires into handlers and middleware.
type Deps struct {
	Converter handlers.DocumentConverter
	// Redis backs conversion counters when stats are enabled; may be nil.
	Redis *redis.Client
}

// SetupApp creates and configures a new Fiber app instance
func SetupApp(cfg u.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		Views:                 handlers.NewViews(),
		BodyLimit:             cfg.Limits.MaxUploadBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	app.Use(recover.New())
	RegisterMiddleware(app, cfg, deps)
	RegisterRoutes(app, cfg, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// newRecorder picks Redis-backed counters when enabled and available.
func newRecorder(cfg u.Config, rdb *redis.Client) stats.Recorder {
	if cfg.Cache.StatsEnabled && rdb != nil {
		return stats.NewRedisRecorder(rdb, stats.DefaultRedisKey)
	}
	return stats.NewMemoryRecorder()
}

// RegisterRoutes mounts all route handlers to the app
func RegisterRoutes(app *fiber.App, cfg u.Config, deps Deps) {
	svc := handlers.NewConvertService(cfg, deps.Converter, newRecorder(cfg, deps.Redis))

	app.Get("/", svc.HandleIndex)
	app.Post("/convert", svc.HandleConvert)

	v1 := app.Group("/v1")
	v1.Post("/convert", svc.HandleConvert)
	v1.Get("/stats", svc.HandleStats)
	v1.Get("/monitor", monitor.New())
}
