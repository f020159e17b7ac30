package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "sweetshop/internal/log"
	"sweetshop/internal/services"
)

type AppOptions struct {
	CORSOrigins string
	// Storage backs the rate limiters; nil keeps counters in memory.
	Storage fiber.Storage
	// RateMax is the per-IP request budget per minute across the API.
	RateMax int
	// AuthRateMax is the per-IP budget for register/login per 10 minutes.
	AuthRateMax int
	AccessLog   bool
}

func (o AppOptions) withDefaults() AppOptions {
	if o.CORSOrigins == "" {
		o.CORSOrigins = "*"
	}
	if o.RateMax <= 0 {
		o.RateMax = 120
	}
	if o.AuthRateMax <= 0 {
		o.AuthRateMax = 10
	}
	return o
}

// NewApp builds the Fiber app with middleware and every route mounted.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	opts = opts.withDefaults()

	app := fiber.New(fiber.Config{
		AppName:      "sweetshop",
		BodyLimit:    1 << 20, // 1 MiB
		ErrorHandler: ErrorHandler,
	})

	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        opts.RateMax,
		Expiration: time.Minute,
		Storage:    opts.Storage,
		LimitReached: func(c *fiber.Ctx) error {
			c.Status(fiber.StatusTooManyRequests)
			applog.Security(c, "rate.api.hit", nil)
			return message(c, fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	}))

	authLimiter := limiter.New(limiter.Config{
		Max:        opts.AuthRateMax,
		Expiration: 10 * time.Minute,
		Storage:    opts.Storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|auth"
		},
		LimitReached: func(c *fiber.Ctx) error {
			c.Status(fiber.StatusTooManyRequests)
			applog.Security(c, "rate.auth.hit", nil)
			return message(c, fiber.StatusTooManyRequests, "Too many attempts. Please try again later.")
		},
	})
	auth := api.Group("/auth", authLimiter)
	auth.Post("/register", d.AuthHandler.Register)
	auth.Post("/login", d.AuthHandler.Login)

	sh := d.SweetHandler
	sweets := api.Group("/sweets", RequireAuth(d.Tokens))
	sweets.Post("/", Allow(services.OpCreate), sh.Create)
	sweets.Get("/", Allow(services.OpList), sh.List)
	sweets.Get("/search", Allow(services.OpSearch), sh.Search)
	sweets.Put("/:id", Allow(services.OpUpdate), sh.Update)
	sweets.Delete("/:id", Allow(services.OpDelete), sh.Delete)
	sweets.Post("/:id/purchase", Allow(services.OpPurchase), sh.Purchase)
	sweets.Post("/:id/restock", Allow(services.OpRestock), sh.Restock)

	app.Use(func(c *fiber.Ctx) error {
		return message(c, fiber.StatusNotFound, "route not found")
	})
	return app
}
