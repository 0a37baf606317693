package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-courseware-api/internal/config"
	"github.com/noah-isme/gema-courseware-api/internal/handler"
	"github.com/noah-isme/gema-courseware-api/internal/middleware"
	"github.com/noah-isme/gema-courseware-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	ProgressHandler   *handler.ProgressHandler
	CourseHandler     *handler.CourseHandler
	AssignmentHandler *handler.AssignmentHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
	SubmitRateLimit   fiber.Handler
	DisableMetrics    bool
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	if !deps.DisableMetrics {
		app.Get("/metrics", observability.MetricsHandler())
	}

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = passthrough
	}
	rateLimit := deps.SubmitRateLimit
	if rateLimit == nil {
		rateLimit = passthrough
	}

	staffOnly := middleware.StaffOnly()
	v2 := app.Group("/api/v2", jwtMiddleware, middleware.Authenticated())

	if deps.SubmissionHandler != nil {
		submissions := v2.Group("/submissions", rateLimit)
		deps.SubmissionHandler.Register(submissions, middleware.StudentOnly(), staffOnly)
	}

	courses := v2.Group("/courses")
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.Register(courses)
	}
	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(courses, staffOnly)
	}

	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(v2.Group("/assignments"), staffOnly)
	}

	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(v2.Group("/activity", staffOnly))
	}
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}
