package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// accessLogFormat keeps fiber's access line and appends the correlation id.
const accessLogFormat = "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:correlation_id} | ${error}\n"

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// CORSOrigins is a comma separated allow list; empty allows every origin.
	CORSOrigins string
	// AccessLog writes fiber's plain access lines; nil disables them.
	AccessLog io.Writer
}

// Register attaches the middlewares shared by every route: panic recovery, correlation ids,
// metrics with structured request logs, the optional access log and CORS.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(CorrelationID())
	app.Use(Observability(requestLogger))
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{Format: accessLogFormat, Output: cfg.AccessLog}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  corsOrigins(cfg.CORSOrigins),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + HeaderCorrelationID,
		AllowMethods:  "GET,POST,PATCH,OPTIONS",
		ExposeHeaders: HeaderCorrelationID + ", X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After",
	}))
}

func corsOrigins(raw string) string {
	origins := make([]string, 0)
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}
