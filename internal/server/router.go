package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// LinkHandler describes the component that turns remote URLs into cached
// artifacts and serves them back. It allows injecting fake handlers during
// tests.
type LinkHandler interface {
	Generate(fiber.Ctx) error
	Retrieve(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Links      LinkHandler
	ListenPort int
}

const contextKeyRequestID = "_templink_request_id"

// NewApp builds a Fiber application with request tracing middleware and
// structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Links == nil {
		return nil, errors.New("link handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get("/", serveIndex)
	app.Post("/generate", opts.Links.Generate)
	app.Get("/download/:name", opts.Links.Retrieve)
	app.Head("/download/:name", opts.Links.Retrieve)

	return app, nil
}

// requestContextMiddleware 负责透传或生成请求 ID，供日志与响应头关联。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := strings.TrimSpace(c.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
