package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AggregateHandler describes the component serving aggregate reads. It
// allows injecting fake handlers during tests.
type AggregateHandler interface {
	HandleDetail(fiber.Ctx) error
	HandleListing(fiber.Ctx) error
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Handler    AggregateHandler
	ListenPort int
}

const contextKeyRequestID = "_cataloged_request_id"

// NewApp builds a Fiber application with request-id middleware, structured
// error handling, and the aggregate read routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("aggregate handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/v1/products", opts.Handler.HandleListing)
	app.Get("/v1/products/:id", opts.Handler.HandleDetail)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 UUID 并写入响应头，贯穿日志链路。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID 取出中间件生成的请求 id，取不到时返回空串。
func RequestID(c fiber.Ctx) string {
	if v, ok := c.Locals(contextKeyRequestID).(string); ok {
		return v
	}
	return ""
}
