package server

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mirror-hub/mirror-hub/internal/logging"
	"github.com/mirror-hub/mirror-hub/internal/store"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Mirrors    *MirrorSet
	ListenPort int
}

const contextKeyRequestID = "_mirrorhub_request_id"

// NewApp builds a Fiber application that serves committed mirror objects and
// the diagnostics surface, with request-ID middleware and structured error
// handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Mirrors == nil {
		return nil, errors.New("mirror set is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/objects/:mirror/*", serveObject(opts))

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID 并写入响应头，供日志关联使用。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// serveObject 只提供已提交的副本；暂存文件对外永远不可见。
func serveObject(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		name := c.Params("mirror")
		key := c.Params("*")
		requestID := RequestID(c)

		orch, ok := opts.Mirrors.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "mirror_not_found"})
		}

		st := orch.Registry().Store()
		info, err := st.Stat(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "object_not_found"})
			}
			opts.Logger.WithError(err).
				WithFields(logging.RequestFields(name, key, requestID, false)).
				Error("object_stat_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "object_stat_failed"})
		}

		reader, err := st.OpenRead(key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "object_not_found"})
			}
			opts.Logger.WithError(err).
				WithFields(logging.RequestFields(name, key, requestID, false)).
				Error("object_read_failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "object_read_failed"})
		}
		defer reader.Close()

		if info.SizeBytes > 0 {
			c.Response().Header.SetContentLength(int(info.SizeBytes))
		}
		c.Status(fiber.StatusOK)

		_, copyErr := io.Copy(c.Response().BodyWriter(), reader)
		opts.Logger.WithFields(logging.RequestFields(name, key, requestID, true)).Info("object_served")
		if copyErr != nil {
			return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read object failed: %v", copyErr))
		}
		return nil
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
