package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/genomehub/metareg/pkg/config"
	"github.com/genomehub/metareg/pkg/contract"
	"github.com/genomehub/metareg/pkg/service"
)

// Launch runs the registry HTTP server until the context is cancelled. The
// wire surface is a thin JSON translation of the service API; it carries no
// invariants of its own.
func Launch(ctx context.Context, log *logrus.Logger, cfg *config.Config) error {
	metadataService, err := service.NewMetadataService(log, cfg)
	if err != nil {
		return err
	}

	app := NewApp(cfg, metadataService)

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout.Duration); err != nil {
			log.Errorf("Failed to gracefully shutdown registry server: %v", err)
		}
	}()

	if err := app.Listen(cfg.Address); err != nil {
		return fmt.Errorf("failed to start registry server: %w", err)
	}

	return nil
}

func NewApp(cfg *config.Config, metadataService *service.MetadataService) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             1024 * 1024,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          600 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "metareg/" + cfg.Version,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(compress.New())
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New(logger.Config{
		Format: "${status} - ${latency} ${method} ${path}\n",
		Output: logrus.StandardLogger().Writer(),
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/version", func(c *fiber.Ctx) error {
		return c.SendString(cfg.Version)
	})

	registerRoutes(app.Group("/api/v1"), metadataService, NewHTTPRequestParser())

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var e *contract.Error
	if !errors.As(err, &e) {
		code := contract.ErrorCodeInternalError

		var f *fiber.Error
		if errors.As(err, &f) {
			switch f.Code {
			case fiber.StatusBadRequest:
				code = contract.ErrorCodeBadRequest
			case fiber.StatusNotFound:
				code = contract.ErrorCodeEndpointNotFound
			}
		}

		e = contract.NewError(code, err.Error())
	}

	var fn func(format string, args ...any)

	switch e.StatusCode() {
	case fiber.StatusBadRequest, fiber.StatusConflict, fiber.StatusUnprocessableEntity:
		fn = logrus.Infof
	case fiber.StatusNotFound:
		fn = logrus.Debugf
	default:
		fn = logrus.Errorf
	}

	fn("Error encountered in %s %s: %s", c.Method(), c.Path(), err)

	return c.Status(e.StatusCode()).JSON(e)
}
