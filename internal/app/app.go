// Package app assembles the bookstore service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore/internal/database"
	"bookstore/internal/handlers"
	"bookstore/internal/middleware"
	"bookstore/internal/notifier"
	"bookstore/internal/repositories"
	"bookstore/internal/services"
	"bookstore/pkg/config"
	"bookstore/pkg/rabbitmq"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// App is a fully wired service ready to listen.
type App struct {
	Fiber  *fiber.App
	DB     *gorm.DB
	Orders *services.OrderService
	Auth   *services.AuthService

	cfg *config.Config
	mq  *rabbitmq.Client
	log zerolog.Logger
}

// New opens the database, prepares the schema, seeds the administrator and
// builds the HTTP application. Nothing listens until Listen is called.
func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}

	a := &App{DB: db, cfg: cfg, log: log}

	alerts, err := a.buildNotifier()
	if err != nil {
		database.Close(db)
		return nil, err
	}

	productRepo := repositories.NewGORMProductRepository(db)
	userRepo := repositories.NewGORMUserRepository(db)

	productService := services.NewProductService(productRepo, log)
	a.Orders = services.NewOrderService(productRepo, alerts, services.OrderAlert{
		To:      cfg.Notify.To,
		Subject: cfg.Notify.Subject,
		Timeout: cfg.Notify.Timeout,
		Async:   cfg.Notify.Async,
	}, log)
	a.Auth = services.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.TTL, log)

	if err := a.Auth.EnsureAdmin(context.Background(), cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to seed administrator: %w", err)
	}

	a.Fiber = fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	})
	a.Fiber.Use(recover.New())
	a.Fiber.Use(fiberlogger.New(fiberlogger.Config{Output: log}))

	guard := middleware.AuthRequired(a.Auth, log)
	productHandler := handlers.NewProductHandler(productService, log)
	orderHandler := handlers.NewOrderHandler(a.Orders, log)
	authHandler := handlers.NewAuthHandler(a.Auth, log)

	apiV1 := a.Fiber.Group("/api/v1")
	productHandler.RegisterRoutes(apiV1)
	productHandler.RegisterAdminRoutes(apiV1, guard)
	orderHandler.RegisterRoutes(apiV1)
	authHandler.RegisterRoutes(apiV1, guard)

	a.Fiber.Get("/health", a.handleHealth)

	return a, nil
}

// buildNotifier picks the order alert transport. With rabbitmq, alerts are
// queued and a consumer relays them to SMTP.
func (a *App) buildNotifier() (notifier.Notifier, error) {
	mailer := notifier.NewSMTPNotifier(a.cfg.Mail)
	if !a.cfg.Mail.Enabled() {
		a.log.Warn().Msg("SMTP_HOST or SMTP_PORT not set, order alerts will be skipped")
	}

	if a.cfg.Notify.Transport != config.TransportRabbitMQ {
		return mailer, nil
	}

	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: a.cfg.MQ.URL, Queue: a.cfg.MQ.Queue}, a.log)
	if err != nil {
		return nil, err
	}
	if err := mq.Consume(notifier.Relay(mailer, a.cfg.Notify.Timeout)); err != nil {
		mq.Close()
		return nil, err
	}
	a.mq = mq
	return notifier.NewQueueNotifier(mq), nil
}

func (a *App) handleHealth(c *fiber.Ctx) error {
	status, dbState := "healthy", "up"
	code := fiber.StatusOK
	if err := database.Ping(c.UserContext(), a.DB, 2*time.Second); err != nil {
		a.log.Warn().Err(err).Msg("health check: database unreachable")
		status, dbState = "unhealthy", "down"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":        status,
		"time":          time.Now().Format(time.RFC3339),
		"database":      dbState,
		"notifications": a.cfg.Notify.Transport,
		"mail":          a.cfg.Mail.Enabled(),
	})
}

// Listen serves HTTP on the configured port until Shutdown.
func (a *App) Listen() error {
	a.log.Info().Str("addr", a.cfg.App.Port).Msg("starting server")
	return a.Fiber.Listen(a.cfg.App.Port)
}

// Shutdown stops accepting requests, lets pending order alerts finish and
// releases the broker and database.
func (a *App) Shutdown() error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
		}
	}
	if a.Orders != nil {
		a.Orders.Wait()
	}
	if err := a.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the broker connection and the database.
func (a *App) Close() error {
	var errs []error
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq close: %w", err))
		}
		a.mq = nil
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
		a.DB = nil
	}
	return errors.Join(errs...)
}
