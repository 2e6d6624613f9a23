// Package main provides the journey API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/persistence"
	"github.com/campaignkit/journey/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *dispatch.Registry
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *dispatch.Registry,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	journeyService := journey.NewService(a.persistence)
	publishingService := journey.NewPublishingService(a.persistence, a.registry)

	handlers := web.NewAPIHandlers(
		a.logger,
		journeyService,
		publishingService,
		a.persistence,
		a.validate,
		a.registry,
		a.eventBus,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journey API")
	})

	j := app.Group("/journeys")
	j.Get("/", handlers.GetJourneys)
	j.Post("/", handlers.CreateJourney)
	j.Get("/:id", handlers.GetJourney)
	j.Patch("/:id", handlers.UpdateJourney)
	j.Delete("/:id", handlers.DeleteJourney)
	j.Post("/:id/archive", handlers.ArchiveJourney)
	j.Post("/:id/publish", handlers.PublishJourney)
	j.Post("/:id/pause", handlers.PauseJourney)
	j.Post("/:id/resume", handlers.ResumeJourney)
	j.Get("/:id/versions", handlers.GetJourneyVersions)
	j.Get("/:id/executions", handlers.GetJourneyExecutions)

	app.Post("/events", handlers.IngestEvent)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
