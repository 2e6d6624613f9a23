package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/campaignkit/journey/pkg/clients"
	"github.com/campaignkit/journey/pkg/cmd"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/log"
	"github.com/campaignkit/journey/pkg/otelhelper"
	"github.com/campaignkit/journey/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers to execute journey steps",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "platform-url",
				Usage:    "Base URL of the marketing platform API",
				Required: true,
				Sources:  cli.EnvVars("PLATFORM_URL"),
			},
			&cli.StringFlag{
				Name:    "platform-api-key",
				Usage:   "API key for the marketing platform API",
				Value:   "",
				Sources: cli.EnvVars("PLATFORM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for durable step scheduling (in-process timers if unset)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.IntFlag{
				Name:    "max-attempts",
				Usage:   "Maximum dispatch attempts per step before the execution fails",
				Value:   3,
				Sources: cli.EnvVars("MAX_ATTEMPTS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("journey-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing journey worker")

			tracer, err := otelhelper.NewTracer(ctx, "journey-worker")
			if err != nil {
				return err
			}

			platform := clients.NewPlatformClient(
				command.String("platform-url"),
				command.String("platform-api-key"),
			)

			registry := cmd.NewRegistry(logger, platform)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			var stepScheduler journey.StepScheduler

			if redisURL := command.String("redis-url"); redisURL != "" {
				redisScheduler, err := scheduler.NewRedisScheduler(ctx, logger, redisURL, eventBus)
				if err != nil {
					return err
				}

				defer func() {
					if err := redisScheduler.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close redis scheduler", "error", err)
					}
				}()

				stepScheduler = redisScheduler
			} else {
				memoryScheduler := scheduler.NewMemoryScheduler(logger, eventBus)
				defer memoryScheduler.Stop()

				stepScheduler = memoryScheduler
			}

			config := journey.DefaultConfig()
			config.MaxAttempts = command.Int("max-attempts")

			executor := journey.NewExecutor(persistence, registry, platform, stepScheduler, config)

			worker := NewWorkerManager(workerID, executor, eventBus, logger, tracer)

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start event-driven worker", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
