// Package main provides the journey scheduler: it wakes waiting executions
// whose timers came due and fires cron-driven schedule triggers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/campaignkit/journey/pkg/clients"
	"github.com/campaignkit/journey/pkg/cmd"
	"github.com/campaignkit/journey/pkg/log"
	"github.com/campaignkit/journey/pkg/scheduler"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-scheduler",
		Usage:                 "Deliver due wait-step wake-ups and fire schedule triggers",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
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
				Name:     "redis-url",
				Usage:    "Redis URL backing the delayed command queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("journey-scheduler")

			logger.InfoContext(ctx, "Initializing journey scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			redisScheduler, err := scheduler.NewRedisScheduler(ctx, logger, command.String("redis-url"), eventBus)
			if err != nil {
				return err
			}

			defer func() {
				if err := redisScheduler.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close redis scheduler", "error", err)
				}
			}()

			platform := clients.NewPlatformClient(
				command.String("platform-url"),
				command.String("platform-api-key"),
			)

			cronSource := scheduler.NewCronSource(logger, persistence, platform, eventBus)
			if err := cronSource.Start(ctx); err != nil {
				return err
			}

			defer cronSource.Stop()

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				if err := redisScheduler.Run(runCtx); err != nil {
					logger.ErrorContext(runCtx, "Delayed queue loop stopped", "error", err)
				}
			}()

			logger.InfoContext(ctx, "Scheduler started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler...")

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
