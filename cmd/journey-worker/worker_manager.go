package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/otelhelper"
)

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	executor *journey.Executor
	eventBus eventbus.EventBus
	tracer   trace.Tracer
}

func NewWorkerManager(
	id string,
	executor *journey.Executor,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	tracer trace.Tracer,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "journey-worker", "worker_id", id),
		executor: executor,
		eventBus: eventBus,
		tracer:   tracer,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.ContactTriggeredEvent, w.handleContactTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.ExecuteStepEvent, w.handleExecuteStep)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

func (w *WorkerManager) handleContactTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.ContactTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ContactTriggered")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.contact_triggered",
		attribute.String(otelhelper.JourneyIDKey, triggered.JourneyID),
		attribute.String(otelhelper.ContactIDKey, triggered.ContactID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With(
		"journey_id", triggered.JourneyID,
		"contact_id", triggered.ContactID,
		"event_id", triggered.ID,
	)
	logger.InfoContext(ctx, "Processing contact triggered command")

	eventsToPublish, err := w.executor.StartExecution(ctx, logger, triggered)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to start execution", "error", err)

		return err
	}

	return w.publish(ctx, logger, triggered.JourneyID, eventsToPublish)
}

func (w *WorkerManager) handleExecuteStep(ctx context.Context, event any) error {
	command, ok := event.(*events.ExecuteStep)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecuteStep")

		return nil
	}

	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.execute_step",
		attribute.String(otelhelper.JourneyIDKey, command.JourneyID),
		attribute.String(otelhelper.ExecutionIDKey, command.ExecutionID),
		attribute.String(otelhelper.StepIDKey, command.StepID),
		attribute.Int(otelhelper.AttemptKey, command.Attempt),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With(
		"journey_id", command.JourneyID,
		"execution_id", command.ExecutionID,
		"step_id", command.StepID,
		"attempt", command.Attempt,
	)
	logger.InfoContext(ctx, "Processing execute step command")

	eventsToPublish, err := w.executor.ExecuteStep(ctx, logger, command)
	if err != nil {
		otelhelper.SetStepError(span, err, command.ExecutionID, command.StepID, command.Attempt)
		logger.ErrorContext(ctx, "Failed to execute step", "error", err)

		return err
	}

	return w.publish(ctx, logger, command.JourneyID, eventsToPublish)
}

func (w *WorkerManager) publish(ctx context.Context, logger *slog.Logger, key string, eventsToPublish []eventbus.Event) error {
	for _, event := range eventsToPublish {
		if err := w.eventBus.Publish(ctx, key, event); err != nil {
			logger.ErrorContext(ctx, "Failed to publish event", "error", err, "event", event)

			return err
		}
	}

	return nil
}
