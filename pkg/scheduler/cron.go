package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// CronSource turns schedule triggers into enrollment commands: every firing
// resolves the trigger's segment and emits a ContactTriggered command per
// member. The entry guard still decides admission for each contact.
type CronSource struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	segments    dispatch.SegmentClient
	publisher   eventbus.EventPublisher
	cron        *cron.Cron
	mu          sync.Mutex
	entries     map[string]cron.EntryID
}

func NewCronSource(
	logger *slog.Logger,
	persistence persistence.Persistence,
	segments dispatch.SegmentClient,
	publisher eventbus.EventPublisher,
) *CronSource {
	return &CronSource{
		logger:      logger.With("module", "cron_source"),
		persistence: persistence,
		segments:    segments,
		publisher:   publisher,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads the enabled schedule triggers and begins firing them.
func (s *CronSource) Start(ctx context.Context) error {
	triggers, err := s.persistence.TriggerRepository().FindSchedules(ctx)
	if err != nil {
		return fmt.Errorf("load schedule triggers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, trigger := range triggers {
		if trigger.CronExpr == "" {
			s.logger.WarnContext(ctx, "Schedule trigger has no cron expression, skipping", "trigger_id", trigger.ID)

			continue
		}

		if _, err := cron.ParseStandard(trigger.CronExpr); err != nil {
			s.logger.WarnContext(ctx, "Invalid cron expression, skipping trigger",
				"trigger_id", trigger.ID,
				"cron_expr", trigger.CronExpr,
				"error", err,
			)

			continue
		}

		t := trigger

		entryID, err := s.cron.AddFunc(trigger.CronExpr, func() {
			s.fire(context.Background(), t)
		})
		if err != nil {
			return fmt.Errorf("register schedule trigger %s: %w", trigger.ID, err)
		}

		s.entries[trigger.ID] = entryID
		s.logger.InfoContext(ctx, "Schedule trigger registered",
			"trigger_id", trigger.ID,
			"journey_id", trigger.JourneyID,
			"cron_expr", trigger.CronExpr,
		)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Cron source started", "triggers", len(s.entries))

	return nil
}

func (s *CronSource) fire(ctx context.Context, trigger *models.JourneyTrigger) {
	logger := s.logger.With("trigger_id", trigger.ID, "journey_id", trigger.JourneyID)

	journey, err := s.persistence.JourneyRepository().GetByID(ctx, trigger.JourneyID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load journey for schedule trigger", "error", err)

		return
	}

	if !journey.IsEnrollable() {
		logger.InfoContext(ctx, "Journey not enrollable, skipping schedule firing", "status", journey.Status)

		return
	}

	contacts, err := s.segments.ContactsInSegment(ctx, journey.OrganizationID, trigger.SegmentID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to resolve segment", "segment_id", trigger.SegmentID, "error", err)

		return
	}

	logger.InfoContext(ctx, "Schedule trigger fired", "contacts", len(contacts))

	for _, contactID := range contacts {
		triggered := events.ContactTriggered{
			BaseEvent: events.NewBaseEvent(events.ContactTriggeredEvent, journey.OrganizationID, journey.ID),
			TriggerID: trigger.ID,
			ContactID: contactID,
			TriggerData: map[string]any{
				"trigger_type": string(trigger.Type),
				"segment_id":   trigger.SegmentID,
			},
		}

		if err := s.publisher.Publish(ctx, journey.ID, triggered); err != nil {
			logger.ErrorContext(ctx, "Failed to publish enrollment command", "contact_id", contactID, "error", err)
		}
	}
}

// Stop halts the cron loop and waits for running firings to finish.
func (s *CronSource) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
