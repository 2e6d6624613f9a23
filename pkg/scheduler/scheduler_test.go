package scheduler_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence/file"
	"github.com/campaignkit/journey/pkg/scheduler"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturePublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *capturePublisher) published() []eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]eventbus.Event(nil), p.events...)
}

func command(executionID, stepID string, attempt int) events.ExecuteStep {
	return events.ExecuteStep{
		BaseEvent:   events.NewBaseEvent(events.ExecuteStepEvent, "org-1", "journey-1"),
		ExecutionID: executionID,
		StepID:      stepID,
		Attempt:     attempt,
	}
}

func TestMemoryScheduler_DeliversAfterDelay(t *testing.T) {
	publisher := &capturePublisher{}
	s := scheduler.NewMemoryScheduler(testLogger(), publisher)
	defer s.Stop()

	err := s.ScheduleStep(context.Background(), time.Now().Add(20*time.Millisecond), command("exec-1", "step-1", 2))
	require.NoError(t, err)

	assert.Empty(t, publisher.published())

	assert.Eventually(t, func() bool {
		return len(publisher.published()) == 1
	}, time.Second, 5*time.Millisecond)

	delivered, ok := publisher.published()[0].(events.ExecuteStep)
	require.True(t, ok)
	assert.Equal(t, "exec-1", delivered.ExecutionID)
	assert.Equal(t, 2, delivered.Attempt)
}

func TestMemoryScheduler_PastDueDeliversImmediately(t *testing.T) {
	publisher := &capturePublisher{}
	s := scheduler.NewMemoryScheduler(testLogger(), publisher)
	defer s.Stop()

	err := s.ScheduleStep(context.Background(), time.Now().Add(-time.Minute), command("exec-1", "step-1", 1))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(publisher.published()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryScheduler_StopCancelsPending(t *testing.T) {
	publisher := &capturePublisher{}
	s := scheduler.NewMemoryScheduler(testLogger(), publisher)

	err := s.ScheduleStep(context.Background(), time.Now().Add(time.Hour), command("exec-1", "step-1", 1))
	require.NoError(t, err)

	s.Stop()

	assert.Empty(t, publisher.published())

	// Scheduling after Stop is a no-op, not a panic.
	err = s.ScheduleStep(context.Background(), time.Now(), command("exec-2", "step-1", 1))
	require.NoError(t, err)
}

type staticSegments struct {
	contacts []string
}

func (s *staticSegments) ContactsInSegment(_ context.Context, _, _ string) ([]string, error) {
	return s.contacts, nil
}

var _ dispatch.SegmentClient = (*staticSegments)(nil)

func TestCronSource_SkipsInvalidExpressions(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	ctx := context.Background()

	j := &models.Journey{
		ID:               "journey-1",
		OrganizationID:   "org-1",
		Name:             "Scheduled",
		Status:           models.JourneyStatusPublished,
		CurrentVersionID: "version-1",
		Triggers: []*models.JourneyTrigger{
			{ID: "bad", Type: models.TriggerTypeSchedule, CronExpr: "not a cron", Enabled: true},
			{ID: "empty", Type: models.TriggerTypeSchedule, Enabled: true},
			{ID: "good", Type: models.TriggerTypeSchedule, CronExpr: "0 9 * * *", SegmentID: "seg-1", Enabled: true},
		},
	}
	require.NoError(t, p.JourneyRepository().Save(ctx, j))

	publisher := &capturePublisher{}
	source := scheduler.NewCronSource(testLogger(), p, &staticSegments{contacts: []string{"c-1"}}, publisher)

	require.NoError(t, source.Start(ctx))
	source.Stop()

	// Only the valid trigger is registered; nothing fires at 9am during the
	// test, so no events are published.
	assert.Empty(t, publisher.published())
}
