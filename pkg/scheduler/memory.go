// Package scheduler delivers deferred advance commands: wait-step wake-ups,
// retry backoff and cron-driven enrollment triggers.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
)

// MemoryScheduler keeps deferred commands in process timers. Suitable for a
// single worker and for tests; pending commands are lost on restart, use the
// Redis scheduler when durability matters.
type MemoryScheduler struct {
	logger    *slog.Logger
	publisher eventbus.EventPublisher
	wg        sync.WaitGroup
	mu        sync.Mutex
	timers    map[*time.Timer]struct{}
	stopped   bool
}

func NewMemoryScheduler(logger *slog.Logger, publisher eventbus.EventPublisher) *MemoryScheduler {
	return &MemoryScheduler{
		logger:    logger.With("module", "scheduler"),
		publisher: publisher,
		timers:    make(map[*time.Timer]struct{}),
	}
}

func (s *MemoryScheduler) ScheduleStep(ctx context.Context, at time.Time, command events.ExecuteStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.wg.Add(1)

	var timer *time.Timer

	timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()

		s.mu.Lock()
		delete(s.timers, timer)
		stopped := s.stopped
		s.mu.Unlock()

		if stopped {
			return
		}

		err := s.publisher.Publish(context.Background(), command.JourneyID, command)
		if err != nil {
			s.logger.Error("Failed to publish scheduled command",
				"error", err,
				"execution_id", command.ExecutionID,
				"step_id", command.StepID,
			)
		}
	})

	s.timers[timer] = struct{}{}

	s.logger.DebugContext(ctx, "Command scheduled",
		"execution_id", command.ExecutionID,
		"step_id", command.StepID,
		"attempt", command.Attempt,
		"at", at,
	)

	return nil
}

// Stop cancels pending timers and waits for in-flight deliveries.
func (s *MemoryScheduler) Stop() {
	s.mu.Lock()
	s.stopped = true

	for timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}

		delete(s.timers, timer)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
