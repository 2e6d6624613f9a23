package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/events"
)

const (
	delayedSetKey  = "journey:scheduled"
	pollInterval   = time.Second
	connectTimeout = 5 * time.Second
)

// RedisScheduler stores deferred commands in a Redis sorted set scored by due
// time, so they survive worker restarts. Run polls for due commands and puts
// them back on the bus.
type RedisScheduler struct {
	logger    *slog.Logger
	client    *redis.Client
	publisher eventbus.EventPublisher
}

func NewRedisScheduler(ctx context.Context, logger *slog.Logger, redisURL string, publisher eventbus.EventPublisher) (*RedisScheduler, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &RedisScheduler{
		logger:    logger.With("module", "scheduler"),
		client:    client,
		publisher: publisher,
	}, nil
}

func (s *RedisScheduler) ScheduleStep(ctx context.Context, at time.Time, command events.ExecuteStep) error {
	payload, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("marshal scheduled command: %w", err)
	}

	err = s.client.ZAdd(ctx, delayedSetKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue scheduled command: %w", err)
	}

	s.logger.DebugContext(ctx, "Command scheduled",
		"execution_id", command.ExecutionID,
		"step_id", command.StepID,
		"attempt", command.Attempt,
		"at", at,
	)

	return nil
}

// Run polls the delayed queue until the context ends, publishing every
// command whose due time has passed. A command is removed only after a
// successful publish, so delivery stays at-least-once across crashes.
func (s *RedisScheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Delayed queue poller started")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Delayed queue poller stopped")

			return ctx.Err()
		case <-ticker.C:
			if err := s.deliverDue(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Failed to deliver due commands", "error", err)
			}
		}
	}
}

func (s *RedisScheduler) deliverDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	members, err := s.client.ZRangeByScore(ctx, delayedSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("read due commands: %w", err)
	}

	for _, member := range members {
		var command events.ExecuteStep
		if err := json.Unmarshal([]byte(member), &command); err != nil {
			s.logger.ErrorContext(ctx, "Dropping malformed scheduled command", "error", err)
			s.client.ZRem(ctx, delayedSetKey, member)

			continue
		}

		if err := s.publisher.Publish(ctx, command.JourneyID, command); err != nil {
			return fmt.Errorf("publish scheduled command: %w", err)
		}

		if err := s.client.ZRem(ctx, delayedSetKey, member).Err(); err != nil {
			return fmt.Errorf("remove delivered command: %w", err)
		}

		s.logger.InfoContext(ctx, "Delivered scheduled command",
			"execution_id", command.ExecutionID,
			"step_id", command.StepID,
			"attempt", command.Attempt,
		)
	}

	return nil
}

func (s *RedisScheduler) Close() error {
	return s.client.Close()
}
