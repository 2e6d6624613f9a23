package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignkit/journey/pkg/channels/gochannel"
	"github.com/campaignkit/journey/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)

	received := make(chan *events.ExecuteStep, 1)
	err := bus.Handle(events.ExecuteStepEvent, func(_ context.Context, event any) error {
		command, ok := event.(*events.ExecuteStep)
		require.True(t, ok)
		received <- command

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Subscribe(ctx))

	command := events.ExecuteStep{
		BaseEvent:   events.NewBaseEvent(events.ExecuteStepEvent, "org-1", "journey-1"),
		ExecutionID: "exec-1",
		StepID:      "step-1",
		Attempt:     1,
	}
	require.NoError(t, bus.Publish(ctx, "exec-1", command))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, "step-1", got.StepID)
		assert.Equal(t, 1, got.Attempt)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for command")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newTestBus(t)
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type: the message must be acked and
	// dropped, not redelivered forever.
	event := events.JourneyPaused{BaseEvent: events.NewBaseEvent(events.JourneyPausedEvent, "org-1", "journey-1")}
	require.NoError(t, bus.Publish(ctx, "journey-1", event))
}

func TestTopicFor(t *testing.T) {
	assert.Equal(t, events.CommandTopic, topicFor(events.ExecuteStepEvent))
	assert.Equal(t, events.CommandTopic, topicFor(events.ContactTriggeredEvent))
	assert.Equal(t, events.EventTopic, topicFor(events.ExecutionCompletedEvent))
	assert.Equal(t, events.EventTopic, topicFor(events.JourneyPublishedEvent))
}
