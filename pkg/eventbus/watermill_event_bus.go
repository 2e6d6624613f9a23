package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/campaignkit/journey/pkg/events"
)

// WatermillEventBus routes commands and lifecycle events over any watermill
// publisher/subscriber pair (gochannel in dev and tests, Kafka in production).
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

// topicFor separates inbound commands from outbound notifications so workers
// can consume the command topic without replaying their own emissions.
func topicFor(eventType events.EventType) string {
	switch eventType {
	case events.ContactTriggeredEvent, events.ExecuteStepEvent:
		return events.CommandTopic
	default:
		return events.EventTopic
	}
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(topicFor(event.GetType()), msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.CommandTopic, events.EventTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		event := newEventOfType(eventType)
		if event == nil {
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func newEventOfType(eventType events.EventType) any {
	switch eventType {
	case events.ContactTriggeredEvent:
		return &events.ContactTriggered{}
	case events.ExecuteStepEvent:
		return &events.ExecuteStep{}
	case events.ExecutionStartedEvent:
		return &events.ExecutionStarted{}
	case events.ExecutionCompletedEvent:
		return &events.ExecutionCompleted{}
	case events.ExecutionExitedEvent:
		return &events.ExecutionExited{}
	case events.ExecutionFailedEvent:
		return &events.ExecutionFailed{}
	case events.EntryDeniedEvent:
		return &events.EntryDenied{}
	case events.StepCompletedEvent:
		return &events.StepCompleted{}
	case events.JourneyPublishedEvent:
		return &events.JourneyPublished{}
	case events.JourneyPausedEvent:
		return &events.JourneyPaused{}
	case events.JourneyResumedEvent:
		return &events.JourneyResumed{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
