// Package eventbus provides the messaging layer that carries journey commands
// and lifecycle events between the API, the scheduler and the workers.
package eventbus

import (
	"context"

	"github.com/campaignkit/journey/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

// EventBus is the transport contract. Delivery is at-least-once: handlers
// must tolerate duplicates and out-of-order commands.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
