// Package events delivers committed domain events to the outside world.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/rabbitmq"
)

// Notifier is called after a mutation commits. Callers log a returned error
// and carry on; the mutation is never undone.
type Notifier interface {
	Notify(ctx context.Context, event models.Event) error
}

type NotifierFunc func(ctx context.Context, event models.Event) error

func (f NotifierFunc) Notify(ctx context.Context, event models.Event) error {
	return f(ctx, event)
}

// New stamps an event with an id and the current time.
func New(eventType string, actorID int64, recipients []int64, payload any) models.Event {
	return models.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		ActorID:    actorID,
		Recipients: recipients,
		Payload:    payload,
	}
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event models.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AMQPNotifier publishes events to the topic exchange, routed by event type.
type AMQPNotifier struct {
	publisher rabbitmq.Publisher
}

func NewAMQPNotifier(publisher rabbitmq.Publisher) *AMQPNotifier {
	return &AMQPNotifier{publisher: publisher}
}

func (n *AMQPNotifier) Notify(ctx context.Context, event models.Event) error {
	if err := n.publisher.Publish(ctx, event.Type, event); err != nil {
		return err
	}
	observability.IncEventPublished(observability.ChannelBroker, event.Type)
	return nil
}
