package services

import (
	"context"

	"go.uber.org/zap"

	"social-service/internal/events"
	"social-service/internal/logger"
	"social-service/internal/models"
)

// publish hands a committed event to the notifier. A failure is logged and
// swallowed: the mutation it describes already happened.
func publish(ctx context.Context, notifier events.Notifier, event models.Event) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, event); err != nil {
		logger.Get().Warn("failed to publish event",
			zap.String("event_type", event.Type),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}
