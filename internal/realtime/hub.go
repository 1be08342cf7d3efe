// Package realtime pushes committed events to connected users.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"social-service/internal/logger"
	"social-service/internal/models"
	"social-service/internal/observability"
)

const subscriberBuffer = 32

// Subscription is one open stream of a user. Events arrive on C until the
// subscription is cancelled.
type Subscription struct {
	UserID int64
	C      <-chan models.Event
	ch     chan models.Event
}

// Hub tracks open streams per user and delivers events to an event's recipients.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int64]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[int64]map[*Subscription]struct{})}
}

func (h *Hub) Subscribe(userID int64) *Subscription {
	ch := make(chan models.Event, subscriberBuffer)
	sub := &Subscription{UserID: userID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subscribers[userID]; !ok {
		h.subscribers[userID] = make(map[*Subscription]struct{})
	}
	h.subscribers[userID][sub] = struct{}{}
	observability.AddRealtimeSubscribers(1)
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.UserID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subscribers, sub.UserID)
	}
	observability.AddRealtimeSubscribers(-1)
}

// Notify delivers the event to every open stream of its recipients. A stream
// whose buffer is full misses the event rather than blocking the writer.
func (h *Hub) Notify(_ context.Context, event models.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range event.Recipients {
		for sub := range h.subscribers[userID] {
			select {
			case sub.ch <- event:
				observability.IncEventPublished(observability.ChannelRealtime, event.Type)
			default:
				logger.Get().Warn("dropping realtime event for slow subscriber",
					zap.Int64("user_id", userID), zap.String("event_type", event.Type))
			}
		}
	}
	return nil
}

// Subscribers reports how many streams userID has open.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}
