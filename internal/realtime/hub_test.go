package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/models"
)

func TestHubDeliversOnlyToRecipients(t *testing.T) {
	hub := NewHub()
	alice := hub.Subscribe(1)
	bob := hub.Subscribe(2)
	carol := hub.Subscribe(3)

	ev := models.Event{ID: "e1", Type: models.EventPostCreated, Recipients: []int64{1, 2}}
	require.NoError(t, hub.Notify(context.Background(), ev))

	assert.Equal(t, "e1", (<-alice.C).ID)
	assert.Equal(t, "e1", (<-bob.C).ID)
	select {
	case got := <-carol.C:
		t.Fatalf("unexpected event for stranger: %v", got)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(5)
	second := hub.Subscribe(5)
	assert.Equal(t, 2, hub.Subscribers(5))

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers(5))

	hub.Unsubscribe(second)
	assert.Equal(t, 0, hub.Subscribers(5))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(1)
	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, hub.Notify(context.Background(), models.Event{Type: models.EventPostLiked, Recipients: []int64{1}}))
	}
	assert.Len(t, sub.C, subscriberBuffer)
}
