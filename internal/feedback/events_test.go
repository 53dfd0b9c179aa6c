package feedback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesMatchingType(t *testing.T) {
	eb := NewEventBus(8)
	defer eb.Stop()

	received := make(chan Event, 1)
	eb.Subscribe(EventProgress, func(e Event) { received <- e })

	eb.Publish(Event{Type: EventProgress, SessionID: "s1"})

	select {
	case e := <-received:
		assert.Equal(t, EventProgress, e.Type)
		assert.Equal(t, "s1", e.SessionID)
	case <-time.After(time.Second):
		t.Fatal("handler never received event")
	}
}

func TestSubscribeAllReceivesEveryType(t *testing.T) {
	eb := NewEventBus(8)
	defer eb.Stop()

	received := make(chan EventType, 2)
	eb.SubscribeAll(func(e Event) { received <- e.Type })

	eb.Publish(Event{Type: EventStarted})
	eb.Publish(Event{Type: EventComplete})

	seen := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case t := <-received:
			seen[t] = true
		case <-time.After(time.Second):
			t2 := "timed out"
			_ = t2
		}
	}
	assert.True(t, seen[EventStarted])
	assert.True(t, seen[EventComplete])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	eb := NewEventBus(8)
	defer eb.Stop()

	received := make(chan Event, 4)
	unsub := eb.Subscribe(EventError, func(e Event) { received <- e })
	unsub()

	eb.Publish(Event{Type: EventError})

	select {
	case <-received:
		t.Fatal("unsubscribed handler should not receive events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	eb := NewEventBus(1)
	defer eb.Stop()

	block := make(chan struct{})
	eb.SubscribeAll(func(e Event) { <-block })

	for i := 0; i < 10; i++ {
		eb.Publish(Event{Type: EventProgress})
	}
	close(block)

	require.Eventually(t, func() bool {
		return eb.GetMetrics().EventsDropped > 0
	}, time.Second, time.Millisecond)
}
