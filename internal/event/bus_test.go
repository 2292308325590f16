package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBusDeliversToEverySubscriber(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	first, unsubFirst := bus.Subscribe()
	defer unsubFirst()
	second, unsubSecond := bus.Subscribe()
	defer unsubSecond()

	e := New(TypeIncidentCritical, "tablet-7", map[string]string{"id": "inc-1"}, time.Now())
	bus.Publish(e)

	require.Equal(t, e.ID, (<-first).ID)
	require.Equal(t, e.ID, (<-second).ID)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(New(TypeIncidentReported, "", i, time.Now()))
	}

	require.Len(t, ch, subscriberBuffer)
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	require.False(t, open)

	bus.Publish(New(TypeIncidentReported, "", nil, time.Now()))
}

func TestSubscriberCount(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	_, unsubscribe := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())
	unsubscribe()
	require.Zero(t, bus.SubscriberCount())
}
