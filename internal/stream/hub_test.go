package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversInOrder(t *testing.T) {
	hub := NewHub(8)
	id, ch := hub.Subscribe(1)
	defer hub.Unsubscribe(1, id)

	hub.Publish(1, Event{Type: EventLog, Seq: 0, Message: "first"})
	hub.Publish(1, Event{Type: EventLog, Seq: 1, Message: "second"})
	hub.Publish(1, Event{Type: EventProgress, Progress: 50})

	ev := <-ch
	assert.Equal(t, EventLog, ev.Type)
	assert.Equal(t, "first", ev.Message)

	ev = <-ch
	assert.Equal(t, 1, ev.Seq)

	ev = <-ch
	assert.Equal(t, EventProgress, ev.Type)
	assert.Equal(t, 50, ev.Progress)
}

func TestPublishIsScopedToJob(t *testing.T) {
	hub := NewHub(8)
	id1, ch1 := hub.Subscribe(1)
	defer hub.Unsubscribe(1, id1)
	id2, ch2 := hub.Subscribe(2)
	defer hub.Unsubscribe(2, id2)

	hub.Publish(1, Event{Type: EventLog, Message: "job one"})

	ev := <-ch1
	assert.Equal(t, "job one", ev.Message)

	select {
	case ev := <-ch2:
		t.Fatalf("job 2 subscriber received %+v", ev)
	default:
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(1)
	_, ch := hub.Subscribe(1)

	hub.Publish(1, Event{Type: EventLog, Seq: 0, Message: "fits"})
	hub.Publish(1, Event{Type: EventLog, Seq: 1, Message: "overflows"})

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "fits", ev.Message)

	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after the drop")
}

func TestCloseEndsAllSubscribers(t *testing.T) {
	hub := NewHub(8)
	_, ch1 := hub.Subscribe(1)
	_, ch2 := hub.Subscribe(1)

	hub.Publish(1, Event{Type: EventDone, Message: "completed"})
	hub.Close(1)

	for _, ch := range []<-chan Event{ch1, ch2} {
		ev, ok := <-ch
		require.True(t, ok)
		assert.Equal(t, EventDone, ev.Type)

		_, ok = <-ch
		assert.False(t, ok)
	}
}

func TestUnsubscribeAfterCloseIsSafe(t *testing.T) {
	hub := NewHub(8)
	id, _ := hub.Subscribe(1)
	hub.Close(1)
	hub.Unsubscribe(1, id)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(8)
	hub.Publish(42, Event{Type: EventLog, Message: "nobody listening"})
}
