package memorybus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish("task.completed", []byte(`{"id":1}`))

	select {
	case evt := <-ch:
		require.Equal(t, "task.completed", evt.Topic)
		require.JSONEq(t, `{"id":1}`, string(evt.Payload))
	case <-time.After(time.Second):
		t.Fatalf("expected event")
	}

	cancel()
	_, ok := <-ch
	require.False(t, ok, "expected channel closed after cancel")
	cancel()
}

func TestBus_SlowSubscriberDropsEvents(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish("task.progress", nil)
	}
	require.Equal(t, uint64(5), b.Dropped())
}

func TestBus_CloseEndsSubscriptions(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe()

	b.Close()
	_, ok := <-ch
	require.False(t, ok)
	cancel()

	late, _ := b.Subscribe()
	_, ok = <-late
	require.False(t, ok)

	b.Publish("task.completed", nil)
}
