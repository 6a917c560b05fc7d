package eventbus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishInvokesAllSubscribers(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []interface{}

	b.Subscribe("topic.a", func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Data)
	})
	b.Subscribe("topic.a", func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Data)
	})
	b.Subscribe("topic.b", func(e Event) {
		t.Fatal("should not receive topic.a events")
	})

	b.Publish("topic.a", 42)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, 42, got[0])
	assert.Equal(t, 42, got[1])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	sub := b.Subscribe("t", func(e Event) { calls++ })

	b.Publish("t", nil)
	sub.Unsubscribe()
	b.Publish("t", nil)

	assert.Equal(t, 1, calls)
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.SubscriberCount("x"))
	b.Subscribe("x", func(Event) {})
	b.Subscribe("x", func(Event) {})
	assert.Equal(t, 2, b.SubscriberCount("x"))
}
