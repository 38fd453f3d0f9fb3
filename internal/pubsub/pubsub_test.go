package pubsub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactTopicDelivery(t *testing.T) {
	b := New()
	sink := b.Subscribe("sub1", "orders.created")
	reached := b.Publish("orders.created", "payload")
	assert.Equal(t, 1, reached)
	select {
	case msg := <-sink:
		assert.Equal(t, "payload", msg)
	case <-time.After(time.Second):
		t.Fatal("did not receive delivery")
	}
}

func TestSingleSegmentWildcard(t *testing.T) {
	b := New()
	sink := b.Subscribe("sub1", "orders.*")
	reached := b.Publish("orders.created", "x")
	assert.Equal(t, 1, reached)
	<-sink

	reached = b.Publish("orders.created.detail", "y")
	assert.Equal(t, 0, reached)
}

func TestMultiSegmentWildcard(t *testing.T) {
	b := New()
	b.Subscribe("sub1", "orders.#")
	assert.Equal(t, 1, b.Publish("orders", "x"))
	assert.Equal(t, 1, b.Publish("orders.created", "y"))
	assert.Equal(t, 1, b.Publish("orders.created.detail.deep", "z"))
}

func TestDeliveredExactlyOnceAcrossExactAndPattern(t *testing.T) {
	b := New()
	b.Subscribe("sub1", "orders.created")
	b.Subscribe("sub1", "orders.*")
	reached := b.Publish("orders.created", "x")
	assert.Equal(t, 1, reached)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	b.Subscribe("sub1", "t")
	require.True(t, b.Unsubscribe("sub1", "t"))
	assert.Equal(t, 0, b.Publish("t", "x"))
	assert.False(t, b.Unsubscribe("sub1", "t"))
}

func TestUnsubscribeAll(t *testing.T) {
	b := New()
	b.Subscribe("sub1", "a")
	b.Subscribe("sub1", "b.*")
	b.UnsubscribeAll("sub1")
	assert.Equal(t, 0, b.Publish("a", "x"))
	assert.Equal(t, 0, b.Publish("b.c", "x"))
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	b.Subscribe("sub1", "t")
	for i := 0; i < sinkBuffer+10; i++ {
		b.Publish("t", "x") // must never block even once the sink fills up
	}
}
