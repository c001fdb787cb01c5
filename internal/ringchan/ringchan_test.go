package ringchan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/materna-health/wearlink/internal/ringchan"
)

func TestRingChannelDropsOldestWhenFull(t *testing.T) {
	rc := ringchan.New[int](3)

	for i := 1; i <= 5; i++ {
		rc.Send(i)
	}

	// Oldest two values (1, 2) were overwritten.
	require.Equal(t, 3, rc.Len())
	assert.Equal(t, 3, <-rc.C())
	assert.Equal(t, 4, <-rc.C())
	assert.Equal(t, 5, <-rc.C())
}

func TestRingChannelTrySend(t *testing.T) {
	rc := ringchan.New[string](1)

	assert.True(t, rc.TrySend("a"))
	assert.False(t, rc.TrySend("b"), "full buffer must reject TrySend")

	assert.Equal(t, "a", <-rc.C())
	assert.True(t, rc.TrySend("c"))
}

func TestRingChannelSendReportsDrop(t *testing.T) {
	rc := ringchan.New[int](1)

	assert.False(t, rc.Send(1))
	assert.True(t, rc.Send(2), "second send into a full buffer must drop the oldest")
}

func TestBroadcasterFanOut(t *testing.T) {
	b := ringchan.NewBroadcaster[int](4)

	ch1, cancel1 := b.Subscribe()
	ch2, cancel2 := b.Subscribe()
	defer cancel1()
	defer cancel2()

	b.Publish(7)

	assert.Equal(t, 7, <-ch1)
	assert.Equal(t, 7, <-ch2)
}

func TestBroadcasterCancelStopsDelivery(t *testing.T) {
	b := ringchan.NewBroadcaster[int](4)

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // idempotent

	// Channel is closed; receive yields the zero value immediately.
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "cancelled subscription channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("cancelled subscription channel was not closed")
	}

	b.Publish(1) // must not panic with no subscribers
	assert.Equal(t, 0, b.Len())
}

func TestBroadcasterSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := ringchan.NewBroadcaster[int](2)

	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			b.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The subscriber sees only the most recent values.
	assert.Equal(t, 98, <-ch)
	assert.Equal(t, 99, <-ch)
}

func TestBroadcasterClose(t *testing.T) {
	b := ringchan.NewBroadcaster[int](2)
	ch, _ := b.Subscribe()

	b.Close()
	b.Publish(1) // no-op after close

	_, ok := <-ch
	assert.False(t, ok)

	// Subscribing after close yields an already-closed channel.
	ch2, cancel2 := b.Subscribe()
	cancel2()
	_, ok = <-ch2
	assert.False(t, ok)
}
