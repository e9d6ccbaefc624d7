package changefeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFanOut(t *testing.T) {
	feed := NewLocal()
	a, cancelA := feed.Subscribe(4)
	b, cancelB := feed.Subscribe(4)
	defer cancelB()

	change := Change{Path: "sales/s1", Kind: KindCreated, At: time.Now()}
	require.NoError(t, feed.Publish(context.Background(), change))

	assert.Equal(t, change, <-a)
	assert.Equal(t, change, <-b)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)

	require.NoError(t, feed.Publish(context.Background(), change))
	assert.Equal(t, change, <-b)
}

func TestLocalDropsWhenSubscriberIsFull(t *testing.T) {
	feed := NewLocal()
	ch, cancel := feed.Subscribe(1)
	defer cancel()

	first := Change{Path: "a", Kind: KindUpdated}
	second := Change{Path: "b", Kind: KindUpdated}
	require.NoError(t, feed.Publish(context.Background(), first, second))

	assert.Equal(t, first, <-ch)
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %v", c)
	default:
	}
}

func TestLocalClose(t *testing.T) {
	feed := NewLocal()
	ch, cancel := feed.Subscribe(1)
	require.NoError(t, feed.Close())
	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := feed.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
