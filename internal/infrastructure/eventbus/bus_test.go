package eventbus

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
)

func note(id string) entity.Notification {
	return entity.Notification{ID: id, TelegramID: "1", Kind: entity.KindRideReminder, Message: id}
}

func drain(t *testing.T, sub *Subscription) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return got
			}
			got = append(got, n.ID)
		case <-timeout:
			t.Fatalf("stream did not complete, got %v", got)
		}
	}
}

func TestSendThenShutdownDeliversInOrder(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()

	require.NoError(t, bus.Send(note("N1")))
	require.NoError(t, bus.Send(note("N2")))
	require.NoError(t, bus.Send(note("N3")))
	bus.Shutdown()

	require.Equal(t, []string{"N1", "N2", "N3"}, drain(t, sub))
}

func TestSendAfterShutdown(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Shutdown()

	require.ErrorIs(t, bus.Send(note("late")), ErrClosed)
	require.Empty(t, drain(t, sub))

	// second shutdown is a no-op
	bus.Shutdown()
}

func TestBroadcastToEverySubscriber(t *testing.T) {
	bus := New()
	first := bus.Subscribe()
	second := bus.Subscribe()

	require.NoError(t, bus.Send(note("a")))
	require.NoError(t, bus.Send(note("b")))
	bus.Shutdown()

	require.Equal(t, []string{"a", "b"}, drain(t, first))
	require.Equal(t, []string{"a", "b"}, drain(t, second))
}

func TestLateSubscriberSeesOnlyNewItems(t *testing.T) {
	bus := New()
	early := bus.Subscribe()
	require.NoError(t, bus.Send(note("before")))

	late := bus.Subscribe()
	require.NoError(t, bus.Send(note("after")))
	bus.Shutdown()

	require.Equal(t, []string{"before", "after"}, drain(t, early))
	require.Equal(t, []string{"after"}, drain(t, late))
}

func TestSubscribeAfterShutdownIsCompleted(t *testing.T) {
	bus := New()
	bus.Shutdown()

	sub := bus.Subscribe()
	require.Empty(t, drain(t, sub))
}

func TestClosedSubscriptionStopsReceiving(t *testing.T) {
	bus := New()
	gone := bus.Subscribe()
	stays := bus.Subscribe()

	gone.Close()
	require.Empty(t, drain(t, gone))

	require.NoError(t, bus.Send(note("x")))
	bus.Shutdown()
	require.Equal(t, []string{"x"}, drain(t, stays))
}

func TestConcurrentSendersLoseNothing(t *testing.T) {
	const producers, perProducer = 8, 200

	bus := New()
	subs := []*Subscription{bus.Subscribe(), bus.Subscribe()}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := bus.Send(note(fmt.Sprintf("%d-%d", p, i))); err != nil {
					t.Error(err)
				}
			}
		}(p)
	}
	wg.Wait()
	bus.Shutdown()

	var orders [][]string
	for _, sub := range subs {
		got := drain(t, sub)
		require.Len(t, got, producers*perProducer)

		seen := make(map[string]bool, len(got))
		for _, id := range got {
			require.False(t, seen[id], "duplicate %s", id)
			seen[id] = true
		}
		orders = append(orders, got)
	}
	// every subscriber observes the same accepted order
	require.Equal(t, orders[0], orders[1])
}
