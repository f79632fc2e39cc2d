package changefeed

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/stretchr/testify/require"
)

func waitEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed early")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change feed event")
		return Event{}
	}
}

func TestFeed_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	sub := f.Subscribe(ctx, 7)
	t.Cleanup(sub.Close)

	// Give the subscriber a moment to attach before publishing.
	require.Eventually(t, func() bool {
		return f.Publish(ctx, Event{
			Kind:    KindOrderUpdated,
			OrderID: 7,
			Order:   &models.Order{ID: 7, Status: models.OrderStatusShipping},
		}) == nil && len(mr.PubSubChannels("order:7")) > 0
	}, 3*time.Second, 50*time.Millisecond)

	ev := waitEvent(t, sub)
	require.Equal(t, KindOrderUpdated, ev.Kind)
	require.Equal(t, uint64(7), ev.OrderID)
	require.NotNil(t, ev.Order)
	require.Equal(t, models.OrderStatusShipping, ev.Order.Status)
	require.False(t, ev.OccurredAt.IsZero())
}

func TestFeed_ScopedToOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	sub := f.Subscribe(ctx, 1)
	t.Cleanup(sub.Close)

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("order:1")) > 0
	}, 3*time.Second, 50*time.Millisecond)

	// An event for another order must never reach this subscription.
	require.NoError(t, f.Publish(ctx, Event{Kind: KindOrderUpdated, OrderID: 2, Order: &models.Order{ID: 2}}))
	require.NoError(t, f.Publish(ctx, Event{
		Kind:    KindTrajectoryInserted,
		OrderID: 1,
		Point:   &models.TrajectoryPoint{OrderID: 1, Status: models.TrajectoryStatusInTransit},
	}))

	ev := waitEvent(t, sub)
	require.Equal(t, KindTrajectoryInserted, ev.Kind)
	require.Equal(t, uint64(1), ev.OrderID)
}

func TestFeed_Publish_Validate(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())
	t.Cleanup(func() { _ = f.Close() })

	require.Error(t, f.Publish(context.Background(), Event{Kind: KindOrderUpdated}))
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	f := New(mr.Addr())
	t.Cleanup(func() { _ = f.Close() })

	sub := f.Subscribe(context.Background(), 5)
	sub.Close()
	sub.Close() // no panic

	// Channel drains and closes after teardown.
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Events():
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)
}
