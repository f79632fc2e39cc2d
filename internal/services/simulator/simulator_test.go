package simulator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/evmakov/OrderPort/internal/broker/messages"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	nextID uint64
	orders []*models.Order
}

func (s *memStore) CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o := &models.Order{
		ID:          s.nextID,
		OrderNumber: in.OrderNumber,
		Status:      in.Status,
	}
	s.orders = append(s.orders, o)
	return o, nil
}

type memProducer struct {
	mu       sync.Mutex
	failures int
	attempts int
	events   []messages.OrderEvent
}

func (p *memProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	if p.failures > 0 {
		p.failures--
		return errors.New("kafka not ready")
	}
	var ev messages.OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *memProducer) snapshot() []messages.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messages.OrderEvent(nil), p.events...)
}

func TestSimulator_PlaysFullRoute(t *testing.T) {
	store := &memStore{}
	prod := &memProducer{}
	sim := New(store, prod, "order.events").WithSettings(5*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, ev := range prod.snapshot() {
			if ev.Kind == messages.KindOrderUpdated && ev.Order != nil && ev.Order.Status == models.OrderStatusDelivered {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	var trajectories, updates []messages.OrderEvent
	for _, ev := range prod.snapshot() {
		if ev.OrderID != 1 {
			continue
		}
		switch ev.Kind {
		case messages.KindTrajectoryInserted:
			trajectories = append(trajectories, ev)
		case messages.KindOrderUpdated:
			updates = append(updates, ev)
		}
		if ev.Kind == messages.KindOrderUpdated && ev.Order.Status == models.OrderStatusDelivered {
			break
		}
	}

	require.Len(t, trajectories, len(demoRoute))
	require.Equal(t, models.TrajectoryStatusPickup, trajectories[0].Trajectory.Status)
	require.Equal(t, models.TrajectoryStatusDelivered, trajectories[len(trajectories)-1].Trajectory.Status)
	require.NotNil(t, trajectories[2].Trajectory.Longitude)

	require.Len(t, updates, 2)
	require.Equal(t, models.OrderStatusShipping, updates[0].Order.Status)
	require.Equal(t, models.OrderStatusDelivered, updates[1].Order.Status)
	require.NotNil(t, updates[1].Order.ActualDelivery)
}

func TestSimulator_PublishRetries(t *testing.T) {
	prod := &memProducer{failures: 2}
	sim := New(&memStore{}, prod, "order.events")

	err := sim.publish(context.Background(), 1, messages.OrderEvent{
		Kind:    messages.KindOrderUpdated,
		OrderID: 1,
		Order:   &messages.OrderRecord{OrderNumber: "ORD1", Status: models.OrderStatusShipping},
	})
	require.NoError(t, err)
	require.Equal(t, 3, prod.attempts)
	require.Len(t, prod.snapshot(), 1)
}

func TestSimulator_ReseedsWhenAllRoutesDone(t *testing.T) {
	store := &memStore{}
	prod := &memProducer{}
	sim := New(store, prod, "order.events").WithSettings(2*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.orders) >= 2
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
