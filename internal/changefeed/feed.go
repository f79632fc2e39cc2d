// Package changefeed fans order changes out to live tracking sessions over
// redis pub/sub. Each order gets its own topic, so a subscription only ever
// sees events for the order it tracks.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evmakov/OrderPort/internal/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	KindOrderUpdated       = "order_updated"
	KindTrajectoryInserted = "trajectory_inserted"
)

// Event is the typed change notification. Order is set for order_updated,
// Point for trajectory_inserted.
type Event struct {
	Kind    string `json:"kind"`
	OrderID uint64 `json:"order_id"`

	Order *models.Order           `json:"order,omitempty"`
	Point *models.TrajectoryPoint `json:"point,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

func Topic(orderID uint64) string {
	return fmt.Sprintf("order:%d", orderID)
}

type Feed struct {
	c *redis.Client
}

func New(addr string) *Feed {
	return &Feed{
		c: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (f *Feed) Close() error {
	return f.c.Close()
}

func (f *Feed) Publish(ctx context.Context, ev Event) error {
	if ev.OrderID == 0 {
		return errors.New("order_id is required")
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := f.c.Publish(ctx, Topic(ev.OrderID), b).Err(); err != nil {
		return errors.Wrap(err, "publish event")
	}
	return nil
}

// Subscribe opens a listener scoped to one order. The returned subscription
// must be closed; Close is idempotent. The receive loop survives transient
// redis failures by retrying with capped exponential backoff, so a network
// blip degrades to a delayed event rather than a dead session.
func (f *Feed) Subscribe(ctx context.Context, orderID uint64) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		orderID: orderID,
		events:  make(chan Event, 16),
		cancel:  cancel,
	}

	go sub.run(ctx, f.c)
	return sub
}

type Subscription struct {
	orderID uint64
	events  chan Event
	cancel  context.CancelFunc
	once    sync.Once
}

func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close tears down the listener. Safe to call repeatedly and safe to call
// when the subscription already died on its own.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

func (s *Subscription) run(ctx context.Context, c *redis.Client) {
	defer close(s.events)

	backoff := 250 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		ps := c.Subscribe(ctx, Topic(s.orderID))
		err := s.receive(ctx, ps)
		_ = ps.Close()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("change feed receive failed, reconnecting",
			"order_id", s.orderID, "backoff", backoff.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Subscription) receive(ctx context.Context, ps *redis.PubSub) error {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			slog.Warn("change feed: dropping malformed event", "order_id", s.orderID, "error", err.Error())
			continue
		}
		if ev.OrderID != s.orderID {
			// Topic scoping should make this impossible; drop just in case.
			continue
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
