// Package ingest applies inbound order.events messages to the store and
// republishes them on the per-order change feed, which is what live tracking
// sessions actually listen to.
package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/evmakov/OrderPort/internal/broker/messages"
	"github.com/evmakov/OrderPort/internal/cache"
	"github.com/evmakov/OrderPort/internal/changefeed"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
	"github.com/pkg/errors"
)

type Store interface {
	ApplyOrderUpdate(ctx context.Context, orderID uint64, rec messages.OrderRecord) (*models.Order, error)
	InsertTrajectoryPoint(ctx context.Context, orderID uint64, rec messages.TrajectoryRecord) (*models.TrajectoryPoint, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev changefeed.Event) error
}

type Applier struct {
	store Store
	feed  Publisher
	cache cache.BytesCache
}

func New(store Store, feed Publisher, c cache.BytesCache) *Applier {
	return &Applier{store: store, feed: feed, cache: c}
}

// HandleMessage is the kafka consumer handler. Returning an error leaves the
// message uncommitted; malformed or unroutable messages are logged and
// dropped instead, so one bad record cannot wedge the partition.
func (a *Applier) HandleMessage(ctx context.Context, key, value []byte) error {
	var ev messages.OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		slog.Warn("ingest: dropping malformed message", "key", string(key), "error", err.Error())
		return nil
	}
	if ev.OrderID == 0 {
		slog.Warn("ingest: dropping message without order_id", "kind", ev.Kind)
		return nil
	}

	switch ev.Kind {
	case messages.KindOrderUpdated:
		if ev.Order == nil {
			slog.Warn("ingest: order_updated without order record", "order_id", ev.OrderID)
			return nil
		}
		o, err := a.store.ApplyOrderUpdate(ctx, ev.OrderID, *ev.Order)
		if errors.Is(err, pgorders.ErrOrderNotFound) {
			slog.Warn("ingest: update for unknown order", "order_id", ev.OrderID)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "apply order update")
		}
		a.invalidate(ctx, o.OrderNumber)
		return errors.Wrap(a.feed.Publish(ctx, changefeed.Event{
			Kind:       changefeed.KindOrderUpdated,
			OrderID:    o.ID,
			Order:      o,
			OccurredAt: ev.OccurredAt,
		}), "publish order_updated")

	case messages.KindTrajectoryInserted:
		if ev.Trajectory == nil {
			slog.Warn("ingest: trajectory_inserted without record", "order_id", ev.OrderID)
			return nil
		}
		p, err := a.store.InsertTrajectoryPoint(ctx, ev.OrderID, *ev.Trajectory)
		if err != nil {
			return errors.Wrap(err, "insert trajectory point")
		}
		return errors.Wrap(a.feed.Publish(ctx, changefeed.Event{
			Kind:       changefeed.KindTrajectoryInserted,
			OrderID:    ev.OrderID,
			Point:      p,
			OccurredAt: ev.OccurredAt,
		}), "publish trajectory_inserted")

	default:
		slog.Warn("ingest: dropping message with unknown kind", "kind", ev.Kind, "order_id", ev.OrderID)
		return nil
	}
}

func (a *Applier) invalidate(ctx context.Context, orderNumber string) {
	if a.cache == nil || orderNumber == "" {
		return
	}
	if err := a.cache.Del(ctx, cache.OrderByNumberKey(orderNumber)); err != nil {
		slog.Warn("ingest: cache invalidation failed", "order_number", orderNumber, "error", err.Error())
	}
}
