package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/evmakov/OrderPort/internal/broker/messages"
	"github.com/evmakov/OrderPort/internal/changefeed"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/evmakov/OrderPort/internal/storage/pgorders"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	appliedID  uint64
	appliedRec messages.OrderRecord
	applyOut   *models.Order
	applyErr   error

	insertedID  uint64
	insertedRec messages.TrajectoryRecord
	insertOut   *models.TrajectoryPoint
	insertErr   error
}

func (f *fakeStore) ApplyOrderUpdate(ctx context.Context, orderID uint64, rec messages.OrderRecord) (*models.Order, error) {
	f.appliedID, f.appliedRec = orderID, rec
	return f.applyOut, f.applyErr
}

func (f *fakeStore) InsertTrajectoryPoint(ctx context.Context, orderID uint64, rec messages.TrajectoryRecord) (*models.TrajectoryPoint, error) {
	f.insertedID, f.insertedRec = orderID, rec
	return f.insertOut, f.insertErr
}

type fakeFeed struct {
	published []changefeed.Event
	err       error
}

func (f *fakeFeed) Publish(ctx context.Context, ev changefeed.Event) error {
	f.published = append(f.published, ev)
	return f.err
}

type fakeCache struct {
	deleted []string
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	return nil
}

func msg(t *testing.T, ev messages.OrderEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestHandleMessage_OrderUpdated(t *testing.T) {
	st := &fakeStore{applyOut: &models.Order{ID: 7, OrderNumber: "ORD7", Status: models.OrderStatusDelivered}}
	fd := &fakeFeed{}
	c := &fakeCache{}
	a := New(st, fd, c)

	ev := messages.OrderEvent{
		Kind:    messages.KindOrderUpdated,
		OrderID: 7,
		Order:   &messages.OrderRecord{OrderNumber: "ORD7", Status: models.OrderStatusDelivered},
	}
	require.NoError(t, a.HandleMessage(context.Background(), []byte("7"), msg(t, ev)))

	require.Equal(t, uint64(7), st.appliedID)
	require.Len(t, fd.published, 1)
	require.Equal(t, changefeed.KindOrderUpdated, fd.published[0].Kind)
	require.Equal(t, models.OrderStatusDelivered, fd.published[0].Order.Status)
	require.Equal(t, []string{"order:num:ORD7"}, c.deleted)
}

func TestHandleMessage_TrajectoryInserted(t *testing.T) {
	st := &fakeStore{insertOut: &models.TrajectoryPoint{ID: 3, OrderID: 7, Status: models.TrajectoryStatusInTransit}}
	fd := &fakeFeed{}
	a := New(st, fd, nil)

	ev := messages.OrderEvent{
		Kind:       messages.KindTrajectoryInserted,
		OrderID:    7,
		Trajectory: &messages.TrajectoryRecord{Status: models.TrajectoryStatusInTransit, Timestamp: time.Now()},
	}
	require.NoError(t, a.HandleMessage(context.Background(), []byte("7"), msg(t, ev)))

	require.Equal(t, uint64(7), st.insertedID)
	require.Len(t, fd.published, 1)
	require.Equal(t, changefeed.KindTrajectoryInserted, fd.published[0].Kind)
	require.Equal(t, uint64(3), fd.published[0].Point.ID)
}

func TestHandleMessage_MalformedAndUnknownDropped(t *testing.T) {
	st := &fakeStore{}
	fd := &fakeFeed{}
	a := New(st, fd, nil)
	ctx := context.Background()

	require.NoError(t, a.HandleMessage(ctx, nil, []byte("{broken")))
	require.NoError(t, a.HandleMessage(ctx, nil, msg(t, messages.OrderEvent{Kind: "mystery", OrderID: 1})))
	require.NoError(t, a.HandleMessage(ctx, nil, msg(t, messages.OrderEvent{Kind: messages.KindOrderUpdated})))
	require.NoError(t, a.HandleMessage(ctx, nil, msg(t, messages.OrderEvent{Kind: messages.KindOrderUpdated, OrderID: 1})))
	require.Empty(t, fd.published)
}

func TestHandleMessage_UnknownOrderDropped(t *testing.T) {
	st := &fakeStore{applyErr: pgorders.ErrOrderNotFound}
	fd := &fakeFeed{}
	a := New(st, fd, nil)

	ev := messages.OrderEvent{Kind: messages.KindOrderUpdated, OrderID: 404, Order: &messages.OrderRecord{Status: "X"}}
	require.NoError(t, a.HandleMessage(context.Background(), nil, msg(t, ev)))
	require.Empty(t, fd.published)
}

func TestHandleMessage_StoreErrorIsRetriable(t *testing.T) {
	st := &fakeStore{applyErr: errors.New("pg down")}
	a := New(st, &fakeFeed{}, nil)

	ev := messages.OrderEvent{Kind: messages.KindOrderUpdated, OrderID: 1, Order: &messages.OrderRecord{Status: "X"}}
	require.Error(t, a.HandleMessage(context.Background(), nil, msg(t, ev)))
}
