// Package simulator seeds demo orders and replays a scripted delivery route
// for each of them onto the order.events topic. It stands in for the real
// fulfillment systems during local development and demos.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/evmakov/OrderPort/internal/broker/messages"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Store interface {
	CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error)
}

// routeStep is one scripted hop. Steps that move the order to a new status
// emit an order_updated event alongside the trajectory point.
type routeStep struct {
	status      string
	description string
	location    string
	lng, lat    float64
	orderStatus string
}

var demoRoute = []routeStep{
	{models.TrajectoryStatusPickup, "已揽收", "广州转运中心", 113.264385, 23.129112, models.OrderStatusShipping},
	{models.TrajectoryStatusInTransit, "运输中，离开广州", "广州", 113.301, 23.151, ""},
	{models.TrajectoryStatusInTransit, "到达武汉转运中心", "武汉", 114.305392, 30.593098, ""},
	{models.TrajectoryStatusInTransit, "到达北京转运中心", "北京", 116.407526, 39.90403, ""},
	{models.TrajectoryStatusOutForDelivery, "派送中，请保持电话畅通", "北京市朝阳区", 116.413, 39.912, ""},
	{models.TrajectoryStatusDelivered, "已签收，感谢使用", "北京市朝阳区", 116.42, 39.918, models.OrderStatusDelivered},
}

type orderState struct {
	order *models.Order
	next  int
}

type Simulator struct {
	store    Store
	producer Producer
	topic    string

	stepInterval time.Duration
	orderCount   int
}

func New(store Store, producer Producer, topic string) *Simulator {
	return &Simulator{
		store:        store,
		producer:     producer,
		topic:        topic,
		stepInterval: 5 * time.Second,
		orderCount:   3,
	}
}

func (s *Simulator) WithSettings(stepInterval time.Duration, orderCount int) *Simulator {
	if stepInterval > 0 {
		s.stepInterval = stepInterval
	}
	if orderCount > 0 {
		s.orderCount = orderCount
	}
	return s
}

// Run seeds the demo orders and then advances each one step per tick until
// every route is played out, then keeps re-seeding fresh orders so a demo
// environment never goes quiet.
func (s *Simulator) Run(ctx context.Context) error {
	states, err := s.seed(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.allDone(states) {
				states, err = s.seed(ctx)
				if err != nil {
					slog.Error("simulator: re-seed failed", "error", err.Error())
					continue
				}
			}
			for _, st := range states {
				if st.next >= len(demoRoute) {
					continue
				}
				if err := s.advance(ctx, st); err != nil {
					slog.Error("simulator: advance failed", "order", st.order.OrderNumber, "error", err.Error())
				}
			}
		}
	}
}

func (s *Simulator) allDone(states []*orderState) bool {
	for _, st := range states {
		if st.next < len(demoRoute) {
			return false
		}
	}
	return true
}

func (s *Simulator) seed(ctx context.Context) ([]*orderState, error) {
	base := time.Now().UTC()
	states := make([]*orderState, 0, s.orderCount)
	for i := 0; i < s.orderCount; i++ {
		eta := base.Add(72 * time.Hour)
		in := models.OrderCreateInput{
			OrderNumber:       fmt.Sprintf("ORD%s%04d", base.Format("20060102"), i+1),
			Status:            models.OrderStatusConfirmed,
			SenderName:        "广州仓",
			SenderAddress:     "广州市天河区科韵路12号",
			SenderLocation:    "113.264385,23.129112",
			ReceiverName:      fmt.Sprintf("演示用户%d", i+1),
			ReceiverAddress:   "北京市朝阳区建国路88号",
			ReceiverLocation:  "116.407526,39.904030",
			EstimatedDelivery: &eta,
			Items: []models.OrderItemInput{
				{ProductName: "蓝牙耳机", UnitPrice: 199, Quantity: 2},
				{ProductName: "数据线", UnitPrice: 99, Quantity: 1},
			},
		}
		o, err := s.store.CreateOrder(ctx, in)
		if err != nil {
			return nil, errors.Wrap(err, "seed order")
		}
		states = append(states, &orderState{order: o})
	}
	slog.Info("simulator: seeded orders", "count", len(states))
	return states, nil
}

// advance plays one route step: a trajectory_inserted event, plus an
// order_updated event when the step moves the order to a new status.
func (s *Simulator) advance(ctx context.Context, st *orderState) error {
	step := demoRoute[st.next]
	now := time.Now().UTC()
	lng, lat := step.lng, step.lat

	ev := messages.OrderEvent{
		Kind:    messages.KindTrajectoryInserted,
		OrderID: st.order.ID,
		Trajectory: &messages.TrajectoryRecord{
			Status:      step.status,
			Description: step.description,
			Location:    step.location,
			Longitude:   &lng,
			Latitude:    &lat,
			Timestamp:   now,
		},
		OccurredAt: now,
	}
	if err := s.publish(ctx, st.order.ID, ev); err != nil {
		return err
	}

	if step.orderStatus != "" && step.orderStatus != st.order.Status {
		st.order.Status = step.orderStatus
		rec := messages.OrderRecord{
			OrderNumber: st.order.OrderNumber,
			Status:      step.orderStatus,
		}
		if step.orderStatus == models.OrderStatusDelivered {
			rec.ActualDelivery = &now
		}
		upd := messages.OrderEvent{
			Kind:       messages.KindOrderUpdated,
			OrderID:    st.order.ID,
			Order:      &rec,
			OccurredAt: now,
		}
		if err := s.publish(ctx, st.order.ID, upd); err != nil {
			return err
		}
	}

	st.next++
	return nil
}

func (s *Simulator) publish(ctx context.Context, orderID uint64, ev messages.OrderEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	key := []byte(fmt.Sprintf("%d", orderID))
	// Kafka may not be up right after docker compose starts, so retry a bit.
	var pubErr error
	for i := 0; i < 10; i++ {
		if err := s.producer.Publish(ctx, s.topic, key, b); err == nil {
			return nil
		} else {
			pubErr = err
			time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
		}
	}
	return pubErr
}
