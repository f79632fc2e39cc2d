package pgorders

import (
	"context"

	"github.com/evmakov/OrderPort/internal/broker/messages"
	"github.com/evmakov/OrderPort/internal/models"
	"github.com/pkg/errors"
)

// ApplyOrderUpdate overwrites an order's mutable fields from an inbound
// record and returns the fresh row.
func (s *Storage) ApplyOrderUpdate(ctx context.Context, orderID uint64, rec messages.OrderRecord) (*models.Order, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE orders
SET
  status = $2,
  sender_name = COALESCE(NULLIF($3, ''), sender_name),
  sender_address = COALESCE(NULLIF($4, ''), sender_address),
  sender_location = COALESCE(NULLIF($5, ''), sender_location),
  receiver_name = COALESCE(NULLIF($6, ''), receiver_name),
  receiver_address = COALESCE(NULLIF($7, ''), receiver_address),
  receiver_location = COALESCE(NULLIF($8, ''), receiver_location),
  estimated_delivery = COALESCE($9, estimated_delivery),
  actual_delivery = COALESCE($10, actual_delivery),
  updated_at = now()
WHERE id = $1
`, orderID, rec.Status,
		rec.SenderName, rec.SenderAddress, rec.SenderLocation,
		rec.ReceiverName, rec.ReceiverAddress, rec.ReceiverLocation,
		rec.EstimatedDelivery, rec.ActualDelivery)
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return s.GetOrderByID(ctx, orderID)
}

// InsertTrajectoryPoint appends a point; replays of the same event are
// swallowed by the dedup index and return the existing row set unchanged.
func (s *Storage) InsertTrajectoryPoint(ctx context.Context, orderID uint64, rec messages.TrajectoryRecord) (*models.TrajectoryPoint, error) {
	var p models.TrajectoryPoint
	err := s.db.QueryRow(ctx, `
INSERT INTO trajectory_points (order_id, status, description, location, longitude, latitude, ts, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
ON CONFLICT (order_id, status, ts, description) DO UPDATE SET description = EXCLUDED.description
RETURNING id, order_id, status, description, location, longitude, latitude, ts, created_at
`, orderID, rec.Status, rec.Description, rec.Location, rec.Longitude, rec.Latitude, rec.Timestamp.UTC()).Scan(
		&p.ID, &p.OrderID, &p.Status, &p.Description, &p.Location,
		&p.Longitude, &p.Latitude, &p.Timestamp, &p.CreatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert trajectory point")
	}
	return &p, nil
}
