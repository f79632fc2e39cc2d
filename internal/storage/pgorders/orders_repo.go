package pgorders

import (
	"context"
	"time"

	"github.com/evmakov/OrderPort/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const orderColumns = `
  id, order_number, status,
  sender_name, sender_address, sender_location,
  receiver_name, receiver_address, receiver_location,
  estimated_delivery, actual_delivery,
  created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Status,
		&o.SenderName, &o.SenderAddress, &o.SenderLocation,
		&o.ReceiverName, &o.ReceiverAddress, &o.ReceiverLocation,
		&o.EstimatedDelivery, &o.ActualDelivery,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Storage) FindOrderByNumber(ctx context.Context, number string) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE order_number = $1`, number)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

func (s *Storage) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order by id")
	}
	return o, nil
}

// ListTrajectories returns the order's trajectory newest-first.
func (s *Storage) ListTrajectories(ctx context.Context, orderID uint64) ([]*models.TrajectoryPoint, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, order_id, status, description, location, longitude, latitude, ts, created_at
FROM trajectory_points
WHERE order_id = $1
ORDER BY ts DESC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select trajectories")
	}
	defer rows.Close()

	var out []*models.TrajectoryPoint
	for rows.Next() {
		var p models.TrajectoryPoint
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.Status, &p.Description, &p.Location,
			&p.Longitude, &p.Latitude, &p.Timestamp, &p.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan trajectory")
		}
		out = append(out, &p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListItems returns the order's line items oldest-first.
func (s *Storage) ListItems(ctx context.Context, orderID uint64) ([]*models.OrderItem, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, order_id, product_name, unit_price, quantity, subtotal, created_at, updated_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select items")
	}
	defer rows.Close()

	var out []*models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductName, &it.UnitPrice,
			&it.Quantity, &it.Subtotal, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan item")
		}
		out = append(out, &it)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateOrder inserts an order with its items. Used by the seed path and
// tests; the portal itself never writes orders.
func (s *Storage) CreateOrder(ctx context.Context, in models.OrderCreateInput) (*models.Order, error) {
	if in.OrderNumber == "" {
		return nil, errors.New("orderNumber is required")
	}
	status := in.Status
	if status == "" {
		status = models.OrderStatusPending
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO orders (
  order_number, status,
  sender_name, sender_address, sender_location,
  receiver_name, receiver_address, receiver_location,
  estimated_delivery,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (order_number)
DO UPDATE SET updated_at = orders.updated_at
RETURNING id
`, in.OrderNumber, status,
		in.SenderName, in.SenderAddress, in.SenderLocation,
		in.ReceiverName, in.ReceiverAddress, in.ReceiverLocation,
		in.EstimatedDelivery,
		now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert order")
	}

	for _, it := range in.Items {
		subtotal := it.UnitPrice * float64(it.Quantity)
		_, err := tx.Exec(ctx, `
INSERT INTO order_items (order_id, product_name, unit_price, quantity, subtotal, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
`, id, it.ProductName, it.UnitPrice, it.Quantity, subtotal, now)
		if err != nil {
			return nil, errors.Wrap(err, "insert order item")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrderByID(ctx, id)
}
