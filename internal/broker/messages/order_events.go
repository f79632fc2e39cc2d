package messages

import "time"

// Event kinds carried on the order.events topic and re-published on the
// per-order change feed.
const (
	KindOrderUpdated       = "order_updated"
	KindTrajectoryInserted = "trajectory_inserted"
)

// OrderEvent is the wire message produced by fulfillment systems (or the
// feed simulator) and consumed by portal-api. Exactly one of Order /
// Trajectory is set depending on Kind.
type OrderEvent struct {
	Kind    string `json:"kind"`
	OrderID uint64 `json:"order_id"`

	Order      *OrderRecord      `json:"order,omitempty"`
	Trajectory *TrajectoryRecord `json:"trajectory,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

type OrderRecord struct {
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`

	SenderName       string `json:"sender_name,omitempty"`
	SenderAddress    string `json:"sender_address,omitempty"`
	SenderLocation   string `json:"sender_location,omitempty"`
	ReceiverName     string `json:"receiver_name,omitempty"`
	ReceiverAddress  string `json:"receiver_address,omitempty"`
	ReceiverLocation string `json:"receiver_location,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`
}

type TrajectoryRecord struct {
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
