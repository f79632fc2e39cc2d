package models

import "time"

// Order statuses as stored (can be extended).
const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipping  = "SHIPPING"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Trajectory status tags.
const (
	TrajectoryStatusPickup         = "PICKUP"
	TrajectoryStatusInTransit      = "IN_TRANSIT"
	TrajectoryStatusOutForDelivery = "OUT_FOR_DELIVERY"
	TrajectoryStatusDelivered      = "DELIVERED"
)

type Order struct {
	ID          uint64
	OrderNumber string
	Status      string

	SenderName       string
	SenderAddress    string
	SenderLocation   string
	ReceiverName     string
	ReceiverAddress  string
	ReceiverLocation string

	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrajectoryPoint is append-only: new points only ever arrive with a newer
// timestamp than anything already stored for the order.
type TrajectoryPoint struct {
	ID          uint64
	OrderID     uint64
	Status      string
	Description string
	Location    string
	Longitude   *float64
	Latitude    *float64
	Timestamp   time.Time
	CreatedAt   time.Time
}

type OrderItem struct {
	ID          uint64
	OrderID     uint64
	ProductName string
	UnitPrice   float64
	Quantity    int32
	Subtotal    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderCreateInput struct {
	OrderNumber      string
	Status           string
	SenderName       string
	SenderAddress    string
	SenderLocation   string
	ReceiverName     string
	ReceiverAddress  string
	ReceiverLocation string

	EstimatedDelivery *time.Time

	Items []OrderItemInput
}

type OrderItemInput struct {
	ProductName string
	UnitPrice   float64
	Quantity    int32
}
