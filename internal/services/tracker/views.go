package tracker

import (
	"github.com/evmakov/OrderPort/internal/geo"
	"github.com/evmakov/OrderPort/internal/models"
)

// MapPoint is a trajectory point that resolved to a plottable coordinate.
type MapPoint struct {
	Point       geo.Point `json:"point"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Timestamp   string    `json:"timestamp"`
}

// MapPoints filters the trajectory down to points the coordinate parser
// accepted, preserving newest-first order. Unparseable points are dropped
// here but stay in the textual timeline.
func (s *Session) MapPoints() []MapPoint {
	if s == nil {
		return nil
	}
	out := make([]MapPoint, 0, len(s.Trajectory))
	for _, p := range s.Trajectory {
		pt, ok := geo.FromTrajectoryPoint(p)
		if !ok {
			continue
		}
		out = append(out, MapPoint{
			Point:       pt,
			Status:      p.Status,
			Description: p.Description,
			Timestamp:   p.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return out
}

// Endpoints extracts best-effort sender and receiver coordinates from the
// order record. Either may be nil.
func (s *Session) Endpoints() (sender, receiver *geo.Point) {
	if s == nil {
		return nil, nil
	}
	if p, ok := geo.FromOrder(s.Order, geo.Sender); ok {
		sender = &p
	}
	if p, ok := geo.FromOrder(s.Order, geo.Receiver); ok {
		receiver = &p
	}
	return sender, receiver
}

// ItemTotals are the manifest aggregates. Subtotal is trusted as stored
// rather than recomputed from price×quantity.
type ItemTotals struct {
	SubtotalSum float64 `json:"subtotal_sum"`
	QuantitySum int32   `json:"quantity_sum"`
	LineCount   int     `json:"line_count"`
}

func (s *Session) Totals() ItemTotals {
	var t ItemTotals
	if s == nil {
		return t
	}
	for _, it := range s.Items {
		t.SubtotalSum += it.Subtotal
		t.QuantitySum += it.Quantity
		t.LineCount++
	}
	return t
}

// Theme is the display theme for the session's current order status.
func (s *Session) Theme() models.StatusTheme {
	if s == nil || s.Order == nil {
		return models.ThemeForOrderStatus("")
	}
	return models.ThemeForOrderStatus(s.Order.Status)
}
