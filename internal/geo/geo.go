// Package geo turns raw stored location fields into validated map
// coordinates. Parsing is best-effort: malformed or missing encodings are a
// normal outcome and never an error.
package geo

import (
	"strconv"
	"strings"

	"github.com/evmakov/OrderPort/internal/models"
)

type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Endpoint selects which side of an order to extract a coordinate from.
type Endpoint int

const (
	Sender Endpoint = iota
	Receiver
)

// FromTrajectoryPoint prefers the structured pair and falls back to the
// delimited location string.
func FromTrajectoryPoint(p *models.TrajectoryPoint) (Point, bool) {
	if p == nil {
		return Point{}, false
	}
	if p.Longitude != nil && p.Latitude != nil {
		return validated(*p.Longitude, *p.Latitude)
	}
	return ParseLngLat(p.Location)
}

// FromOrder extracts the sender or receiver coordinate from an order record.
func FromOrder(o *models.Order, ep Endpoint) (Point, bool) {
	if o == nil {
		return Point{}, false
	}
	switch ep {
	case Sender:
		return ParseLngLat(o.SenderLocation)
	case Receiver:
		return ParseLngLat(o.ReceiverLocation)
	}
	return Point{}, false
}

// ParseLngLat parses a "lng,lat" string (semicolon also accepted, since both
// delimiters show up in legacy rows).
func ParseLngLat(s string) (Point, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Point{}, false
	}
	sep := ","
	if !strings.Contains(s, sep) {
		sep = ";"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Point{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, false
	}
	return validated(lng, lat)
}

func validated(lng, lat float64) (Point, bool) {
	// Written so NaN fails too.
	if !(lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90) {
		return Point{}, false
	}
	return Point{Longitude: lng, Latitude: lat}, true
}
