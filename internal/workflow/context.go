// Package workflow declares the named fan-out patterns the coordinator
// can run: which participants each one queries, with what payload, and
// which of them are mandatory for a usable answer.
package workflow

import (
	"errors"

	"streetwise/internal/protocol"
)

var (
	ErrMissingLocation    = errors.New("workflow: user location is required")
	ErrMissingDestination = errors.New("workflow: destination is required")
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

func (l Location) Zero() bool {
	return l.Latitude == 0 && l.Longitude == 0 && l.Address == ""
}

// UserContext carries the caller's situation into a workflow. Radius is
// in meters and only meaningful for area queries.
type UserContext struct {
	Location    Location          `json:"location"`
	Destination *Location         `json:"destination,omitempty"`
	VehicleType string            `json:"vehicle_type,omitempty"`
	Radius      int               `json:"radius,omitempty"`
	Urgency     protocol.Priority `json:"urgency,omitempty"`
}

const defaultRadiusMeters = 2000

func (c UserContext) radius() int {
	if c.Radius > 0 {
		return c.Radius
	}
	return defaultRadiusMeters
}

func (c UserContext) vehicle() string {
	if c.VehicleType == "" {
		return "car"
	}
	return c.VehicleType
}

// RequestPriority maps the caller's urgency onto envelope priority,
// defaulting to medium.
func (c UserContext) RequestPriority() protocol.Priority {
	if c.Urgency.Valid() {
		return c.Urgency
	}
	return protocol.PriorityMedium
}
