package workflow

import "encoding/json"

const (
	TagQuickAnalysis        = "quick-analysis"
	TagDiningRecommendation = "dining-recommendation"
	TagRouteSafety          = "route-safety"
)

// Participant identifiers shared with the default registry file.
const (
	ParticipantFood       = "food"
	ParticipantRegulatory = "regulatory"
	ParticipantTransport  = "transport"
	ParticipantFestival   = "festival"
)

// Typed request payloads, one schema per workflow case.

type areaQuery struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	VehicleType string  `json:"vehicle_type,omitempty"`
	Radius      int     `json:"radius,omitempty"`
	Limit       int     `json:"limit,omitempty"`
}

type routeQuery struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	VehicleType string   `json:"vehicle_type"`
}

type eventQuery struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    int     `json:"radius"`
}

// Default returns the built-in workflow catalog.
func Default() *Set {
	set, err := NewSet(quickAnalysis(), diningRecommendation(), routeSafety())
	if err != nil {
		// Static declarations; a failure here is a programming error.
		panic(err)
	}
	return set
}

func quickAnalysis() Workflow {
	return Workflow{
		Tag:          TagQuickAnalysis,
		Headline:     "Area analysis with mobility and enforcement signals",
		Participants: []string{ParticipantTransport, ParticipantRegulatory},
		Build: func(user UserContext) (map[string]json.RawMessage, error) {
			if user.Location.Zero() {
				return nil, ErrMissingLocation
			}
			query := areaQuery{
				Latitude:    user.Location.Latitude,
				Longitude:   user.Location.Longitude,
				VehicleType: user.vehicle(),
			}
			return encodeAll(map[string]any{
				ParticipantTransport:  query,
				ParticipantRegulatory: query,
			})
		},
	}
}

func diningRecommendation() Workflow {
	return Workflow{
		Tag:          TagDiningRecommendation,
		Headline:     "Restaurant recommendations with safety analysis",
		Participants: []string{ParticipantFood, ParticipantRegulatory, ParticipantFestival},
		Build: func(user UserContext) (map[string]json.RawMessage, error) {
			if user.Location.Zero() {
				return nil, ErrMissingLocation
			}
			return encodeAll(map[string]any{
				ParticipantFood: areaQuery{
					Latitude:  user.Location.Latitude,
					Longitude: user.Location.Longitude,
					Radius:    user.radius(),
					Limit:     10,
				},
				ParticipantRegulatory: areaQuery{
					Latitude:    user.Location.Latitude,
					Longitude:   user.Location.Longitude,
					VehicleType: user.vehicle(),
				},
				ParticipantFestival: eventQuery{
					Latitude:  user.Location.Latitude,
					Longitude: user.Location.Longitude,
					Radius:    user.radius(),
				},
			})
		},
	}
}

func routeSafety() Workflow {
	return Workflow{
		Tag:          TagRouteSafety,
		Headline:     "Route safety with regulatory and event considerations",
		Participants: []string{ParticipantRegulatory, ParticipantTransport, ParticipantFestival},
		Mandatory:    []string{ParticipantTransport},
		Build: func(user UserContext) (map[string]json.RawMessage, error) {
			if user.Location.Zero() {
				return nil, ErrMissingLocation
			}
			if user.Destination == nil || user.Destination.Zero() {
				return nil, ErrMissingDestination
			}
			route := routeQuery{
				Origin:      user.Location,
				Destination: *user.Destination,
				VehicleType: user.vehicle(),
			}
			return encodeAll(map[string]any{
				ParticipantRegulatory: route,
				ParticipantTransport:  route,
				ParticipantFestival: eventQuery{
					Latitude:  user.Destination.Latitude,
					Longitude: user.Destination.Longitude,
					Radius:    user.radius(),
				},
			})
		},
	}
}

func encodeAll(payloads map[string]any) (map[string]json.RawMessage, error) {
	encoded := make(map[string]json.RawMessage, len(payloads))
	for participant, payload := range payloads {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		encoded[participant] = raw
	}
	return encoded, nil
}
