package protocol

import "encoding/json"

// Finding is a single advisory a participant attaches to its response.
// High-priority findings always surface ahead of everything else in the
// synthesized recommendation.
type Finding struct {
	Priority Priority `json:"priority"`
	Message  string   `json:"message"`
}

// ResponsePayload is the contract a participant response payload must
// follow. Confidence is the participant's self-reported quality signal
// on a 0-100 scale; when absent, ResultCount substitutes via
// min(90, 50+5*result_count), and when neither is present a neutral 70
// is assumed.
type ResponsePayload struct {
	Confidence  *float64        `json:"confidence,omitempty"`
	ResultCount *int            `json:"result_count,omitempty"`
	Findings    []Finding       `json:"findings,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

const neutralConfidence = 70.0

// QualitySignal normalizes the participant's self-reported confidence
// to 0-100.
func (p ResponsePayload) QualitySignal() float64 {
	if p.Confidence != nil {
		return clampConfidence(*p.Confidence)
	}
	if p.ResultCount != nil {
		count := *p.ResultCount
		if count < 0 {
			count = 0
		}
		derived := 50 + 5*float64(count)
		if derived > 90 {
			derived = 90
		}
		return derived
	}
	return neutralConfidence
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func DecodeResponsePayload(raw json.RawMessage) (ResponsePayload, error) {
	var payload ResponsePayload
	if len(raw) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ResponsePayload{}, &Error{Field: "payload", Reason: err.Error()}
	}
	for _, finding := range payload.Findings {
		if !finding.Priority.Valid() {
			return ResponsePayload{}, &Error{Field: "payload.findings", Reason: "unknown priority " + string(finding.Priority)}
		}
	}
	return payload, nil
}
