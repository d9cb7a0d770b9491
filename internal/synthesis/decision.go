// Package synthesis turns a joined set of participant results into one
// unified, confidence-weighted decision.
package synthesis

import (
	"encoding/json"
	"time"

	"streetwise/internal/comms"
	"streetwise/internal/protocol"
)

// Contribution records how one participant figured in a decision.
// Weight is the normalized synthesis weight actually applied; degraded
// participants carry weight zero.
type Contribution struct {
	ParticipantID string       `json:"participant_id"`
	Status        comms.Status `json:"status"`
	Weight        float64      `json:"weight"`
	Confidence    float64      `json:"confidence"`
	LatencyMS     int64        `json:"latency_ms"`
	ErrorDetail   string       `json:"error_detail,omitempty"`
}

// Finding is a participant advisory attributed to its source.
type Finding struct {
	ParticipantID string            `json:"participant_id"`
	Priority      protocol.Priority `json:"priority"`
	Message       string            `json:"message"`
}

// Recommendation is the workflow-specific synthesized payload. Sections
// holds each contributing participant's data under its own key; Missing
// explicitly marks participants whose section is absent instead of
// null-propagating them.
type Recommendation struct {
	Headline   string                     `json:"headline"`
	Advisories []Finding                  `json:"advisories,omitempty"`
	Sections   map[string]json.RawMessage `json:"sections"`
	Missing    []string                   `json:"missing,omitempty"`
}

// Decision is the synthesis output for one orchestration call.
type Decision struct {
	DecisionID        string                  `json:"decision_id"`
	Workflow          string                  `json:"workflow"`
	OverallConfidence float64                 `json:"overall_confidence"`
	PerParticipant    map[string]Contribution `json:"per_participant"`
	PriorityFindings  []Finding               `json:"priority_findings"`
	Recommendation    Recommendation          `json:"recommendation"`
	Degraded          bool                    `json:"degraded"`
	Timestamp         time.Time               `json:"timestamp"`
}
