package synthesis

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"streetwise/internal/comms"
	"streetwise/internal/logging"
	"streetwise/internal/protocol"
	"streetwise/internal/registry"
	"streetwise/internal/workflow"
)

// Engine combines participant results into a UnifiedDecision. It is a
// pure, single-pass computation: permuting the input result set never
// changes the output.
type Engine struct {
	registry *registry.Registry
	logger   *logging.Logger
}

func NewEngine(reg *registry.Registry, logger *logging.Logger) *Engine {
	return &Engine{registry: reg, logger: logger}
}

// Synthesize weights the ok results, renormalizes over them, surfaces
// high-priority findings first, and assembles the workflow's
// recommendation. Zero ok results yield confidence 0 and degraded=true
// rather than a failure.
func (e *Engine) Synthesize(w workflow.Workflow, results []comms.Result) Decision {
	ordered := e.orderByDeclaration(results)

	decision := Decision{
		DecisionID:     uuid.NewString(),
		Workflow:       w.Tag,
		PerParticipant: make(map[string]Contribution, len(ordered)),
		Timestamp:      time.Now().UTC(),
		Recommendation: Recommendation{
			Headline: w.Headline,
			Sections: make(map[string]json.RawMessage),
		},
	}

	totalWeight := 0.0
	for _, result := range ordered {
		if !result.OK() {
			continue
		}
		entry, ok := e.registry.Lookup(result.ParticipantID)
		if !ok {
			continue
		}
		totalWeight += entry.Weight
	}

	var findings []Finding
	for _, result := range ordered {
		contribution := Contribution{
			ParticipantID: result.ParticipantID,
			Status:        result.Status,
			LatencyMS:     result.Latency.Milliseconds(),
			ErrorDetail:   result.ErrorDetail,
		}
		if !result.OK() {
			decision.Degraded = true
			decision.PerParticipant[result.ParticipantID] = contribution
			decision.Recommendation.Missing = append(decision.Recommendation.Missing, result.ParticipantID)
			continue
		}

		if entry, ok := e.registry.Lookup(result.ParticipantID); ok && totalWeight > 0 {
			contribution.Weight = entry.Weight / totalWeight
		}
		contribution.Confidence = result.Payload.QualitySignal()
		decision.OverallConfidence += contribution.Weight * contribution.Confidence
		decision.PerParticipant[result.ParticipantID] = contribution

		if len(result.Payload.Data) > 0 {
			decision.Recommendation.Sections[result.ParticipantID] = result.Payload.Data
		}
		for _, finding := range result.Payload.Findings {
			findings = append(findings, Finding{
				ParticipantID: result.ParticipantID,
				Priority:      finding.Priority,
				Message:       finding.Message,
			})
		}
	}

	// Findings were gathered in declaration order; the stable sort
	// keeps that order within each priority band, so safety-relevant
	// content always leads and the result is input-order independent.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Priority.Rank() < findings[j].Priority.Rank()
	})
	for _, finding := range findings {
		if finding.Priority == protocol.PriorityHigh {
			decision.PriorityFindings = append(decision.PriorityFindings, finding)
		} else {
			decision.Recommendation.Advisories = append(decision.Recommendation.Advisories, finding)
		}
	}

	if e.logger != nil {
		e.logger.Info("decision synthesized", map[string]string{
			"workflow":   w.Tag,
			"confidence": strconv.FormatFloat(decision.OverallConfidence, 'f', 1, 64),
			"degraded":   strconv.FormatBool(decision.Degraded),
		})
	}
	return decision
}

// MandatoryAbsent returns the mandatory participants that did not
// return ok, in declaration order.
func MandatoryAbsent(w workflow.Workflow, results []comms.Result) []string {
	okByID := make(map[string]bool, len(results))
	for _, result := range results {
		if result.OK() {
			okByID[result.ParticipantID] = true
		}
	}
	var absent []string
	for _, id := range w.Mandatory {
		if !okByID[id] {
			absent = append(absent, id)
		}
	}
	return absent
}

// orderByDeclaration sorts a copy of the result set by registry
// declaration order so synthesis output cannot depend on how the
// dispatcher happened to order the join.
func (e *Engine) orderByDeclaration(results []comms.Result) []comms.Result {
	ordered := make([]comms.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return e.registry.DeclarationOrder(ordered[i].ParticipantID) < e.registry.DeclarationOrder(ordered[j].ParticipantID)
	})
	return ordered
}
