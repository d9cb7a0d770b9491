package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"streetwise/internal/coordinator"
	"streetwise/internal/logging"
	"streetwise/internal/protocol"
	"streetwise/internal/synthesis"
	"streetwise/internal/workflow"
)

const maxRequestBody = 1 << 20

type RestHandler struct {
	Coordinator *coordinator.Coordinator
	Logger      *logging.Logger
}

type decideRequest struct {
	UserContext workflow.UserContext `json:"user_context"`
	QueryType   string               `json:"query_type"`
}

type decisionSummary struct {
	DecisionID string  `json:"decision_id"`
	Workflow   string  `json:"workflow"`
	Confidence float64 `json:"confidence"`
	Degraded   bool    `json:"degraded"`
	Timestamp  string  `json:"timestamp"`
}

type decisionsResponse struct {
	Total  int               `json:"total"`
	Recent []decisionSummary `json:"recent"`
}

type participantSummary struct {
	ID           string   `json:"id"`
	Endpoint     string   `json:"endpoint"`
	Weight       float64  `json:"weight"`
	Capabilities []string `json:"capabilities"`
}

func (h *RestHandler) handleDecide(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "read request body failed"}
	}
	var request decideRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	tag := normalizeQueryType(request.QueryType)
	if tag == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "query_type is required"}
	}
	return h.respond(r.Context(), w, tag, request.UserContext)
}

func (h *RestHandler) handleQuickAnalysis(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	location, apiErr := parseLocation(r, "latitude", "longitude")
	if apiErr != nil {
		return apiErr
	}
	user := workflow.UserContext{
		Location:    *location,
		VehicleType: r.URL.Query().Get("vehicle_type"),
	}
	return h.respond(r.Context(), w, workflow.TagQuickAnalysis, user)
}

func (h *RestHandler) handleDiningRecommendation(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	location, apiErr := parseLocation(r, "latitude", "longitude")
	if apiErr != nil {
		return apiErr
	}
	radius := 0
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "radius must be a positive integer"}
		}
		radius = parsed
	}
	user := workflow.UserContext{
		Location:    *location,
		VehicleType: r.URL.Query().Get("vehicle_type"),
		Radius:      radius,
	}
	return h.respond(r.Context(), w, workflow.TagDiningRecommendation, user)
}

func (h *RestHandler) handleRouteSafety(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	origin, apiErr := parseLocation(r, "origin_lat", "origin_lng")
	if apiErr != nil {
		return apiErr
	}
	destination, apiErr := parseLocation(r, "dest_lat", "dest_lng")
	if apiErr != nil {
		return apiErr
	}
	user := workflow.UserContext{
		Location:    *origin,
		Destination: destination,
		VehicleType: r.URL.Query().Get("vehicle_type"),
	}
	return h.respond(r.Context(), w, workflow.TagRouteSafety, user)
}

func (h *RestHandler) handleHealth(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, h.Coordinator.Health(r.Context()))
	return nil
}

func (h *RestHandler) handleDecisions(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "limit must be a positive integer"}
		}
		limit = parsed
	}
	history := h.Coordinator.History(limit)
	response := decisionsResponse{
		Total:  h.Coordinator.Processed(),
		Recent: make([]decisionSummary, 0, len(history)),
	}
	for _, decision := range history {
		response.Recent = append(response.Recent, summarize(decision))
	}
	writeJSON(w, http.StatusOK, response)
	return nil
}

func (h *RestHandler) handleParticipants(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	entries := h.Coordinator.Participants()
	summaries := make([]participantSummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, participantSummary{
			ID:           entry.ID,
			Endpoint:     entry.Endpoint,
			Weight:       entry.Weight,
			Capabilities: entry.Capabilities,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
	return nil
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if h.Logger == nil || h.Logger.Buffer() == nil {
		writeJSON(w, http.StatusOK, []logging.Entry{})
		return nil
	}
	minLevel := logging.Level("")
	if raw := r.URL.Query().Get("level"); raw != "" {
		parsed, ok := logging.ParseLevel(raw)
		if !ok {
			return &apiError{Status: http.StatusBadRequest, Message: fmt.Sprintf("unknown level %q", raw)}
		}
		minLevel = parsed
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return &apiError{Status: http.StatusBadRequest, Message: "limit must be a positive integer"}
		}
		limit = parsed
	}

	entries := h.Logger.Buffer().List()
	filtered := make([]logging.Entry, 0, len(entries))
	for _, entry := range entries {
		if logging.LevelAtLeast(entry.Level, minLevel) {
			filtered = append(filtered, entry)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	writeJSON(w, http.StatusOK, filtered)
	return nil
}

func (h *RestHandler) handleReceive(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodPost {
		return methodNotAllowed(w, "POST")
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: "read request body failed"}
	}
	envelope, err := protocol.Decode(body)
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	ack, err := h.Coordinator.Receive(envelope)
	if err != nil {
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	writeJSON(w, http.StatusOK, ack)
	return nil
}

func (h *RestHandler) respond(ctx context.Context, w http.ResponseWriter, tag string, user workflow.UserContext) *apiError {
	decision, err := h.Coordinator.Decide(ctx, tag, user)
	if err != nil {
		return decideError(err)
	}
	writeJSON(w, http.StatusOK, decision)
	return nil
}

// decideError maps coordinator failures onto the HTTP surface. Degraded
// decisions never reach here: they are answered with 200 like any other.
func decideError(err error) *apiError {
	var unsatisfiable *coordinator.WorkflowUnsatisfiableError
	var protoErr *protocol.Error
	switch {
	case errors.As(err, &unsatisfiable):
		return &apiError{Status: http.StatusServiceUnavailable, Message: unsatisfiable.Error()}
	case errors.Is(err, coordinator.ErrUnknownWorkflow),
		errors.Is(err, workflow.ErrMissingLocation),
		errors.Is(err, workflow.ErrMissingDestination),
		errors.As(err, &protoErr):
		return &apiError{Status: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &apiError{Status: http.StatusGatewayTimeout, Message: "orchestration request cancelled"}
	default:
		return &apiError{Status: http.StatusInternalServerError, Message: "decision processing failed"}
	}
}

func summarize(decision synthesis.Decision) decisionSummary {
	return decisionSummary{
		DecisionID: decision.DecisionID,
		Workflow:   decision.Workflow,
		Confidence: decision.OverallConfidence,
		Degraded:   decision.Degraded,
		Timestamp:  decision.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseLocation(r *http.Request, latParam, lngParam string) (*workflow.Location, *apiError) {
	lat, apiErr := parseFloatParam(r, latParam)
	if apiErr != nil {
		return nil, apiErr
	}
	lng, apiErr := parseFloatParam(r, lngParam)
	if apiErr != nil {
		return nil, apiErr
	}
	return &workflow.Location{Latitude: lat, Longitude: lng}, nil
}

func parseFloatParam(r *http.Request, name string) (float64, *apiError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, &apiError{Status: http.StatusBadRequest, Message: name + " is required"}
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &apiError{Status: http.StatusBadRequest, Message: name + " must be a number"}
	}
	return value, nil
}

// normalizeQueryType accepts both hyphenated tags and the legacy
// underscore spelling (dining_recommendation).
func normalizeQueryType(queryType string) string {
	return strings.ReplaceAll(strings.TrimSpace(queryType), "_", "-")
}
