package comms

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 5 * time.Second

// Probe reports whether a participant's liveness endpoint answers.
func (h *Handler) Probe(ctx context.Context, participantID string) bool {
	entry, ok := h.registry.Lookup(participantID)
	if !ok {
		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(probeCtx, http.MethodGet, entry.Endpoint+healthPath, nil)
	if err != nil {
		return false
	}
	response, err := h.client.Do(request)
	if err != nil {
		return false
	}
	defer response.Body.Close()
	return response.StatusCode == http.StatusOK
}
