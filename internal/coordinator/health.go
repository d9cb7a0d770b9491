package coordinator

import (
	"context"
	"sync"
	"time"

	"streetwise/internal/registry"
)

const defaultHealthTTL = 15 * time.Second

// HealthReport is the coordinator liveness answer plus a cached view of
// each registered participant's liveness probe.
type HealthReport struct {
	Status       string          `json:"status"`
	Participants map[string]bool `json:"participants"`
	CheckedAt    time.Time       `json:"checked_at"`
	Processed    int             `json:"decisions_processed"`
}

type healthCache struct {
	registry *registry.Registry
	prober   Prober
	ttl      time.Duration

	mu        sync.Mutex
	statuses  map[string]bool
	checkedAt time.Time
}

func newHealthCache(reg *registry.Registry, prober Prober, ttl time.Duration) *healthCache {
	if ttl <= 0 {
		ttl = defaultHealthTTL
	}
	return &healthCache{registry: reg, prober: prober, ttl: ttl}
}

// Health probes all participants concurrently, caching the answer for
// the configured TTL so the endpoint stays cheap under polling.
func (c *Coordinator) Health(ctx context.Context) HealthReport {
	statuses, checkedAt := c.health.snapshot(ctx)
	return HealthReport{
		Status:       "ok",
		Participants: statuses,
		CheckedAt:    checkedAt,
		Processed:    c.Processed(),
	}
}

func (h *healthCache) snapshot(ctx context.Context) (map[string]bool, time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.statuses != nil && time.Since(h.checkedAt) < h.ttl {
		return cloneStatuses(h.statuses), h.checkedAt
	}

	entries := h.registry.All()
	statuses := make(map[string]bool, len(entries))
	if h.prober == nil {
		for _, entry := range entries {
			statuses[entry.ID] = false
		}
	} else {
		var wg sync.WaitGroup
		var statusMu sync.Mutex
		for _, entry := range entries {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				alive := h.prober.Probe(ctx, id)
				statusMu.Lock()
				statuses[id] = alive
				statusMu.Unlock()
			}(entry.ID)
		}
		wg.Wait()
	}

	h.statuses = statuses
	h.checkedAt = time.Now().UTC()
	return cloneStatuses(statuses), h.checkedAt
}

func cloneStatuses(statuses map[string]bool) map[string]bool {
	out := make(map[string]bool, len(statuses))
	for id, alive := range statuses {
		out[id] = alive
	}
	return out
}
