// Package registry holds the static participant registry: which
// services exist, where they live, what workflows they can serve, and
// how much weight their answers carry during synthesis.
package registry

import (
	"fmt"
	"net/url"
	"strings"

	"streetwise/internal/protocol"
)

// Entry describes one registered participant. Entries are immutable
// after startup; declaration order is significant for synthesis
// tie-breaking.
type Entry struct {
	ID           string   `yaml:"id"`
	Endpoint     string   `yaml:"endpoint"`
	Weight       float64  `yaml:"weight"`
	Capabilities []string `yaml:"capabilities"`
}

func (e Entry) ServesWorkflow(tag string) bool {
	for _, capability := range e.Capabilities {
		if capability == tag {
			return true
		}
	}
	return false
}

// ConfigurationError reports an invalid registry declaration. It is
// fatal at startup and never retried.
type ConfigurationError struct {
	Participant string
	Reason      string
}

func (e *ConfigurationError) Error() string {
	if e.Participant == "" {
		return "registry: " + e.Reason
	}
	return fmt.Sprintf("registry: participant %q: %s", e.Participant, e.Reason)
}

// Registry is a read-only participant index built once at process
// start. Concurrent reads need no locking.
type Registry struct {
	entries map[string]Entry
	order   []string
}

func New(entries []Entry) (*Registry, error) {
	index := make(map[string]Entry, len(entries))
	order := make([]string, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, &ConfigurationError{Reason: "participant id must not be empty"}
		}
		if id == protocol.CoordinatorID {
			return nil, &ConfigurationError{Participant: id, Reason: "identifier is reserved for the coordinator"}
		}
		if _, exists := index[id]; exists {
			return nil, &ConfigurationError{Participant: id, Reason: "declared twice"}
		}
		endpoint := strings.TrimSpace(entry.Endpoint)
		if endpoint == "" {
			return nil, &ConfigurationError{Participant: id, Reason: "endpoint must not be empty"}
		}
		parsed, err := url.Parse(endpoint)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, &ConfigurationError{Participant: id, Reason: fmt.Sprintf("invalid endpoint %q", entry.Endpoint)}
		}
		if entry.Weight < 0 || entry.Weight > 1 {
			return nil, &ConfigurationError{Participant: id, Reason: fmt.Sprintf("weight %v outside [0,1]", entry.Weight)}
		}
		entry.ID = id
		entry.Endpoint = strings.TrimRight(endpoint, "/")
		index[id] = entry
		order = append(order, id)
	}
	return &Registry{entries: index, order: order}, nil
}

// Lookup resolves a participant by ID.
func (r *Registry) Lookup(participantID string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	entry, ok := r.entries[participantID]
	return entry, ok
}

// ParticipantsFor returns the entries able to serve a workflow tag, in
// declaration order.
func (r *Registry) ParticipantsFor(workflowTag string) []Entry {
	if r == nil {
		return nil
	}
	var matched []Entry
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.ServesWorkflow(workflowTag) {
			matched = append(matched, entry)
		}
	}
	return matched
}

// DeclarationOrder returns the position of a participant in the
// registry file, used as a deterministic tie-breaker. Unknown IDs sort
// last.
func (r *Registry) DeclarationOrder(participantID string) int {
	if r == nil {
		return 0
	}
	for index, id := range r.order {
		if id == participantID {
			return index
		}
	}
	return len(r.order)
}

// All returns every entry in declaration order.
func (r *Registry) All() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
