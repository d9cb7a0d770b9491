package workflow

import (
	"encoding/json"
	"fmt"

	"streetwise/internal/registry"
)

// Workflow is one static fan-out declaration. Adding a workflow means
// adding a declaration here plus registry entries; the dispatcher and
// synthesis engine stay untouched.
type Workflow struct {
	Tag          string
	Headline     string
	Participants []string
	Mandatory    []string

	// Build produces the request payload for every participant in the
	// subset. Payload shapes are typed per workflow, not duck-typed.
	Build func(user UserContext) (map[string]json.RawMessage, error)
}

func (w Workflow) IsMandatory(participantID string) bool {
	for _, id := range w.Mandatory {
		if id == participantID {
			return true
		}
	}
	return false
}

// Set is an immutable workflow catalog.
type Set struct {
	order     []string
	workflows map[string]Workflow
}

func NewSet(workflows ...Workflow) (*Set, error) {
	set := &Set{workflows: make(map[string]Workflow, len(workflows))}
	for _, w := range workflows {
		if w.Tag == "" {
			return nil, &registry.ConfigurationError{Reason: "workflow tag must not be empty"}
		}
		if _, exists := set.workflows[w.Tag]; exists {
			return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("workflow %q declared twice", w.Tag)}
		}
		if len(w.Participants) == 0 {
			return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("workflow %q has no participants", w.Tag)}
		}
		if w.Build == nil {
			return nil, &registry.ConfigurationError{Reason: fmt.Sprintf("workflow %q has no payload builder", w.Tag)}
		}
		for _, mandatory := range w.Mandatory {
			if !contains(w.Participants, mandatory) {
				return nil, &registry.ConfigurationError{
					Participant: mandatory,
					Reason:      fmt.Sprintf("mandatory for workflow %q but not in its participant subset", w.Tag),
				}
			}
		}
		set.workflows[w.Tag] = w
		set.order = append(set.order, w.Tag)
	}
	return set, nil
}

func (s *Set) Lookup(tag string) (Workflow, bool) {
	if s == nil {
		return Workflow{}, false
	}
	w, ok := s.workflows[tag]
	return w, ok
}

func (s *Set) Tags() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Validate checks every declared participant against the registry at
// startup: it must exist and must advertise the workflow tag as a
// capability. Failures are ConfigurationErrors, fatal before serving.
func (s *Set) Validate(reg *registry.Registry) error {
	if s == nil {
		return &registry.ConfigurationError{Reason: "no workflows declared"}
	}
	for _, tag := range s.order {
		w := s.workflows[tag]
		for _, participantID := range w.Participants {
			entry, ok := reg.Lookup(participantID)
			if !ok {
				return &registry.ConfigurationError{
					Participant: participantID,
					Reason:      fmt.Sprintf("referenced by workflow %q but not registered", tag),
				}
			}
			if !entry.ServesWorkflow(tag) {
				return &registry.ConfigurationError{
					Participant: participantID,
					Reason:      fmt.Sprintf("does not declare capability %q", tag),
				}
			}
		}
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
