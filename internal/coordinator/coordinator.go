// Package coordinator runs orchestration calls end to end: workflow
// selection, concurrent dispatch, mandatory-participant policy, and
// decision synthesis, with a bounded history and an observer event bus.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"streetwise/internal/buffer"
	"streetwise/internal/comms"
	"streetwise/internal/event"
	"streetwise/internal/logging"
	"streetwise/internal/registry"
	"streetwise/internal/synthesis"
	"streetwise/internal/workflow"
)

const defaultHistorySize = 100

// ErrUnknownWorkflow marks a query_type no workflow declaration covers.
var ErrUnknownWorkflow = errors.New("coordinator: unknown workflow")

// WorkflowUnsatisfiableError is raised when a workflow's mandatory
// participant did not return ok; the orchestration call fails instead
// of producing a low-confidence decision.
type WorkflowUnsatisfiableError struct {
	Workflow string
	Missing  []string
}

func (e *WorkflowUnsatisfiableError) Error() string {
	return fmt.Sprintf("coordinator: workflow %q unsatisfiable: mandatory participants absent: %s",
		e.Workflow, strings.Join(e.Missing, ", "))
}

// Event is published to observers after every orchestration call.
type Event struct {
	Type       string    `json:"type"`
	Workflow   string    `json:"workflow"`
	DecisionID string    `json:"decision_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Degraded   bool      `json:"degraded"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EventDecisionCompleted = "decision.completed"
	EventDecisionFailed    = "decision.failed"
)

// Dispatcher fans an orchestration request out to participants.
// *dispatch.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, w workflow.Workflow, user workflow.UserContext) ([]comms.Result, error)
}

// Prober checks one participant's liveness. *comms.Handler satisfies it.
type Prober interface {
	Probe(ctx context.Context, participantID string) bool
}

type Options struct {
	Registry    *registry.Registry
	Workflows   *workflow.Set
	Dispatcher  Dispatcher
	Prober      Prober
	Logger      *logging.Logger
	Bus         *event.Bus[Event]
	HistorySize int
	HealthTTL   time.Duration
}

type Coordinator struct {
	registry  *registry.Registry
	workflows *workflow.Set
	dispatch  Dispatcher
	engine    *synthesis.Engine
	logger    *logging.Logger
	bus       *event.Bus[Event]

	historyMu sync.Mutex
	history   *buffer.Ring[synthesis.Decision]
	processed int

	health *healthCache
}

// New validates the workflow catalog against the registry before
// serving; a participant referenced by a workflow but absent from the
// registry is a ConfigurationError at startup, not at call time.
func New(options Options) (*Coordinator, error) {
	if options.Registry == nil {
		return nil, &registry.ConfigurationError{Reason: "registry is required"}
	}
	if options.Workflows == nil {
		options.Workflows = workflow.Default()
	}
	if options.Dispatcher == nil {
		return nil, &registry.ConfigurationError{Reason: "dispatcher is required"}
	}
	if err := options.Workflows.Validate(options.Registry); err != nil {
		return nil, err
	}
	historySize := options.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Coordinator{
		registry:  options.Registry,
		workflows: options.Workflows,
		dispatch:  options.Dispatcher,
		engine:    synthesis.NewEngine(options.Registry, options.Logger),
		logger:    options.Logger,
		bus:       options.Bus,
		history:   buffer.NewRing[synthesis.Decision](historySize),
		health:    newHealthCache(options.Registry, options.Prober, options.HealthTTL),
	}, nil
}

// Decide runs one orchestration call. Partial participant failure
// degrades the decision; it never fails the call unless a mandatory
// participant is absent or the request itself is cancelled.
func (c *Coordinator) Decide(ctx context.Context, tag string, user workflow.UserContext) (synthesis.Decision, error) {
	w, ok := c.workflows.Lookup(tag)
	if !ok {
		return synthesis.Decision{}, fmt.Errorf("%w: %q", ErrUnknownWorkflow, tag)
	}

	results, err := c.dispatch.Dispatch(ctx, w, user)
	if err != nil {
		return synthesis.Decision{}, err
	}

	if missing := synthesis.MandatoryAbsent(w, results); len(missing) > 0 {
		failure := &WorkflowUnsatisfiableError{Workflow: w.Tag, Missing: missing}
		c.publish(Event{
			Type:      EventDecisionFailed,
			Workflow:  w.Tag,
			Detail:    failure.Error(),
			Timestamp: time.Now().UTC(),
		})
		if c.logger != nil {
			c.logger.Warn("workflow unsatisfiable", map[string]string{
				"workflow": w.Tag,
				"missing":  strings.Join(missing, ","),
			})
		}
		return synthesis.Decision{}, failure
	}

	decision := c.engine.Synthesize(w, results)

	c.historyMu.Lock()
	c.history.Add(decision)
	c.processed++
	c.historyMu.Unlock()

	c.publish(Event{
		Type:       EventDecisionCompleted,
		Workflow:   decision.Workflow,
		DecisionID: decision.DecisionID,
		Confidence: decision.OverallConfidence,
		Degraded:   decision.Degraded,
		Timestamp:  decision.Timestamp,
	})
	return decision, nil
}

// History returns up to limit recent decisions, oldest first.
func (c *Coordinator) History(limit int) []synthesis.Decision {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	if limit <= 0 {
		return c.history.List()
	}
	return c.history.ListLast(limit)
}

// Processed reports how many decisions this coordinator has produced.
func (c *Coordinator) Processed() int {
	c.historyMu.Lock()
	defer c.historyMu.Unlock()
	return c.processed
}

// WorkflowTags lists the catalog, in declaration order.
func (c *Coordinator) WorkflowTags() []string {
	return c.workflows.Tags()
}

// Participants returns the registry entries, in declaration order.
func (c *Coordinator) Participants() []registry.Entry {
	return c.registry.All()
}

func (c *Coordinator) publish(evt Event) {
	if c.bus != nil {
		c.bus.Publish(evt)
	}
}
