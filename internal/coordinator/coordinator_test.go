package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"streetwise/internal/comms"
	"streetwise/internal/event"
	"streetwise/internal/protocol"
	"streetwise/internal/registry"
	"streetwise/internal/workflow"
)

func fullRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.Entry{
		{ID: "food", Endpoint: "http://localhost:8000", Weight: 0.3, Capabilities: []string{workflow.TagDiningRecommendation}},
		{ID: "regulatory", Endpoint: "http://localhost:8001", Weight: 0.4, Capabilities: []string{workflow.TagDiningRecommendation, workflow.TagRouteSafety, workflow.TagQuickAnalysis}},
		{ID: "transport", Endpoint: "http://localhost:8002", Weight: 0.2, Capabilities: []string{workflow.TagRouteSafety, workflow.TagQuickAnalysis}},
		{ID: "festival", Endpoint: "http://localhost:8003", Weight: 0.1, Capabilities: []string{workflow.TagDiningRecommendation, workflow.TagRouteSafety}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

type fakeDispatcher struct {
	results map[string][]comms.Result
	err     error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, w workflow.Workflow, user workflow.UserContext) ([]comms.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[w.Tag], nil
}

func okResult(id string, confidence float64) comms.Result {
	c := confidence
	return comms.Result{
		ParticipantID: id,
		Status:        comms.StatusOK,
		Payload:       protocol.ResponsePayload{Confidence: &c},
	}
}

func newCoordinator(t *testing.T, dispatcher Dispatcher, bus *event.Bus[Event]) *Coordinator {
	t.Helper()
	coord, err := New(Options{
		Registry:   fullRegistry(t),
		Dispatcher: dispatcher,
		Bus:        bus,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return coord
}

func userAt(lat, lng float64) workflow.UserContext {
	return workflow.UserContext{Location: workflow.Location{Latitude: lat, Longitude: lng}}
}

func TestDecideRecordsHistoryAndPublishes(t *testing.T) {
	bus := event.NewBus[Event](context.Background(), event.BusOptions{})
	t.Cleanup(bus.Close)
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	dispatcher := &fakeDispatcher{results: map[string][]comms.Result{
		workflow.TagQuickAnalysis: {okResult("transport", 70), okResult("regulatory", 90)},
	}}
	coord := newCoordinator(t, dispatcher, bus)

	decision, err := coord.Decide(context.Background(), workflow.TagQuickAnalysis, userAt(12.9, 77.5))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if decision.Degraded {
		t.Fatalf("unexpected degraded decision")
	}
	if coord.Processed() != 1 {
		t.Fatalf("expected 1 processed decision, got %d", coord.Processed())
	}
	history := coord.History(10)
	if len(history) != 1 || history[0].DecisionID != decision.DecisionID {
		t.Fatalf("decision missing from history")
	}

	select {
	case evt := <-events:
		if evt.Type != EventDecisionCompleted || evt.DecisionID != decision.DecisionID {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no decision event published")
	}
}

func TestDecideUnknownWorkflow(t *testing.T) {
	coord := newCoordinator(t, &fakeDispatcher{}, nil)
	_, err := coord.Decide(context.Background(), "weather-forecast", userAt(1, 1))
	if !errors.Is(err, ErrUnknownWorkflow) {
		t.Fatalf("expected ErrUnknownWorkflow, got %v", err)
	}
}

func TestDecideMandatoryAbsentFailsCall(t *testing.T) {
	bus := event.NewBus[Event](context.Background(), event.BusOptions{})
	t.Cleanup(bus.Close)
	events, cancel := bus.Subscribe()
	t.Cleanup(cancel)

	dispatcher := &fakeDispatcher{results: map[string][]comms.Result{
		workflow.TagRouteSafety: {
			okResult("regulatory", 90),
			{ParticipantID: "transport", Status: comms.StatusUnreachable},
			okResult("festival", 60),
		},
	}}
	coord := newCoordinator(t, dispatcher, bus)

	user := userAt(12.9, 77.5)
	user.Destination = &workflow.Location{Latitude: 13.0, Longitude: 77.6}
	_, err := coord.Decide(context.Background(), workflow.TagRouteSafety, user)

	var unsatisfiable *WorkflowUnsatisfiableError
	if !errors.As(err, &unsatisfiable) {
		t.Fatalf("expected WorkflowUnsatisfiableError, got %v", err)
	}
	if len(unsatisfiable.Missing) != 1 || unsatisfiable.Missing[0] != "transport" {
		t.Fatalf("unexpected missing list: %v", unsatisfiable.Missing)
	}
	if coord.Processed() != 0 {
		t.Fatalf("unsatisfiable call must not count as processed")
	}

	select {
	case evt := <-events:
		if evt.Type != EventDecisionFailed {
			t.Fatalf("expected failure event, got %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no failure event published")
	}
}

func TestDecideTotalFailureStillAnswers(t *testing.T) {
	dispatcher := &fakeDispatcher{results: map[string][]comms.Result{
		workflow.TagQuickAnalysis: {
			{ParticipantID: "transport", Status: comms.StatusUnreachable},
			{ParticipantID: "regulatory", Status: comms.StatusUnreachable},
		},
	}}
	coord := newCoordinator(t, dispatcher, nil)

	decision, err := coord.Decide(context.Background(), workflow.TagQuickAnalysis, userAt(12.9, 77.5))
	if err != nil {
		t.Fatalf("total failure of non-mandatory participants must still answer: %v", err)
	}
	if decision.OverallConfidence != 0 || !decision.Degraded {
		t.Fatalf("expected zero-confidence degraded decision, got %+v", decision)
	}
}

func TestDecidePropagatesDispatchErrors(t *testing.T) {
	dispatcher := &fakeDispatcher{err: context.Canceled}
	coord := newCoordinator(t, dispatcher, nil)
	_, err := coord.Decide(context.Background(), workflow.TagQuickAnalysis, userAt(1, 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsIncompleteRegistry(t *testing.T) {
	reg, err := registry.New([]registry.Entry{
		{ID: "food", Endpoint: "http://localhost:8000", Weight: 0.3, Capabilities: []string{workflow.TagDiningRecommendation}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	_, err = New(Options{Registry: reg, Dispatcher: &fakeDispatcher{}})
	var confErr *registry.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError at startup, got %v", err)
	}
}

type countingProber struct {
	calls atomic.Int32
}

func (p *countingProber) Probe(ctx context.Context, participantID string) bool {
	p.calls.Add(1)
	return participantID != "festival"
}

func TestHealthCachesProbes(t *testing.T) {
	prober := &countingProber{}
	coord, err := New(Options{
		Registry:   fullRegistry(t),
		Dispatcher: &fakeDispatcher{},
		Prober:     prober,
		HealthTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	first := coord.Health(context.Background())
	if first.Status != "ok" {
		t.Fatalf("unexpected status: %q", first.Status)
	}
	if len(first.Participants) != 4 {
		t.Fatalf("expected 4 participant statuses, got %d", len(first.Participants))
	}
	if first.Participants["festival"] || !first.Participants["food"] {
		t.Fatalf("unexpected statuses: %#v", first.Participants)
	}

	second := coord.Health(context.Background())
	if !second.CheckedAt.Equal(first.CheckedAt) {
		t.Fatalf("expected cached health report")
	}
	if got := prober.calls.Load(); got != 4 {
		t.Fatalf("expected 4 probes total, got %d", got)
	}
}

func TestReceiveAcknowledgesBroadcast(t *testing.T) {
	coord := newCoordinator(t, &fakeDispatcher{}, nil)
	envelope := protocol.Envelope{
		MessageID:   "msg-9",
		Sender:      "festival",
		Receiver:    protocol.CoordinatorID,
		MessageType: protocol.MessageTypeBroadcast,
		Priority:    protocol.PriorityHigh,
		Timestamp:   time.Now().UTC(),
		Payload:     json.RawMessage(`{"event":"parade route change"}`),
	}
	ack, err := coord.Receive(envelope)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if ack.Status != "received" || ack.MessageID != "msg-9" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestReceiveRejectsBadEnvelopes(t *testing.T) {
	coord := newCoordinator(t, &fakeDispatcher{}, nil)
	base := protocol.Envelope{
		MessageID:   "msg-1",
		Sender:      "festival",
		Receiver:    protocol.CoordinatorID,
		MessageType: protocol.MessageTypeBroadcast,
		Priority:    protocol.PriorityLow,
		Timestamp:   time.Now().UTC(),
	}

	wrongReceiver := base
	wrongReceiver.Receiver = "food"
	unknownSender := base
	unknownSender.Sender = "weather"
	requestType := base
	requestType.MessageType = protocol.MessageTypeRequest

	for name, envelope := range map[string]protocol.Envelope{
		"wrong receiver": wrongReceiver,
		"unknown sender": unknownSender,
		"request type":   requestType,
	} {
		_, err := coord.Receive(envelope)
		var protoErr *protocol.Error
		if !errors.As(err, &protoErr) {
			t.Fatalf("%s: expected protocol error, got %v", name, err)
		}
	}
}
