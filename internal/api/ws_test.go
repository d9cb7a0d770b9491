package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"streetwise/internal/comms"
	"streetwise/internal/coordinator"
	"streetwise/internal/workflow"
)

func TestDecisionEventsStream(t *testing.T) {
	dispatcher := &stubDispatcher{results: map[string][]comms.Result{
		workflow.TagQuickAnalysis: {okResult("regulatory", 90), okResult("transport", 70)},
	}}
	server, coord, _ := newTestServer(t, dispatcher, "")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/decisions"
	conn, response, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if response != nil {
		response.Body.Close()
	}
	defer conn.Close()

	decision, err := coord.Decide(context.Background(), workflow.TagQuickAnalysis, workflow.UserContext{
		Location: workflow.Location{Latitude: 12.9, Longitude: 77.5},
	})
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	var evt coordinator.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != coordinator.EventDecisionCompleted {
		t.Fatalf("unexpected event type %q", evt.Type)
	}
	if evt.DecisionID != decision.DecisionID {
		t.Fatalf("event decision id %q does not match %q", evt.DecisionID, decision.DecisionID)
	}
}

func TestDecisionEventsStreamRequiresToken(t *testing.T) {
	server, _, _ := newTestServer(t, &stubDispatcher{}, "secret")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/decisions"
	conn, response, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("expected dial to fail without token")
	}
	if response == nil || response.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", response)
	}
	if response != nil {
		response.Body.Close()
	}

	conn, response, err = websocket.DefaultDialer.Dial(wsURL+"?token=secret", nil)
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	if response != nil {
		response.Body.Close()
	}
	conn.Close()
}
