package main

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"streetwise/internal/logging"
	"streetwise/internal/protocol"
)

const maxRequestBody = 1 << 20

type participant struct {
	role   string
	canned protocol.ResponsePayload
	logger *logging.Logger
}

// cannedResponses hold one plausible answer per participant role. The
// data sections mimic what the real upstream services return for a
// Bengaluru street query.
var cannedResponses = map[string]protocol.ResponsePayload{
	"food": {
		Confidence: confidence(82),
		Findings: []protocol.Finding{
			{Priority: protocol.PriorityMedium, Message: "two highly rated stalls within 500m close at 21:00"},
		},
		Data: json.RawMessage(`{"vendors":[{"name":"Shivaji Military Hotel","rating":4.6,"distance_m":320},{"name":"VV Puram Food Street","rating":4.4,"distance_m":480}]}`),
	},
	"regulatory": {
		Confidence: confidence(90),
		Findings: []protocol.Finding{
			{Priority: protocol.PriorityHigh, Message: "vending prohibited on the east footpath after 20:00"},
			{Priority: protocol.PriorityLow, Message: "municipal permit checks scheduled this week"},
		},
		Data: json.RawMessage(`{"zone":"commercial","restrictions":["no_vending_after_2000_east_footpath"]}`),
	},
	"transport": {
		Confidence: confidence(76),
		Findings: []protocol.Finding{
			{Priority: protocol.PriorityMedium, Message: "moderate congestion on the outer ring road until 19:30"},
		},
		Data: json.RawMessage(`{"congestion_level":"moderate","suggested_departure":"19:45","parking":{"available":true,"distance_m":210}}`),
	},
	"festival": {
		Confidence: confidence(68),
		Findings: []protocol.Finding{
			{Priority: protocol.PriorityLow, Message: "temple procession expected near the market on Sunday"},
		},
		Data: json.RawMessage(`{"events":[{"name":"Karaga procession","crowd":"heavy","date":"Sunday"}]}`),
	},
}

func confidence(value float64) *float64 {
	return &value
}

func (p *participant) handleReceive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read request body failed", http.StatusBadRequest)
		return
	}
	request, err := protocol.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if request.Receiver != p.role {
		http.Error(w, "envelope addressed to a different participant", http.StatusBadRequest)
		return
	}

	if p.logger != nil {
		p.logger.Debug("envelope received", map[string]string{
			"sender":       request.Sender,
			"message_id":   request.MessageID,
			"message_type": string(request.MessageType),
		})
	}

	// broadcasts carry no reply
	if request.MessageType == protocol.MessageTypeBroadcast {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]string{"status": "received", "message_id": request.MessageID})
		return
	}

	response, err := p.respond(request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(response)
}

func (p *participant) respond(request protocol.Envelope) ([]byte, error) {
	payload, err := json.Marshal(p.canned)
	if err != nil {
		return nil, err
	}
	return protocol.Encode(protocol.Envelope{
		MessageID:   uuid.NewString(),
		Sender:      p.role,
		Receiver:    request.Sender,
		MessageType: protocol.MessageTypeResponse,
		Priority:    request.Priority,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	})
}

func (p *participant) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "ok",
		"participant": p.role,
	})
}
