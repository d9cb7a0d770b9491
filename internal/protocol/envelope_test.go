package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func validEnvelope() Envelope {
	return Envelope{
		MessageID:   "msg-1",
		Sender:      CoordinatorID,
		Receiver:    "food",
		MessageType: MessageTypeRequest,
		Priority:    PriorityMedium,
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Payload:     json.RawMessage(`{"latitude":12.97,"longitude":77.59,"radius":2000}`),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := validEnvelope()
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.MessageID != original.MessageID ||
		decoded.Sender != original.Sender ||
		decoded.Receiver != original.Receiver ||
		decoded.MessageType != original.MessageType ||
		decoded.Priority != original.Priority {
		t.Fatalf("fields changed in round trip: %+v", decoded)
	}
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Fatalf("timestamp changed: %v != %v", decoded.Timestamp, original.Timestamp)
	}
	var originalPayload, decodedPayload map[string]any
	if err := json.Unmarshal(original.Payload, &originalPayload); err != nil {
		t.Fatalf("unmarshal original payload: %v", err)
	}
	if err := json.Unmarshal(decoded.Payload, &decodedPayload); err != nil {
		t.Fatalf("unmarshal decoded payload: %v", err)
	}
	if len(decodedPayload) != len(originalPayload) {
		t.Fatalf("payload changed: %#v != %#v", decodedPayload, originalPayload)
	}
}

func TestValidateRejectsUnknownMessageType(t *testing.T) {
	envelope := validEnvelope()
	envelope.MessageType = "query"
	err := Validate(envelope)
	var protoErr *Error
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
	if protoErr.Field != "message_type" {
		t.Fatalf("unexpected field: %q", protoErr.Field)
	}
}

func TestValidateRejectsEmptyIdentifiers(t *testing.T) {
	for _, corrupt := range []func(*Envelope){
		func(e *Envelope) { e.MessageID = " " },
		func(e *Envelope) { e.Sender = "" },
		func(e *Envelope) { e.Receiver = "" },
		func(e *Envelope) { e.Timestamp = time.Time{} },
	} {
		envelope := validEnvelope()
		corrupt(&envelope)
		if Validate(envelope) == nil {
			t.Fatalf("expected rejection for %+v", envelope)
		}
	}
}

func TestEncodeRefusesInvalidEnvelope(t *testing.T) {
	envelope := validEnvelope()
	envelope.Priority = "urgent"
	if _, err := Encode(envelope); err == nil {
		t.Fatalf("expected encode to reject invalid priority")
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{"message_id":`))
	var protoErr *Error
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}
