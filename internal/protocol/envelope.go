// Package protocol defines the wire-level envelope exchanged between
// the coordinator and participant services, plus the payload contract a
// participant response must honor.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CoordinatorID is the reserved sender identifier for the coordinator
// itself; it never appears in the participant registry.
const CoordinatorID = "decision"

type MessageType string

const (
	MessageTypeRequest   MessageType = "request"
	MessageTypeResponse  MessageType = "response"
	MessageTypeError     MessageType = "error"
	MessageTypeBroadcast MessageType = "broadcast"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeRequest, MessageTypeResponse, MessageTypeError, MessageTypeBroadcast:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// rank orders priorities high-first for finding sorts.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Envelope is the unit of exchange between coordinator and participants.
// Payload stays raw so round-trips preserve it byte for byte.
type Envelope struct {
	MessageID   string          `json:"message_id"`
	Sender      string          `json:"sender"`
	Receiver    string          `json:"receiver"`
	MessageType MessageType     `json:"message_type"`
	Priority    Priority        `json:"priority"`
	Timestamp   time.Time       `json:"timestamp"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Error reports a malformed envelope. Envelopes failing validation are
// rejected before dispatch and never reach the wire.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol: invalid envelope %s: %s", e.Field, e.Reason)
}

// Validate checks the envelope shape. Registry membership of the
// sender/receiver is the dispatcher's concern, not the protocol's.
func Validate(envelope Envelope) error {
	if strings.TrimSpace(envelope.MessageID) == "" {
		return &Error{Field: "message_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(envelope.Sender) == "" {
		return &Error{Field: "sender", Reason: "must not be empty"}
	}
	if strings.TrimSpace(envelope.Receiver) == "" {
		return &Error{Field: "receiver", Reason: "must not be empty"}
	}
	if !envelope.MessageType.Valid() {
		return &Error{Field: "message_type", Reason: fmt.Sprintf("unknown value %q", envelope.MessageType)}
	}
	if !envelope.Priority.Valid() {
		return &Error{Field: "priority", Reason: fmt.Sprintf("unknown value %q", envelope.Priority)}
	}
	if envelope.Timestamp.IsZero() {
		return &Error{Field: "timestamp", Reason: "must be set"}
	}
	return nil
}

func Encode(envelope Envelope) ([]byte, error) {
	if err := Validate(envelope); err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

func Decode(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, &Error{Field: "envelope", Reason: err.Error()}
	}
	if err := Validate(envelope); err != nil {
		return Envelope{}, err
	}
	return envelope, nil
}
