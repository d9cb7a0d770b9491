// Package comms sends envelopes to participant services and normalizes
// every outcome, success or failure, into a ParticipantResult. Transport
// faults never escape this package as errors.
package comms

import (
	"time"

	"streetwise/internal/protocol"
)

type Status string

const (
	StatusOK          Status = "ok"
	StatusTimeout     Status = "timeout"
	StatusError       Status = "error"
	StatusUnreachable Status = "unreachable"
)

// Result is the per-participant outcome of one dispatch attempt.
// Payload is populated only when Status is ok. Results are immutable
// once returned.
type Result struct {
	ParticipantID string
	Status        Status
	Payload       protocol.ResponsePayload
	Latency       time.Duration
	ErrorDetail   string
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}
