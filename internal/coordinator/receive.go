package coordinator

import (
	"fmt"

	"streetwise/internal/protocol"
)

// Ack acknowledges an inbound envelope on the coordinator's own
// receive endpoint.
type Ack struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// Receive accepts envelopes participants send to the coordinator
// (broadcast notifications, out-of-band responses). Request envelopes
// are not served here: participants do not query the coordinator over
// the envelope protocol.
func (c *Coordinator) Receive(envelope protocol.Envelope) (Ack, error) {
	if err := protocol.Validate(envelope); err != nil {
		return Ack{}, err
	}
	if envelope.Receiver != protocol.CoordinatorID {
		return Ack{}, &protocol.Error{Field: "receiver", Reason: fmt.Sprintf("envelope addressed to %q, not the coordinator", envelope.Receiver)}
	}
	if _, known := c.registry.Lookup(envelope.Sender); !known {
		return Ack{}, &protocol.Error{Field: "sender", Reason: fmt.Sprintf("unknown participant %q", envelope.Sender)}
	}
	if envelope.MessageType == protocol.MessageTypeRequest {
		return Ack{}, &protocol.Error{Field: "message_type", Reason: "coordinator does not serve request envelopes"}
	}

	if c.logger != nil {
		c.logger.Info("envelope received", map[string]string{
			"sender":       envelope.Sender,
			"message_type": string(envelope.MessageType),
			"message_id":   envelope.MessageID,
			"priority":     string(envelope.Priority),
		})
	}
	return Ack{Status: "received", MessageID: envelope.MessageID}, nil
}
