package protocol

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stamper issues fresh message IDs and timestamps that never move
// backwards within one dispatch, even if the wall clock does.
type Stamper struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func NewStamper() *Stamper {
	return &Stamper{now: time.Now}
}

func NewStamperWithClock(now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

func (s *Stamper) NewRequest(receiver string, priority Priority, payload json.RawMessage) Envelope {
	return Envelope{
		MessageID:   uuid.NewString(),
		Sender:      CoordinatorID,
		Receiver:    receiver,
		MessageType: MessageTypeRequest,
		Priority:    priority,
		Timestamp:   s.stamp(),
		Payload:     payload,
	}
}

func (s *Stamper) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if now.Before(s.last) {
		now = s.last
	}
	s.last = now
	return now
}
