package sink

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends a payload on a subject. *messaging.Client implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATS publishes records as JSON on one subject.
type NATS struct {
	pub     Publisher
	subject string
}

// NewNATS creates a NATS sink.
func NewNATS(pub Publisher, subject string) *NATS {
	return &NATS{pub: pub, subject: subject}
}

// Submit implements Sink.
func (s *NATS) Submit(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal fault record: %w", err)
	}
	if err := s.pub.Publish(ctx, s.subject, data); err != nil {
		return fmt.Errorf("publish fault record: %w", err)
	}
	return nil
}
