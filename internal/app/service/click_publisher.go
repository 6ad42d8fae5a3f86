package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/quicktrends/couponfunnel/internal/app/model"
)

// ClickPublisher mirrors click events to NATS JetStream so downstream
// consumers can warehouse them. Publishing is best-effort: the log files
// remain the canonical record.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher.
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Publish sends the event to the click stream.
func (p *ClickPublisher) Publish(event model.ClickEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data)
	return err
}
