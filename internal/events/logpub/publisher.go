// Package logpub publishes events to the standard logger. It is used when no
// broker is configured.
package logpub

import (
	"context"
	"encoding/json"
	"log"

	interfaces "github.com/sheikh-saqib/deskbank/internal/interfaces"
)

type Publisher struct {
	logger *log.Logger
}

// New returns a publisher writing to logger, or to the default logger when nil.
func New(logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.logger.Printf("event %s: %s", topic, data)
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
