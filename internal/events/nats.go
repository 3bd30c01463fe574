package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS change publisher.
type NATSConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222".
	URL string

	// Subject receives one message per change. Default: "todos.changes".
	Subject string

	// Name is an optional NATS connection name.
	Name string
}

// NATSPublisher publishes changes as JSON messages on a subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "todos.changes"
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, change Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("X-Change-Kind", string(change.Kind))

	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish change to %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
