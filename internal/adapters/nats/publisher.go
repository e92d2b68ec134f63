package natsadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mapnav/navclient/internal/core/domain"
)

// EventStream is the JetStream stream holding navclient domain events.
var EventStream = nats.StreamConfig{
	Name:      "NAVCLIENT_EVENTS",
	Subjects:  []string{SubjectPrefix + ">"},
	Retention: nats.LimitsPolicy,
	MaxAge:    24 * time.Hour,
	Storage:   nats.FileStorage,
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the event stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStream(js, EventStream); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, js: js}, nil
}

func ensureStream(js nats.JetStreamContext, cfg nats.StreamConfig) error {
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist; bring its config up to date.
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// Publish sends e on its subject and waits for the stream ack.
func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	if _, err := p.js.Publish(Subject(e.Type), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("navclient"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Conn exposes the connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}
