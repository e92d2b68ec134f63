package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/mapnav/navclient/internal/core/domain"
)

// EventHandler receives decoded domain events.
type EventHandler func(ctx context.Context, e domain.Event) error

// Subscriber relays domain events published by other navclient processes,
// e.g. so every connected renderer sees a revoked session.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber connects to NATS with JetStream enabled.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeEvents delivers new events of the given types (all types when
// none are given). Undecodable messages are terminated, handler errors are
// redelivered up to three times.
func (s *Subscriber) SubscribeEvents(ctx context.Context, handler EventHandler, types ...domain.EventType) error {
	subjects := []string{SubjectPrefix + ">"}
	if len(types) > 0 {
		subjects = subjects[:0]
		for _, t := range types {
			subjects = append(subjects, Subject(t))
		}
	}
	for _, subject := range subjects {
		sub, err := s.js.Subscribe(subject, func(msg *nats.Msg) {
			e, err := DecodeEvent(msg.Data)
			if err != nil {
				slog.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
				_ = msg.Term()
				return
			}
			if err := handler(ctx, e); err != nil {
				_ = msg.Nak()
				return
			}
			_ = msg.Ack()
		},
			nats.DeliverNew(),
			nats.ManualAck(),
			nats.MaxDeliver(3),
		)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
