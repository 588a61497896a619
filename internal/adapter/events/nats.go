// Package events publishes reconciliation status changes to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chainpay-reconciler/internal/core/domain"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Connect dials NATS and keeps reconnecting in the background.
func Connect(url string, log zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("chainpay-reconciler"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection established")
	return nc, nil
}

// StatusChangeEvent is the message body published on the subject.
type StatusChangeEvent struct {
	Type string `json:"type"`
	domain.StatusChange
}

const eventTypeStatusChanged = "transaction.status_changed"

// Publisher implements ports.EventPublisher over a NATS connection.
type Publisher struct {
	conn    Conn
	subject string
}

// NewPublisher creates a publisher that writes to subject.
func NewPublisher(conn Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject}
}

// PublishStatusChange publishes change as JSON. NATS core publish is
// fire-and-forget, so a nil error means buffered, not delivered.
func (p *Publisher) PublishStatusChange(ctx context.Context, change domain.StatusChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(StatusChangeEvent{Type: eventTypeStatusChanged, StatusChange: change})
	if err != nil {
		return fmt.Errorf("encode status change: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// NoopPublisher drops every event. Used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChange(context.Context, domain.StatusChange) error {
	return nil
}
