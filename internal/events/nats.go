package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NatsPublisher publishes events on a subject equal to the event type.
type NatsPublisher struct {
	conn *nats.Conn
}

func NewNatsPublisher(natsURL string) (*NatsPublisher, error) {
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	nc, err := nats.Connect(natsURL, nats.Name("gymbook"))
	if err != nil {
		return nil, err
	}
	return &NatsPublisher{conn: nc}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, event Event) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		slog.ErrorContext(ctx, "Error marshalling event JSON", "error", err)
		return err
	}

	if err = p.conn.Publish(event.EventType, eventJSON); err != nil {
		slog.ErrorContext(ctx, "Error publishing to NATS", "subject", event.EventType, "error", err)
		return err
	}

	slog.DebugContext(ctx, "Published event to NATS", "subject", event.EventType, "session_id", event.SessionID)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
