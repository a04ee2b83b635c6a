package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Subjects of the roster events.
const (
	SubjectSessionBooked   = "session.booked"
	SubjectSessionUnbooked = "session.unbooked"
	SubjectReviewSubmitted = "review.submitted"
	SubjectPartialWrite    = "roster.partial_write"
)

// Drivers accepted by NewPublisher.
const (
	DriverNone = "none"
	DriverNATS = "nats"
	DriverAMQP = "amqp"
)

// Event is the JSON envelope published for every subject.
type Event struct {
	ID        string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	VisitorID string    `json:"visitor_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	ReviewID  string    `json:"review_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(subject, sessionID string) Event {
	return Event{
		ID:        uuid.NewString(),
		EventType: subject,
		SessionID: sessionID,
		At:        time.Now().UTC(),
	}
}

// EventPublisher delivers events to a broker. Publish failures are reported but never undo
// the write that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Config selects and addresses the broker.
type Config struct {
	Driver  string
	NATSURL string
	AMQPURL string
	// Exchange for the amqp driver; empty means the default exchange with subject-named queues.
	Exchange string
}

// NewPublisher builds the publisher for cfg.Driver. An empty driver means none.
func NewPublisher(cfg Config) (EventPublisher, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return NoopPublisher{}, nil
	case DriverNATS:
		return NewNatsPublisher(cfg.NATSURL)
	case DriverAMQP:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	slog.DebugContext(ctx, "Event dropped, no broker configured", "subject", event.EventType)
	return nil
}

func (NoopPublisher) Close() error { return nil }
