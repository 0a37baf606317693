// Package events publishes domain events to NATS subjects.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	// SubmissionRecorded is emitted after an attempt has been committed.
	SubmissionRecorded = "submission.recorded"
	// SubmissionGraded is emitted after an instructor scored an attempt.
	SubmissionGraded = "submission.graded"
	// ChapterCompleted is emitted when a chapter slot transitions to completed.
	ChapterCompleted = "progress.chapter_completed"
	// AssignmentAdded is emitted after an assignment was attached to a course.
	AssignmentAdded = "course.assignment_added"
)

// Envelope wraps every payload published on the bus. CorrelationID carries the id of the
// request that caused the event, when there was one.
type Envelope struct {
	Type          string      `json:"type"`
	OccurredAt    time.Time   `json:"occurred_at"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Payload       interface{} `json:"payload"`
}

type correlationKey struct{}

// WithCorrelationID binds a request correlation id to ctx. Blank ids leave ctx untouched.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id bound by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// NATSPublisher publishes envelopes under a subject prefix.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// NewNATSPublisher builds a publisher. An empty prefix publishes on the bare event type.
func NewNATSPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:   conn,
		prefix: strings.Trim(strings.ReplaceAll(prefix, ":", "."), "."),
		now:    time.Now,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Subject returns the NATS subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Publish serialises the payload and hands it to the NATS connection.
func (p *NATSPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn == nil {
		return fmt.Errorf("nats connection not configured")
	}

	data, err := p.encode(ctx, eventType, payload)
	if err != nil {
		return err
	}

	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.logger.Debug().Str("subject", subject).Msg("event published")
	return nil
}

func (p *NATSPublisher) encode(ctx context.Context, eventType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(Envelope{
		Type:          eventType,
		OccurredAt:    p.now().UTC(),
		CorrelationID: CorrelationID(ctx),
		Payload:       payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return data, nil
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

// Publish implements the publisher contract without side effects.
func (Nop) Publish(context.Context, string, interface{}) error { return nil }
