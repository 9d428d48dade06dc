// Package events publishes review activity to RabbitMQ for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// Event types.
const (
	ReviewUpserted = "review.upserted"
	ReviewDeleted  = "review.deleted"
)

// ReviewEvent describes a review change and the movie rating that resulted from it.
type ReviewEvent struct {
	Type       string    `json:"type"`
	ReviewID   string    `json:"reviewId"`
	MovieID    string    `json:"movieId"`
	UserID     string    `json:"userId"`
	Rating     int       `json:"rating"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewReviewEvent builds an event for the given review.
func NewReviewEvent(eventType string, review domain.Review) ReviewEvent {
	return ReviewEvent{
		Type:       eventType,
		ReviewID:   review.ID,
		MovieID:    review.MovieID,
		UserID:     review.UserID,
		Rating:     review.Rating,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers review events. Implementations log their own failures; callers may
// ignore the returned error.
type Publisher interface {
	Publish(ctx context.Context, event ReviewEvent) error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, ReviewEvent) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []ReviewEvent
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, event ReviewEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []ReviewEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReviewEvent, len(r.events))
	copy(out, r.events)
	return out
}

// AMQPPublisher sends events to a durable queue on the default exchange. It dials per
// publish so a broker outage never blocks startup.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *log.Logger
}

// NewAMQPPublisher constructs a publisher for the given broker URL and queue.
func NewAMQPPublisher(url, queue string, logger *log.Logger) *AMQPPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &AMQPPublisher{url: url, queue: queue, logger: logger}
}

// Publish implements Publisher. Messages are persistent JSON.
func (p *AMQPPublisher) Publish(ctx context.Context, event ReviewEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Printf("events: dial failed: %v", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Printf("events: channel open failed: %v", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Printf("events: queue declare failed: %v", err)
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Printf("events: marshal failed: %v", err)
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Printf("events: publish failed: %v", err)
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
