// Package events publishes repository lifecycle events to Kafka for
// downstream consumers (search indexing, notification fan-out, analytics).
// Publishing is fire-and-forget: a broker outage never fails the request
// that produced the event.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/nubianresearch/research-repository-service/internal/config"
	"github.com/nubianresearch/research-repository-service/internal/domain"
	"github.com/nubianresearch/research-repository-service/internal/observability"
)

// Type identifies an event kind on the wire.
type Type string

// Repository event types.
const (
	TypePaperSubmitted   Type = "paper.submitted"
	TypePaperPublished   Type = "paper.published"
	TypePaperRejected    Type = "paper.rejected"
	TypePaperDeleted     Type = "paper.deleted"
	TypeDonationReceived Type = "donation.received"
)

// Envelope is the wire format of every published event.
type Envelope struct {
	Type       Type        `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// PaperEvent is the payload of paper lifecycle events.
type PaperEvent struct {
	PaperID    int64  `json:"paper_id"`
	Slug       string `json:"slug"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	UserID     int64  `json:"user_id"`
	CategoryID int64  `json:"category_id"`
}

// DonationEvent is the payload of donation events.
type DonationEvent struct {
	PaymentReference string `json:"payment_reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	DonorEmail       string `json:"donor_email"`
}

// Publisher emits repository events.
type Publisher interface {
	// PaperLifecycle publishes a paper lifecycle event keyed by paper id.
	PaperLifecycle(ctx context.Context, eventType Type, paper *domain.Paper)

	// DonationReceived publishes a donation event keyed by payment reference.
	DonationReceived(ctx context.Context, donation *domain.Donation)

	// Close releases publisher resources.
	Close() error
}

// NewPublisher returns a Kafka-backed publisher, or a no-op publisher when
// event publishing is disabled in configuration.
func NewPublisher(cfg *config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return newKafkaPublisher(cfg, logger, metrics)
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer       *kafka.Writer
	writeTimeout time.Duration
	logger       zerolog.Logger
	metrics      *observability.Metrics
}

// Compile-time interface verification.
var _ Publisher = (*KafkaPublisher)(nil)

func newKafkaPublisher(cfg *config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: writeTimeout,
	}

	return &KafkaPublisher{
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger.With().Str("component", "event_publisher").Logger(),
		metrics:      metrics,
	}
}

// PaperLifecycle publishes a paper lifecycle event keyed by paper id.
func (p *KafkaPublisher) PaperLifecycle(ctx context.Context, eventType Type, paper *domain.Paper) {
	p.publish(ctx, eventType, strconv.FormatInt(paper.ID, 10), PaperEvent{
		PaperID:    paper.ID,
		Slug:       paper.Slug,
		Title:      paper.Title,
		Status:     string(paper.Status),
		UserID:     paper.UserID,
		CategoryID: paper.CategoryID,
	})
}

// DonationReceived publishes a donation event keyed by payment reference.
func (p *KafkaPublisher) DonationReceived(ctx context.Context, donation *domain.Donation) {
	p.publish(ctx, TypeDonationReceived, donation.PaymentReference, DonationEvent{
		PaymentReference: donation.PaymentReference,
		Amount:           donation.Amount,
		Currency:         donation.Currency,
		DonorEmail:       donation.DonorEmail,
	})
}

// publish writes one event, logging instead of propagating failures.
func (p *KafkaPublisher) publish(ctx context.Context, eventType Type, key string, payload interface{}) {
	value, err := json.Marshal(Envelope{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("type", string(eventType)).Msg("failed to marshal event")
		return
	}

	// Detach from the request deadline so a slow broker doesn't race the
	// HTTP timeout; the write timeout bounds the call instead.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		if p.metrics != nil {
			p.metrics.EventPublishFailures.WithLabelValues(string(eventType)).Inc()
		}
		p.logger.Error().Err(err).
			Str("type", string(eventType)).
			Str("key", key).
			Msg("failed to publish event")
		return
	}

	if p.metrics != nil {
		p.metrics.EventsPublished.WithLabelValues(string(eventType)).Inc()
	}
	p.logger.Debug().Str("type", string(eventType)).Str("key", key).Msg("event published")
}

// Close flushes and closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops all events. Used when publishing is disabled.
type NopPublisher struct{}

// Compile-time interface verification.
var _ Publisher = NopPublisher{}

// PaperLifecycle implements Publisher.
func (NopPublisher) PaperLifecycle(context.Context, Type, *domain.Paper) {}

// DonationReceived implements Publisher.
func (NopPublisher) DonationReceived(context.Context, *domain.Donation) {}

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }
