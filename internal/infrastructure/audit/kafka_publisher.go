// Package audit ships entitlement usage events to Kafka.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/entitle/internal/config"
	"github.com/turtacn/entitle/internal/domain/models"
	"github.com/turtacn/entitle/internal/domain/service"
	"github.com/turtacn/entitle/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher is a Kafka-backed implementation of the AuditPublisher.
type KafkaPublisher struct {
	writer     messageWriter
	signingKey string
	logger     logger.Logger
}

// NewPublisher returns the publisher selected by cfg. With auditing disabled
// events are dropped.
func NewPublisher(cfg config.AuditConfig, log logger.Logger) service.AuditPublisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg, log)
}

// NewKafkaPublisher creates a new KafkaPublisher.
func NewKafkaPublisher(cfg config.AuditConfig, log logger.Logger) *KafkaPublisher {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafkaPublisher(writer, cfg.SigningKey, log)
}

func newKafkaPublisher(writer messageWriter, signingKey string, log logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:     writer,
		signingKey: signingKey,
		logger:     log.WithComponent("KafkaPublisher"),
	}
}

// Publish sends a usage event to the Kafka topic. Events of one machine share a
// partition so their order is kept.
func (p *KafkaPublisher) Publish(ctx context.Context, event *models.UsageEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal usage event", err)
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.MachineID),
		Value: payload,
		Time:  event.Timestamp,
	}
	if p.signingKey != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   SignatureHeader,
			Value: []byte(SignPayload(payload, p.signingKey)),
		})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error(ctx, "failed to write usage event to Kafka", err,
			logger.String("event_type", string(event.EventType)))
		return err
	}
	return nil
}

// Close closes the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.UsageEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
