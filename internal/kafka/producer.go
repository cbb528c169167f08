package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes change messages after successful writes. Messages are
// keyed by event id so every change of one event lands on one partition.
type Producer struct {
	Writer messageWriter
	Topics config.TopicConfig
	Logger *logger.Logger
	Now    func() time.Time
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

func (p *Producer) PublishEventChange(ctx context.Context, action models.ChangeAction, event *models.Event) error {
	return p.publish(ctx, p.Topics.Events, models.ChangeMessage{
		Entity:  models.EntityEvent,
		Action:  action,
		ID:      event.ID,
		EventID: event.ID,
		Payload: event,
	})
}

func (p *Producer) PublishBookingChange(ctx context.Context, action models.ChangeAction, booking *models.Booking) error {
	return p.publish(ctx, p.Topics.Bookings, models.ChangeMessage{
		Entity:  models.EntityBooking,
		Action:  action,
		ID:      booking.ID,
		EventID: booking.EventID,
		Payload: booking,
	})
}

func (p *Producer) publish(ctx context.Context, topic string, msg models.ChangeMessage) error {
	msg.OccurredAt = p.now()
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", msg.Entity, msg.Action, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.EventID),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", topic, fmt.Sprintf("%s %s %s", msg.Entity, msg.Action, msg.ID))
	}
	return nil
}

func (p *Producer) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishEventChange(context.Context, models.ChangeAction, *models.Event) error {
	return nil
}

func (NoopPublisher) PublishBookingChange(context.Context, models.ChangeAction, *models.Booking) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
