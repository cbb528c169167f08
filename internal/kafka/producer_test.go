package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var fixedNow = time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestProducer(w *fakeWriter) *Producer {
	return &Producer{
		Writer: w,
		Topics: config.TopicConfig{Events: "events.changed", Bookings: "bookings.changed"},
		Logger: logger.Discard(),
		Now:    func() time.Time { return fixedNow },
	}
}

func TestPublishBookingChange(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	booking := &models.Booking{ID: "b1", EventID: "e1", UserEmail: "a@example.com", NumTickets: 2}
	require.NoError(t, p.PublishBookingChange(context.Background(), models.ActionCreated, booking))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "bookings.changed", msg.Topic)
	assert.Equal(t, "e1", string(msg.Key), "keyed by event for per-event ordering")

	var decoded struct {
		Entity     string    `json:"entity"`
		Action     string    `json:"action"`
		ID         string    `json:"id"`
		EventID    string    `json:"event_id"`
		OccurredAt time.Time `json:"occurred_at"`
		Payload    struct {
			NumTickets int `json:"num_tickets"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "booking", decoded.Entity)
	assert.Equal(t, "created", decoded.Action)
	assert.Equal(t, "b1", decoded.ID)
	assert.Equal(t, 2, decoded.Payload.NumTickets)
	assert.True(t, fixedNow.Equal(decoded.OccurredAt))
}

func TestPublishEventChange(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	require.NoError(t, p.PublishEventChange(context.Background(), models.ActionDeleted, &models.Event{ID: "e9"}))
	require.Len(t, w.messages, 1)
	assert.Equal(t, "events.changed", w.messages[0].Topic)
	assert.Equal(t, "e9", string(w.messages[0].Key))
}

func TestPublishError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newTestProducer(w)

	err := p.PublishEventChange(context.Background(), models.ActionCreated, &models.Event{ID: "e1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "events.changed")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.PublishEventChange(context.Background(), models.ActionCreated, &models.Event{}))
	assert.NoError(t, p.PublishBookingChange(context.Background(), models.ActionCreated, &models.Booking{}))
	assert.NoError(t, p.Close())
}
