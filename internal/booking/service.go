// Package booking is the facade the HTTP layer talks to. It assigns ids,
// sends capacity-changing writes through the transaction manager and
// publishes a change message after every successful mutation.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/availability"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type EventStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	GetEventWithBookings(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

type BookingStore interface {
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	ListBookingsByEvent(ctx context.Context, eventID string) ([]models.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
	SumTickets(ctx context.Context, eventID string) (int, error)
}

// TxManager performs the writes that must hold the per-event guard.
type TxManager interface {
	TryCreateBooking(ctx context.Context, booking *models.Booking) (availability.Result, error)
	UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, availability.Result, error)
	UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

type Publisher interface {
	PublishEventChange(ctx context.Context, action models.ChangeAction, event *models.Event) error
	PublishBookingChange(ctx context.Context, action models.ChangeAction, booking *models.Booking) error
}

type Service struct {
	Events   EventStore
	Bookings BookingStore
	Tx       TxManager
	Kafka    Publisher
	Logger   *logger.Logger
}

func NewService(events EventStore, bookings BookingStore, tx TxManager, kafka Publisher, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{Events: events, Bookings: bookings, Tx: tx, Kafka: kafka, Logger: log}
}

// ---------------- EVENTS ----------------

func (s *Service) CreateEvent(ctx context.Context, input models.Event) (*models.Event, error) {
	event := input
	event.ID = uuid.NewString()
	event.CreatedAt = time.Time{}
	event.Bookings = nil

	if err := s.Events.CreateEvent(ctx, &event); err != nil {
		return nil, err
	}
	s.Logger.LogEvent("CREATE", event.ID, fmt.Sprintf("name=%q capacity=%d", event.Name, event.Capacity))
	s.publishEvent(ctx, models.ActionCreated, &event)
	return &event, nil
}

func (s *Service) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return s.Events.ListEvents(ctx, filter)
}

func (s *Service) GetEvent(ctx context.Context, id string, includeBookings bool) (*models.Event, error) {
	if includeBookings {
		return s.Events.GetEventWithBookings(ctx, id)
	}
	return s.Events.GetEventByID(ctx, id)
}

func (s *Service) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	event, err := s.Tx.UpdateEvent(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.Logger.LogEvent("UPDATE", id, fmt.Sprintf("capacity=%d", event.Capacity))
	s.publishEvent(ctx, models.ActionUpdated, event)
	return event, nil
}

func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	if err := s.Tx.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.Logger.LogEvent("DELETE", id, "event and its bookings deleted")
	s.publishEvent(ctx, models.ActionDeleted, &models.Event{ID: id})
	return nil
}

// CheckAvailability is a read-only snapshot; it reserves nothing. A
// non-positive request is treated as one ticket.
func (s *Service) CheckAvailability(ctx context.Context, eventID string, requested int) (availability.Result, error) {
	if requested <= 0 {
		requested = 1
	}
	event, err := s.Events.GetEventByID(ctx, eventID)
	if err != nil {
		return availability.Result{}, err
	}
	booked, err := s.Bookings.SumTickets(ctx, eventID)
	if err != nil {
		return availability.Result{}, err
	}
	return availability.Check(event.Capacity, booked, requested), nil
}

// ---------------- BOOKINGS ----------------

func (s *Service) CreateBooking(ctx context.Context, input models.Booking) (*models.Booking, availability.Result, error) {
	booking := input
	booking.ID = uuid.NewString()
	booking.CreatedAt = time.Time{}
	booking.Event = nil

	res, err := s.Tx.TryCreateBooking(ctx, &booking)
	if err != nil {
		if res.Requested > 0 && !res.Available {
			s.Logger.Warn("BOOKING", fmt.Sprintf("Refused %d tickets for event %s: %d remaining", res.Requested, booking.EventID, res.Remaining))
		}
		return nil, res, err
	}
	s.Logger.LogBooking("CREATE", booking.ID, fmt.Sprintf("event=%s tickets=%d remaining=%d", booking.EventID, booking.NumTickets, res.After()))
	s.publishBooking(ctx, models.ActionCreated, &booking)
	return &booking, res, nil
}

func (s *Service) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	return s.Bookings.ListBookings(ctx, filter)
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.Bookings.GetBookingByID(ctx, id)
}

func (s *Service) ListBookingsForEvent(ctx context.Context, eventID string) ([]models.Booking, error) {
	if _, err := s.Events.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.Bookings.ListBookingsByEvent(ctx, eventID)
}

func (s *Service) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, availability.Result, error) {
	booking, res, err := s.Tx.UpdateBooking(ctx, id, patch)
	if err != nil {
		return nil, res, err
	}
	s.Logger.LogBooking("UPDATE", id, fmt.Sprintf("tickets=%d", booking.NumTickets))
	s.publishBooking(ctx, models.ActionUpdated, booking)
	return booking, res, nil
}

// DeleteBooking needs no capacity check: removing tickets can only free room.
func (s *Service) DeleteBooking(ctx context.Context, id string) error {
	booking, err := s.Bookings.GetBookingByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Bookings.DeleteBooking(ctx, id); err != nil {
		return err
	}
	s.Logger.LogBooking("DELETE", id, fmt.Sprintf("event=%s released=%d", booking.EventID, booking.NumTickets))
	s.publishBooking(ctx, models.ActionDeleted, booking)
	return nil
}

func (s *Service) publishEvent(ctx context.Context, action models.ChangeAction, event *models.Event) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishEventChange(context.WithoutCancel(ctx), action, event); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish event %s %s: %v", event.ID, action, err))
	}
}

func (s *Service) publishBooking(ctx context.Context, action models.ChangeAction, booking *models.Booking) {
	if s.Kafka == nil {
		return
	}
	if err := s.Kafka.PublishBookingChange(context.WithoutCancel(ctx), action, booking); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish booking %s %s: %v", booking.ID, action, err))
	}
}
