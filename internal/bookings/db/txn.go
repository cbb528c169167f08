package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/availability"
	eventsdb "ms-booking/internal/events/db"
	"ms-booking/internal/locks"
	"ms-booking/internal/models"
)

// TxManager runs every write that can change an event's ticket total as
// lock(event) -> begin -> re-read event -> sum -> check -> write -> commit.
// The Locker serializes callers sharing it; the row lock taken by
// LockEvent covers callers that do not (PostgreSQL only).
type TxManager struct {
	Bun    *bun.DB
	Locker locks.Locker
	Now    func() time.Time
}

func NewTxManager(db *bun.DB, locker locks.Locker) *TxManager {
	return &TxManager{Bun: db, Locker: locker}
}

type txStores struct {
	events   *eventsdb.DB
	bookings *DB
}

func (m *TxManager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *TxManager) locker() locks.Locker {
	if m.Locker == nil {
		return locks.Noop{}
	}
	return m.Locker
}

// withEvent holds the event lock for the whole transaction and hands fn the
// freshly read event row.
func (m *TxManager) withEvent(ctx context.Context, eventID string, fn func(ctx context.Context, event *models.Event, s txStores) error) error {
	release, err := m.locker().Lock(ctx, locks.EventKey(eventID))
	if err != nil {
		return err
	}
	defer release()

	return m.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		s := txStores{
			events:   &eventsdb.DB{Bun: tx, Now: m.Now},
			bookings: &DB{Bun: tx, Now: m.Now},
		}
		event, err := s.events.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}
		return fn(ctx, event, s)
	})
}

// TryCreateBooking admits the booking only if the event still has at least
// NumTickets remaining. The returned Result describes the check either way.
func (m *TxManager) TryCreateBooking(ctx context.Context, booking *models.Booking) (availability.Result, error) {
	if err := booking.Validate(); err != nil {
		return availability.Result{}, err
	}

	var res availability.Result
	err := m.withEvent(ctx, booking.EventID, func(ctx context.Context, event *models.Event, s txStores) error {
		booked, err := s.bookings.SumTickets(ctx, event.ID)
		if err != nil {
			return err
		}
		res = availability.Check(event.Capacity, booked, booking.NumTickets)
		if !res.Available {
			return &models.CapacityError{Availability: res}
		}
		if err := s.bookings.CreateBooking(ctx, booking); err != nil {
			return err
		}
		booking.Event = event
		return nil
	})
	return res, err
}

// UpdateBooking applies the patch. Only a ticket increase is checked against
// the remaining capacity; decreases and e-mail changes always fit.
func (m *TxManager) UpdateBooking(ctx context.Context, id string, patch models.BookingPatch) (*models.Booking, availability.Result, error) {
	current, err := (&DB{Bun: m.Bun}).GetBookingByID(ctx, id)
	if err != nil {
		return nil, availability.Result{}, err
	}
	if patch.EventID != nil && *patch.EventID != current.EventID {
		return nil, availability.Result{}, models.NewValidationError("event_id", "cannot be changed")
	}

	var (
		updated *models.Booking
		res     availability.Result
	)
	err = m.withEvent(ctx, current.EventID, func(ctx context.Context, event *models.Event, s txStores) error {
		// Re-read under the lock: the booking may have changed or vanished.
		booking, err := s.bookings.GetBookingByID(ctx, id)
		if err != nil {
			return err
		}

		if patch.UserEmail != nil {
			booking.UserEmail = *patch.UserEmail
		}
		delta := 0
		if patch.NumTickets != nil {
			delta = *patch.NumTickets - booking.NumTickets
			booking.NumTickets = *patch.NumTickets
		}
		if err := booking.Validate(); err != nil {
			return err
		}

		booked, err := s.bookings.SumTickets(ctx, event.ID)
		if err != nil {
			return err
		}
		if delta > 0 {
			res = availability.Check(event.Capacity, booked, delta)
			if !res.Available {
				return &models.CapacityError{Availability: res}
			}
		} else {
			res = availability.Check(event.Capacity, booked, 0)
		}

		if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		booking.Event = event
		updated = booking
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	return updated, res, nil
}

// UpdateEvent applies the patch under the event lock. A capacity below the
// tickets already booked is refused with a CapacityError.
func (m *TxManager) UpdateEvent(ctx context.Context, id string, patch models.EventPatch) (*models.Event, error) {
	var updated *models.Event
	err := m.withEvent(ctx, id, func(ctx context.Context, event *models.Event, s txStores) error {
		if patch.Date != nil {
			if err := models.ValidateFutureDate(*patch.Date, m.now()); err != nil {
				return err
			}
		}
		patch.Apply(event)
		if err := event.Validate(); err != nil {
			return err
		}

		if patch.Capacity != nil {
			booked, err := s.bookings.SumTickets(ctx, event.ID)
			if err != nil {
				return err
			}
			if res := availability.Check(event.Capacity, booked, 0); !res.Available {
				return &models.CapacityError{Availability: res}
			}
		}

		if err := s.events.UpdateEvent(ctx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEvent removes the event and its bookings in one transaction, so no
// booking can slip in for an event that is going away.
func (m *TxManager) DeleteEvent(ctx context.Context, id string) error {
	return m.withEvent(ctx, id, func(ctx context.Context, event *models.Event, s txStores) error {
		return s.events.DeleteEvent(ctx, event.ID)
	})
}
