package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// foreignKeyViolation is the PostgreSQL SQLSTATE for a failed FK check.
const foreignKeyViolation = "23503"

// DB persists bookings. Bun may be a *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
	Now func() time.Time
}

func (d *DB) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// ---------------- BOOKINGS ----------------

// CreateBooking inserts a booking for an existing event. It does not check
// capacity; TxManager.TryCreateBooking does.
func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}

	exists, err := d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", booking.EventID).
		Exists(ctx)
	if err != nil {
		return models.Storage("check event", err)
	}
	if !exists {
		return models.ErrForeignKey
	}

	now := d.now()
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	_, err = d.Bun.NewInsert().Model(booking).Exec(ctx)
	if isForeignKeyViolation(err) {
		return models.ErrForeignKey
	}
	return models.Storage("insert booking", err)
}

// GetBookingByID → fetch one booking together with its event
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Relation("Event").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, models.Storage("select booking", err)
	}
	return &booking, nil
}

// ListBookings returns bookings matching every non-empty filter field,
// newest first, each with its event.
func (d *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	bookings := []models.Booking{}
	q := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Event")

	if filter.UserEmail != "" {
		q = q.Where("?TableAlias.user_email = ?", filter.UserEmail)
	}
	if filter.EventID != "" {
		q = q.Where("?TableAlias.event_id = ?", filter.EventID)
	}

	if err := q.OrderExpr("?TableAlias.created_at DESC").Scan(ctx); err != nil {
		return nil, models.Storage("list bookings", err)
	}
	return bookings, nil
}

// ListBookingsByEvent → all bookings of one event, newest first
func (d *DB) ListBookingsByEvent(ctx context.Context, eventID string) ([]models.Booking, error) {
	bookings := []models.Booking{}
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, models.Storage("list event bookings", err)
	}
	return bookings, nil
}

// UpdateBooking → overwrite the mutable fields of an existing booking
func (d *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	if err := booking.Validate(); err != nil {
		return err
	}
	booking.UpdatedAt = d.now()

	res, err := d.Bun.NewUpdate().
		Model(booking).
		Column("event_id", "user_email", "num_tickets", "updated_at").
		WherePK().
		Exec(ctx)
	if isForeignKeyViolation(err) {
		return models.ErrForeignKey
	}
	if err != nil {
		return models.Storage("update booking", err)
	}
	return expectRow(res, models.ErrBookingNotFound)
}

// DeleteBooking → delete a booking by ID
func (d *DB) DeleteBooking(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return models.Storage("delete booking", err)
	}
	return expectRow(res, models.ErrBookingNotFound)
}

// DeleteBookingsByEvent removes every booking of an event and reports how many.
func (d *DB) DeleteBookingsByEvent(ctx context.Context, eventID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return 0, models.Storage("delete event bookings", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.Storage("rows affected", err)
	}
	return n, nil
}

// SumTickets returns the tickets booked for an event, 0 when it has none.
func (d *DB) SumTickets(ctx context.Context, eventID string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		ColumnExpr("COALESCE(SUM(num_tickets), 0)").
		Where("event_id = ?", eventID).
		Scan(ctx, &total)
	if err != nil {
		return 0, models.Storage("sum tickets", err)
	}
	return total, nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return models.Storage("rows affected", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}
