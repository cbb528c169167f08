package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-booking/internal/models"
)

// DB persists events. Bun may be a *bun.DB or a bun.Tx.
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

// ---------------- EVENTS ----------------

// CreateEvent inserts a new event. ID and timestamps are filled when empty.
func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	now := d.now()
	if err := models.ValidateFutureDate(event.Date, now); err != nil {
		return err
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.Date = event.Date.UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now

	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return models.Storage("insert event", err)
}

// GetEventByID → fetch one event by its ID
func (d *DB) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, models.Storage("select event", err)
	}
	return &event, nil
}

// GetEventWithBookings loads the event and its bookings, newest first.
func (d *DB) GetEventWithBookings(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("Bookings", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("created_at DESC")
		}).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, models.Storage("select event with bookings", err)
	}
	if event.Bookings == nil {
		event.Bookings = []models.Booking{}
	}
	return &event, nil
}

// LockEvent reads the event row and, on PostgreSQL, holds a row lock on it
// until the surrounding transaction ends. Only meaningful inside a bun.Tx.
func (d *DB) LockEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	q := d.Bun.NewSelect().
		Model(&event).
		Where("?TableAlias.id = ?", id)
	if d.Bun.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, models.Storage("lock event", err)
	}
	return &event, nil
}

// ListEvents applies the filter and orders by event date, earliest first.
func (d *DB) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	events := []models.Event{}
	q := d.Bun.NewSelect().Model(&events)

	if name := strings.TrimSpace(filter.Name); name != "" {
		q = q.Where("LOWER(?TableAlias.name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(name))+"%")
	}
	if filter.DateFrom != nil {
		q = q.Where("?TableAlias.date >= ?", filter.DateFrom.UTC())
	}
	if filter.DateTo != nil {
		q = q.Where("?TableAlias.date <= ?", filter.DateTo.UTC())
	}

	err := q.OrderExpr("?TableAlias.date ASC, ?TableAlias.created_at ASC").Scan(ctx)
	if err != nil {
		return nil, models.Storage("list events", err)
	}
	return events, nil
}

// UpdateEvent → overwrite the mutable fields of an existing event
func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	event.Date = event.Date.UTC()
	event.UpdatedAt = d.now()

	res, err := d.Bun.NewUpdate().
		Model(event).
		Column("name", "description", "date", "capacity", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return models.Storage("update event", err)
	}
	return expectRow(res, models.ErrEventNotFound)
}

// DeleteEvent removes the event and its bookings. Pass a bun.Tx as Bun when
// both deletes must commit together.
func (d *DB) DeleteEvent(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("event_id = ?", id).
		Exec(ctx)
	if err != nil {
		return models.Storage("delete event bookings", err)
	}

	res, err := d.Bun.NewDelete().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return models.Storage("delete event", err)
	}
	return expectRow(res, models.ErrEventNotFound)
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

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
