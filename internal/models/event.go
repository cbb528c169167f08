package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name" validate:"required,max=100"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	Date        time.Time `bun:"date,notnull" json:"date" validate:"required"`
	Capacity    int       `bun:"capacity,notnull" json:"capacity" validate:"min=1"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`

	Bookings []Booking `bun:"rel:has-many,join:id=event_id" json:"bookings,omitempty" validate:"-"`
}

// EventFilter narrows ListEvents. Zero values mean "no constraint".
type EventFilter struct {
	Name     string
	DateFrom *time.Time
	DateTo   *time.Time
}

// EventPatch carries the fields of a partial event update.
type EventPatch struct {
	Name        *string
	Description *string
	Date        *time.Time
	Capacity    *int
}

func (p EventPatch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Date != nil {
		e.Date = p.Date.UTC()
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
}

// Validate checks the stored shape of an event. The not-in-the-past rule for
// dates lives in ValidateFutureDate because it only applies to new dates.
func (e Event) Validate() error {
	return ValidateStruct(e)
}

func ValidateFutureDate(date, now time.Time) error {
	if date.Before(now) {
		return NewValidationError("date", "cannot be in the past")
	}
	return nil
}
