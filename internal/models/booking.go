package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id,notnull" json:"event_id" validate:"required"`
	UserEmail  string    `bun:"user_email,notnull" json:"user_email" validate:"required,max=100,email"`
	NumTickets int       `bun:"num_tickets,notnull" json:"num_tickets" validate:"min=1"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updated_at"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty" validate:"-"`
}

// BookingFilter is AND-combined; empty fields are ignored.
type BookingFilter struct {
	UserEmail string
	EventID   string
}

// BookingPatch carries the fields of a partial booking update.
type BookingPatch struct {
	EventID    *string
	UserEmail  *string
	NumTickets *int
}

func (b Booking) Validate() error {
	return ValidateStruct(b)
}
