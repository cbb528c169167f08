package booking_api

import (
	"time"

	"ms-booking/internal/models"
)

type CreateEventRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date" validate:"required,notpast"`
	Capacity    *int       `json:"capacity" validate:"required,min=1"`
}

func (r CreateEventRequest) Model() models.Event {
	return models.Event{
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date.UTC(),
		Capacity:    *r.Capacity,
	}
}

// UpdateEventRequest is a partial update; absent fields are left alone.
type UpdateEventRequest struct {
	Name        *string    `json:"name" validate:"omitnil,min=1,max=100"`
	Description *string    `json:"description"`
	Date        *time.Time `json:"date" validate:"omitnil,notpast"`
	Capacity    *int       `json:"capacity" validate:"omitnil,min=1"`
}

func (r UpdateEventRequest) Patch() models.EventPatch {
	return models.EventPatch{
		Name:        r.Name,
		Description: r.Description,
		Date:        r.Date,
		Capacity:    r.Capacity,
	}
}

type CreateBookingRequest struct {
	EventID    string `json:"event_id" validate:"required,uuid4"`
	UserEmail  string `json:"user_email" validate:"required,max=100,email"`
	NumTickets *int   `json:"num_tickets" validate:"required,min=1"`
}

func (r CreateBookingRequest) Model() models.Booking {
	return models.Booking{
		EventID:    r.EventID,
		UserEmail:  r.UserEmail,
		NumTickets: *r.NumTickets,
	}
}

type UpdateBookingRequest struct {
	EventID    *string `json:"event_id" validate:"omitnil,uuid4"`
	UserEmail  *string `json:"user_email" validate:"omitnil,max=100,email"`
	NumTickets *int    `json:"num_tickets" validate:"omitnil,min=1"`
}

func (r UpdateBookingRequest) Patch() models.BookingPatch {
	return models.BookingPatch{
		EventID:    r.EventID,
		UserEmail:  r.UserEmail,
		NumTickets: r.NumTickets,
	}
}
