package models

import "time"

const (
	EntityEvent   = "event"
	EntityBooking = "booking"
)

type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
)

// ChangeMessage is published to Kafka after a successful write.
type ChangeMessage struct {
	Entity     string       `json:"entity"`
	Action     ChangeAction `json:"action"`
	ID         string       `json:"id"`
	EventID    string       `json:"event_id"`
	Payload    any          `json:"payload,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
