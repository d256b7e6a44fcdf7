package domain

import "time"

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "pending"
	ReminderSent    ReminderStatus = "sent"
)

// Reminder is derived from a date-bearing extracted field of a completed
// document. One reminder per (document, source field).
type Reminder struct {
	ID          string         `json:"id"`
	OwnerID     string         `json:"owner_id"`
	DocumentID  string         `json:"document_id"`
	Title       string         `json:"title"`
	DueAt       time.Time      `json:"due_at"`
	SourceField string         `json:"source_field"`
	Status      ReminderStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}
