package domain

import "time"

// EmailCategory partitions the email event log by sending purpose. The
// warmup metrics window only ever reads MARKETING events.
type EmailCategory string

const (
	CategoryMarketing     EmailCategory = "MARKETING"
	CategoryTransactional EmailCategory = "TRANSACTIONAL"
)

// EmailEventStatus is the latest known state of a sent message. Each message
// has one event row; the row's status is upgraded as delivery reports arrive.
type EmailEventStatus string

const (
	EventSent          EmailEventStatus = "SENT"
	EventDelivered     EmailEventStatus = "DELIVERED"
	EventOpened        EmailEventStatus = "OPENED"
	EventBounced       EmailEventStatus = "BOUNCED"
	EventSpamComplaint EmailEventStatus = "SPAM_COMPLAINT"
)

// EmailEvent is one row of the email event log. Rows are written by the
// delivery webhook ingest and read back by the warmup metrics window.
type EmailEvent struct {
	ID         string           `json:"id" db:"id"`
	ContactID  string           `json:"contact_id" db:"contact_id"`
	Category   EmailCategory    `json:"category" db:"category"`
	Status     EmailEventStatus `json:"status" db:"status"`
	OccurredAt time.Time        `json:"occurred_at" db:"occurred_at"`
}

// EventCounts aggregates event-log rows over a time window.
// Sent counts every row; Delivered counts rows that reached the inbox
// (DELIVERED or OPENED, since an open implies delivery).
type EventCounts struct {
	Sent       int `json:"sent"`
	Delivered  int `json:"delivered"`
	Opened     int `json:"opened"`
	Bounced    int `json:"bounced"`
	Complained int `json:"complained"`
}
