package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

// EventRepo reads delivery event aggregates for the metrics window.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// CountEventsSince aggregates event rows for one category in a single pass.
// Delivered counts rows that reached the inbox, so OPENED rows count as
// delivered too.
func (r *EventRepo) CountEventsSince(ctx context.Context, category domain.EmailCategory, since time.Time) (domain.EventCounts, error) {
	var c domain.EventCounts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('DELIVERED', 'OPENED')),
			COUNT(*) FILTER (WHERE status = 'OPENED'),
			COUNT(*) FILTER (WHERE status = 'BOUNCED'),
			COUNT(*) FILTER (WHERE status = 'SPAM_COMPLAINT')
		FROM mailing_email_events
		WHERE category = $1 AND occurred_at >= $2
	`, category, since).Scan(&c.Sent, &c.Delivered, &c.Opened, &c.Bounced, &c.Complained)
	if err != nil {
		return domain.EventCounts{}, fmt.Errorf("count events: %w", err)
	}
	return c, nil
}

// RecordEvent inserts a delivery event row. The webhook handlers and the
// send pipeline are the only writers.
func (r *EventRepo) RecordEvent(ctx context.Context, e *domain.EmailEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_email_events (id, contact_id, category, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.ContactID, e.Category, e.Status, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}
