package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/engagement"
)

// ContactRepo implements engagement.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `
	id, email, status, engagement_tier,
	total_emails_received, total_opens, total_clicks,
	last_opened_at, last_clicked_at, last_email_received_at,
	created_at, updated_at`

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c := &domain.Contact{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM mailing_contacts
		WHERE id = $1
	`, id).Scan(
		&c.ID, &c.Email, &c.Status, &c.EngagementTier,
		&c.TotalEmailsReceived, &c.TotalOpens, &c.TotalClicks,
		&c.LastOpenedAt, &c.LastClickedAt, &c.LastEmailReceivedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// ApplyOpen persists an open event in a single statement: the counter, the
// timestamp and the recomputed tier land together, avoiding the second
// read-derived round trip.
func (r *ContactRepo) ApplyOpen(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	return r.applyEvent(ctx, id, `
		UPDATE mailing_contacts
		SET total_opens = total_opens + 1,
		    last_opened_at = GREATEST(COALESCE(last_opened_at, $2), $2),
		    engagement_tier = $3, updated_at = NOW()
		WHERE id = $1
	`, at, tier)
}

func (r *ContactRepo) ApplyClick(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	return r.applyEvent(ctx, id, `
		UPDATE mailing_contacts
		SET total_clicks = total_clicks + 1,
		    last_clicked_at = GREATEST(COALESCE(last_clicked_at, $2), $2),
		    engagement_tier = $3, updated_at = NOW()
		WHERE id = $1
	`, at, tier)
}

func (r *ContactRepo) ApplyEmailReceived(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	return r.applyEvent(ctx, id, `
		UPDATE mailing_contacts
		SET total_emails_received = total_emails_received + 1,
		    last_email_received_at = GREATEST(COALESCE(last_email_received_at, $2), $2),
		    engagement_tier = $3, updated_at = NOW()
		WHERE id = $1
	`, at, tier)
}

func (r *ContactRepo) applyEvent(ctx context.Context, id, query string, at time.Time, tier domain.EngagementTier) error {
	res, err := r.db.ExecContext(ctx, query, id, at, tier)
	if err != nil {
		return fmt.Errorf("apply contact event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) UpdateTier(ctx context.Context, id string, tier domain.EngagementTier) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailing_contacts
		SET engagement_tier = $1, updated_at = NOW()
		WHERE id = $2
	`, tier, id)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engagement.ErrNotFound
	}
	return nil
}

func (r *ContactRepo) ListActive(ctx context.Context, afterID string, limit int) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM mailing_contacts
		WHERE status = 'active' AND id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list active contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(
			&c.ID, &c.Email, &c.Status, &c.EngagementTier,
			&c.TotalEmailsReceived, &c.TotalOpens, &c.TotalClicks,
			&c.LastOpenedAt, &c.LastClickedAt, &c.LastEmailReceivedAt,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateTiers applies one batch of tier changes inside a transaction.
func (r *ContactRepo) UpdateTiers(ctx context.Context, changes map[string]domain.EngagementTier) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tier batch: %w", err)
	}
	defer tx.Rollback()

	for id, tier := range changes {
		if _, err := tx.ExecContext(ctx, `
			UPDATE mailing_contacts
			SET engagement_tier = $1, updated_at = NOW()
			WHERE id = $2
		`, tier, id); err != nil {
			return fmt.Errorf("update tier for %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tier batch: %w", err)
	}
	return nil
}
