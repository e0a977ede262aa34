// Package postgres implements the warmup engine's repository interfaces
// against PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/warmup-engine/internal/domain"
)

// WarmupRepo implements warmup.Repository against PostgreSQL.
type WarmupRepo struct{ db *sql.DB }

// NewWarmupRepo creates a Postgres-backed warmup repository.
func NewWarmupRepo(db *sql.DB) *WarmupRepo { return &WarmupRepo{db: db} }

const warmupConfigColumns = `
	server_id, server_name, status, current_day, sent_today,
	started_at, paused_at, COALESCE(pause_reason,''), last_activity_at,
	created_at, updated_at`

func (r *WarmupRepo) GetOrCreate(ctx context.Context, serverID, serverName string) (*domain.WarmupConfig, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_warmup_configs
			(server_id, server_name, status, current_day, sent_today, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
		ON CONFLICT (server_id) DO NOTHING
	`, serverID, serverName, domain.WarmupNotStarted)
	if err != nil {
		return nil, fmt.Errorf("create warmup config: %w", err)
	}

	cfg := &domain.WarmupConfig{}
	err = r.db.QueryRowContext(ctx, `
		SELECT `+warmupConfigColumns+`
		FROM mailing_warmup_configs
		WHERE server_id = $1
	`, serverID).Scan(
		&cfg.ServerID, &cfg.ServerName, &cfg.Status, &cfg.CurrentDay, &cfg.SentToday,
		&cfg.StartedAt, &cfg.PausedAt, &cfg.PauseReason, &cfg.LastActivityAt,
		&cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get warmup config: %w", err)
	}
	return cfg, nil
}

func (r *WarmupRepo) Save(ctx context.Context, cfg *domain.WarmupConfig) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailing_warmup_configs
		SET status = $1, current_day = $2, sent_today = $3,
		    started_at = $4, paused_at = $5, pause_reason = $6,
		    last_activity_at = $7, updated_at = NOW()
		WHERE server_id = $8
	`, cfg.Status, cfg.CurrentDay, cfg.SentToday,
		cfg.StartedAt, cfg.PausedAt, cfg.PauseReason,
		cfg.LastActivityAt, cfg.ServerID)
	if err != nil {
		return fmt.Errorf("save warmup config: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("warmup config %s not found", cfg.ServerID)
	}
	return nil
}

func (r *WarmupRepo) AddSent(ctx context.Context, serverID string, n int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE mailing_warmup_configs
		SET sent_today = sent_today + $1, last_activity_at = NOW(), updated_at = NOW()
		WHERE server_id = $2
	`, n, serverID)
	if err != nil {
		return fmt.Errorf("add sent: %w", err)
	}
	return nil
}

// ReserveSent is the race-free variant of AddSent: the limit check and the
// increment happen in one conditional UPDATE, so two workers can never both
// pass the check and push the counter past the cap.
func (r *WarmupRepo) ReserveSent(ctx context.Context, serverID string, n, limit int) (bool, error) {
	if limit < 0 {
		return true, r.AddSent(ctx, serverID, n)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE mailing_warmup_configs
		SET sent_today = sent_today + $1, last_activity_at = NOW(), updated_at = NOW()
		WHERE server_id = $2 AND sent_today + $1 <= $3
	`, n, serverID, limit)
	if err != nil {
		return false, fmt.Errorf("reserve sent: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (r *WarmupRepo) AppendLog(ctx context.Context, entry *domain.WarmupLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailing_warmup_logs
			(id, server_id, day, phase, daily_limit, sent,
			 delivered, opened, clicked, bounced, complained,
			 open_rate, bounce_rate, spam_rate, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, entry.ID, entry.ServerID, entry.Day, entry.Phase, entry.DailyLimit, entry.Sent,
		entry.Delivered, entry.Opened, entry.Clicked, entry.Bounced, entry.Complained,
		entry.OpenRate, entry.BounceRate, entry.SpamRate, entry.Date)
	if err != nil {
		return fmt.Errorf("append warmup log: %w", err)
	}
	return nil
}

// RecentLogs orders by date, not day: a cooldown regression writes lower-day
// rows after higher-day rows, and callers need the most recently written one
// first.
func (r *WarmupRepo) RecentLogs(ctx context.Context, serverID string, n int) ([]domain.WarmupLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, server_id, day, phase, daily_limit, sent,
		       delivered, opened, clicked, bounced, complained,
		       open_rate, bounce_rate, spam_rate, date
		FROM mailing_warmup_logs
		WHERE server_id = $1
		ORDER BY date DESC
		LIMIT $2
	`, serverID, n)
	if err != nil {
		return nil, fmt.Errorf("list warmup logs: %w", err)
	}
	defer rows.Close()

	var out []domain.WarmupLog
	for rows.Next() {
		var l domain.WarmupLog
		if err := rows.Scan(
			&l.ID, &l.ServerID, &l.Day, &l.Phase, &l.DailyLimit, &l.Sent,
			&l.Delivered, &l.Opened, &l.Clicked, &l.Bounced, &l.Complained,
			&l.OpenRate, &l.BounceRate, &l.SpamRate, &l.Date,
		); err != nil {
			return nil, fmt.Errorf("scan warmup log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
