package warmup

import (
	"context"

	"github.com/ignite/warmup-engine/internal/domain"
)

// Repository defines the persistence contract for warmup state.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetOrCreate returns the config row for serverID, creating it in
	// NOT_STARTED/day 0 if it does not exist yet.
	GetOrCreate(ctx context.Context, serverID, serverName string) (*domain.WarmupConfig, error)

	// Save persists the mutable fields of a config row.
	Save(ctx context.Context, cfg *domain.WarmupConfig) error

	// AddSent adds n to sent_today unconditionally and bumps
	// last_activity_at.
	AddSent(ctx context.Context, serverID string, n int) error

	// ReserveSent adds n to sent_today only while the new total stays
	// within limit, in a single conditional update so concurrent workers
	// cannot race past the cap. A negative limit means no cap. Returns
	// false when the day's budget cannot cover n.
	ReserveSent(ctx context.Context, serverID string, n, limit int) (bool, error)

	// AppendLog inserts one completed-day record. Log rows are append-only.
	AppendLog(ctx context.Context, entry *domain.WarmupLog) error

	// RecentLogs returns up to n log rows for serverID, most recently
	// written first (ordered by date, since a cooldown regression makes
	// day numbers non-monotonic across the history).
	RecentLogs(ctx context.Context, serverID string, n int) ([]domain.WarmupLog, error)
}

// MetricsSource supplies deliverability signals for admission and
// progression decisions. The metrics aggregator implements it.
type MetricsSource interface {
	// RecentMetrics returns rates over the trailing window, or nil when
	// the window holds no events at all.
	RecentMetrics(ctx context.Context) (*domain.WarmupMetrics, error)

	// CanProgress reports whether metrics justify advancing a day.
	CanProgress(ctx context.Context) (domain.ProgressDecision, error)

	// ShouldAutoPause reports whether a critical threshold is breached.
	ShouldAutoPause(ctx context.Context) (domain.PauseDecision, error)
}
