package warmup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/metrics"
)

// cooldownAfterDays is how many days of sending inactivity count as a
// cooldown while the identity is nominally still warming up.
const cooldownAfterDays = 7

// Controller owns the warmup state machine for sending identities. It
// consults the schedule table and the metrics aggregator to decide
// admission and progression, and applies the cooldown policy on resume.
//
// Invalid state transitions return sentinel errors; admission denials are
// ordinary SendDecision results because "not allowed right now" is an
// expected, frequent outcome.
type Controller struct {
	repo    Repository
	metrics MetricsSource

	// Now is the clock used for all timestamps. Tests override it.
	Now func() time.Time

	limiter *SendLimiter
}

// NewController creates a warmup controller.
func NewController(repo Repository, ms MetricsSource) *Controller {
	return &Controller{
		repo:    repo,
		metrics: ms,
		Now:     time.Now,
	}
}

// SetLimiter installs a shared Redis send counter used by TryReserve for
// cross-process enforcement. Without it, enforcement falls back to the
// repository's conditional update.
func (c *Controller) SetLimiter(l *SendLimiter) { c.limiter = l }

func (c *Controller) get(ctx context.Context, serverID string) (*domain.WarmupConfig, error) {
	return c.repo.GetOrCreate(ctx, serverID, serverID)
}

// Config returns the current (lazily created) config row.
func (c *Controller) Config(ctx context.Context, serverID string) (*domain.WarmupConfig, error) {
	return c.get(ctx, serverID)
}

// Start begins the 30-day ramp at day 1. Fails with ErrAlreadyWarming if
// the identity is already warming up.
func (c *Controller) Start(ctx context.Context, serverID string) (*domain.WarmupConfig, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if cfg.Status == domain.WarmupWarmingUp {
		return nil, ErrAlreadyWarming
	}

	now := c.Now()
	cfg.Status = domain.WarmupWarmingUp
	cfg.CurrentDay = 1
	cfg.SentToday = 0
	cfg.StartedAt = &now
	cfg.PausedAt = nil
	cfg.PauseReason = ""
	cfg.LastActivityAt = &now

	if err := c.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("start warmup: %w", err)
	}
	log.Printf("[warmup.Controller] %s: warmup started at day 1", serverID)
	return cfg, nil
}

// Pause suspends sending. Fails with ErrNotWarming unless the identity is
// currently warming up.
func (c *Controller) Pause(ctx context.Context, serverID, reason string) (*domain.WarmupConfig, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if cfg.Status != domain.WarmupWarmingUp {
		return nil, ErrNotWarming
	}

	now := c.Now()
	cfg.Status = domain.WarmupPaused
	cfg.PausedAt = &now
	cfg.PauseReason = reason

	if err := c.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("pause warmup: %w", err)
	}
	log.Printf("[warmup.Controller] %s: paused at day %d (%s)", serverID, cfg.CurrentDay, reason)
	return cfg, nil
}

// Resume restarts a paused warmup, regressing the current day per the
// cooldown policy based on how long sending was inactive.
func (c *Controller) Resume(ctx context.Context, serverID string) (*domain.WarmupConfig, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if cfg.Status != domain.WarmupPaused {
		return nil, ErrNotPaused
	}

	now := c.Now()
	inactiveDays := 0
	if cfg.PausedAt != nil {
		inactiveDays = wholeDays(now.Sub(*cfg.PausedAt))
	}
	resumeDay := CalculateResumeDay(cfg.CurrentDay, inactiveDays)

	cfg.Status = domain.WarmupWarmingUp
	cfg.CurrentDay = resumeDay
	cfg.SentToday = 0
	cfg.PausedAt = nil
	cfg.PauseReason = ""
	cfg.LastActivityAt = &now

	if err := c.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("resume warmup: %w", err)
	}
	log.Printf("[warmup.Controller] %s: resumed at day %d after %d inactive days", serverID, resumeDay, inactiveDays)
	return cfg, nil
}

// AdvanceDay closes out the current day and moves to the next one. The
// completed day is logged with a metrics snapshot before any state changes;
// then the day increments and the counter resets.
//
// AdvanceDay deliberately does not consult CanProgress: "can we progress"
// and "progress now" are two distinct calls, and the caller (the daily job)
// decides whether to invoke this one.
func (c *Controller) AdvanceDay(ctx context.Context, serverID string) (*domain.WarmupConfig, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if cfg.Status != domain.WarmupWarmingUp {
		return nil, ErrNotWarming
	}

	m, err := c.metrics.RecentMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics snapshot: %w", err)
	}

	entry := &domain.WarmupLog{
		ServerID:   serverID,
		Day:        cfg.CurrentDay,
		Phase:      string(PhaseForDay(cfg.CurrentDay)),
		DailyLimit: DailyLimitForDay(cfg.CurrentDay),
		Sent:       cfg.SentToday,
		Date:       c.Now(),
	}
	if m != nil {
		entry.Delivered = m.Delivered
		entry.Opened = m.Opened
		entry.Clicked = m.Clicked
		entry.Bounced = m.Bounced
		entry.Complained = m.Complained
		entry.OpenRate = m.OpenRate
		entry.BounceRate = m.BounceRate
		entry.SpamRate = m.SpamRate
	}
	if err := c.repo.AppendLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("append warmup log: %w", err)
	}

	cfg.CurrentDay++
	cfg.SentToday = 0
	if err := c.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("advance day: %w", err)
	}
	log.Printf("[warmup.Controller] %s: advanced to day %d (limit %d)", serverID, cfg.CurrentDay, DailyLimitForDay(cfg.CurrentDay))
	return cfg, nil
}

// SetDay is an admin override. The day must be within the 30-day table;
// the daily counter resets but the lifecycle status does not change.
func (c *Controller) SetDay(ctx context.Context, serverID string, day int) (*domain.WarmupConfig, error) {
	if day < 1 || day > ScheduleDays {
		return nil, ErrDayOutOfRange
	}
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}
	cfg.CurrentDay = day
	cfg.SentToday = 0
	if err := c.repo.Save(ctx, cfg); err != nil {
		return nil, fmt.Errorf("set warmup day: %w", err)
	}
	log.Printf("[warmup.Controller] %s: day manually set to %d", serverID, day)
	return cfg, nil
}

// ResetDailyCounter zeroes sent_today without touching the current day.
// Meant for manual day-boundary correction, distinct from AdvanceDay.
func (c *Controller) ResetDailyCounter(ctx context.Context, serverID string) error {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return err
	}
	cfg.SentToday = 0
	if err := c.repo.Save(ctx, cfg); err != nil {
		return fmt.Errorf("reset daily counter: %w", err)
	}
	return nil
}

// CanSendToTier is the core admission check. Sending schedulers must call
// it before each batch and RecordSent after. The decision reflects the
// counters at read time; TryReserve is the race-free variant.
func (c *Controller) CanSendToTier(ctx context.Context, serverID string, tier domain.EngagementTier) (domain.SendDecision, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return domain.SendDecision{}, err
	}
	return c.admit(cfg, tier), nil
}

func (c *Controller) admit(cfg *domain.WarmupConfig, tier domain.EngagementTier) domain.SendDecision {
	if cfg.Status != domain.WarmupWarmingUp {
		return domain.SendDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("warmup status is %s; sending is not admitted", cfg.Status),
		}
	}

	entry := ScheduleForDay(cfg.CurrentDay)
	if entry == nil {
		return domain.SendDecision{
			Allowed: false,
			Reason:  fmt.Sprintf("no schedule for warmup day %d", cfg.CurrentDay),
		}
	}

	if !TierAllowedOnDay(tier, cfg.CurrentDay) {
		return domain.SendDecision{
			Allowed:      false,
			Reason:       fmt.Sprintf("tier %s is not allowed on warmup day %d", tier, cfg.CurrentDay),
			Limit:        entry.DailyLimit,
			AllowedTiers: entry.AllowedTiers,
		}
	}

	if entry.DailyLimit == domain.UnlimitedDailyLimit {
		return domain.SendDecision{
			Allowed:      true,
			Limit:        entry.DailyLimit,
			Remaining:    domain.UnlimitedDailyLimit,
			AllowedTiers: entry.AllowedTiers,
		}
	}

	remaining := entry.DailyLimit - cfg.SentToday
	if remaining <= 0 {
		return domain.SendDecision{
			Allowed:      false,
			Reason:       "Daily limit reached",
			Limit:        entry.DailyLimit,
			Remaining:    0,
			AllowedTiers: entry.AllowedTiers,
		}
	}

	return domain.SendDecision{
		Allowed:      true,
		Limit:        entry.DailyLimit,
		Remaining:    remaining,
		AllowedTiers: entry.AllowedTiers,
	}
}

// RecordSent adds a successful batch to today's counter and bumps the
// activity timestamp. This is the only mutation path for the counter;
// callers are expected to have checked CanSendToTier first.
func (c *Controller) RecordSent(ctx context.Context, serverID string, n int) error {
	if n <= 0 {
		return ErrBadSendCount
	}
	if _, err := c.get(ctx, serverID); err != nil {
		return err
	}
	if c.limiter != nil {
		if err := c.limiter.Add(ctx, serverID, n); err != nil {
			log.Printf("[warmup.Controller] %s: shared counter add failed: %v", serverID, err)
		}
	}
	if err := c.repo.AddSent(ctx, serverID, n); err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}

// TryReserve combines the admission check and the counter increment into
// one atomic operation, so concurrent send workers cannot overshoot the
// daily limit between checking and recording. When a shared Redis counter
// is installed it arbitrates across processes; otherwise the repository's
// conditional update does.
func (c *Controller) TryReserve(ctx context.Context, serverID string, tier domain.EngagementTier, n int) (domain.SendDecision, error) {
	if n <= 0 {
		return domain.SendDecision{}, ErrBadSendCount
	}
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return domain.SendDecision{}, err
	}

	decision := c.admit(cfg, tier)
	if !decision.Allowed {
		return decision, nil
	}
	limit := decision.Limit

	if c.limiter != nil {
		ok, err := c.limiter.Reserve(ctx, serverID, n, limit)
		if err != nil {
			return domain.SendDecision{}, fmt.Errorf("reserve sends: %w", err)
		}
		if !ok {
			return domain.SendDecision{
				Allowed:      false,
				Reason:       "Daily limit reached",
				Limit:        limit,
				Remaining:    0,
				AllowedTiers: decision.AllowedTiers,
			}, nil
		}
		if err := c.repo.AddSent(ctx, serverID, n); err != nil {
			return domain.SendDecision{}, fmt.Errorf("record reserved sends: %w", err)
		}
	} else {
		ok, err := c.repo.ReserveSent(ctx, serverID, n, limit)
		if err != nil {
			return domain.SendDecision{}, fmt.Errorf("reserve sends: %w", err)
		}
		if !ok {
			return domain.SendDecision{
				Allowed:      false,
				Reason:       "Daily limit reached",
				Limit:        limit,
				Remaining:    0,
				AllowedTiers: decision.AllowedTiers,
			}, nil
		}
	}

	remaining := domain.UnlimitedDailyLimit
	if limit != domain.UnlimitedDailyLimit {
		remaining = limit - cfg.SentToday - n
		if remaining < 0 {
			remaining = 0
		}
	}
	return domain.SendDecision{
		Allowed:      true,
		Limit:        limit,
		Remaining:    remaining,
		AllowedTiers: decision.AllowedTiers,
	}, nil
}

// Progress reports whether deliverability metrics currently justify a day
// advance. It never advances anything itself.
func (c *Controller) Progress(ctx context.Context) (domain.ProgressDecision, error) {
	return c.metrics.CanProgress(ctx)
}

// ShouldAutoPause reports whether metrics have breached a critical
// threshold. The periodic job pairs it with Pause.
func (c *Controller) ShouldAutoPause(ctx context.Context) (domain.PauseDecision, error) {
	return c.metrics.ShouldAutoPause(ctx)
}

// CheckCooldown flags sending inactivity while nominally warming up and
// recommends a regressed day. It never applies the regression; see
// ApplyCooldownIfNeeded.
func (c *Controller) CheckCooldown(ctx context.Context, serverID string) (domain.CooldownCheck, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return domain.CooldownCheck{}, err
	}

	check := domain.CooldownCheck{CurrentDay: cfg.CurrentDay, RecommendedDay: cfg.CurrentDay}
	if cfg.Status != domain.WarmupWarmingUp || cfg.LastActivityAt == nil {
		return check, nil
	}

	inactive := wholeDays(c.Now().Sub(*cfg.LastActivityAt))
	check.InactiveDays = inactive
	if inactive < cooldownAfterDays {
		return check, nil
	}

	check.InCooldown = true
	check.RecommendedDay = CalculateResumeDay(cfg.CurrentDay, inactive)
	return check, nil
}

// ApplyCooldownIfNeeded enforces the cooldown recommendation, regressing
// the current day and resetting the counter. Returns true when a
// regression was applied. Intended to run from the periodic job.
func (c *Controller) ApplyCooldownIfNeeded(ctx context.Context, serverID string) (bool, error) {
	check, err := c.CheckCooldown(ctx, serverID)
	if err != nil {
		return false, err
	}
	if !check.InCooldown {
		return false, nil
	}

	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return false, err
	}
	now := c.Now()
	cfg.CurrentDay = check.RecommendedDay
	cfg.SentToday = 0
	cfg.LastActivityAt = &now
	if err := c.repo.Save(ctx, cfg); err != nil {
		return false, fmt.Errorf("apply cooldown: %w", err)
	}
	log.Printf("[warmup.Controller] %s: cooldown applied, regressed day %d -> %d after %d inactive days",
		serverID, check.CurrentDay, check.RecommendedDay, check.InactiveDays)
	return true, nil
}

// State returns a full snapshot for dashboards: config, today's schedule
// and a read-only health classification derived from recent metrics.
func (c *Controller) State(ctx context.Context, serverID string) (*domain.WarmupState, error) {
	cfg, err := c.get(ctx, serverID)
	if err != nil {
		return nil, err
	}

	m, err := c.metrics.RecentMetrics(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent metrics: %w", err)
	}

	state := &domain.WarmupState{
		Config:  cfg,
		Metrics: m,
		Health:  domain.HealthUnknown,
	}

	if entry := ScheduleForDay(cfg.CurrentDay); entry != nil {
		state.Phase = string(entry.Phase)
		state.DailyLimit = entry.DailyLimit
		state.AllowedTiers = entry.AllowedTiers
		if entry.DailyLimit == domain.UnlimitedDailyLimit {
			state.Remaining = domain.UnlimitedDailyLimit
		} else if rem := entry.DailyLimit - cfg.SentToday; rem > 0 {
			state.Remaining = rem
		}
	}

	if cfg.Status == domain.WarmupWarmingUp {
		state.Health = metrics.ClassifyHealth(m)
	}
	return state, nil
}

// Logs returns up to n completed-day records, newest first.
func (c *Controller) Logs(ctx context.Context, serverID string, n int) ([]domain.WarmupLog, error) {
	if n <= 0 {
		n = 30
	}
	return c.repo.RecentLogs(ctx, serverID, n)
}

// wholeDays converts a duration to completed 24h days, never negative.
func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d.Hours() / 24)
}
