package domain

import "time"

// MarketingServerID is the identity of the single marketing sending server
// in this deployment. Controller operations take the server id explicitly so
// multi-identity deployments only need one config row per identity.
const MarketingServerID = "marketing-primary"

// UnlimitedDailyLimit is the sentinel meaning "no daily cap".
const UnlimitedDailyLimit = -1

// WarmupStatus is the lifecycle state of a sending identity's warmup.
type WarmupStatus string

const (
	WarmupNotStarted WarmupStatus = "NOT_STARTED"
	WarmupWarmingUp  WarmupStatus = "WARMING_UP"
	WarmupPaused     WarmupStatus = "PAUSED"
)

// WarmupConfig is the persisted warmup state for one sending identity.
// There is exactly one row per server id, created lazily on first access.
//
// SentToday is only meaningful while Status == WARMING_UP. It must never
// exceed the day's limit under normal operation; admission is enforced
// before sending, not after.
type WarmupConfig struct {
	ServerID   string       `json:"server_id" db:"server_id"`
	ServerName string       `json:"server_name" db:"server_name"`
	Status     WarmupStatus `json:"status" db:"status"`
	CurrentDay int          `json:"current_day" db:"current_day"`
	SentToday  int          `json:"sent_today" db:"sent_today"`

	StartedAt      *time.Time `json:"started_at" db:"started_at"`
	PausedAt       *time.Time `json:"paused_at" db:"paused_at"`
	PauseReason    string     `json:"pause_reason" db:"pause_reason"`
	LastActivityAt *time.Time `json:"last_activity_at" db:"last_activity_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// WarmupLog is the append-only record of one completed warmup day. Rows are
// created only when the day advances and are never mutated afterwards.
type WarmupLog struct {
	ID         string    `json:"id" db:"id"`
	ServerID   string    `json:"server_id" db:"server_id"`
	Day        int       `json:"day" db:"day"`
	Phase      string    `json:"phase" db:"phase"`
	DailyLimit int       `json:"daily_limit" db:"daily_limit"`
	Sent       int       `json:"sent" db:"sent"`
	Delivered  int       `json:"delivered" db:"delivered"`
	Opened     int       `json:"opened" db:"opened"`
	Clicked    int       `json:"clicked" db:"clicked"`
	Bounced    int       `json:"bounced" db:"bounced"`
	Complained int       `json:"complained" db:"complained"`
	OpenRate   float64   `json:"open_rate" db:"open_rate"`
	BounceRate float64   `json:"bounce_rate" db:"bounce_rate"`
	SpamRate   float64   `json:"spam_rate" db:"spam_rate"`
	Date       time.Time `json:"date" db:"date"`
}

// WarmupMetrics holds counts and derived rates for a trailing event window.
// A nil *WarmupMetrics means "no data", which callers must treat differently
// from zero rates.
type WarmupMetrics struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Sent       int `json:"sent"`
	Delivered  int `json:"delivered"`
	Opened     int `json:"opened"`
	Clicked    int `json:"clicked"` // estimated from opens, not measured
	Bounced    int `json:"bounced"`
	Complained int `json:"complained"`

	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	BounceRate   float64 `json:"bounce_rate"`
	SpamRate     float64 `json:"spam_rate"`
}

// SendDecision is the result of a per-tier admission check. Denial is an
// ordinary outcome, not an error. Remaining is UnlimitedDailyLimit (-1)
// when the day has no cap; consumers must treat it as "no limit", never as
// a numeric value to compare.
type SendDecision struct {
	Allowed      bool             `json:"allowed"`
	Reason       string           `json:"reason,omitempty"`
	Limit        int              `json:"limit"`
	Remaining    int              `json:"remaining"`
	AllowedTiers []EngagementTier `json:"allowed_tiers,omitempty"`
}

// ProgressDecision reports whether deliverability metrics permit advancing
// to the next warmup day.
type ProgressDecision struct {
	CanProgress bool           `json:"can_progress"`
	Reason      string         `json:"reason,omitempty"`
	Metrics     *WarmupMetrics `json:"metrics,omitempty"`
}

// PauseDecision reports whether metrics have breached a critical threshold
// badly enough to warrant an emergency pause.
type PauseDecision struct {
	ShouldPause bool           `json:"should_pause"`
	Reason      string         `json:"reason,omitempty"`
	Metrics     *WarmupMetrics `json:"metrics,omitempty"`
}

// CooldownCheck reports sending inactivity detected while nominally warming
// up, and the day the schedule recommends regressing to. It does not apply
// the regression.
type CooldownCheck struct {
	InCooldown     bool `json:"in_cooldown"`
	InactiveDays   int  `json:"inactive_days"`
	CurrentDay     int  `json:"current_day"`
	RecommendedDay int  `json:"recommended_day"`
}

// WarmupHealth is a read-only diagnostic classification, separate from the
// hard pause/admission logic.
type WarmupHealth string

const (
	HealthUnknown  WarmupHealth = "unknown"
	HealthHealthy  WarmupHealth = "healthy"
	HealthWarning  WarmupHealth = "warning"
	HealthCritical WarmupHealth = "critical"
)

// WarmupState is a full status snapshot for dashboards and the API.
type WarmupState struct {
	Config       *WarmupConfig    `json:"config"`
	Phase        string           `json:"phase,omitempty"`
	DailyLimit   int              `json:"daily_limit"`
	Remaining    int              `json:"remaining"`
	AllowedTiers []EngagementTier `json:"allowed_tiers,omitempty"`
	Metrics      *WarmupMetrics   `json:"metrics,omitempty"`
	Health       WarmupHealth     `json:"health"`
}
