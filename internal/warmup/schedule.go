package warmup

import "github.com/ignite/warmup-engine/internal/domain"

// Phase names a stage of the 30-day ramp. Each phase bundles a volume level
// with the set of engagement tiers that may be mailed.
type Phase string

const (
	PhaseFoundation Phase = "foundation" // days 1-7: HOT only
	PhaseGrowth     Phase = "growth"     // days 8-14: adds NEW
	PhaseScaling    Phase = "scaling"    // days 15-21: adds WARM
	PhaseMaturation Phase = "maturation" // days 22-28: adds COOL
	PhaseFull       Phase = "full"       // days 29-30: adds COLD, day 30 unlimited
)

// ScheduleEntry is one day of the warmup ramp.
type ScheduleEntry struct {
	Day          int                     `json:"day"`
	DailyLimit   int                     `json:"daily_limit"`
	Phase        Phase                   `json:"phase"`
	Description  string                  `json:"description"`
	AllowedTiers []domain.EngagementTier `json:"allowed_tiers"`
}

var (
	foundationTiers = []domain.EngagementTier{domain.TierHot}
	growthTiers     = []domain.EngagementTier{domain.TierHot, domain.TierNew}
	scalingTiers    = []domain.EngagementTier{domain.TierHot, domain.TierNew, domain.TierWarm}
	maturationTiers = []domain.EngagementTier{domain.TierHot, domain.TierNew, domain.TierWarm, domain.TierCool}
	fullTiers       = []domain.EngagementTier{domain.TierHot, domain.TierNew, domain.TierWarm, domain.TierCool, domain.TierCold}
)

// schedule is the 30-day ramp. Daily limits are strictly non-decreasing and
// each phase's tier set is a superset of the previous phase's: volume growth
// never removes a previously-allowed tier.
var schedule = []ScheduleEntry{
	{1, 50, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{2, 60, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{3, 75, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{4, 90, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{5, 110, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{6, 135, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{7, 160, PhaseFoundation, "Seed sends to most engaged contacts", foundationTiers},
	{8, 200, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{9, 240, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{10, 290, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{11, 350, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{12, 420, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{13, 500, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{14, 600, PhaseGrowth, "Introduce untested contacts at low volume", growthTiers},
	{15, 750, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{16, 900, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{17, 1100, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{18, 1350, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{19, 1650, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{20, 2000, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{21, 2400, PhaseScaling, "Expand to recently engaged contacts", scalingTiers},
	{22, 3000, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{23, 3600, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{24, 4400, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{25, 5300, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{26, 6400, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{27, 7700, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{28, 9300, PhaseMaturation, "Fold in cooling contacts", maturationTiers},
	{29, 12000, PhaseFull, "Full list, final capped day", fullTiers},
	{30, domain.UnlimitedDailyLimit, PhaseFull, "Full list, no cap", fullTiers},
}

// ScheduleDays is the length of the ramp. Past this the identity is
// considered warmed and sends without restriction.
const ScheduleDays = 30

// ScheduleForDay returns the schedule entry for a warmup day. Days below 1
// return nil. Days past the end of the table return a synthesized entry with
// an unlimited cap and all tiers: warmup is a continuous operating mode, not
// a completed task.
func ScheduleForDay(day int) *ScheduleEntry {
	if day < 1 {
		return nil
	}
	if day > ScheduleDays {
		return &ScheduleEntry{
			Day:          day,
			DailyLimit:   domain.UnlimitedDailyLimit,
			Phase:        PhaseFull,
			Description:  "Warmup complete, unrestricted sending",
			AllowedTiers: fullTiers,
		}
	}
	entry := schedule[day-1]
	return &entry
}

// PhaseForDay returns the phase name for a day, or "" for days below 1.
func PhaseForDay(day int) Phase {
	e := ScheduleForDay(day)
	if e == nil {
		return ""
	}
	return e.Phase
}

// DailyLimitForDay returns the send cap for a day. Days below 1 get 0;
// unlimited days return domain.UnlimitedDailyLimit.
func DailyLimitForDay(day int) int {
	e := ScheduleForDay(day)
	if e == nil {
		return 0
	}
	return e.DailyLimit
}

// AllowedTiersForDay returns the tier set permitted on a day, nil for days
// below 1.
func AllowedTiersForDay(day int) []domain.EngagementTier {
	e := ScheduleForDay(day)
	if e == nil {
		return nil
	}
	return e.AllowedTiers
}

// TierAllowedOnDay reports whether a tier may be mailed on the given day.
func TierAllowedOnDay(tier domain.EngagementTier, day int) bool {
	for _, t := range AllowedTiersForDay(day) {
		if t == tier {
			return true
		}
	}
	return false
}

// CalculateResumeDay applies the cooldown policy: sending reputation decays
// with inactivity and must be re-earned proportionally.
//
//	< 7 days idle:   resume where we left off
//	7-13 days idle:  regress to 75% of the current day
//	14-29 days idle: regress to 50% of the current day
//	>= 30 days idle: full reset to day 1
//
// The result is never below day 1.
func CalculateResumeDay(currentDay, inactiveDays int) int {
	var day int
	switch {
	case inactiveDays < 7:
		day = currentDay
	case inactiveDays < 14:
		day = currentDay * 3 / 4
	case inactiveDays < 30:
		day = currentDay / 2
	default:
		day = 1
	}
	if day < 1 {
		day = 1
	}
	return day
}

// TotalCapacityUpToDay sums the daily limits for days 1..day. Returns
// domain.UnlimitedDailyLimit when the range includes an uncapped day, since
// capacity is then unbounded.
func TotalCapacityUpToDay(day int) int {
	if day > ScheduleDays {
		day = ScheduleDays
	}
	total := 0
	for d := 1; d <= day; d++ {
		limit := DailyLimitForDay(d)
		if limit == domain.UnlimitedDailyLimit {
			return domain.UnlimitedDailyLimit
		}
		total += limit
	}
	return total
}

// EstimateDaysToComplete simulates day-by-day consumption of emailCount
// sends starting at startDay and returns how many days are needed. An
// uncapped day absorbs everything remaining. Simulation is capped at 100
// days as a safety bound.
func EstimateDaysToComplete(emailCount, startDay int) int {
	if emailCount <= 0 {
		return 0
	}
	if startDay < 1 {
		startDay = 1
	}

	const maxSimulatedDays = 100

	remaining := emailCount
	days := 0
	for day := startDay; days < maxSimulatedDays; day++ {
		days++
		limit := DailyLimitForDay(day)
		if limit == domain.UnlimitedDailyLimit {
			return days
		}
		remaining -= limit
		if remaining <= 0 {
			return days
		}
	}
	return maxSimulatedDays
}
