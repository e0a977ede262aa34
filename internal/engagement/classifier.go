// Package engagement classifies contacts into recency tiers and owns every
// write to Contact.EngagementTier. The tier is derived data: it is
// recomputed on each open/click event and in bulk by the nightly job,
// never set directly by users.
package engagement

import (
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

// Tier age boundaries in whole days. Fixed constants, not per-deployment
// configuration.
const (
	HotMaxAgeDays  = 30
	WarmMaxAgeDays = 60
	CoolMaxAgeDays = 90
)

// CalculateTier maps a contact's history to an engagement tier. It is a
// pure, total function: nil timestamps are handled, identical inputs
// always produce the same tier.
//
// A contact that has never been sent to is NEW regardless of any other
// fields. A contact with sends but no recorded engagement is COLD.
func CalculateTier(c *domain.Contact, now time.Time) domain.EngagementTier {
	if c.TotalEmailsReceived == 0 {
		return domain.TierNew
	}

	last := latestEngagement(c.LastOpenedAt, c.LastClickedAt)
	if last == nil {
		return domain.TierCold
	}

	ageDays := int(now.Sub(*last).Hours() / 24)
	switch {
	case ageDays <= HotMaxAgeDays:
		return domain.TierHot
	case ageDays <= WarmMaxAgeDays:
		return domain.TierWarm
	case ageDays <= CoolMaxAgeDays:
		return domain.TierCool
	default:
		return domain.TierCold
	}
}

// latestEngagement returns the most recent of the two timestamps, ignoring
// nils. Both nil yields nil.
func latestEngagement(opened, clicked *time.Time) *time.Time {
	switch {
	case opened == nil:
		return clicked
	case clicked == nil:
		return opened
	case clicked.After(*opened):
		return clicked
	default:
		return opened
	}
}
