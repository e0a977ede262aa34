package engagement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/warmup-engine/internal/domain"
)

var classifyNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	ts := classifyNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &ts
}

func TestCalculateTierNew(t *testing.T) {
	// Never sent to is NEW, even with stray engagement timestamps.
	c := &domain.Contact{TotalEmailsReceived: 0, LastOpenedAt: daysAgo(5)}
	assert.Equal(t, domain.TierNew, CalculateTier(c, classifyNow))
}

func TestCalculateTierColdWithoutEngagement(t *testing.T) {
	c := &domain.Contact{TotalEmailsReceived: 12}
	assert.Equal(t, domain.TierCold, CalculateTier(c, classifyNow))
}

func TestCalculateTierRecencyBuckets(t *testing.T) {
	cases := []struct {
		ageDays int
		want    domain.EngagementTier
	}{
		{0, domain.TierHot},
		{15, domain.TierHot},
		{30, domain.TierHot},
		{31, domain.TierWarm},
		{60, domain.TierWarm},
		{61, domain.TierCool},
		{90, domain.TierCool},
		{91, domain.TierCold},
		{365, domain.TierCold},
	}
	for _, tc := range cases {
		c := &domain.Contact{TotalEmailsReceived: 3, LastOpenedAt: daysAgo(tc.ageDays)}
		assert.Equal(t, tc.want, CalculateTier(c, classifyNow), "engagement %d days ago", tc.ageDays)
	}
}

func TestCalculateTierUsesLatestEngagement(t *testing.T) {
	// Old open, recent click: the click wins.
	c := &domain.Contact{
		TotalEmailsReceived: 3,
		LastOpenedAt:        daysAgo(120),
		LastClickedAt:       daysAgo(10),
	}
	assert.Equal(t, domain.TierHot, CalculateTier(c, classifyNow))

	// And the reverse.
	c = &domain.Contact{
		TotalEmailsReceived: 3,
		LastOpenedAt:        daysAgo(40),
		LastClickedAt:       daysAgo(80),
	}
	assert.Equal(t, domain.TierWarm, CalculateTier(c, classifyNow))
}

func TestTierPriorityOrder(t *testing.T) {
	assert.Equal(t, 0, domain.TierHot.Priority())
	assert.Equal(t, 1, domain.TierNew.Priority())
	assert.Equal(t, 2, domain.TierWarm.Priority())
	assert.Equal(t, 3, domain.TierCool.Priority())
	assert.Equal(t, 4, domain.TierCold.Priority())
	assert.Equal(t, 5, domain.EngagementTier("BOGUS").Priority())

	assert.True(t, domain.TierHot.Valid())
	assert.False(t, domain.EngagementTier("BOGUS").Valid())
}
