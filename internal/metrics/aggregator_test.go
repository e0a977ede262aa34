package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-engine/internal/domain"
)

// stubEvents returns canned counts for any window.
type stubEvents struct {
	counts domain.EventCounts
	since  time.Time
}

func (s *stubEvents) CountEventsSince(_ context.Context, _ domain.EmailCategory, since time.Time) (domain.EventCounts, error) {
	s.since = since
	return s.counts, nil
}

func newTestAggregator(counts domain.EventCounts) (*Aggregator, *stubEvents) {
	events := &stubEvents{counts: counts}
	a := NewAggregator(events)
	a.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a, events
}

func TestRecentMetricsEmptyWindow(t *testing.T) {
	a, _ := newTestAggregator(domain.EventCounts{})

	m, err := a.RecentMetrics(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m, "no events means nil metrics, not zeros")
}

func TestRecentMetricsRates(t *testing.T) {
	a, events := newTestAggregator(domain.EventCounts{
		Sent: 200, Delivered: 190, Opened: 50, Bounced: 4, Complained: 0,
	})

	m, err := a.RecentMetrics(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, 200, m.Sent)
	assert.InDelta(t, 0.95, m.DeliveryRate, 1e-9)
	assert.InDelta(t, 0.25, m.OpenRate, 1e-9)
	assert.InDelta(t, 0.02, m.BounceRate, 1e-9)
	assert.Zero(t, m.SpamRate)

	// Clicks are estimated at 20% of opens.
	assert.Equal(t, 10, m.Clicked)
	assert.InDelta(t, 0.05, m.ClickRate, 1e-9)

	// The window spans the trailing 48 hours.
	assert.Equal(t, a.Now().Add(-Window), events.since)
	assert.Equal(t, a.Now().Add(-Window), m.WindowStart)
	assert.Equal(t, a.Now(), m.WindowEnd)
}

func TestCanProgressInsufficientData(t *testing.T) {
	// No events at all.
	a, _ := newTestAggregator(domain.EventCounts{})
	d, err := a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "insufficient data")

	// Events, but below the minimum sample.
	a, _ = newTestAggregator(domain.EventCounts{Sent: 9, Delivered: 9, Opened: 9})
	d, err = a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "insufficient data")
}

func TestCanProgressHealthy(t *testing.T) {
	a, _ := newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 98, Opened: 30, Bounced: 1,
	})

	d, err := a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.True(t, d.CanProgress)
	assert.Empty(t, d.Reason)
	require.NotNil(t, d.Metrics)
}

func TestCanProgressChecksInSeverityOrder(t *testing.T) {
	// Both spam and bounce are critical; spam is reported first.
	a, _ := newTestAggregator(domain.EventCounts{
		Sent: 1000, Delivered: 800, Opened: 10, Bounced: 100, Complained: 5,
	})
	d, err := a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "spam complaint rate")

	// Critical bounce outranks the soft bounce ceiling.
	a, _ = newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 90, Opened: 30, Bounced: 6,
	})
	d, err = a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "critical")

	// Bounce above max but below critical.
	a, _ = newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 95, Opened: 30, Bounced: 4,
	})
	d, err = a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "exceeds maximum")

	// Low opens alone also block.
	a, _ = newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 99, Opened: 5,
	})
	d, err = a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.False(t, d.CanProgress)
	assert.Contains(t, d.Reason, "open rate")
}

func TestCanProgressBoundaryValues(t *testing.T) {
	// Exactly at the thresholds still passes: limits are strict.
	a, _ := newTestAggregator(domain.EventCounts{
		Sent: 1000, Delivered: 960, Opened: 100, Bounced: 30, Complained: 1,
	})
	d, err := a.CanProgress(context.Background())
	require.NoError(t, err)
	assert.True(t, d.CanProgress, "values exactly at the thresholds are not over them")
}

func TestShouldAutoPause(t *testing.T) {
	// 6 bounces in 100 sends is past the 5% critical level.
	a, _ := newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 90, Opened: 30, Bounced: 6,
	})
	d, err := a.ShouldAutoPause(context.Background())
	require.NoError(t, err)
	assert.True(t, d.ShouldPause)
	assert.Contains(t, d.Reason, "bounce")

	// Spam at 0.2% also pauses.
	a, _ = newTestAggregator(domain.EventCounts{
		Sent: 1000, Delivered: 990, Opened: 300, Complained: 2,
	})
	d, err = a.ShouldAutoPause(context.Background())
	require.NoError(t, err)
	assert.True(t, d.ShouldPause)
	assert.Contains(t, d.Reason, "spam")
}

func TestShouldAutoPauseNeverOnThinData(t *testing.T) {
	// One bounce in five sends is a 20% rate, but the sample is too small
	// to act on.
	a, _ := newTestAggregator(domain.EventCounts{Sent: 5, Bounced: 1})
	d, err := a.ShouldAutoPause(context.Background())
	require.NoError(t, err)
	assert.False(t, d.ShouldPause)

	a, _ = newTestAggregator(domain.EventCounts{})
	d, err = a.ShouldAutoPause(context.Background())
	require.NoError(t, err)
	assert.False(t, d.ShouldPause)
}

func TestShouldAutoPauseIgnoresSoftThresholds(t *testing.T) {
	// Bounce above max (3%) but under critical (5%), opens terrible:
	// progression would refuse, but nothing here is an emergency.
	a, _ := newTestAggregator(domain.EventCounts{
		Sent: 100, Delivered: 95, Opened: 2, Bounced: 4,
	})
	d, err := a.ShouldAutoPause(context.Background())
	require.NoError(t, err)
	assert.False(t, d.ShouldPause)
}

func TestClassifyHealth(t *testing.T) {
	assert.Equal(t, domain.HealthUnknown, ClassifyHealth(nil))

	assert.Equal(t, domain.HealthHealthy, ClassifyHealth(&domain.WarmupMetrics{
		OpenRate: 0.30, BounceRate: 0.01,
	}))

	assert.Equal(t, domain.HealthWarning, ClassifyHealth(&domain.WarmupMetrics{
		OpenRate: 0.30, BounceRate: 0.04,
	}))
	assert.Equal(t, domain.HealthWarning, ClassifyHealth(&domain.WarmupMetrics{
		OpenRate: 0.05, BounceRate: 0.01,
	}))

	assert.Equal(t, domain.HealthCritical, ClassifyHealth(&domain.WarmupMetrics{
		OpenRate: 0.30, BounceRate: 0.06,
	}))
	assert.Equal(t, domain.HealthCritical, ClassifyHealth(&domain.WarmupMetrics{
		OpenRate: 0.30, SpamRate: 0.002,
	}))
}
