// Package metrics computes trailing-window deliverability rates from the
// email event log and turns them into progression and auto-pause decisions
// for the warmup controller.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
)

// Deliverability thresholds. Spam and bounce have critical levels that
// trigger emergency pausing; the max-bounce and min-open levels only block
// day progression.
const (
	CriticalSpamRate   = 0.001 // 0.1%
	CriticalBounceRate = 0.05  // 5%
	MaxBounceRate      = 0.03  // 3%
	MinOpenRate        = 0.10  // 10%

	// MinSampleSize is the fewest sends a window must hold before any
	// rate is trusted. Below it every decision refuses conservatively:
	// absence of evidence is not evidence of safety.
	MinSampleSize = 10

	// Window is the trailing period the aggregator evaluates.
	Window = 48 * time.Hour

	// clickPerOpen estimates clicks as a fraction of opens. The event log
	// carries no per-message click data at this granularity, so this is
	// an approximation, not a measurement.
	clickPerOpen = 0.2
)

// EventSource is the aggregator's sole external read dependency: the email
// event log, queryable by category within a time window.
type EventSource interface {
	CountEventsSince(ctx context.Context, category domain.EmailCategory, since time.Time) (domain.EventCounts, error)
}

// Aggregator evaluates marketing deliverability over the trailing window.
type Aggregator struct {
	events EventSource

	// Now is the clock used to anchor the window. Tests override it.
	Now func() time.Time
}

// NewAggregator creates a metrics aggregator over the given event source.
func NewAggregator(events EventSource) *Aggregator {
	return &Aggregator{events: events, Now: time.Now}
}

// RecentMetrics returns counts and rates for the trailing window, or nil
// when the window holds no events at all. Nil means "insufficient data",
// not zero rates; callers must distinguish the two.
func (a *Aggregator) RecentMetrics(ctx context.Context) (*domain.WarmupMetrics, error) {
	end := a.Now()
	start := end.Add(-Window)

	counts, err := a.events.CountEventsSince(ctx, domain.CategoryMarketing, start)
	if err != nil {
		return nil, fmt.Errorf("count marketing events: %w", err)
	}
	if counts.Sent == 0 {
		return nil, nil
	}

	m := &domain.WarmupMetrics{
		WindowStart: start,
		WindowEnd:   end,
		Sent:        counts.Sent,
		Delivered:   counts.Delivered,
		Opened:      counts.Opened,
		Clicked:     int(float64(counts.Opened) * clickPerOpen),
		Bounced:     counts.Bounced,
		Complained:  counts.Complained,
	}

	sent := float64(m.Sent)
	m.DeliveryRate = float64(m.Delivered) / sent
	m.OpenRate = float64(m.Opened) / sent
	m.ClickRate = float64(m.Clicked) / sent
	m.BounceRate = float64(m.Bounced) / sent
	m.SpamRate = float64(m.Complained) / sent
	return m, nil
}

// CanProgress reports whether the window's metrics justify advancing a
// warmup day. Checks run in severity order and the first failure is the
// returned reason; all must pass to permit progression.
func (a *Aggregator) CanProgress(ctx context.Context) (domain.ProgressDecision, error) {
	m, err := a.RecentMetrics(ctx)
	if err != nil {
		return domain.ProgressDecision{}, err
	}
	if m == nil || m.Sent < MinSampleSize {
		return domain.ProgressDecision{
			CanProgress: false,
			Reason:      fmt.Sprintf("insufficient data: need at least %d sends in the last %dh", MinSampleSize, int(Window.Hours())),
			Metrics:     m,
		}, nil
	}

	switch {
	case m.SpamRate > CriticalSpamRate:
		return domain.ProgressDecision{
			CanProgress: false,
			Reason:      fmt.Sprintf("spam complaint rate %.3f%% exceeds critical threshold %.2f%%", m.SpamRate*100, CriticalSpamRate*100),
			Metrics:     m,
		}, nil
	case m.BounceRate > CriticalBounceRate:
		return domain.ProgressDecision{
			CanProgress: false,
			Reason:      fmt.Sprintf("bounce rate %.2f%% exceeds critical threshold %.1f%%", m.BounceRate*100, CriticalBounceRate*100),
			Metrics:     m,
		}, nil
	case m.BounceRate > MaxBounceRate:
		return domain.ProgressDecision{
			CanProgress: false,
			Reason:      fmt.Sprintf("bounce rate %.2f%% exceeds maximum %.1f%%", m.BounceRate*100, MaxBounceRate*100),
			Metrics:     m,
		}, nil
	case m.OpenRate < MinOpenRate:
		return domain.ProgressDecision{
			CanProgress: false,
			Reason:      fmt.Sprintf("open rate %.1f%% below minimum %.0f%%", m.OpenRate*100, MinOpenRate*100),
			Metrics:     m,
		}, nil
	}

	return domain.ProgressDecision{CanProgress: true, Metrics: m}, nil
}

// ShouldAutoPause checks only the two critical thresholds. It feeds the
// emergency pause sweep, independent of the daily-advance decision, and
// requires the same minimum sample size.
func (a *Aggregator) ShouldAutoPause(ctx context.Context) (domain.PauseDecision, error) {
	m, err := a.RecentMetrics(ctx)
	if err != nil {
		return domain.PauseDecision{}, err
	}
	if m == nil || m.Sent < MinSampleSize {
		return domain.PauseDecision{ShouldPause: false, Metrics: m}, nil
	}

	if m.SpamRate > CriticalSpamRate {
		return domain.PauseDecision{
			ShouldPause: true,
			Reason:      fmt.Sprintf("spam complaint rate %.3f%% exceeds critical threshold %.2f%%", m.SpamRate*100, CriticalSpamRate*100),
			Metrics:     m,
		}, nil
	}
	if m.BounceRate > CriticalBounceRate {
		return domain.PauseDecision{
			ShouldPause: true,
			Reason:      fmt.Sprintf("bounce rate %.2f%% exceeds critical threshold %.1f%%", m.BounceRate*100, CriticalBounceRate*100),
			Metrics:     m,
		}, nil
	}
	return domain.PauseDecision{ShouldPause: false, Metrics: m}, nil
}

// ClassifyHealth maps a metrics snapshot to a read-only diagnostic level.
// Nil metrics classify as unknown.
func ClassifyHealth(m *domain.WarmupMetrics) domain.WarmupHealth {
	switch {
	case m == nil:
		return domain.HealthUnknown
	case m.SpamRate > CriticalSpamRate || m.BounceRate > CriticalBounceRate:
		return domain.HealthCritical
	case m.BounceRate > MaxBounceRate || m.OpenRate < MinOpenRate:
		return domain.HealthWarning
	default:
		return domain.HealthHealthy
	}
}
