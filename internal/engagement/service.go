package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/pkg/logger"
)

// ErrNotFound is returned when a contact does not exist.
var ErrNotFound = errors.New("contact not found")

// recalcBatchSize bounds each bulk-recalculation transaction. Batches favor
// partial progress and bounded transaction size over whole-pass atomicity.
const recalcBatchSize = 100

// Repository defines contact persistence for the engagement service.
// The Apply* methods persist an event's counter delta, timestamp and the
// recomputed tier in a single update.
type Repository interface {
	// Get returns a contact. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// ApplyOpen records an open: increments total_opens, advances
	// last_opened_at and stores the new tier, in one statement.
	ApplyOpen(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error

	// ApplyClick records a click the same way.
	ApplyClick(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error

	// ApplyEmailReceived records a delivered marketing send.
	ApplyEmailReceived(ctx context.Context, id string, at time.Time, tier domain.EngagementTier) error

	// UpdateTier stores a recomputed tier without touching counters.
	UpdateTier(ctx context.Context, id string, tier domain.EngagementTier) error

	// ListActive returns active contacts ordered by id, starting strictly
	// after afterID. An empty afterID starts from the beginning.
	ListActive(ctx context.Context, afterID string, limit int) ([]domain.Contact, error)

	// UpdateTiers applies a batch of tier changes in one transaction.
	UpdateTiers(ctx context.Context, changes map[string]domain.EngagementTier) error
}

// Service owns the engagement tier lifecycle.
type Service struct {
	repo Repository

	// Now is the clock used for event timestamps. Tests override it.
	Now func() time.Time
}

// NewService creates an engagement service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, Now: time.Now}
}

// Contact returns one contact by id.
func (s *Service) Contact(ctx context.Context, contactID string) (*domain.Contact, error) {
	return s.repo.Get(ctx, contactID)
}

// RecordOpen registers an open event: counters and timestamp advance, and
// the tier is recomputed from the post-event values in memory so a single
// update reaches the store.
func (s *Service) RecordOpen(ctx context.Context, contactID string) (domain.EngagementTier, error) {
	c, err := s.repo.Get(ctx, contactID)
	if err != nil {
		return "", err
	}
	now := s.Now()
	c.TotalOpens++
	c.LastOpenedAt = &now

	tier := CalculateTier(c, now)
	if err := s.repo.ApplyOpen(ctx, contactID, now, tier); err != nil {
		return "", fmt.Errorf("record open: %w", err)
	}
	return tier, nil
}

// RecordClick registers a click event.
func (s *Service) RecordClick(ctx context.Context, contactID string) (domain.EngagementTier, error) {
	c, err := s.repo.Get(ctx, contactID)
	if err != nil {
		return "", err
	}
	now := s.Now()
	c.TotalClicks++
	c.LastClickedAt = &now

	tier := CalculateTier(c, now)
	if err := s.repo.ApplyClick(ctx, contactID, now, tier); err != nil {
		return "", fmt.Errorf("record click: %w", err)
	}
	return tier, nil
}

// RecordEmailReceived registers a delivered marketing send. The first send
// moves a contact out of NEW.
func (s *Service) RecordEmailReceived(ctx context.Context, contactID string) (domain.EngagementTier, error) {
	c, err := s.repo.Get(ctx, contactID)
	if err != nil {
		return "", err
	}
	now := s.Now()
	c.TotalEmailsReceived++
	c.LastEmailReceivedAt = &now

	tier := CalculateTier(c, now)
	if err := s.repo.ApplyEmailReceived(ctx, contactID, now, tier); err != nil {
		return "", fmt.Errorf("record email received: %w", err)
	}
	return tier, nil
}

// UpdateContactTier recomputes and persists one contact's tier from its
// stored record.
func (s *Service) UpdateContactTier(ctx context.Context, contactID string) (domain.EngagementTier, error) {
	c, err := s.repo.Get(ctx, contactID)
	if err != nil {
		return "", err
	}
	tier := CalculateTier(c, s.Now())
	if tier == c.EngagementTier {
		return tier, nil
	}
	if err := s.repo.UpdateTier(ctx, contactID, tier); err != nil {
		return "", fmt.Errorf("update tier: %w", err)
	}
	return tier, nil
}

// RecalcResult summarizes a bulk recalculation pass.
type RecalcResult struct {
	Scanned int                           `json:"scanned"`
	Changed int                           `json:"changed"`
	ByTier  map[domain.EngagementTier]int `json:"by_tier"`
}

// RecalculateAll scans every active contact, recomputes its tier, and
// persists only the deltas, one transaction per batch of 100. The pass is
// idempotent and order-independent: each tier depends only on the
// contact's own data.
func (s *Service) RecalculateAll(ctx context.Context) (*RecalcResult, error) {
	now := s.Now()
	result := &RecalcResult{ByTier: make(map[domain.EngagementTier]int)}

	afterID := ""
	for {
		batch, err := s.repo.ListActive(ctx, afterID, recalcBatchSize)
		if err != nil {
			return nil, fmt.Errorf("list contacts after %q: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		changes := make(map[string]domain.EngagementTier)
		for i := range batch {
			c := &batch[i]
			tier := CalculateTier(c, now)
			result.Scanned++
			result.ByTier[tier]++
			if tier != c.EngagementTier {
				changes[c.ID] = tier
			}
		}
		if len(changes) > 0 {
			if err := s.repo.UpdateTiers(ctx, changes); err != nil {
				return nil, fmt.Errorf("update tier batch: %w", err)
			}
			result.Changed += len(changes)
		}

		afterID = batch[len(batch)-1].ID
		if len(batch) < recalcBatchSize {
			break
		}
	}

	logger.Info("engagement tiers recalculated",
		"scanned", result.Scanned,
		"changed", result.Changed,
	)
	return result, nil
}
