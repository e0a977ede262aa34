package engagement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-engine/internal/domain"
)

// memContacts is an in-memory Repository for service tests.
type memContacts struct {
	mu       sync.Mutex
	contacts map[string]*domain.Contact

	tierBatches int
}

func newMemContacts() *memContacts {
	return &memContacts{contacts: make(map[string]*domain.Contact)}
}

func (r *memContacts) add(c *domain.Contact) {
	if c.Status == "" {
		c.Status = domain.ContactActive
	}
	r.contacts[c.ID] = c
}

func (r *memContacts) Get(_ context.Context, id string) (*domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContacts) ApplyOpen(_ context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalOpens++
	c.LastOpenedAt = &at
	c.EngagementTier = tier
	return nil
}

func (r *memContacts) ApplyClick(_ context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalClicks++
	c.LastClickedAt = &at
	c.EngagementTier = tier
	return nil
}

func (r *memContacts) ApplyEmailReceived(_ context.Context, id string, at time.Time, tier domain.EngagementTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalEmailsReceived++
	c.LastEmailReceivedAt = &at
	c.EngagementTier = tier
	return nil
}

func (r *memContacts) UpdateTier(_ context.Context, id string, tier domain.EngagementTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return ErrNotFound
	}
	c.EngagementTier = tier
	return nil
}

func (r *memContacts) ListActive(_ context.Context, afterID string, limit int) ([]domain.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.contacts))
	for id, c := range r.contacts {
		if c.Status == domain.ContactActive && id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.Contact, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.contacts[id])
	}
	return out, nil
}

func (r *memContacts) UpdateTiers(_ context.Context, changes map[string]domain.EngagementTier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tierBatches++
	for id, tier := range changes {
		if c, ok := r.contacts[id]; ok {
			c.EngagementTier = tier
		}
	}
	return nil
}

func newTestService() (*Service, *memContacts) {
	repo := newMemContacts()
	s := NewService(repo)
	s.Now = func() time.Time { return classifyNow }
	return s, repo
}

func TestRecordOpenMovesToHot(t *testing.T) {
	s, repo := newTestService()
	repo.add(&domain.Contact{
		ID:                  "c1",
		EngagementTier:      domain.TierCool,
		TotalEmailsReceived: 5,
		LastOpenedAt:        daysAgo(80),
	})

	tier, err := s.RecordOpen(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierHot, tier)

	c, err := s.Contact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierHot, c.EngagementTier)
	assert.Equal(t, 1, c.TotalOpens)
	require.NotNil(t, c.LastOpenedAt)
	assert.True(t, c.LastOpenedAt.Equal(classifyNow))
}

func TestRecordOpenUnknownContact(t *testing.T) {
	s, _ := newTestService()
	_, err := s.RecordOpen(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordEmailReceivedLeavesNew(t *testing.T) {
	s, repo := newTestService()
	repo.add(&domain.Contact{ID: "c1", EngagementTier: domain.TierNew})

	// First delivery: sends > 0 but no engagement yet, so COLD.
	tier, err := s.RecordEmailReceived(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierCold, tier)

	c, err := s.Contact(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, c.TotalEmailsReceived)
}

func TestRecordClickCountsAsEngagement(t *testing.T) {
	s, repo := newTestService()
	repo.add(&domain.Contact{ID: "c1", TotalEmailsReceived: 2})

	tier, err := s.RecordClick(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierHot, tier)
}

func TestUpdateContactTierSkipsNoopWrites(t *testing.T) {
	s, repo := newTestService()
	repo.add(&domain.Contact{
		ID:                  "c1",
		EngagementTier:      domain.TierHot,
		TotalEmailsReceived: 2,
		LastOpenedAt:        daysAgo(10),
	})

	tier, err := s.UpdateContactTier(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierHot, tier)

	// Stale stored tier gets corrected.
	repo.contacts["c1"].LastOpenedAt = daysAgo(75)
	tier, err = s.UpdateContactTier(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierCool, tier)
}

func TestRecalculateAll(t *testing.T) {
	s, repo := newTestService()

	// 250 contacts across three keyset batches. Half carry a stale tier.
	for i := 0; i < 250; i++ {
		c := &domain.Contact{
			ID:                  fmt.Sprintf("c%03d", i),
			TotalEmailsReceived: 2,
			LastOpenedAt:        daysAgo(10),
			EngagementTier:      domain.TierHot,
		}
		if i%2 == 0 {
			c.EngagementTier = domain.TierCold // stale
		}
		repo.add(c)
	}
	// One inactive contact must be skipped.
	repo.add(&domain.Contact{ID: "zzz-unsub", Status: domain.ContactUnsubscribed})

	result, err := s.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, result.Scanned)
	assert.Equal(t, 125, result.Changed)
	assert.Equal(t, 250, result.ByTier[domain.TierHot])

	for _, c := range repo.contacts {
		if c.Status == domain.ContactActive {
			assert.Equal(t, domain.TierHot, c.EngagementTier)
		}
	}
}

func TestRecalculateAllIsIdempotent(t *testing.T) {
	s, repo := newTestService()
	repo.add(&domain.Contact{
		ID:                  "c1",
		TotalEmailsReceived: 2,
		LastOpenedAt:        daysAgo(45),
		EngagementTier:      domain.TierHot,
	})

	first, err := s.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Changed)

	second, err := s.RecalculateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Changed)
	assert.Equal(t, domain.TierWarm, repo.contacts["c1"].EngagementTier)
}
