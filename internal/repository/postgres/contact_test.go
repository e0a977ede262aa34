package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-engine/internal/domain"
	"github.com/ignite/warmup-engine/internal/engagement"
)

func newMockContactRepo(t *testing.T) (*ContactRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewContactRepo(db), mock
}

func contactCols() []string {
	return []string{
		"id", "email", "status", "engagement_tier",
		"total_emails_received", "total_opens", "total_clicks",
		"last_opened_at", "last_clicked_at", "last_email_received_at",
		"created_at", "updated_at",
	}
}

func TestContactGet(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM mailing_contacts`).
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows(contactCols()).
			AddRow("c-1", "user@example.com", "active", "HOT", 12, 5, 1, now, nil, now, now, now))

	c, err := repo.Get(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
	assert.Equal(t, domain.TierHot, c.EngagementTier)
	assert.Equal(t, 12, c.TotalEmailsReceived)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContactGetNotFound(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM mailing_contacts`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(contactCols()))

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, engagement.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOpenSingleStatement(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	at := time.Now()
	mock.ExpectExec(`(?s)UPDATE mailing_contacts.+total_opens = total_opens \+ 1`).
		WithArgs("c-1", at, string(domain.TierHot)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyOpen(context.Background(), "c-1", at, domain.TierHot)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOpenUnknownContact(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	mock.ExpectExec(`(?s)UPDATE mailing_contacts`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyOpen(context.Background(), "ghost", time.Now(), domain.TierHot)
	assert.ErrorIs(t, err, engagement.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTiersOneTransaction(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE mailing_contacts.+SET engagement_tier = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateTiers(context.Background(), map[string]domain.EngagementTier{
		"c-1": domain.TierWarm,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTiersEmptyBatchSkipsTransaction(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	require.NoError(t, repo.UpdateTiers(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveKeyset(t *testing.T) {
	repo, mock := newMockContactRepo(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT .+ FROM mailing_contacts.+WHERE status = 'active' AND id > \$1`).
		WithArgs("c-100", 2).
		WillReturnRows(sqlmock.NewRows(contactCols()).
			AddRow("c-101", "a@example.com", "active", "WARM", 3, 1, 0, now, nil, now, now, now).
			AddRow("c-102", "b@example.com", "active", "COLD", 8, 0, 0, nil, nil, now, now, now))

	contacts, err := repo.ListActive(context.Background(), "c-100", 2)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "c-101", contacts[0].ID)
	assert.Equal(t, domain.TierCold, contacts[1].EngagementTier)
	require.NoError(t, mock.ExpectationsWereMet())
}
