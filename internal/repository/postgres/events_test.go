package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-engine/internal/domain"
)

func TestCountEventsSince(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewEventRepo(db)

	since := time.Now().Add(-48 * time.Hour)
	rows := sqlmock.NewRows([]string{"count", "delivered", "opened", "bounced", "complained"}).
		AddRow(120, 115, 40, 3, 1)

	mock.ExpectQuery(`(?s)SELECT.+FROM mailing_email_events`).
		WithArgs(string(domain.CategoryMarketing), since).
		WillReturnRows(rows)

	counts, err := repo.CountEventsSince(context.Background(), domain.CategoryMarketing, since)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCounts{Sent: 120, Delivered: 115, Opened: 40, Bounced: 3, Complained: 1}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEvent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewEventRepo(db)

	mock.ExpectExec(`INSERT INTO mailing_email_events`).
		WithArgs("ev-1", "c-1", string(domain.CategoryMarketing), string(domain.EventBounced), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.RecordEvent(context.Background(), &domain.EmailEvent{
		ID:         "ev-1",
		ContactID:  "c-1",
		Category:   domain.CategoryMarketing,
		Status:     domain.EventBounced,
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
