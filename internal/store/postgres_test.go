package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adsync/internal/model"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_EnsureAd_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ads`).
		WithArgs("A1", "Hook", "AS1", "Set", "C1", "Camp", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.EnsureAd(context.Background(), model.Ad{
		ID: "A1", Name: "Hook", AdSetID: "AS1", AdSetName: "Set", CampaignID: "C1", CampaignName: "Camp",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EnsureAd_ExistingTouchesLastSynced(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ads`).
		WithArgs("A1", "Hook", "AS1", "", "C1", "", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`UPDATE ads SET last_synced_at`).
		WithArgs(pgxmock.AnyArg(), "A1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	created, err := s.EnsureAd(context.Background(), model.Ad{ID: "A1", Name: "Hook", AdSetID: "AS1", CampaignID: "C1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMapping_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM opportunity_ad_mappings WHERE opportunity_id = \$1`).
		WithArgs("O9").
		WillReturnRows(pgxmock.NewRows([]string{
			"opportunity_id", "ad_id", "campaign_id", "method", "confidence",
			"counted_categories", "lead_week_id", "created_at", "updated_at",
		}))

	m, err := s.GetMapping(context.Background(), "O9")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetMapping_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT .* FROM opportunity_ad_mappings WHERE opportunity_id = \$1`).
		WithArgs("O1").
		WillReturnRows(pgxmock.NewRows([]string{
			"opportunity_id", "ad_id", "campaign_id", "method", "confidence",
			"counted_categories", "lead_week_id", "created_at", "updated_at",
		}).AddRow("O1", "A1", "C1", "direct_ad_id", 100.0, []byte(`["deposit"]`), "2025-01-06_2025-01-12", now, now))

	m, err := s.GetMapping(context.Background(), "O1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "A1", m.AdID)
	assert.Equal(t, model.ResolveDirectID, m.Method)
	assert.Equal(t, []string{"deposit"}, m.CountedCategories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RecordFunnelEvent(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	weekID, start, end := testWeek()

	mock.ExpectExec(`INSERT INTO weekly_buckets`).
		WithArgs("A1", weekID, start, end, int64(1), int64(0), int64(0), int64(1), int64(0), 1500.0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordFunnelEvent(context.Background(), "A1", weekID, start, end,
		model.FunnelIncrement{Leads: 1, Deposits: 1, CashAmount: 1500})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteCheckpoint(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sync_checkpoints WHERE id = 1`).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteCheckpoint(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
