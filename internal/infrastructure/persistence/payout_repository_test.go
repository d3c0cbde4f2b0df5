package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/payout"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// newMockPayoutRepository creates a GormPayoutRepository with a mocked SQL connection
func newMockPayoutRepository(t *testing.T) (*GormPayoutRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPayoutRepository(gormDB), mock, mockDB
}

func payoutDraftFixture(t *testing.T) *payout.Payout {
	t.Helper()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	p, err := payout.NewDraft(uuid.New(), start, end, valueobject.USD, "acct_creator_1")
	require.NoError(t, err)
	return p
}

func TestGormPayoutRepository_FindByID(t *testing.T) {
	t.Run("returns error for non-existent payout", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		payoutID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "payouts" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(payoutID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		p, err := repo.FindByID(context.Background(), payoutID)

		assert.Error(t, err)
		assert.Nil(t, p)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("finds payout with items and holds", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		payoutID := uuid.New()
		creatorID := uuid.New()
		start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 7)

		payoutRows := sqlmock.NewRows([]string{"id", "version", "creator_id", "period_start", "period_end", "currency", "status", "net_cents", "destination_ref"}).
			AddRow(payoutID, 1, creatorID, start, end, "USD", payout.StatusDraft, 95000, "acct_creator_1")

		mock.ExpectQuery(`SELECT \* FROM "payouts" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(payoutID, 1).
			WillReturnRows(payoutRows)

		mock.ExpectQuery(`SELECT \* FROM "payout_items" WHERE "payout_items"\."payout_id" = \$1`).
			WithArgs(payoutID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "payout_id", "source_type", "source_id", "gross_cents"}).
				AddRow(uuid.New(), payoutID, "ORDER", uuid.New(), 100000))

		mock.ExpectQuery(`SELECT \* FROM "payout_holds" WHERE "payout_holds"\."payout_id" = \$1`).
			WithArgs(payoutID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "payout_id"}))

		p, err := repo.FindByID(context.Background(), payoutID)

		assert.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, creatorID, p.CreatorID)
		assert.Equal(t, payout.StatusDraft, p.Status)
		assert.Len(t, p.Items, 1)
		assert.Empty(t, p.Holds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPayoutRepository_FindByCreatorAndPeriod(t *testing.T) {
	t.Run("excludes canceled payouts", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		creatorID := uuid.New()
		start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 0, 7)

		mock.ExpectQuery(`SELECT \* FROM "payouts" WHERE creator_id = \$1 AND period_start = \$2 AND period_end = \$3 AND status <> \$4 ORDER BY .* LIMIT .*`).
			WithArgs(creatorID, start, end, payout.StatusCanceled, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		p, err := repo.FindByCreatorAndPeriod(context.Background(), creatorID, start, end)

		assert.Error(t, err)
		assert.Nil(t, p)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPayoutRepository_Count(t *testing.T) {
	t.Run("counts payouts by status", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		status := payout.StatusProcessing

		mock.ExpectQuery(`SELECT count\(\*\) FROM "payouts" WHERE status = \$1`).
			WithArgs(status).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		count, err := repo.Count(context.Background(), payout.Filter{Status: &status})

		assert.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPayoutRepository_Save(t *testing.T) {
	t.Run("reports a conflicting live payout for the period", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		p := payoutDraftFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payouts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`INSERT INTO "payouts"`).
			WillReturnError(gorm.ErrDuplicatedKey)
		mock.ExpectRollback()

		err := repo.Save(context.Background(), p)

		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPayoutRepository_SaveWithLock(t *testing.T) {
	t.Run("bumps version on success", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		p := payoutDraftFixture(t)
		originalVersion := p.Version

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payouts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "payout_items" WHERE payout_id = \$1`).
			WithArgs(p.ID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`DELETE FROM "payout_holds" WHERE payout_id = \$1`).
			WithArgs(p.ID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.SaveWithLock(context.Background(), p)

		assert.NoError(t, err)
		assert.Equal(t, originalVersion+1, p.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns conflict when the version is stale", func(t *testing.T) {
		repo, mock, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		p := payoutDraftFixture(t)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "payouts" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.SaveWithLock(context.Background(), p)

		assert.Error(t, err)
		assert.Equal(t, shared.ErrConcurrencyConflict, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPayoutRepository_InterfaceCompliance(t *testing.T) {
	t.Run("implements Repository interface", func(t *testing.T) {
		repo, _, mockDB := newMockPayoutRepository(t)
		defer mockDB.Close()

		var _ payout.Repository = repo
	})
}
