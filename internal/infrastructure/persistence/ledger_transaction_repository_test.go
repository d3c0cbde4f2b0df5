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

	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
)

// newMockTransactionRepository creates a GormTransactionRepository with a mocked SQL connection
func newMockTransactionRepository(t *testing.T) (*GormTransactionRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormTransactionRepository(gormDB), mock, mockDB
}

// balancedTransaction builds a two-entry transaction that debits cash and
// credits a payable for the same amount
func balancedTransaction(t *testing.T) *ledger.Transaction {
	t.Helper()

	cashID := uuid.New()
	payableID := uuid.New()
	orderID := uuid.New()

	debit, err := ledger.NewEntry(cashID, 5000, valueobject.USD, ledger.SourceTypeOrder, orderID, "order capture")
	require.NoError(t, err)
	credit, err := ledger.NewEntry(payableID, -5000, valueobject.USD, ledger.SourceTypeOrder, orderID, "creator share")
	require.NoError(t, err)

	txn, err := ledger.NewTransaction(uuid.New(), "order settled", []ledger.Entry{debit, credit})
	require.NoError(t, err)
	return txn
}

func TestNewGormTransactionRepository(t *testing.T) {
	t.Run("creates repository with valid DB", func(t *testing.T) {
		repo, _, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		assert.NotNil(t, repo)
		assert.NotNil(t, repo.db)
	})
}

func TestGormTransactionRepository_FindByTxnID(t *testing.T) {
	t.Run("finds transaction with entries", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		txnID := uuid.New()
		entryID := uuid.New()
		accountID := uuid.New()
		orderID := uuid.New()
		postedAt := time.Now().UTC()

		txnRows := sqlmock.NewRows([]string{"id", "version", "txn_id", "description", "posted_at"}).
			AddRow(id, 1, txnID, "order settled", postedAt)

		mock.ExpectQuery(`SELECT \* FROM "ledger_transactions" WHERE txn_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(txnID, 1).
			WillReturnRows(txnRows)

		entryRows := sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "amount_cents", "currency", "source_type", "source_id", "posted_at"}).
			AddRow(entryID, id, accountID, 5000, "USD", ledger.SourceTypeOrder, orderID, postedAt)

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE "ledger_entries"\."transaction_id" = \$1`).
			WithArgs(id).
			WillReturnRows(entryRows)

		txn, err := repo.FindByTxnID(context.Background(), txnID)

		assert.NoError(t, err)
		assert.NotNil(t, txn)
		assert.Equal(t, txnID, txn.TxnID)
		require.Len(t, txn.Entries, 1)
		assert.Equal(t, int64(5000), txn.Entries[0].AmountCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns error for unknown txn ID", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		txnID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "ledger_transactions" WHERE txn_id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(txnID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		txn, err := repo.FindByTxnID(context.Background(), txnID)

		assert.Error(t, err)
		assert.Nil(t, txn)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_ExistsByTxnID(t *testing.T) {
	t.Run("returns true when transaction exists", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		txnID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "ledger_transactions" WHERE txn_id = \$1`).
			WithArgs(txnID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		exists, err := repo.ExistsByTxnID(context.Background(), txnID)

		assert.NoError(t, err)
		assert.True(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns false when transaction does not exist", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		txnID := uuid.New()

		mock.ExpectQuery(`SELECT count\(\*\) FROM "ledger_transactions" WHERE txn_id = \$1`).
			WithArgs(txnID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		exists, err := repo.ExistsByTxnID(context.Background(), txnID)

		assert.NoError(t, err)
		assert.False(t, exists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_FindEntriesBySource(t *testing.T) {
	t.Run("finds entries tagged to a business object", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		orderID := uuid.New()
		postedAt := time.Now().UTC()

		rows := sqlmock.NewRows([]string{"id", "transaction_id", "account_id", "amount_cents", "currency", "source_type", "source_id", "posted_at"}).
			AddRow(uuid.New(), uuid.New(), uuid.New(), 5000, "USD", ledger.SourceTypeOrder, orderID, postedAt).
			AddRow(uuid.New(), uuid.New(), uuid.New(), -5000, "USD", ledger.SourceTypeOrder, orderID, postedAt)

		mock.ExpectQuery(`SELECT \* FROM "ledger_entries" WHERE source_type = \$1 AND source_id = \$2 ORDER BY posted_at ASC`).
			WithArgs(ledger.SourceTypeOrder, orderID).
			WillReturnRows(rows)

		entries, err := repo.FindEntriesBySource(context.Background(), ledger.SourceTypeOrder, orderID)

		assert.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_FindTxnIDsBySource(t *testing.T) {
	t.Run("finds distinct transaction IDs for a source", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		payoutID := uuid.New()
		txnID := uuid.New()

		mock.ExpectQuery(`SELECT DISTINCT "transaction_id" FROM "ledger_entries" WHERE source_type = \$1 AND source_id = \$2`).
			WithArgs(ledger.SourceTypePayout, payoutID).
			WillReturnRows(sqlmock.NewRows([]string{"transaction_id"}).AddRow(txnID))

		ids, err := repo.FindTxnIDsBySource(context.Background(), ledger.SourceTypePayout, payoutID)

		assert.NoError(t, err)
		require.Len(t, ids, 1)
		assert.Equal(t, txnID, ids[0])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_SumForAccount(t *testing.T) {
	t.Run("sums entry amounts up to asOf", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		accountID := uuid.New()
		asOf := time.Now().UTC()

		mock.ExpectQuery(`SELECT SUM\(amount_cents\) FROM "ledger_entries" WHERE account_id = \$1 AND posted_at <= \$2`).
			WithArgs(accountID, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(12500))

		sum, err := repo.SumForAccount(context.Background(), accountID, asOf)

		assert.NoError(t, err)
		assert.Equal(t, int64(12500), sum)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns zero for account with no entries", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		accountID := uuid.New()
		asOf := time.Now().UTC()

		mock.ExpectQuery(`SELECT SUM\(amount_cents\) FROM "ledger_entries" WHERE account_id = \$1 AND posted_at <= \$2`).
			WithArgs(accountID, asOf).
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

		sum, err := repo.SumForAccount(context.Background(), accountID, asOf)

		assert.NoError(t, err)
		assert.Equal(t, int64(0), sum)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_Save(t *testing.T) {
	t.Run("writes transaction and entries atomically", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		txn := balancedTransaction(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "ledger_transactions"`).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
		mock.ExpectExec(`INSERT INTO "ledger_entries"`).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.Save(context.Background(), txn)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the transaction insert fails", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		txn := balancedTransaction(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "ledger_transactions"`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.Save(context.Background(), txn)

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_Count(t *testing.T) {
	t.Run("counts transactions in a window", func(t *testing.T) {
		repo, mock, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		from := time.Now().UTC().Add(-24 * time.Hour)

		mock.ExpectQuery(`SELECT count\(\*\) FROM "ledger_transactions" WHERE posted_at >= \$1`).
			WithArgs(from).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

		count, err := repo.Count(context.Background(), ledger.TransactionFilter{FromDate: &from})

		assert.NoError(t, err)
		assert.Equal(t, int64(7), count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormTransactionRepository_InterfaceCompliance(t *testing.T) {
	t.Run("implements TransactionRepository interface", func(t *testing.T) {
		repo, _, mockDB := newMockTransactionRepository(t)
		defer mockDB.Close()

		var _ ledger.TransactionRepository = repo
	})
}
