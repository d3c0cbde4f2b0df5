package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// TransactionFilter defines filtering options for transaction queries
type TransactionFilter struct {
	shared.Filter
	AccountID  *uuid.UUID  // Filter by entries touching an account
	SourceType *SourceType // Filter by entry source type
	SourceID   *uuid.UUID  // Filter by originating business object
	FromDate   *time.Time  // Posted-at range start
	ToDate     *time.Time  // Posted-at range end
}

// AccountRepository defines the interface for ledger account persistence
type AccountRepository interface {
	// FindByID finds an account by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByCode finds an account by its stable code
	FindByCode(ctx context.Context, code string) (*Account, error)

	// FindByIDs finds accounts for a set of IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Account, error)

	// FindAll lists accounts with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Account, error)

	// Save creates or updates an account
	Save(ctx context.Context, account *Account) error
}

// TransactionRepository defines the interface for ledger transaction persistence.
// Save must persist the transaction and all its entries atomically.
type TransactionRepository interface {
	// FindByTxnID finds a transaction with its entries by caller txn ID
	FindByTxnID(ctx context.Context, txnID uuid.UUID) (*Transaction, error)

	// ExistsByTxnID checks whether a txn ID has already been posted
	ExistsByTxnID(ctx context.Context, txnID uuid.UUID) (bool, error)

	// FindAll lists transactions with filtering, for the audit-queryable log
	FindAll(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// FindEntriesBySource finds entries tagged to a business object
	FindEntriesBySource(ctx context.Context, sourceType SourceType, sourceID uuid.UUID) ([]Entry, error)

	// FindTxnIDsBySource finds the transactions whose entries are tagged
	// to a business object
	FindTxnIDsBySource(ctx context.Context, sourceType SourceType, sourceID uuid.UUID) ([]uuid.UUID, error)

	// FindEntriesForAccount finds entries for an account in a time window
	FindEntriesForAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]Entry, error)

	// SumForAccount sums all posted entry amounts for an account up to asOf.
	// This replay is the ground truth for balances; any running-balance
	// cache must be reconcilable against it.
	SumForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error)

	// Save persists the transaction and its entries in one atomic unit
	Save(ctx context.Context, txn *Transaction) error

	// Count counts transactions matching the filter
	Count(ctx context.Context, filter TransactionFilter) (int64, error)
}
