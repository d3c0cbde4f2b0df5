package recon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/shared"
)

// ExternalTransactionFilter defines filtering options for feed queries
type ExternalTransactionFilter struct {
	shared.Filter
	Source    *string
	Unmatched *bool
	FromDate  *time.Time
	ToDate    *time.Time
}

// ExternalTransactionRepository persists the external transaction feed.
// Upsert must be a dedup-on-conflict insert keyed by (source, externalID):
// a re-delivered event is a no-op, never a duplicate row.
type ExternalTransactionRepository interface {
	// Upsert stores the transaction if (source, externalID) is new.
	// Returns the stored row and whether it was newly inserted.
	Upsert(ctx context.Context, txn *ExternalTransaction) (*ExternalTransaction, bool, error)

	// FindByID finds an external transaction by internal ID
	FindByID(ctx context.Context, id uuid.UUID) (*ExternalTransaction, error)

	// FindBySourceKey finds by the (source, externalID) identity
	FindBySourceKey(ctx context.Context, source, externalID string) (*ExternalTransaction, error)

	// FindUnmatched lists external transactions with no match row, oldest first
	FindUnmatched(ctx context.Context, limit int) ([]ExternalTransaction, error)

	// FindUnmatchedOlderThan lists unmatched transactions whose occurredAt
	// is before the cutoff, for the aging sweep
	FindUnmatchedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]ExternalTransaction, error)

	// FindAll lists external transactions with filtering
	FindAll(ctx context.Context, filter ExternalTransactionFilter) ([]ExternalTransaction, error)
}

// MatchRepository persists reconciliation matches
type MatchRepository interface {
	// FindByExternalTxn finds the match for an external transaction, if any
	FindByExternalTxn(ctx context.Context, externalTxnID uuid.UUID) (*Match, error)

	// CountForLedgerTxns counts how many of the given ledger transactions
	// have a match row, for reconciliation status checks
	CountForLedgerTxns(ctx context.Context, ledgerTxnIDs []uuid.UUID) (int64, error)

	// Save creates a match. At most one match may exist per external
	// transaction; the store enforces this with a unique constraint.
	Save(ctx context.Context, match *Match) error

	// Delete removes a match (used when a manual match overrides an
	// automatic one)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DiscrepancyFilter defines filtering options for discrepancy queries
type DiscrepancyFilter struct {
	shared.Filter
	Status   *DiscrepancyStatus
	Kind     *DiscrepancyKind
	Severity *DiscrepancySeverity
}

// DiscrepancyRepository persists reconciliation discrepancies
type DiscrepancyRepository interface {
	// FindByID finds a discrepancy by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Discrepancy, error)

	// FindOpenByExternalTxn finds open discrepancies for an external transaction
	FindOpenByExternalTxn(ctx context.Context, externalTxnID uuid.UUID) ([]Discrepancy, error)

	// FindAll lists discrepancies with filtering
	FindAll(ctx context.Context, filter DiscrepancyFilter) ([]Discrepancy, error)

	// Save creates or updates a discrepancy
	Save(ctx context.Context, d *Discrepancy) error

	// Count counts discrepancies matching the filter
	Count(ctx context.Context, filter DiscrepancyFilter) (int64, error)
}
