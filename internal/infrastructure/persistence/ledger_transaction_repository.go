package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormTransactionRepository implements ledger.TransactionRepository using GORM.
// Transactions and their entries are written append-only in one database
// transaction; no update or delete path exists.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// FindByTxnID finds a transaction with its entries by caller txn ID
func (r *GormTransactionRepository) FindByTxnID(ctx context.Context, txnID uuid.UUID) (*ledger.Transaction, error) {
	var model models.LedgerTransactionModel
	if err := r.db.WithContext(ctx).
		Preload("Entries").
		First(&model, "txn_id = ?", txnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ExistsByTxnID checks whether a txn ID has already been posted
func (r *GormTransactionRepository) ExistsByTxnID(ctx context.Context, txnID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerTransactionModel{}).
		Where("txn_id = ?", txnID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindAll lists transactions with filtering, for the audit-queryable log
func (r *GormTransactionRepository) FindAll(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LedgerTransactionModel{}), filter)
	query = applySort(query, filter.Filter, TransactionSortFields)
	query = applyPagination(query, filter.Filter)

	var rows []models.LedgerTransactionModel
	if err := query.Preload("Entries").Find(&rows).Error; err != nil {
		return nil, err
	}

	txns := make([]ledger.Transaction, len(rows))
	for i := range rows {
		txns[i] = *rows[i].ToDomain()
	}
	return txns, nil
}

// FindEntriesBySource finds entries tagged to a business object
func (r *GormTransactionRepository) FindEntriesBySource(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) ([]ledger.Entry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("posted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]ledger.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// FindTxnIDsBySource finds the transactions whose entries are tagged to a
// business object
func (r *GormTransactionRepository) FindTxnIDsBySource(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Distinct("transaction_id").
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Pluck("transaction_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// FindEntriesForAccount finds entries for an account in a time window
func (r *GormTransactionRepository) FindEntriesForAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]ledger.Entry, error) {
	var rows []models.LedgerEntryModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND posted_at >= ? AND posted_at < ?", accountID, from, to).
		Order("posted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]ledger.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// SumForAccount sums all posted entry amounts for an account up to asOf
func (r *GormTransactionRepository) SumForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	var sum *int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Select("SUM(amount_cents)").
		Where("account_id = ? AND posted_at <= ?", accountID, asOf).
		Scan(&sum).Error; err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// Save persists the transaction and its entries in one atomic unit
func (r *GormTransactionRepository) Save(ctx context.Context, txn *ledger.Transaction) error {
	model := models.LedgerTransactionModelFromDomain(txn)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entries := model.Entries
		model.Entries = nil

		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := tx.Create(&entries).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Count counts transactions matching the filter
func (r *GormTransactionRepository) Count(ctx context.Context, filter ledger.TransactionFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.LedgerTransactionModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies transaction filter conditions without pagination
func (r *GormTransactionRepository) applyFilter(query *gorm.DB, filter ledger.TransactionFilter) *gorm.DB {
	if filter.AccountID != nil || filter.SourceType != nil || filter.SourceID != nil {
		sub := r.db.Model(&models.LedgerEntryModel{}).Select("transaction_id")
		if filter.AccountID != nil {
			sub = sub.Where("account_id = ?", *filter.AccountID)
		}
		if filter.SourceType != nil {
			sub = sub.Where("source_type = ?", *filter.SourceType)
		}
		if filter.SourceID != nil {
			sub = sub.Where("source_id = ?", *filter.SourceID)
		}
		query = query.Where("id IN (?)", sub)
	}
	if filter.FromDate != nil {
		query = query.Where("posted_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("posted_at <= ?", *filter.ToDate)
	}
	return query
}

// Ensure GormTransactionRepository implements TransactionRepository
var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
