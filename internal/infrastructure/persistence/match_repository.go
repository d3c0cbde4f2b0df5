package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormMatchRepository implements recon.MatchRepository using GORM
type GormMatchRepository struct {
	db *gorm.DB
}

// NewGormMatchRepository creates a new GormMatchRepository
func NewGormMatchRepository(db *gorm.DB) *GormMatchRepository {
	return &GormMatchRepository{db: db}
}

// FindByExternalTxn finds the match for an external transaction, if any
func (r *GormMatchRepository) FindByExternalTxn(ctx context.Context, externalTxnID uuid.UUID) (*recon.Match, error) {
	var model models.MatchModel
	if err := r.db.WithContext(ctx).
		First(&model, "external_txn_id = ?", externalTxnID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// CountForLedgerTxns counts how many of the given ledger transactions have
// a match row
func (r *GormMatchRepository) CountForLedgerTxns(ctx context.Context, ledgerTxnIDs []uuid.UUID) (int64, error) {
	if len(ledgerTxnIDs) == 0 {
		return 0, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.MatchModel{}).
		Distinct("ledger_txn_id").
		Where("ledger_txn_id IN ?", ledgerTxnIDs).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates a match. The unique index on external_txn_id rejects a
// second match for the same external transaction.
func (r *GormMatchRepository) Save(ctx context.Context, match *recon.Match) error {
	model := models.MatchModelFromDomain(match)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete removes a match
func (r *GormMatchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MatchModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormMatchRepository implements MatchRepository
var _ recon.MatchRepository = (*GormMatchRepository)(nil)
