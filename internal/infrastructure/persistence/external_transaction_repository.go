package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormExternalTransactionRepository implements recon.ExternalTransactionRepository using GORM
type GormExternalTransactionRepository struct {
	db *gorm.DB
}

// NewGormExternalTransactionRepository creates a new GormExternalTransactionRepository
func NewGormExternalTransactionRepository(db *gorm.DB) *GormExternalTransactionRepository {
	return &GormExternalTransactionRepository{db: db}
}

// Upsert stores the transaction if (source, externalID) is new. A
// re-delivered event hits the unique index, is dropped by DoNothing, and
// the existing row is returned instead.
func (r *GormExternalTransactionRepository) Upsert(ctx context.Context, txn *recon.ExternalTransaction) (*recon.ExternalTransaction, bool, error) {
	model := models.ExternalTransactionModelFromDomain(txn)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "external_id"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected > 0 {
		return model.ToDomain(), true, nil
	}

	existing, err := r.FindBySourceKey(ctx, txn.Source, txn.ExternalID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByID finds an external transaction by internal ID
func (r *GormExternalTransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*recon.ExternalTransaction, error) {
	var model models.ExternalTransactionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySourceKey finds by the (source, externalID) identity
func (r *GormExternalTransactionRepository) FindBySourceKey(ctx context.Context, source, externalID string) (*recon.ExternalTransaction, error) {
	var model models.ExternalTransactionModel
	if err := r.db.WithContext(ctx).
		Where("source = ? AND external_id = ?", source, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnmatched lists external transactions with no match row, oldest first
func (r *GormExternalTransactionRepository) FindUnmatched(ctx context.Context, limit int) ([]recon.ExternalTransaction, error) {
	return r.findUnmatchedBefore(ctx, nil, limit)
}

// FindUnmatchedOlderThan lists unmatched transactions whose occurredAt is
// before the cutoff, for the aging sweep
func (r *GormExternalTransactionRepository) FindUnmatchedOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]recon.ExternalTransaction, error) {
	return r.findUnmatchedBefore(ctx, &cutoff, limit)
}

func (r *GormExternalTransactionRepository) findUnmatchedBefore(ctx context.Context, cutoff *time.Time, limit int) ([]recon.ExternalTransaction, error) {
	sub := r.db.Model(&models.MatchModel{}).Select("external_txn_id")
	query := r.db.WithContext(ctx).
		Model(&models.ExternalTransactionModel{}).
		Where("id NOT IN (?)", sub)
	if cutoff != nil {
		query = query.Where("occurred_at < ?", *cutoff)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.ExternalTransactionModel
	if err := query.Order("occurred_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	txns := make([]recon.ExternalTransaction, len(rows))
	for i := range rows {
		txns[i] = *rows[i].ToDomain()
	}
	return txns, nil
}

// FindAll lists external transactions with filtering
func (r *GormExternalTransactionRepository) FindAll(ctx context.Context, filter recon.ExternalTransactionFilter) ([]recon.ExternalTransaction, error) {
	query := r.db.WithContext(ctx).Model(&models.ExternalTransactionModel{})

	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Unmatched != nil {
		sub := r.db.Model(&models.MatchModel{}).Select("external_txn_id")
		if *filter.Unmatched {
			query = query.Where("id NOT IN (?)", sub)
		} else {
			query = query.Where("id IN (?)", sub)
		}
	}
	if filter.FromDate != nil {
		query = query.Where("occurred_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("occurred_at <= ?", *filter.ToDate)
	}

	query = applySort(query, filter.Filter, ExternalTransactionSortFields)
	query = applyPagination(query, filter.Filter)

	var rows []models.ExternalTransactionModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	txns := make([]recon.ExternalTransaction, len(rows))
	for i := range rows {
		txns[i] = *rows[i].ToDomain()
	}
	return txns, nil
}

// Ensure GormExternalTransactionRepository implements ExternalTransactionRepository
var _ recon.ExternalTransactionRepository = (*GormExternalTransactionRepository)(nil)
