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

// GormDiscrepancyRepository implements recon.DiscrepancyRepository using GORM
type GormDiscrepancyRepository struct {
	db *gorm.DB
}

// NewGormDiscrepancyRepository creates a new GormDiscrepancyRepository
func NewGormDiscrepancyRepository(db *gorm.DB) *GormDiscrepancyRepository {
	return &GormDiscrepancyRepository{db: db}
}

// FindByID finds a discrepancy by ID
func (r *GormDiscrepancyRepository) FindByID(ctx context.Context, id uuid.UUID) (*recon.Discrepancy, error) {
	var model models.DiscrepancyModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenByExternalTxn finds open discrepancies for an external transaction
func (r *GormDiscrepancyRepository) FindOpenByExternalTxn(ctx context.Context, externalTxnID uuid.UUID) ([]recon.Discrepancy, error) {
	var rows []models.DiscrepancyModel
	if err := r.db.WithContext(ctx).
		Where("external_txn_id = ? AND status = ?", externalTxnID, recon.DiscrepancyStatusOpen).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	discrepancies := make([]recon.Discrepancy, len(rows))
	for i := range rows {
		discrepancies[i] = *rows[i].ToDomain()
	}
	return discrepancies, nil
}

// FindAll lists discrepancies with filtering
func (r *GormDiscrepancyRepository) FindAll(ctx context.Context, filter recon.DiscrepancyFilter) ([]recon.Discrepancy, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DiscrepancyModel{}), filter)
	query = applySort(query, filter.Filter, DiscrepancySortFields)
	query = applyPagination(query, filter.Filter)

	var rows []models.DiscrepancyModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	discrepancies := make([]recon.Discrepancy, len(rows))
	for i := range rows {
		discrepancies[i] = *rows[i].ToDomain()
	}
	return discrepancies, nil
}

// Save creates or updates a discrepancy
func (r *GormDiscrepancyRepository) Save(ctx context.Context, d *recon.Discrepancy) error {
	model := models.DiscrepancyModelFromDomain(d)
	return r.db.WithContext(ctx).Save(model).Error
}

// Count counts discrepancies matching the filter
func (r *GormDiscrepancyRepository) Count(ctx context.Context, filter recon.DiscrepancyFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DiscrepancyModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies discrepancy filter conditions without pagination
func (r *GormDiscrepancyRepository) applyFilter(query *gorm.DB, filter recon.DiscrepancyFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Severity != nil {
		query = query.Where("severity = ?", *filter.Severity)
	}
	return query
}

// Ensure GormDiscrepancyRepository implements DiscrepancyRepository
var _ recon.DiscrepancyRepository = (*GormDiscrepancyRepository)(nil)
