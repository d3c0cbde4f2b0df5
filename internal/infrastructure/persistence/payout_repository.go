package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/payout"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormPayoutRepository implements payout.Repository using GORM
type GormPayoutRepository struct {
	db *gorm.DB
}

// NewGormPayoutRepository creates a new GormPayoutRepository
func NewGormPayoutRepository(db *gorm.DB) *GormPayoutRepository {
	return &GormPayoutRepository{db: db}
}

// FindByID finds a payout with its items and holds by ID
func (r *GormPayoutRepository) FindByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	var model models.PayoutModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Holds").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCreatorAndPeriod finds the non-canceled payout for a creator and
// period, backing draft idempotency
func (r *GormPayoutRepository) FindByCreatorAndPeriod(ctx context.Context, creatorID uuid.UUID, periodStart, periodEnd time.Time) (*payout.Payout, error) {
	var model models.PayoutModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Holds").
		Where("creator_id = ? AND period_start = ? AND period_end = ? AND status <> ?",
			creatorID, periodStart, periodEnd, payout.StatusCanceled).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists payouts with filtering
func (r *GormPayoutRepository) FindAll(ctx context.Context, filter payout.Filter) ([]*payout.Payout, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PayoutModel{}), filter)
	query = applySort(query, filter.Filter, PayoutSortFields)
	query = applyPagination(query, filter.Filter)

	var rows []models.PayoutModel
	if err := query.Preload("Items").Preload("Holds").Find(&rows).Error; err != nil {
		return nil, err
	}

	payouts := make([]*payout.Payout, len(rows))
	for i := range rows {
		payouts[i] = rows[i].ToDomain()
	}
	return payouts, nil
}

// Count counts payouts matching the filter
func (r *GormPayoutRepository) Count(ctx context.Context, filter payout.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.PayoutModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a payout with its items and holds
func (r *GormPayoutRepository) Save(ctx context.Context, p *payout.Payout) error {
	model := models.PayoutModelFromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := model.Items
		holds := model.Holds
		model.Items = nil
		model.Holds = nil

		if err := tx.Save(model).Error; err != nil {
			// The partial unique index on (creator_id, period_start,
			// period_end) rejects a second live payout for the period.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return r.saveChildren(tx, p.ID, items, holds)
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPayoutRepository) SaveWithLock(ctx context.Context, p *payout.Payout) error {
	model := models.PayoutModelFromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := model.Version
		model.Version++
		model.UpdatedAt = time.Now().UTC()

		result := tx.Model(&models.PayoutModel{}).
			Where("id = ? AND version = ?", model.ID, currentVersion).
			Updates(map[string]interface{}{
				"status":           model.Status,
				"denial_reason":    model.DenialReason,
				"fail_reason":      model.FailReason,
				"cancel_reason":    model.CancelReason,
				"gross_cents":      model.GrossCents,
				"fee_cents":        model.FeeCents,
				"adjustment_cents": model.AdjustmentCents,
				"net_cents":        model.NetCents,
				"approval_id":      model.ApprovalID,
				"ledger_txn_id":    model.LedgerTxnID,
				"provider_ref":     model.ProviderRef,
				"attempt":          model.Attempt,
				"submitted_at":     model.SubmittedAt,
				"approved_at":      model.ApprovedAt,
				"paid_at":          model.PaidAt,
				"failed_at":        model.FailedAt,
				"version":          model.Version,
				"updated_at":       model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		p.Version = model.Version
		return r.saveChildren(tx, p.ID, model.Items, model.Holds)
	})
}

// saveChildren replaces the item and hold rows for a payout
func (r *GormPayoutRepository) saveChildren(tx *gorm.DB, payoutID uuid.UUID, items []models.PayoutItemModel, holds []models.PayoutHoldModel) error {
	if err := tx.Where("payout_id = ?", payoutID).Delete(&models.PayoutItemModel{}).Error; err != nil {
		return err
	}
	if len(items) > 0 {
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("payout_id = ?", payoutID).Delete(&models.PayoutHoldModel{}).Error; err != nil {
		return err
	}
	if len(holds) > 0 {
		if err := tx.Create(&holds).Error; err != nil {
			return err
		}
	}
	return nil
}

// applyFilter applies payout filter conditions without pagination
func (r *GormPayoutRepository) applyFilter(query *gorm.DB, filter payout.Filter) *gorm.DB {
	if filter.CreatorID != nil {
		query = query.Where("creator_id = ?", *filter.CreatorID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HeldOnly {
		sub := r.db.Model(&models.PayoutHoldModel{}).
			Select("payout_id").
			Where("released_at IS NULL")
		query = query.Where("id IN (?)", sub)
	}
	return query
}

// Ensure GormPayoutRepository implements Repository
var _ payout.Repository = (*GormPayoutRepository)(nil)
