package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/dispute"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormDisputeRepository implements dispute.Repository using GORM
type GormDisputeRepository struct {
	db *gorm.DB
}

// NewGormDisputeRepository creates a new GormDisputeRepository
func NewGormDisputeRepository(db *gorm.DB) *GormDisputeRepository {
	return &GormDisputeRepository{db: db}
}

// FindByID finds a dispute with its timeline by ID
func (r *GormDisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	var model models.DisputeModel
	if err := r.db.WithContext(ctx).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProviderCase finds a dispute by its provider identity
func (r *GormDisputeRepository) FindByProviderCase(ctx context.Context, channel, provider, providerCaseID string) (*dispute.Dispute, error) {
	var model models.DisputeModel
	if err := r.db.WithContext(ctx).
		Preload("Timeline", func(db *gorm.DB) *gorm.DB {
			return db.Order("occurred_at ASC")
		}).
		Where("channel = ? AND provider = ? AND provider_case_id = ?", channel, provider, providerCaseID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists disputes with filtering
func (r *GormDisputeRepository) FindAll(ctx context.Context, filter dispute.Filter) ([]*dispute.Dispute, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DisputeModel{}), filter)
	query = applySort(query, filter.Filter, DisputeSortFields)
	query = applyPagination(query, filter.Filter)

	var rows []models.DisputeModel
	if err := query.Preload("Timeline").Find(&rows).Error; err != nil {
		return nil, err
	}

	disputes := make([]*dispute.Dispute, len(rows))
	for i := range rows {
		disputes[i] = rows[i].ToDomain()
	}
	return disputes, nil
}

// FindApproachingDeadline lists non-terminal disputes whose evidence
// deadline falls before the cutoff
func (r *GormDisputeRepository) FindApproachingDeadline(ctx context.Context, cutoff time.Time) ([]*dispute.Dispute, error) {
	terminal := []dispute.Status{
		dispute.StatusWon, dispute.StatusLost, dispute.StatusClosed, dispute.StatusCanceled,
	}

	var rows []models.DisputeModel
	if err := r.db.WithContext(ctx).
		Preload("Timeline").
		Where("evidence_deadline < ? AND status NOT IN ?", cutoff, terminal).
		Order("evidence_deadline ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	disputes := make([]*dispute.Dispute, len(rows))
	for i := range rows {
		disputes[i] = rows[i].ToDomain()
	}
	return disputes, nil
}

// Count counts disputes matching the filter
func (r *GormDisputeRepository) Count(ctx context.Context, filter dispute.Filter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DisputeModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a dispute with its timeline
func (r *GormDisputeRepository) Save(ctx context.Context, d *dispute.Dispute) error {
	model := models.DisputeModelFromDomain(d)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		timeline := model.Timeline
		model.Timeline = nil

		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return r.saveTimeline(tx, d.ID, timeline)
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormDisputeRepository) SaveWithLock(ctx context.Context, d *dispute.Dispute) error {
	model := models.DisputeModelFromDomain(d)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := model.Version
		model.Version++
		model.UpdatedAt = time.Now().UTC()

		result := tx.Model(&models.DisputeModel{}).
			Where("id = ? AND version = ?", model.ID, currentVersion).
			Updates(map[string]interface{}{
				"provider_status":         model.ProviderStatus,
				"order_id":                model.OrderID,
				"ledger_txn_id":           model.LedgerTxnID,
				"status":                  model.Status,
				"needs_manual":            model.NeedsManual,
				"evidence_deadline":       model.EvidenceDeadline,
				"evidence_pack_id":        model.EvidencePackID,
				"last_provider_update_at": model.LastProviderUpdateAt,
				"submitted_at":            model.SubmittedAt,
				"resolved_at":             model.ResolvedAt,
				"version":                 model.Version,
				"updated_at":              model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		d.Version = model.Version
		return r.saveTimeline(tx, d.ID, model.Timeline)
	})
}

// saveTimeline appends timeline rows that are not stored yet. Timeline
// entries are never rewritten.
func (r *GormDisputeRepository) saveTimeline(tx *gorm.DB, disputeID uuid.UUID, timeline []models.DisputeTimelineModel) error {
	if len(timeline) == 0 {
		return nil
	}

	var existing []uuid.UUID
	if err := tx.Model(&models.DisputeTimelineModel{}).
		Where("dispute_id = ?", disputeID).
		Pluck("id", &existing).Error; err != nil {
		return err
	}
	known := make(map[uuid.UUID]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	var fresh []models.DisputeTimelineModel
	for _, e := range timeline {
		if !known[e.ID] {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return tx.Create(&fresh).Error
}

// applyFilter applies dispute filter conditions without pagination
func (r *GormDisputeRepository) applyFilter(query *gorm.DB, filter dispute.Filter) *gorm.DB {
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.NeedsManual != nil {
		query = query.Where("needs_manual = ?", *filter.NeedsManual)
	}
	return query
}

// Ensure GormDisputeRepository implements Repository
var _ dispute.Repository = (*GormDisputeRepository)(nil)

// GormEvidencePackRepository implements dispute.EvidencePackRepository using GORM
type GormEvidencePackRepository struct {
	db *gorm.DB
}

// NewGormEvidencePackRepository creates a new GormEvidencePackRepository
func NewGormEvidencePackRepository(db *gorm.DB) *GormEvidencePackRepository {
	return &GormEvidencePackRepository{db: db}
}

// FindByID finds an evidence pack with its attachments by ID
func (r *GormEvidencePackRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.EvidencePack, error) {
	var model models.EvidencePackModel
	if err := r.db.WithContext(ctx).
		Preload("Attachments").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDisputeID finds the evidence pack for a dispute
func (r *GormEvidencePackRepository) FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*dispute.EvidencePack, error) {
	var model models.EvidencePackModel
	if err := r.db.WithContext(ctx).
		Preload("Attachments").
		First(&model, "dispute_id = ?", disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates an evidence pack with its attachments
func (r *GormEvidencePackRepository) Save(ctx context.Context, p *dispute.EvidencePack) error {
	model := models.EvidencePackModelFromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attachments := model.Attachments
		model.Attachments = nil

		if err := tx.Save(model).Error; err != nil {
			return err
		}

		if err := tx.Where("pack_id = ?", p.ID).Delete(&models.EvidenceAttachmentModel{}).Error; err != nil {
			return err
		}
		if len(attachments) > 0 {
			if err := tx.Create(&attachments).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Ensure GormEvidencePackRepository implements EvidencePackRepository
var _ dispute.EvidencePackRepository = (*GormEvidencePackRepository)(nil)
