package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormPolicyRepository implements policy.Repository using GORM
type GormPolicyRepository struct {
	db *gorm.DB
}

// NewGormPolicyRepository creates a new GormPolicyRepository
func NewGormPolicyRepository(db *gorm.DB) *GormPolicyRepository {
	return &GormPolicyRepository{db: db}
}

// FindByID finds a policy with its rules by ID
func (r *GormPolicyRepository) FindByID(ctx context.Context, id uuid.UUID) (*policy.Policy, error) {
	var model models.PolicyModel
	if err := r.db.WithContext(ctx).
		Preload("Rules").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a policy by its unique name
func (r *GormPolicyRepository) FindByName(ctx context.Context, name string) (*policy.Policy, error) {
	var model models.PolicyModel
	if err := r.db.WithContext(ctx).
		Preload("Rules").
		First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns every active policy
func (r *GormPolicyRepository) FindActive(ctx context.Context) ([]*policy.Policy, error) {
	var rows []models.PolicyModel
	if err := r.db.WithContext(ctx).
		Preload("Rules").
		Where("active = ?", true).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	policies := make([]*policy.Policy, len(rows))
	for i := range rows {
		policies[i] = rows[i].ToDomain()
	}
	return policies, nil
}

// FindAll lists policies with filtering
func (r *GormPolicyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*policy.Policy, error) {
	query := r.db.WithContext(ctx).Model(&models.PolicyModel{})
	query = applySort(query, filter, CommonSortFields)
	query = applyPagination(query, filter)

	var rows []models.PolicyModel
	if err := query.Preload("Rules").Find(&rows).Error; err != nil {
		return nil, err
	}

	policies := make([]*policy.Policy, len(rows))
	for i := range rows {
		policies[i] = rows[i].ToDomain()
	}
	return policies, nil
}

// Save creates or updates a policy with its rules
func (r *GormPolicyRepository) Save(ctx context.Context, p *policy.Policy) error {
	model := models.PolicyModelFromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rules := model.Rules
		model.Rules = nil

		if err := tx.Save(model).Error; err != nil {
			return err
		}
		return r.saveRules(tx, p.ID, rules)
	})
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPolicyRepository) SaveWithLock(ctx context.Context, p *policy.Policy) error {
	model := models.PolicyModelFromDomain(p)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		currentVersion := model.Version
		model.Version++
		model.UpdatedAt = time.Now().UTC()

		result := tx.Model(&models.PolicyModel{}).
			Where("id = ? AND version = ?", model.ID, currentVersion).
			Updates(map[string]interface{}{
				"description": model.Description,
				"scope":       model.Scope,
				"scope_ref":   model.ScopeRef,
				"active":      model.Active,
				"version":     model.Version,
				"updated_at":  model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}

		p.Version = model.Version
		return r.saveRules(tx, p.ID, model.Rules)
	})
}

// saveRules replaces the rule rows for a policy
func (r *GormPolicyRepository) saveRules(tx *gorm.DB, policyID uuid.UUID, rules []models.RuleModel) error {
	if err := tx.Where("policy_id = ?", policyID).Delete(&models.RuleModel{}).Error; err != nil {
		return err
	}
	if len(rules) > 0 {
		if err := tx.Create(&rules).Error; err != nil {
			return err
		}
	}
	return nil
}

// Ensure GormPolicyRepository implements Repository
var _ policy.Repository = (*GormPolicyRepository)(nil)

// GormApprovalRepository implements policy.ApprovalRepository using GORM
type GormApprovalRepository struct {
	db *gorm.DB
}

// NewGormApprovalRepository creates a new GormApprovalRepository
func NewGormApprovalRepository(db *gorm.DB) *GormApprovalRepository {
	return &GormApprovalRepository{db: db}
}

// FindByID finds an approval by ID
func (r *GormApprovalRepository) FindByID(ctx context.Context, id uuid.UUID) (*policy.Approval, error) {
	var model models.ApprovalModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPending lists pending approvals with filtering
func (r *GormApprovalRepository) FindPending(ctx context.Context, filter shared.Filter) ([]*policy.Approval, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ApprovalModel{}).
		Where("status = ?", policy.ApprovalStatusPending)
	query = applySort(query, filter, CommonSortFields)
	query = applyPagination(query, filter)

	var rows []models.ApprovalModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	approvals := make([]*policy.Approval, len(rows))
	for i := range rows {
		approvals[i] = rows[i].ToDomain()
	}
	return approvals, nil
}

// Save creates or updates an approval
func (r *GormApprovalRepository) Save(ctx context.Context, a *policy.Approval) error {
	model := models.ApprovalModelFromDomain(a)
	return r.db.WithContext(ctx).Save(model).Error
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormApprovalRepository) SaveWithLock(ctx context.Context, a *policy.Approval) error {
	model := models.ApprovalModelFromDomain(a)
	currentVersion := model.Version
	model.Version++
	model.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&models.ApprovalModel{}).
		Where("id = ? AND version = ?", model.ID, currentVersion).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"reason":      model.Reason,
			"decided_by":  model.DecidedBy,
			"decided_at":  model.DecidedAt,
			"consumed":    model.Consumed,
			"consumed_at": model.ConsumedAt,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}

	a.Version = model.Version
	return nil
}

// Ensure GormApprovalRepository implements ApprovalRepository
var _ policy.ApprovalRepository = (*GormApprovalRepository)(nil)

// GormIncidentRepository implements policy.IncidentRepository using GORM
type GormIncidentRepository struct {
	db *gorm.DB
}

// NewGormIncidentRepository creates a new GormIncidentRepository
func NewGormIncidentRepository(db *gorm.DB) *GormIncidentRepository {
	return &GormIncidentRepository{db: db}
}

// FindByID finds an incident by ID
func (r *GormIncidentRepository) FindByID(ctx context.Context, id uuid.UUID) (*policy.Incident, error) {
	var model models.IncidentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists incidents with filtering
func (r *GormIncidentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*policy.Incident, error) {
	query := r.db.WithContext(ctx).Model(&models.IncidentModel{})
	query = applySort(query, filter, IncidentSortFields)
	query = applyPagination(query, filter)

	return r.list(query)
}

// FindUnacknowledged lists incidents no one has acknowledged yet
func (r *GormIncidentRepository) FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]*policy.Incident, error) {
	query := r.db.WithContext(ctx).
		Model(&models.IncidentModel{}).
		Where("acknowledged_at IS NULL")
	query = applySort(query, filter, IncidentSortFields)
	query = applyPagination(query, filter)

	return r.list(query)
}

// Save creates or updates an incident
func (r *GormIncidentRepository) Save(ctx context.Context, i *policy.Incident) error {
	model := models.IncidentModelFromDomain(i)
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *GormIncidentRepository) list(query *gorm.DB) ([]*policy.Incident, error) {
	var rows []models.IncidentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	incidents := make([]*policy.Incident, len(rows))
	for i := range rows {
		incidents[i] = rows[i].ToDomain()
	}
	return incidents, nil
}

// Ensure GormIncidentRepository implements IncidentRepository
var _ policy.IncidentRepository = (*GormIncidentRepository)(nil)
