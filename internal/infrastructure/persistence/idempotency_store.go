package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/streamcart/backend/internal/domain/idempotency"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/persistence/models"
)

// GormIdempotencyStore implements idempotency.Store on the primary
// database. The composite primary key on (scope, key) is the lock
// primitive: the first insert wins and every concurrent claim is turned
// away by the constraint, which holds across processes.
type GormIdempotencyStore struct {
	db *gorm.DB
}

// NewGormIdempotencyStore creates a new GormIdempotencyStore
func NewGormIdempotencyStore(db *gorm.DB) *GormIdempotencyStore {
	return &GormIdempotencyStore{db: db}
}

// Begin claims the (scope, key) pair
func (s *GormIdempotencyStore) Begin(ctx context.Context, scope, key, requestHash string) (*idempotency.BeginResult, error) {
	now := time.Now().UTC()
	record := models.IdempotencyKeyModel{
		Scope:       scope,
		Key:         key,
		RequestHash: requestHash,
		Status:      idempotency.StatusInProgress,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}, {Name: "key"}},
		DoNothing: true,
	}).Create(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected > 0 {
		return &idempotency.BeginResult{Outcome: idempotency.OutcomeFresh}, nil
	}

	var existing models.IdempotencyKeyModel
	if err := s.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		First(&existing).Error; err != nil {
		return nil, err
	}

	switch existing.Status {
	case idempotency.StatusFailed:
		// FAILED permits retry, with the same or a new request hash. The
		// status guard loses gracefully if a concurrent retry got there first.
		claim := s.db.WithContext(ctx).
			Model(&models.IdempotencyKeyModel{}).
			Where("scope = ? AND key = ? AND status = ?", scope, key, idempotency.StatusFailed).
			Updates(map[string]interface{}{
				"request_hash": requestHash,
				"status":       idempotency.StatusInProgress,
				"last_error":   "",
				"updated_at":   now,
			})
		if claim.Error != nil {
			return nil, claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil, idempotency.ErrInProgress
		}
		return &idempotency.BeginResult{Outcome: idempotency.OutcomeFresh}, nil

	case idempotency.StatusCompleted:
		if existing.RequestHash != requestHash {
			return nil, idempotency.ErrRequestMismatch
		}
		return &idempotency.BeginResult{
			Outcome: idempotency.OutcomeCompleted,
			Result:  existing.Result,
		}, nil

	default:
		if existing.RequestHash != requestHash {
			return nil, idempotency.ErrRequestMismatch
		}
		return nil, idempotency.ErrInProgress
	}
}

// Complete transitions IN_PROGRESS to COMPLETED, storing the result verbatim
func (s *GormIdempotencyStore) Complete(ctx context.Context, scope, key string, result []byte) error {
	return s.transition(ctx, scope, key, map[string]interface{}{
		"status":     idempotency.StatusCompleted,
		"result":     result,
		"updated_at": time.Now().UTC(),
	})
}

// Fail transitions IN_PROGRESS to FAILED, recording the error for audit
func (s *GormIdempotencyStore) Fail(ctx context.Context, scope, key string, cause error) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	return s.transition(ctx, scope, key, map[string]interface{}{
		"status":     idempotency.StatusFailed,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	})
}

func (s *GormIdempotencyStore) transition(ctx context.Context, scope, key string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&models.IdempotencyKeyModel{}).
		Where("scope = ? AND key = ? AND status = ?", scope, key, idempotency.StatusInProgress).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

// Ensure GormIdempotencyStore implements Store
var _ idempotency.Store = (*GormIdempotencyStore)(nil)
