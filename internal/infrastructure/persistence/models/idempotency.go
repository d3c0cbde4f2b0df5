package models

import (
	"time"

	"github.com/streamcart/backend/internal/domain/idempotency"
)

// IdempotencyKeyModel is the persistence model for one (scope, key) record.
// The unique index is the lock primitive: the first insert wins and every
// concurrent claim surfaces as a constraint violation.
type IdempotencyKeyModel struct {
	Scope       string             `gorm:"type:varchar(100);primary_key"`
	Key         string             `gorm:"type:varchar(200);primary_key"`
	RequestHash string             `gorm:"type:varchar(64);not null"`
	Status      idempotency.Status `gorm:"type:varchar(20);not null;default:'IN_PROGRESS';index"`
	Result      []byte             `gorm:"type:bytea"`
	LastError   string             `gorm:"type:varchar(1000)"`
	CreatedAt   time.Time          `gorm:"not null"`
	UpdatedAt   time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IdempotencyKeyModel) TableName() string {
	return "idempotency_keys"
}

// ToDomain converts the persistence model to a domain Key.
func (m *IdempotencyKeyModel) ToDomain() *idempotency.Key {
	return &idempotency.Key{
		Scope:       m.Scope,
		Key:         m.Key,
		RequestHash: m.RequestHash,
		Status:      m.Status,
		Result:      m.Result,
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Key.
func (m *IdempotencyKeyModel) FromDomain(k *idempotency.Key) {
	m.Scope = k.Scope
	m.Key = k.Key
	m.RequestHash = k.RequestHash
	m.Status = k.Status
	m.Result = k.Result
	m.LastError = k.LastError
	m.CreatedAt = k.CreatedAt
	m.UpdatedAt = k.UpdatedAt
}
