package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/streamcart/backend/internal/domain/shared"
)

// Status represents the lifecycle of an idempotency key record
type Status string

const (
	// StatusInProgress indicates the guarded operation is currently executing
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the operation finished and its result is cached
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the operation failed; the key may be retried
	StatusFailed Status = "FAILED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Errors surfaced by the store. These are distinct from ordinary failures
// so callers never misinterpret a collision as a retryable provider error.
var (
	// ErrRequestMismatch means the same (scope, key) was observed with a
	// different request hash. The caller changed the request body for the
	// same key - a logic bug to surface, not hide.
	ErrRequestMismatch = shared.NewDomainError("IDEMPOTENCY_REQUEST_MISMATCH",
		"Idempotency key was already used with a different request")

	// ErrInProgress means another caller holds the key and has not finished.
	// Callers must wait or fail with a retryable error, never execute.
	ErrInProgress = shared.NewDomainError("IDEMPOTENCY_IN_PROGRESS",
		"Operation with this idempotency key is already in progress")
)

// Key is the persisted record for one (scope, key) pair
type Key struct {
	Scope       string
	Key         string
	RequestHash string
	Status      Status
	Result      []byte
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BeginOutcome describes what Begin found for a (scope, key) pair
type BeginOutcome int

const (
	// OutcomeFresh means the key was newly claimed; the caller executes
	OutcomeFresh BeginOutcome = iota
	// OutcomeCompleted means a cached result is returned; no re-execution
	OutcomeCompleted
)

// BeginResult is the result of a Begin call
type BeginResult struct {
	Outcome BeginOutcome
	// Result holds the cached result verbatim when Outcome is OutcomeCompleted
	Result []byte
}

// Store guarantees exactly-once effect for a (scope, key) pair.
// Implementations must use a unique-constraint-backed insert as the lock
// primitive, since callers may be separate processes.
type Store interface {
	// Begin claims the key. A fresh claim returns OutcomeFresh and the
	// caller proceeds to execute. An existing COMPLETED record with the
	// same request hash returns OutcomeCompleted with the cached result.
	// An IN_PROGRESS record returns ErrInProgress. A record with a
	// different request hash returns ErrRequestMismatch regardless of
	// status, except FAILED records which permit retry with a new hash.
	Begin(ctx context.Context, scope, key, requestHash string) (*BeginResult, error)

	// Complete transitions IN_PROGRESS to COMPLETED, storing the result verbatim
	Complete(ctx context.Context, scope, key string, result []byte) error

	// Fail transitions IN_PROGRESS to FAILED, recording the error for audit.
	// FAILED records do not block future Begin calls for the same key.
	Fail(ctx context.Context, scope, key string, cause error) error
}

// HashRequest computes the canonical request hash for a payload
func HashRequest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
