package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeUnbalanced, http.StatusUnprocessableEntity},
		{ErrCodeIdempotencyInProgress, http.StatusConflict},
		{ErrCodeIdempotencyMismatch, http.StatusUnprocessableEntity},
		{ErrCodePolicyDenied, http.StatusForbidden},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"ERR_NEVER_SEEN", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"explicit mapping", "NOT_FOUND", ErrCodeNotFound},
		{"ledger imbalance", "LEDGER_IMBALANCE", ErrCodeUnbalanced},
		{"idempotency mismatch", "IDEMPOTENCY_REQUEST_MISMATCH", ErrCodeIdempotencyMismatch},
		{"already normalized", ErrCodeConflict, ErrCodeConflict},
		{"not-found suffix", "PAYOUT_NOT_FOUND", ErrCodeNotFound},
		{"dispute not found", "DISPUTE_NOT_FOUND", ErrCodeNotFound},
		{"invalid prefix", "INVALID_REASON_CODE", ErrCodeInvalidInput},
		{"already prefix", "ALREADY_ACKNOWLEDGED", ErrCodeConflict},
		{"exists suffix", "ACCOUNT_CODE_EXISTS", ErrCodeConflict},
		{"business rule fallback", "DEADLINE_PASSED", ErrCodeBusinessRule},
		{"evidence incomplete fallback", "EVIDENCE_INCOMPLETE", ErrCodeBusinessRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

func TestNormalizedCodesResolveToClientStatuses(t *testing.T) {
	// Every code the normalizer can emit must map to a non-500 status,
	// otherwise domain errors leak as internal errors.
	emitted := []string{
		ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeConflict, ErrCodeBusinessRule,
		ErrCodeAlreadyExists, ErrCodeInvalidState, ErrCodeUnbalanced,
		ErrCodeIdempotencyInProgress, ErrCodeIdempotencyMismatch,
	}
	for _, code := range emitted {
		assert.NotEqual(t, http.StatusInternalServerError, GetHTTPStatus(code), code)
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	requestID := "req-abc-123"
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Resource not found", requestID)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "Resource not found", resp.Error.Message)
	assert.Equal(t, requestID, resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "amount_cents", Message: "must be positive"},
		{Field: "currency", Message: "unsupported currency"},
	}
	resp := NewValidationErrorResponse("Request validation failed", "req-1", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
}

func TestErrorResponseJSONShape(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Dispute not found", "req-test-123")

	payload, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.NotNil(t, decoded.Error)
	assert.Equal(t, ErrCodeNotFound, decoded.Error.Code)
	assert.Equal(t, "req-test-123", decoded.Error.RequestID)
	assert.Empty(t, decoded.Error.Details)
}
