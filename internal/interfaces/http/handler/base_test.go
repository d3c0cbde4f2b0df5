package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
	"github.com/streamcart/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payouts", nil)
	return c, w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestIDFromHandler(t *testing.T) {
	t.Run("prefers the id stored by the middleware", func(t *testing.T) {
		c, _ := testContext(t)
		c.Set(middleware.RequestIDKey, "generated-id")
		c.Request.Header.Set(middleware.RequestIDHeader, "caller-id")

		assert.Equal(t, "generated-id", getRequestID(c))
	})

	t.Run("falls back to the header without the middleware", func(t *testing.T) {
		c, _ := testContext(t)
		c.Request.Header.Set(middleware.RequestIDHeader, "caller-id")

		assert.Equal(t, "caller-id", getRequestID(c))
	})

	t.Run("empty when neither is present", func(t *testing.T) {
		c, _ := testContext(t)
		assert.Empty(t, getRequestID(c))
	})
}

func TestGetUserIDFromHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("from gin context", func(t *testing.T) {
		c, _ := testContext(t)
		c.Set(middleware.UserIDKey, userID.String())

		got, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("from header", func(t *testing.T) {
		c, _ := testContext(t)
		c.Request.Header.Set(middleware.UserIDHeader, userID.String())

		got, err := getUserID(c)
		require.NoError(t, err)
		assert.Equal(t, userID, got)
	})

	t.Run("missing", func(t *testing.T) {
		c, _ := testContext(t)
		_, err := getUserID(c)
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		c, _ := testContext(t)
		c.Set(middleware.UserIDKey, "not-a-uuid")
		_, err := getUserID(c)
		assert.Error(t, err)
	})
}

func TestBaseHandlerSuccess(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	h.Success(c, gin.H{"status": "posted"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"status": "posted"}, resp.Data)
}

func TestBaseHandlerSuccessWithMeta(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	h.SuccessWithMeta(c, []string{"a", "b"}, 45, 2, 20)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(45), resp.Meta.Total)
	assert.Equal(t, 2, resp.Meta.Page)
	assert.Equal(t, 20, resp.Meta.PageSize)
	assert.Equal(t, 3, resp.Meta.TotalPages)
}

func TestBaseHandlerCreated(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	h.Created(c, gin.H{"id": "acc-1"})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestBaseHandlerErrorCarriesRequestID(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	// The request-id middleware stores under RequestIDKey; the envelope
	// must carry that id even when the caller sent no header.
	c.Set(middleware.RequestIDKey, "req-envelope-1")

	h.BadRequest(c, "Amount must be positive")

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
	assert.Equal(t, "Amount must be positive", resp.Error.Message)
	assert.Equal(t, "req-envelope-1", resp.Error.RequestID)
}

func TestBaseHandlerBindError(t *testing.T) {
	middleware.SetupValidator()
	h := &BaseHandler{}

	type createAccountBody struct {
		Name     string `json:"name" binding:"required"`
		Currency string `json:"currency" binding:"required,currency"`
	}

	t.Run("validator errors carry per-field details", func(t *testing.T) {
		c, w := testContext(t)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/accounts",
			strings.NewReader(`{"currency":"usd"}`))
		c.Request.Header.Set("Content-Type", "application/json")

		var body createAccountBody
		err := c.ShouldBindJSON(&body)
		require.Error(t, err)

		h.BindError(c, err)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

		fields := make(map[string]string, len(resp.Error.Details))
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "This field is required", fields["name"])
		assert.Equal(t, "Must be a three-letter uppercase currency code", fields["currency"])
	})

	t.Run("malformed JSON stays a plain bad request", func(t *testing.T) {
		c, w := testContext(t)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/accounts",
			strings.NewReader(`{"name":`))
		c.Request.Header.Set("Content-Type", "application/json")

		var body createAccountBody
		err := c.ShouldBindJSON(&body)
		require.Error(t, err)

		h.BindError(c, err)

		require.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})
}

func TestBaseHandlerHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        shared.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "suffix classified not found",
			err:        shared.NewDomainError("TXN_NOT_FOUND", "Transaction not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeNotFound,
		},
		{
			name:       "concurrency conflict",
			err:        shared.ErrConcurrencyConflict,
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeConcurrencyConflict,
		},
		{
			name:       "ledger imbalance",
			err:        shared.NewDomainError("LEDGER_IMBALANCE", "Entries do not sum to zero"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeUnbalanced,
		},
		{
			name:       "business rule fallback",
			err:        shared.NewDomainError("PAYOUT_HELD", "Cannot process a held payout"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeBusinessRule,
		},
		{
			name:       "wrapped domain error",
			err:        fmt.Errorf("dispatching payout: %w", shared.ErrInvalidState),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   dto.ErrCodeInvalidState,
		},
	}
	h := &BaseHandler{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(t)
			h.HandleError(c, tt.err)

			require.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBaseHandlerHandleErrorOpaqueInternal(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	h.HandleError(c, fmt.Errorf("pq: connection refused at 10.0.3.7:5432"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	// The driver error text must not reach the caller.
	assert.Equal(t, "An unexpected error occurred", resp.Error.Message)
	assert.NotContains(t, w.Body.String(), "10.0.3.7")
}

func TestBaseHandlerHandleErrorNil(t *testing.T) {
	h := &BaseHandler{}
	c, w := testContext(t)

	h.HandleError(c, nil)

	assert.Empty(t, w.Body.String())
}
