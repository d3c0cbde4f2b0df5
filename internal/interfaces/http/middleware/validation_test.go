package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

type postEntryRequest struct {
	AccountCode string `json:"account_code" binding:"required,min=1,max=100"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Currency    string `json:"currency" binding:"required,currency"`
}

func validationRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	SetupValidator()

	router := gin.New()
	router.POST("/entries", func(c *gin.Context) {
		var req postEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return router
}

func postJSON(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	assert.NotNil(t, v)
}

func TestValidation_ReportsPerFieldDetails(t *testing.T) {
	router := validationRouter(t)

	w := postJSON(router, `{"account_code": "", "amount_cents": -5, "currency": "usd"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "Request validation failed", resp.Error.Message)
	require.Len(t, resp.Error.Details, 3)

	// Field names come from the json tags, not the Go struct fields.
	fields := make(map[string]string, len(resp.Error.Details))
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Contains(t, fields, "account_code")
	assert.Contains(t, fields, "amount_cents")
	assert.Equal(t, "Must be a three-letter uppercase currency code", fields["currency"])
}

func TestValidation_CurrencyTag(t *testing.T) {
	router := validationRouter(t)

	tests := []struct {
		name     string
		currency string
		wantCode int
	}{
		{"uppercase ISO code", "USD", http.StatusOK},
		{"another ISO code", "EUR", http.StatusOK},
		{"lowercase", "usd", http.StatusBadRequest},
		{"too short", "US", http.StatusBadRequest},
		{"too long", "USDT", http.StatusBadRequest},
		{"digits", "US1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, `{"account_code": "revenue:tips", "amount_cents": 1500, "currency": "`+tt.currency+`"}`)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestValidation_AcceptsWellFormedRequest(t *testing.T) {
	router := validationRouter(t)

	w := postJSON(router, `{"account_code": "creator:payable", "amount_cents": 250000, "currency": "USD"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetValidationMessage(t *testing.T) {
	type messageFixture struct {
		Required string `validate:"required"`
		Min      string `validate:"min=5"`
		Max      string `validate:"max=10"`
		UUID     string `validate:"uuid"`
		OneOf    string `validate:"oneof=DENY REQUIRE_APPROVAL"`
		GTE      int    `validate:"gte=10"`
		URL      string `validate:"url"`
	}

	v := validator.New()
	err := v.Struct(messageFixture{
		Required: "",
		Min:      "ab",
		Max:      "far too long for the cap",
		UUID:     "not-a-uuid",
		OneOf:    "ALLOW",
		GTE:      3,
		URL:      "not a url",
	})
	require.Error(t, err)

	expected := map[string]string{
		"Required": "This field is required",
		"Max":      "Must be at most 10 characters",
		"UUID":     "Invalid UUID format",
		"OneOf":    "Must be one of: DENY REQUIRE_APPROVAL",
		"GTE":      "Must be greater than or equal to 10",
		"URL":      "Invalid URL format",
	}

	for _, e := range err.(validator.ValidationErrors) {
		if want, ok := expected[e.StructField()]; ok {
			assert.Equal(t, want, getValidationMessage(e), e.StructField())
		}
	}
}

func TestHandleValidationError_NonValidatorError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/entries", func(c *gin.Context) {
		var req postEntryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
	})

	// Malformed JSON produces a syntax error, not ValidationErrors; the
	// handler still answers 400 with the standard envelope.
	w := postJSON(router, `{"account_code": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeValidation)
}
