package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	ledgerapp "github.com/streamcart/backend/internal/application/ledger"
	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// LedgerHandler handles ledger account and transaction API endpoints
type LedgerHandler struct {
	BaseHandler
	ledgerService *ledgerapp.Service
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(ledgerService *ledgerapp.Service) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
	}
}

// CreateAccountRequest represents a request to create a ledger account
// @Description Request body for creating a chart-of-accounts entry
type CreateAccountRequest struct {
	Code     string `json:"code" binding:"required,min=1,max=100" example:"creator:payable:9f6c"`
	Name     string `json:"name" binding:"required,min=1,max=200" example:"Creator payable"`
	Type     string `json:"type" binding:"required,oneof=ASSET LIABILITY INCOME EXPENSE EQUITY" example:"LIABILITY"`
	Currency string `json:"currency" binding:"required,currency" example:"USD"`
}

// EntryRequest represents one leg of a transaction posting
// @Description One signed entry of a balanced transaction
type EntryRequest struct {
	AccountID   string `json:"account_id" binding:"required,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	AmountCents int64  `json:"amount_cents" binding:"required" example:"-14900"`
	Currency    string `json:"currency" binding:"required,currency" example:"USD"`
	SourceType  string `json:"source_type" binding:"required" example:"ORDER"`
	SourceID    string `json:"source_id" binding:"required,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	Memo        string `json:"memo" binding:"max=500" example:"order capture"`
}

// PostTransactionRequest represents a request to post a balanced transaction
// @Description Request body for posting a group of entries that sum to zero
type PostTransactionRequest struct {
	TxnID       string         `json:"txn_id" binding:"required,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	Description string         `json:"description" binding:"max=500" example:"order ord-1932 capture"`
	Entries     []EntryRequest `json:"entries" binding:"required,min=2,dive"`
	ApprovalID  *string        `json:"approval_id" binding:"omitempty,uuid"`
}

// ReverseTransactionRequest represents a request to reverse a posted transaction
// @Description Request body for posting a compensating transaction
type ReverseTransactionRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"refund issued"`
}

// CreateAccount godoc
// @ID           createLedgerAccount
// @Summary      Create a ledger account
// @Description  Register a new chart-of-accounts entry with a stable code
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        request body CreateAccountRequest true "Account creation request"
// @Success      201 {object} APIResponse[ledger.Account]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/accounts [post]
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.ledgerService.CreateAccount(c.Request.Context(), ledgerapp.CreateAccountRequest{
		Code:     req.Code,
		Name:     req.Name,
		Type:     ledger.AccountType(req.Type),
		Currency: valueobject.Currency(req.Currency),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, account)
}

// GetAccount godoc
// @ID           getLedgerAccount
// @Summary      Get a ledger account
// @Description  Retrieve one account by its ID
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledger.Account]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/accounts/{id} [get]
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	account, err := h.ledgerService.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}

// ListAccounts godoc
// @ID           listLedgerAccounts
// @Summary      List ledger accounts
// @Description  Retrieve a paginated list of accounts
// @Tags         ledger
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledger.Account]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/accounts [get]
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	accounts, err := h.ledgerService.ListAccounts(c.Request.Context(), shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, accounts)
}

// DeactivateAccount godoc
// @ID           deactivateLedgerAccount
// @Summary      Deactivate a ledger account
// @Description  Close an account to new entries. History stays queryable.
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[ledger.Account]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/accounts/{id}/deactivate [post]
func (h *LedgerHandler) DeactivateAccount(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	account, err := h.ledgerService.DeactivateAccount(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}

// GetBalance godoc
// @ID           getLedgerAccountBalance
// @Summary      Get an account balance
// @Description  Sum the account's signed entries, optionally as of a point in time
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        as_of query string false "Balance cutoff (RFC3339)" format(date-time)
// @Success      200 {object} APIResponse[valueobject.Money]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/accounts/{id}/balance [get]
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid as_of timestamp, expected RFC3339")
			return
		}
	}

	balance, err := h.ledgerService.Balance(c.Request.Context(), accountID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, balance)
}

// PostTransaction godoc
// @ID           postLedgerTransaction
// @Summary      Post a ledger transaction
// @Description  Atomically persist a balanced group of entries. Requires an Idempotency-Key header; repeat deliveries return the first outcome.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string true "Idempotency key"
// @Param        request body PostTransactionRequest true "Transaction posting request"
// @Success      201 {object} APIResponse[ledgerapp.PostTransactionResult]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/transactions [post]
func (h *LedgerHandler) PostTransaction(c *gin.Context) {
	var req PostTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	appReq, err := h.toPostRequest(c, req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.ledgerService.PostTransaction(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Deduplicated {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// ReverseTransaction godoc
// @ID           reverseLedgerTransaction
// @Summary      Reverse a ledger transaction
// @Description  Post a compensating transaction that negates every entry of the original. The original rows are never mutated.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key header string true "Idempotency key"
// @Param        id path string true "Transaction ID" format(uuid)
// @Param        request body ReverseTransactionRequest true "Reversal request"
// @Success      201 {object} APIResponse[ledgerapp.PostTransactionResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/transactions/{id}/reverse [post]
func (h *LedgerHandler) ReverseTransaction(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	var req ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.ledgerService.ReverseTransaction(c.Request.Context(), txnID,
		c.GetHeader("Idempotency-Key"), req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Deduplicated {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// GetTransaction godoc
// @ID           getLedgerTransaction
// @Summary      Get a ledger transaction
// @Description  Retrieve one transaction with its entries
// @Tags         ledger
// @Produce      json
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} APIResponse[ledger.Transaction]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/transactions/{id} [get]
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	txnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid transaction ID format")
		return
	}

	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), txnID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, txn)
}

// ListTransactions godoc
// @ID           listLedgerTransactions
// @Summary      List ledger transactions
// @Description  Retrieve a paginated transaction list with optional filters
// @Tags         ledger
// @Produce      json
// @Param        account_id query string false "Filter by account" format(uuid)
// @Param        source_type query string false "Filter by source type" Enums(ORDER, PAYOUT, REFUND, DISPUTE, FEE, ADJUSTMENT, REVERSAL)
// @Param        source_id query string false "Filter by source object" format(uuid)
// @Param        from query string false "Posted-at range start (RFC3339)" format(date-time)
// @Param        to query string false "Posted-at range end (RFC3339)" format(date-time)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]ledger.Transaction]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /ledger/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	filter := ledger.TransactionFilter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
			OrderBy:  listReq.OrderBy,
			OrderDir: listReq.OrderDir,
		},
	}

	if raw := c.Query("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid account_id format")
			return
		}
		filter.AccountID = &id
	}
	if raw := c.Query("source_type"); raw != "" {
		st := ledger.SourceType(raw)
		if !st.IsValid() {
			h.BadRequest(c, "Invalid source_type")
			return
		}
		filter.SourceType = &st
	}
	if raw := c.Query("source_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid source_id format")
			return
		}
		filter.SourceID = &id
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid from timestamp, expected RFC3339")
			return
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid to timestamp, expected RFC3339")
			return
		}
		filter.ToDate = &to
	}

	txns, total, err := h.ledgerService.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, txns, total, listReq.Page, listReq.PageSize)
}

// toPostRequest converts the HTTP posting request into the application DTO
func (h *LedgerHandler) toPostRequest(c *gin.Context, req PostTransactionRequest) (ledgerapp.PostTransactionRequest, error) {
	txnID, err := uuid.Parse(req.TxnID)
	if err != nil {
		return ledgerapp.PostTransactionRequest{}, err
	}

	entries := make([]ledgerapp.EntryInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		accountID, err := uuid.Parse(e.AccountID)
		if err != nil {
			return ledgerapp.PostTransactionRequest{}, err
		}
		sourceID, err := uuid.Parse(e.SourceID)
		if err != nil {
			return ledgerapp.PostTransactionRequest{}, err
		}
		entries = append(entries, ledgerapp.EntryInput{
			AccountID:   accountID,
			AmountCents: e.AmountCents,
			Currency:    valueobject.Currency(e.Currency),
			SourceType:  ledger.SourceType(e.SourceType),
			SourceID:    sourceID,
			Memo:        e.Memo,
		})
	}

	appReq := ledgerapp.PostTransactionRequest{
		TxnID:          txnID,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
		Description:    req.Description,
		Entries:        entries,
	}
	if req.ApprovalID != nil {
		approvalID, err := uuid.Parse(*req.ApprovalID)
		if err != nil {
			return ledgerapp.PostTransactionRequest{}, err
		}
		appReq.ApprovalID = &approvalID
	}
	return appReq, nil
}
