package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	reconapp "github.com/streamcart/backend/internal/application/recon"
	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/infrastructure/feed"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// ReconHandler handles reconciliation API endpoints
type ReconHandler struct {
	BaseHandler
	reconService *reconapp.Service
	feedParser   *feed.SettlementParser
}

// NewReconHandler creates a new ReconHandler
func NewReconHandler(reconService *reconapp.Service) *ReconHandler {
	return &ReconHandler{
		reconService: reconService,
		feedParser:   feed.NewSettlementParser(),
	}
}

// RecordExternalTransactionRequest represents one bank or processor event
// @Description Request body for ingesting an external transaction
type RecordExternalTransactionRequest struct {
	Source      string `json:"source" binding:"required,min=1,max=100" example:"stripe"`
	ExternalID  string `json:"external_id" binding:"required,min=1,max=200" example:"txn_3Nq3xK2eZvKYlo2C"`
	AmountCents int64  `json:"amount_cents" binding:"required" example:"14900"`
	Currency    string `json:"currency" binding:"required,currency" example:"USD"`
	OccurredAt  string `json:"occurred_at" binding:"required" example:"2026-08-15T10:30:00Z"`
	Reference   string `json:"reference" binding:"max=500" example:"ord-1932"`
	Raw         string `json:"raw"`
}

// RunMatchingRequest represents a request to run a matching pass
// @Description Request body for one reconciliation matching pass
type RunMatchingRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=1000" example:"100"`
}

// ManualMatchRequest represents an operator-confirmed match
// @Description Request body for manually matching an external transaction to a ledger transaction
type ManualMatchRequest struct {
	LedgerTxnID string `json:"ledger_txn_id" binding:"required,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
}

// SweepAgingRequest represents a request to sweep aged unmatched transactions
// @Description Request body for the aging sweep
type SweepAgingRequest struct {
	MaxAgeHours int `json:"max_age_hours" binding:"omitempty,min=1" example:"72"`
	Limit       int `json:"limit" binding:"omitempty,min=1,max=1000" example:"100"`
}

// ResolveDiscrepancyRequest represents the resolution of a discrepancy
// @Description Request body for resolving a discrepancy
type ResolveDiscrepancyRequest struct {
	Resolution string `json:"resolution" binding:"required,min=1,max=1000" example:"duplicate processor event, voided"`
}

// RecordExternalTransaction godoc
// @ID           recordExternalTransaction
// @Summary      Ingest an external transaction
// @Description  Record one bank or processor event. Redelivered events on the same (source, external_id) are no-ops.
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body RecordExternalTransactionRequest true "External transaction"
// @Success      201 {object} APIResponse[recon.ExternalTransaction]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/external-transactions [post]
func (h *ReconHandler) RecordExternalTransaction(c *gin.Context) {
	var req RecordExternalTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		h.BadRequest(c, "Invalid occurred_at timestamp, expected RFC3339")
		return
	}

	txn, inserted, err := h.reconService.RecordExternalTransaction(c.Request.Context(),
		reconapp.RecordExternalTransactionRequest{
			Source:      req.Source,
			ExternalID:  req.ExternalID,
			AmountCents: req.AmountCents,
			Currency:    valueobject.Currency(req.Currency),
			OccurredAt:  occurredAt,
			Reference:   req.Reference,
			Raw:         req.Raw,
		})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !inserted {
		h.Success(c, txn)
		return
	}
	h.Created(c, txn)
}

// ImportResult combines the import report with per-row rejections
// @Description Result of a settlement file import
type ImportResult struct {
	Received   int             `json:"received"`
	Inserted   int             `json:"inserted"`
	Duplicates int             `json:"duplicates"`
	Rejected   int             `json:"rejected"`
	Errors     []feed.RowError `json:"errors,omitempty"`
}

// ImportSettlementFile godoc
// @ID           importSettlementFile
// @Summary      Import a settlement file
// @Description  Upload a CSV settlement file from a bank or payment processor. Valid rows are ingested as external transactions; bad rows are reported back without failing the import.
// @Tags         reconciliation
// @Accept       multipart/form-data
// @Produce      json
// @Param        source formData string true "Feed source" example(stripe)
// @Param        file formData file true "CSV settlement file"
// @Success      200 {object} APIResponse[ImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/external-transactions/imports [post]
func (h *ReconHandler) ImportSettlementFile(c *gin.Context) {
	source := c.PostForm("source")
	if source == "" || len(source) > 100 {
		h.BadRequest(c, "source is required and must be at most 100 characters")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "failed to open uploaded file")
		return
	}
	defer file.Close()

	result, err := h.feedParser.Parse(file)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	reqs := make([]reconapp.RecordExternalTransactionRequest, 0, len(result.Rows))
	for _, row := range result.Rows {
		reqs = append(reqs, reconapp.RecordExternalTransactionRequest{
			Source:      source,
			ExternalID:  row.ExternalID,
			AmountCents: row.AmountCents,
			Currency:    row.Currency,
			OccurredAt:  row.OccurredAt,
			Reference:   row.Reference,
			Raw:         row.Raw,
		})
	}

	report, err := h.reconService.ImportFeed(c.Request.Context(), reqs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, ImportResult{
		Received:   result.TotalRows,
		Inserted:   report.Inserted,
		Duplicates: report.Duplicates,
		Rejected:   result.ErrorCount,
		Errors:     result.Errors,
	})
}

// RunMatching godoc
// @ID           runReconMatching
// @Summary      Run a matching pass
// @Description  Evaluate unmatched external transactions against ledger candidates inside the date window
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body RunMatchingRequest false "Matching pass options"
// @Success      200 {object} APIResponse[reconapp.RunReport]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/runs [post]
func (h *ReconHandler) RunMatching(c *gin.Context) {
	var req RunMatchingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	report, err := h.reconService.RunMatching(c.Request.Context(), req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// ManualMatch godoc
// @ID           manualReconMatch
// @Summary      Manually match an external transaction
// @Description  Confirm a match an operator has verified. Manual matches resolve open discrepancies on the external transaction and are never overridden by later automated passes.
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Acting user ID" format(uuid)
// @Param        id path string true "External transaction ID" format(uuid)
// @Param        request body ManualMatchRequest true "Manual match request"
// @Success      201 {object} APIResponse[recon.Match]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/external-transactions/{id}/match [post]
func (h *ReconHandler) ManualMatch(c *gin.Context) {
	externalTxnID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid external transaction ID format")
		return
	}

	var req ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	ledgerTxnID, err := uuid.Parse(req.LedgerTxnID)
	if err != nil {
		h.BadRequest(c, "Invalid ledger transaction ID format")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	match, err := h.reconService.ManualMatch(c.Request.Context(), externalTxnID, ledgerTxnID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, match)
}

// SweepAging godoc
// @ID           sweepAgingTransactions
// @Summary      Sweep aged unmatched transactions
// @Description  Raise AGED_UNMATCHED discrepancies for external transactions that stayed unmatched past the age cutoff
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body SweepAgingRequest false "Sweep options"
// @Success      200 {object} APIResponse[reconapp.SweepReport]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/sweeps [post]
func (h *ReconHandler) SweepAging(c *gin.Context) {
	var req SweepAgingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	maxAge := time.Duration(req.MaxAgeHours) * time.Hour

	report, err := h.reconService.SweepAging(c.Request.Context(), maxAge, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// ResolveDiscrepancy godoc
// @ID           resolveDiscrepancy
// @Summary      Resolve a discrepancy
// @Description  Close an open discrepancy with the operator's resolution note
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Acting user ID" format(uuid)
// @Param        id path string true "Discrepancy ID" format(uuid)
// @Param        request body ResolveDiscrepancyRequest true "Resolution"
// @Success      200 {object} APIResponse[recon.Discrepancy]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/discrepancies/{id}/resolve [post]
func (h *ReconHandler) ResolveDiscrepancy(c *gin.Context) {
	discrepancyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid discrepancy ID format")
		return
	}

	var req ResolveDiscrepancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	d, err := h.reconService.ResolveDiscrepancy(c.Request.Context(), discrepancyID, userID, req.Resolution)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, d)
}

// ListDiscrepancies godoc
// @ID           listDiscrepancies
// @Summary      List discrepancies
// @Description  Retrieve discrepancies with optional filtering
// @Tags         reconciliation
// @Produce      json
// @Param        status query string false "Discrepancy status" Enums(OPEN, RESOLVED)
// @Param        kind query string false "Discrepancy kind" Enums(AMBIGUOUS_MATCH, AGED_UNMATCHED, PARTIAL_AMOUNT)
// @Param        severity query string false "Discrepancy severity" Enums(LOW, MEDIUM, HIGH, CRITICAL)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]recon.Discrepancy]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/discrepancies [get]
func (h *ReconHandler) ListDiscrepancies(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	filter := recon.DiscrepancyFilter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
			OrderBy:  listReq.OrderBy,
			OrderDir: listReq.OrderDir,
		},
	}

	if raw := c.Query("status"); raw != "" {
		status := recon.DiscrepancyStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("kind"); raw != "" {
		kind := recon.DiscrepancyKind(raw)
		if !kind.IsValid() {
			h.BadRequest(c, "Invalid discrepancy kind")
			return
		}
		filter.Kind = &kind
	}
	if raw := c.Query("severity"); raw != "" {
		severity := recon.DiscrepancySeverity(raw)
		filter.Severity = &severity
	}

	discrepancies, err := h.reconService.ListDiscrepancies(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, discrepancies)
}

// ListExternalTransactions godoc
// @ID           listExternalTransactions
// @Summary      List external transactions
// @Description  Retrieve ingested external transactions with optional filtering
// @Tags         reconciliation
// @Produce      json
// @Param        source query string false "Filter by source" example(stripe)
// @Param        unmatched query bool false "Only unmatched transactions"
// @Param        from query string false "Occurred-at range start (RFC3339)" format(date-time)
// @Param        to query string false "Occurred-at range end (RFC3339)" format(date-time)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]recon.ExternalTransaction]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /recon/external-transactions [get]
func (h *ReconHandler) ListExternalTransactions(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	filter := recon.ExternalTransactionFilter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
			OrderBy:  listReq.OrderBy,
			OrderDir: listReq.OrderDir,
		},
	}

	if raw := c.Query("source"); raw != "" {
		filter.Source = &raw
	}
	if raw := c.Query("unmatched"); raw != "" {
		unmatched := raw == "true"
		filter.Unmatched = &unmatched
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

	txns, err := h.reconService.ListExternalTransactions(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, txns)
}
