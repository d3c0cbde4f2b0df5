package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	payoutapp "github.com/streamcart/backend/internal/application/payout"
	"github.com/streamcart/backend/internal/domain/payout"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// PayoutHandler handles creator payout API endpoints
type PayoutHandler struct {
	BaseHandler
	payoutService *payoutapp.Service
}

// NewPayoutHandler creates a new PayoutHandler
func NewPayoutHandler(payoutService *payoutapp.Service) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

// CreatePayoutRequest represents a request to draft a creator payout
// @Description Request body for drafting a payout over a settlement period
type CreatePayoutRequest struct {
	CreatorID      string `json:"creator_id" binding:"required,uuid" example:"6ba7b810-9dad-11d1-80b4-00c04fd430c8"`
	PeriodStart    string `json:"period_start" binding:"required" example:"2026-08-01T00:00:00Z"`
	PeriodEnd      string `json:"period_end" binding:"required" example:"2026-08-15T00:00:00Z"`
	DestinationRef string `json:"destination_ref" binding:"required,min=1,max=200" example:"ba_1Nq3xK2eZvKYlo2C"`
}

// ApplyHoldRequest represents a request to place a hold on a payout
// @Description Request body for applying a payout hold
type ApplyHoldRequest struct {
	Type   string `json:"type" binding:"required,oneof=FRAUD DISPUTE POLICY MANUAL" example:"DISPUTE"`
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"open chargeback on order ord-1932"`
}

// ReleaseHoldRequest represents a request to release a payout hold
// @Description Request body for releasing a payout hold
type ReleaseHoldRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"chargeback won"`
}

// CancelPayoutRequest represents a request to cancel a payout
// @Description Request body for canceling a payout
type CancelPayoutRequest struct {
	Reason     string  `json:"reason" binding:"required,min=1,max=500" example:"creator account closed"`
	ApprovalID *string `json:"approval_id" binding:"omitempty,uuid"`
}

// Create godoc
// @ID           createPayout
// @Summary      Draft a creator payout
// @Description  Aggregate the creator's reconciled earnings for the period into a draft payout. Repeat calls for the same creator and period return the existing draft.
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        request body CreatePayoutRequest true "Payout draft request"
// @Success      201 {object} APIResponse[payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts [post]
func (h *PayoutHandler) Create(c *gin.Context) {
	var req CreatePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	creatorID, err := uuid.Parse(req.CreatorID)
	if err != nil {
		h.BadRequest(c, "Invalid creator ID format")
		return
	}
	periodStart, err := time.Parse(time.RFC3339, req.PeriodStart)
	if err != nil {
		h.BadRequest(c, "Invalid period_start, expected RFC3339")
		return
	}
	periodEnd, err := time.Parse(time.RFC3339, req.PeriodEnd)
	if err != nil {
		h.BadRequest(c, "Invalid period_end, expected RFC3339")
		return
	}

	p, err := h.payoutService.CreateDraft(c.Request.Context(), creatorID, periodStart, periodEnd, req.DestinationRef)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, p)
}

// Submit godoc
// @ID           submitPayout
// @Summary      Submit a payout for approval
// @Description  Gate-check the draft against payout policies. Allowed drafts advance to APPROVED; an approval requirement parks the payout in PENDING_APPROVAL.
// @Tags         payouts
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Success      200 {object} APIResponse[payoutapp.SubmitResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/submit [post]
func (h *PayoutHandler) Submit(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	result, err := h.payoutService.SubmitForApproval(c.Request.Context(), payoutID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Resume godoc
// @ID           resumePayout
// @Summary      Resume a pending payout
// @Description  Re-evaluate a PENDING_APPROVAL payout after its approval was granted
// @Tags         payouts
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Success      200 {object} APIResponse[payoutapp.SubmitResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/resume [post]
func (h *PayoutHandler) Resume(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	result, err := h.payoutService.Resume(c.Request.Context(), payoutID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Process godoc
// @ID           processPayout
// @Summary      Process an approved payout
// @Description  Dispatch the payout to the payment rail and post the settlement ledger entries. Requires an Idempotency-Key header.
// @Tags         payouts
// @Produce      json
// @Param        Idempotency-Key header string true "Idempotency key"
// @Param        id path string true "Payout ID" format(uuid)
// @Success      200 {object} APIResponse[payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/process [post]
func (h *PayoutHandler) Process(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	p, err := h.payoutService.Process(c.Request.Context(), payoutID, c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Retry godoc
// @ID           retryPayout
// @Summary      Retry a failed payout
// @Description  Move a FAILED payout back to APPROVED so it can be processed again
// @Tags         payouts
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Success      200 {object} APIResponse[payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/retry [post]
func (h *PayoutHandler) Retry(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	p, err := h.payoutService.Retry(c.Request.Context(), payoutID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// ApplyHold godoc
// @ID           applyPayoutHold
// @Summary      Apply a payout hold
// @Description  Block a payout from processing. A payout can carry several holds; it stays blocked until all are released.
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Acting user ID" format(uuid)
// @Param        id path string true "Payout ID" format(uuid)
// @Param        request body ApplyHoldRequest true "Hold request"
// @Success      201 {object} APIResponse[payout.Hold]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/holds [post]
func (h *PayoutHandler) ApplyHold(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	var req ApplyHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	hold, err := h.payoutService.ApplyHold(c.Request.Context(), payoutID,
		payout.HoldType(req.Type), req.Reason, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, hold)
}

// ReleaseHold godoc
// @ID           releasePayoutHold
// @Summary      Release a payout hold
// @Description  Release one hold. The payout unblocks once no active holds remain.
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Acting user ID" format(uuid)
// @Param        id path string true "Payout ID" format(uuid)
// @Param        hold_id path string true "Hold ID" format(uuid)
// @Param        request body ReleaseHoldRequest true "Release request"
// @Success      200 {object} APIResponse[payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/holds/{hold_id}/release [post]
func (h *PayoutHandler) ReleaseHold(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}
	holdID, err := uuid.Parse(c.Param("hold_id"))
	if err != nil {
		h.BadRequest(c, "Invalid hold ID format")
		return
	}

	var req ReleaseHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	p, err := h.payoutService.ReleaseHold(c.Request.Context(), payoutID, holdID, userID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Cancel godoc
// @ID           cancelPayout
// @Summary      Cancel a payout
// @Description  Terminate a non-terminal payout. Cancellation is itself a governed action and may require an approval.
// @Tags         payouts
// @Accept       json
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Param        request body CancelPayoutRequest true "Cancellation request"
// @Success      200 {object} APIResponse[payoutapp.CancelResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id}/cancel [post]
func (h *PayoutHandler) Cancel(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	var req CancelPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	var approvalID *uuid.UUID
	if req.ApprovalID != nil {
		id, err := uuid.Parse(*req.ApprovalID)
		if err != nil {
			h.BadRequest(c, "Invalid approval ID format")
			return
		}
		approvalID = &id
	}

	result, err := h.payoutService.Cancel(c.Request.Context(), payoutID, req.Reason, approvalID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// GetByID godoc
// @ID           getPayoutById
// @Summary      Get a payout
// @Description  Retrieve one payout with its items and holds
// @Tags         payouts
// @Produce      json
// @Param        id path string true "Payout ID" format(uuid)
// @Success      200 {object} APIResponse[payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts/{id} [get]
func (h *PayoutHandler) GetByID(c *gin.Context) {
	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payout ID format")
		return
	}

	p, err := h.payoutService.Get(c.Request.Context(), payoutID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// List godoc
// @ID           listPayouts
// @Summary      List payouts
// @Description  Retrieve a paginated payout list with optional filtering
// @Tags         payouts
// @Produce      json
// @Param        creator_id query string false "Filter by creator" format(uuid)
// @Param        status query string false "Payout status" Enums(DRAFT, PENDING_APPROVAL, APPROVED, PROCESSING, PAID, FAILED, CANCELED)
// @Param        held_only query bool false "Only payouts with active holds"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]payout.Payout]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /payouts [get]
func (h *PayoutHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	filter := payout.Filter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
			OrderBy:  listReq.OrderBy,
			OrderDir: listReq.OrderDir,
		},
		HeldOnly: c.Query("held_only") == "true",
	}

	if raw := c.Query("creator_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid creator_id format")
			return
		}
		filter.CreatorID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := payout.Status(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid payout status")
			return
		}
		filter.Status = &status
	}

	payouts, total, err := h.payoutService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, payouts, total, listReq.Page, listReq.PageSize)
}
