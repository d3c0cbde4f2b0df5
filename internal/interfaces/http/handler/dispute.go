package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	disputeapp "github.com/streamcart/backend/internal/application/dispute"
	"github.com/streamcart/backend/internal/domain/dispute"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// DisputeHandler handles dispute and evidence API endpoints
type DisputeHandler struct {
	BaseHandler
	disputeService *disputeapp.Service
}

// NewDisputeHandler creates a new DisputeHandler
func NewDisputeHandler(disputeService *disputeapp.Service) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
	}
}

// IngestDisputeRequest represents a provider dispute notification
// @Description Webhook payload announcing a dispute case
type IngestDisputeRequest struct {
	EventID          string `json:"event_id" binding:"max=200" example:"evt_1Nq3xK2eZvKYlo2C"`
	Channel          string `json:"channel" binding:"required,min=1,max=100" example:"tiktok_shop"`
	ProviderCaseID   string `json:"provider_case_id" binding:"required,min=1,max=200" example:"dp_1Nq3xK2eZvKYlo2C"`
	ProviderStatus   string `json:"provider_status" binding:"max=100" example:"needs_response"`
	AmountCents      int64  `json:"amount_cents" binding:"required,gt=0" example:"14900"`
	Currency         string `json:"currency" binding:"required,currency" example:"USD"`
	ReasonCode       string `json:"reason_code" binding:"required" example:"PRODUCT_NOT_RECEIVED"`
	EvidenceDeadline string `json:"evidence_deadline" binding:"required" example:"2026-09-05T23:59:59Z"`
	OrderID          string `json:"order_id" binding:"omitempty,uuid"`
}

// CommunicationRequest represents one buyer communication excerpt
// @Description One message excerpt attached as dispute evidence
type CommunicationRequest struct {
	Channel    string `json:"channel" binding:"required,min=1,max=100" example:"email"`
	Direction  string `json:"direction" binding:"required,oneof=inbound outbound" example:"outbound"`
	Excerpt    string `json:"excerpt" binding:"required,min=1" example:"your order shipped on the 12th"`
	OccurredAt string `json:"occurred_at" binding:"required" example:"2026-08-13T09:00:00Z"`
}

// EvidenceAttachmentRequest represents one uploaded evidence document
// @Description One evidence file to store alongside the pack
type EvidenceAttachmentRequest struct {
	Filename    string `json:"filename" binding:"required,min=1,max=300" example:"pod.pdf"`
	ContentType string `json:"content_type" binding:"required,min=1,max=200" example:"application/pdf"`
	Body        []byte `json:"body" binding:"required"`
}

// BuildEvidenceRequest represents fields to merge into the evidence pack
// @Description Request body for assembling dispute evidence. Omitted fields are left untouched.
type BuildEvidenceRequest struct {
	OrderSummary   string                      `json:"order_summary" binding:"max=5000"`
	Carrier        string                      `json:"carrier" binding:"max=100" example:"UPS"`
	TrackingNumber string                      `json:"tracking_number" binding:"max=100" example:"1Z999AA10123456784"`
	DeliveryProof  string                      `json:"delivery_proof" binding:"max=5000"`
	DeliveredAt    *string                     `json:"delivered_at"`
	Communications []CommunicationRequest      `json:"communications" binding:"dive"`
	PolicyText     string                      `json:"policy_text" binding:"max=10000"`
	RefundEvidence string                      `json:"refund_evidence" binding:"max=5000"`
	Attachments    []EvidenceAttachmentRequest `json:"attachments" binding:"dive"`
}

// ResolveDisputeRequest represents the provider's verdict on a case
// @Description Request body for recording a dispute outcome
type ResolveDisputeRequest struct {
	Won bool `json:"won" example:"true"`
}

// CancelDisputeRequest represents a request to abandon a case
// @Description Request body for canceling a dispute
type CancelDisputeRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"amount below contest threshold"`
}

// SweepDeadlinesRequest represents a deadline sweep invocation
// @Description Request body for the evidence deadline sweep
type SweepDeadlinesRequest struct {
	WithinHours int `json:"within_hours" binding:"omitempty,min=1" example:"48"`
}

// Ingest godoc
// @ID           ingestDispute
// @Summary      Ingest a dispute notification
// @Description  Record a provider webhook. Redelivered events are dropped, and a known (channel, provider, case) updates the existing dispute instead of opening a second one.
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        provider path string true "Payment provider" example(stripe)
// @Param        request body IngestDisputeRequest true "Dispute notification"
// @Success      201 {object} APIResponse[dispute.Dispute]
// @Success      200 {object} APIResponse[dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /webhooks/disputes/{provider} [post]
func (h *DisputeHandler) Ingest(c *gin.Context) {
	provider := c.Param("provider")
	if provider == "" {
		h.BadRequest(c, "Provider is required")
		return
	}

	var req IngestDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.EvidenceDeadline)
	if err != nil {
		h.BadRequest(c, "Invalid evidence_deadline, expected RFC3339")
		return
	}

	appReq := disputeapp.IngestRequest{
		EventID:          req.EventID,
		Channel:          req.Channel,
		Provider:         provider,
		ProviderCaseID:   req.ProviderCaseID,
		ProviderStatus:   req.ProviderStatus,
		AmountCents:      req.AmountCents,
		Currency:         valueobject.Currency(req.Currency),
		ReasonCode:       dispute.ReasonCode(req.ReasonCode),
		EvidenceDeadline: deadline,
	}
	if req.OrderID != "" {
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			h.BadRequest(c, "Invalid order ID format")
			return
		}
		appReq.OrderID = &orderID
	}

	d, created, err := h.disputeService.IngestCase(c.Request.Context(), appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if created {
		h.Created(c, d)
		return
	}
	h.Success(c, d)
}

// BuildEvidence godoc
// @ID           buildDisputeEvidence
// @Summary      Assemble dispute evidence
// @Description  Merge input into the dispute's evidence pack and try to finalize it. An incomplete pack reports its missing fields instead of failing, so evidence can be assembled over several calls.
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user ID" format(uuid)
// @Param        id path string true "Dispute ID" format(uuid)
// @Param        request body BuildEvidenceRequest true "Evidence input"
// @Success      200 {object} APIResponse[disputeapp.BuildEvidenceResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/evidence [post]
func (h *DisputeHandler) BuildEvidence(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	var req BuildEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	input := disputeapp.EvidenceInput{
		OrderSummary:   req.OrderSummary,
		Carrier:        req.Carrier,
		TrackingNumber: req.TrackingNumber,
		DeliveryProof:  req.DeliveryProof,
		PolicyText:     req.PolicyText,
		RefundEvidence: req.RefundEvidence,
	}
	if req.DeliveredAt != nil {
		deliveredAt, err := time.Parse(time.RFC3339, *req.DeliveredAt)
		if err != nil {
			h.BadRequest(c, "Invalid delivered_at, expected RFC3339")
			return
		}
		input.DeliveredAt = &deliveredAt
	}
	for _, comm := range req.Communications {
		occurredAt, err := time.Parse(time.RFC3339, comm.OccurredAt)
		if err != nil {
			h.BadRequest(c, "Invalid communication occurred_at, expected RFC3339")
			return
		}
		input.Communications = append(input.Communications, dispute.Communication{
			Channel:    comm.Channel,
			Direction:  comm.Direction,
			Excerpt:    comm.Excerpt,
			OccurredAt: occurredAt,
		})
	}
	for _, att := range req.Attachments {
		input.Attachments = append(input.Attachments, disputeapp.AttachmentInput{
			Filename:    att.Filename,
			ContentType: att.ContentType,
			Body:        att.Body,
		})
	}

	actor := actorFromContext(c)

	result, err := h.disputeService.BuildEvidence(c.Request.Context(), disputeID, input, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Submit godoc
// @ID           submitDisputeEvidence
// @Summary      Submit dispute evidence
// @Description  Send the finalized evidence pack to the provider before the deadline
// @Tags         disputes
// @Produce      json
// @Param        X-User-ID header string false "Acting user ID" format(uuid)
// @Param        id path string true "Dispute ID" format(uuid)
// @Success      200 {object} APIResponse[dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/submit [post]
func (h *DisputeHandler) Submit(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	d, err := h.disputeService.Submit(c.Request.Context(), disputeID, actorFromContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, d)
}

// Resolve godoc
// @ID           resolveDispute
// @Summary      Record a dispute outcome
// @Description  Record the provider's WON or LOST verdict on a submitted case
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user ID" format(uuid)
// @Param        id path string true "Dispute ID" format(uuid)
// @Param        request body ResolveDisputeRequest true "Outcome"
// @Success      200 {object} APIResponse[dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/resolve [post]
func (h *DisputeHandler) Resolve(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	d, err := h.disputeService.Resolve(c.Request.Context(), disputeID, req.Won, actorFromContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, d)
}

// Close godoc
// @ID           closeDispute
// @Summary      Close a resolved dispute
// @Description  Archive a WON or LOST case once its ledger effects are posted
// @Tags         disputes
// @Produce      json
// @Param        X-User-ID header string false "Acting user ID" format(uuid)
// @Param        id path string true "Dispute ID" format(uuid)
// @Success      200 {object} APIResponse[dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/close [post]
func (h *DisputeHandler) Close(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	d, err := h.disputeService.Close(c.Request.Context(), disputeID, actorFromContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, d)
}

// Cancel godoc
// @ID           cancelDispute
// @Summary      Cancel a dispute
// @Description  Walk away from a case. Cancellation is a governed action: forfeiting a contestable amount may be denied by policy.
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string false "Acting user ID" format(uuid)
// @Param        id path string true "Dispute ID" format(uuid)
// @Param        request body CancelDisputeRequest true "Cancellation request"
// @Success      200 {object} APIResponse[disputeapp.CancelResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/cancel [post]
func (h *DisputeHandler) Cancel(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	var req CancelDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.disputeService.Cancel(c.Request.Context(), disputeID, req.Reason, actorFromContext(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// SweepDeadlines godoc
// @ID           sweepDisputeDeadlines
// @Summary      Sweep approaching evidence deadlines
// @Description  Flag non-terminal disputes whose evidence deadline falls inside the window and escalate the ones needing manual attention
// @Tags         disputes
// @Accept       json
// @Produce      json
// @Param        request body SweepDeadlinesRequest false "Sweep options"
// @Success      200 {object} APIResponse[disputeapp.DeadlineReport]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/sweeps [post]
func (h *DisputeHandler) SweepDeadlines(c *gin.Context) {
	var req SweepDeadlinesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	within := time.Duration(req.WithinHours) * time.Hour

	report, err := h.disputeService.SweepDeadlines(c.Request.Context(), within)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// GetByID godoc
// @ID           getDisputeById
// @Summary      Get a dispute
// @Description  Retrieve one dispute with its timeline
// @Tags         disputes
// @Produce      json
// @Param        id path string true "Dispute ID" format(uuid)
// @Success      200 {object} APIResponse[dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id} [get]
func (h *DisputeHandler) GetByID(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	d, err := h.disputeService.Get(c.Request.Context(), disputeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, d)
}

// GetEvidencePack godoc
// @ID           getDisputeEvidencePack
// @Summary      Get a dispute's evidence pack
// @Description  Retrieve the evidence pack assembled for a dispute
// @Tags         disputes
// @Produce      json
// @Param        id path string true "Dispute ID" format(uuid)
// @Success      200 {object} APIResponse[dispute.EvidencePack]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes/{id}/evidence [get]
func (h *DisputeHandler) GetEvidencePack(c *gin.Context) {
	disputeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid dispute ID format")
		return
	}

	pack, err := h.disputeService.GetEvidencePack(c.Request.Context(), disputeID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, pack)
}

// List godoc
// @ID           listDisputes
// @Summary      List disputes
// @Description  Retrieve a paginated dispute list with optional filtering
// @Tags         disputes
// @Produce      json
// @Param        provider query string false "Filter by provider" example(stripe)
// @Param        status query string false "Dispute status" Enums(OPEN, EVIDENCE_REQUIRED, EVIDENCE_BUILDING, EVIDENCE_READY, SUBMITTED, WON, LOST, CLOSED, NEEDS_MANUAL, CANCELED)
// @Param        needs_manual query bool false "Only disputes flagged for manual attention"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]dispute.Dispute]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /disputes [get]
func (h *DisputeHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	filter := dispute.Filter{
		Filter: shared.Filter{
			Page:     listReq.Page,
			PageSize: listReq.PageSize,
			OrderBy:  listReq.OrderBy,
			OrderDir: listReq.OrderDir,
		},
		Provider: c.Query("provider"),
	}

	if raw := c.Query("status"); raw != "" {
		status := dispute.Status(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid dispute status")
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("needs_manual"); raw != "" {
		needsManual := raw == "true"
		filter.NeedsManual = &needsManual
	}

	disputes, total, err := h.disputeService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, disputes, total, listReq.Page, listReq.PageSize)
}

// actorFromContext resolves the optional acting user for audit entries
func actorFromContext(c *gin.Context) *uuid.UUID {
	userID, err := getUserID(c)
	if err != nil {
		return nil
	}
	return &userID
}
