package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/interfaces/http/dto"
)

// PolicyHandler handles policy, approval, and incident API endpoints
type PolicyHandler struct {
	BaseHandler
	admin    *policyapp.Admin
	governor *policyapp.Governor
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(admin *policyapp.Admin, governor *policyapp.Governor) *PolicyHandler {
	return &PolicyHandler{
		admin:    admin,
		governor: governor,
	}
}

// RuleRequest represents one rule of a policy
// @Description One condition a governed action is checked against
type RuleRequest struct {
	Description string       `json:"description" binding:"max=500" example:"large payouts need a second pair of eyes"`
	Effect      string       `json:"effect" binding:"required,oneof=DENY REQUIRE_APPROVAL" example:"REQUIRE_APPROVAL"`
	FieldPath   string       `json:"field_path" binding:"required,min=1,max=200" example:"amount_cents"`
	Op          string       `json:"op" binding:"required,oneof=EQ NEQ GT GTE LT LTE IN CONTAINS" example:"GTE"`
	Value       policy.Value `json:"value" binding:"required"`
}

// CreatePolicyHTTPRequest represents a request to create a policy
// @Description Request body for creating a policy with its initial rules. Policies start inactive.
type CreatePolicyHTTPRequest struct {
	Name        string        `json:"name" binding:"required,min=1,max=200" example:"payout-approval-threshold"`
	Description string        `json:"description" binding:"max=1000"`
	Scope       string        `json:"scope" binding:"required,oneof=GLOBAL ORG_UNIT AGENT WORKFLOW" example:"WORKFLOW"`
	ScopeRef    string        `json:"scope_ref" binding:"max=200" example:"payout"`
	Rules       []RuleRequest `json:"rules" binding:"required,min=1,dive"`
}

// UpdateRulesRequest represents a full replacement of a policy's rules
// @Description Request body for replacing a policy's rule set
type UpdateRulesRequest struct {
	Rules []RuleRequest `json:"rules" binding:"required,min=1,dive"`
}

// RejectApprovalRequest represents a reviewer's rejection
// @Description Request body for rejecting a pending approval
type RejectApprovalRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500" example:"amount not justified by period earnings"`
}

// Create godoc
// @ID           createPolicy
// @Summary      Create a policy
// @Description  Create a policy with its initial rules. Policies start inactive; activation is a separate step.
// @Tags         policies
// @Accept       json
// @Produce      json
// @Param        request body CreatePolicyHTTPRequest true "Policy creation request"
// @Success      201 {object} APIResponse[policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies [post]
func (h *PolicyHandler) Create(c *gin.Context) {
	var req CreatePolicyHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.admin.CreatePolicy(c.Request.Context(), policyapp.CreatePolicyRequest{
		Name:        req.Name,
		Description: req.Description,
		Scope:       policy.Scope(req.Scope),
		ScopeRef:    req.ScopeRef,
		Rules:       toRuleInputs(req.Rules),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, p)
}

// UpdateRules godoc
// @ID           updatePolicyRules
// @Summary      Replace a policy's rules
// @Description  Swap the policy's rule set atomically under optimistic locking
// @Tags         policies
// @Accept       json
// @Produce      json
// @Param        id path string true "Policy ID" format(uuid)
// @Param        request body UpdateRulesRequest true "New rule set"
// @Success      200 {object} APIResponse[policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies/{id}/rules [put]
func (h *PolicyHandler) UpdateRules(c *gin.Context) {
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid policy ID format")
		return
	}

	var req UpdateRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.admin.UpdateRules(c.Request.Context(), policyID, toRuleInputs(req.Rules))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Activate godoc
// @ID           activatePolicy
// @Summary      Activate a policy
// @Description  Put the policy into enforcement
// @Tags         policies
// @Produce      json
// @Param        id path string true "Policy ID" format(uuid)
// @Success      200 {object} APIResponse[policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies/{id}/activate [post]
func (h *PolicyHandler) Activate(c *gin.Context) {
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid policy ID format")
		return
	}

	p, err := h.admin.ActivatePolicy(c.Request.Context(), policyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// Deactivate godoc
// @ID           deactivatePolicy
// @Summary      Deactivate a policy
// @Description  Take the policy out of enforcement without deleting it
// @Tags         policies
// @Produce      json
// @Param        id path string true "Policy ID" format(uuid)
// @Success      200 {object} APIResponse[policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies/{id}/deactivate [post]
func (h *PolicyHandler) Deactivate(c *gin.Context) {
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid policy ID format")
		return
	}

	p, err := h.admin.DeactivatePolicy(c.Request.Context(), policyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// GetByID godoc
// @ID           getPolicyById
// @Summary      Get a policy
// @Description  Retrieve one policy with its rules
// @Tags         policies
// @Produce      json
// @Param        id path string true "Policy ID" format(uuid)
// @Success      200 {object} APIResponse[policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies/{id} [get]
func (h *PolicyHandler) GetByID(c *gin.Context) {
	policyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid policy ID format")
		return
	}

	p, err := h.admin.GetPolicy(c.Request.Context(), policyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, p)
}

// List godoc
// @ID           listPolicies
// @Summary      List policies
// @Description  Retrieve the policy catalog
// @Tags         policies
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]policy.Policy]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /policies [get]
func (h *PolicyHandler) List(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	policies, err := h.admin.ListPolicies(c.Request.Context(), shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, policies)
}

// ListApprovals godoc
// @ID           listPendingApprovals
// @Summary      List pending approvals
// @Description  Retrieve the approvals waiting for a reviewer decision
// @Tags         approvals
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]policy.Approval]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /approvals [get]
func (h *PolicyHandler) ListApprovals(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	approvals, err := h.admin.ListPendingApprovals(c.Request.Context(), shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, approvals)
}

// GrantApproval godoc
// @ID           grantApproval
// @Summary      Grant a pending approval
// @Description  Approve the blocked action. The approval is single-use and consumed when the action resumes.
// @Tags         approvals
// @Produce      json
// @Param        X-User-ID header string true "Reviewer user ID" format(uuid)
// @Param        id path string true "Approval ID" format(uuid)
// @Success      200 {object} APIResponse[policy.Approval]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /approvals/{id}/grant [post]
func (h *PolicyHandler) GrantApproval(c *gin.Context) {
	approvalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid approval ID format")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	approval, err := h.governor.GrantApproval(c.Request.Context(), approvalID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, approval)
}

// RejectApproval godoc
// @ID           rejectApproval
// @Summary      Reject a pending approval
// @Description  Reject the blocked action with the reviewer's reason
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Param        X-User-ID header string true "Reviewer user ID" format(uuid)
// @Param        id path string true "Approval ID" format(uuid)
// @Param        request body RejectApprovalRequest true "Rejection reason"
// @Success      200 {object} APIResponse[policy.Approval]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /approvals/{id}/reject [post]
func (h *PolicyHandler) RejectApproval(c *gin.Context) {
	approvalID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid approval ID format")
		return
	}

	var req RejectApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	approval, err := h.governor.RejectApproval(c.Request.Context(), approvalID, userID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, approval)
}

// ListIncidents godoc
// @ID           listIncidents
// @Summary      List incidents
// @Description  Retrieve governance incidents, optionally only the unacknowledged ones
// @Tags         incidents
// @Produce      json
// @Param        unacknowledged query bool false "Only unacknowledged incidents"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]policy.Incident]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /incidents [get]
func (h *PolicyHandler) ListIncidents(c *gin.Context) {
	var listReq dto.ListRequest
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BindError(c, err)
		return
	}
	listReq.Normalize()

	incidents, err := h.admin.ListIncidents(c.Request.Context(), shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}, c.Query("unacknowledged") == "true")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, incidents)
}

// AcknowledgeIncident godoc
// @ID           acknowledgeIncident
// @Summary      Acknowledge an incident
// @Description  Mark an incident as seen by an operator
// @Tags         incidents
// @Produce      json
// @Param        X-User-ID header string true "Acting user ID" format(uuid)
// @Param        id path string true "Incident ID" format(uuid)
// @Success      200 {object} APIResponse[policy.Incident]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /incidents/{id}/acknowledge [post]
func (h *PolicyHandler) AcknowledgeIncident(c *gin.Context) {
	incidentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid incident ID format")
		return
	}

	userID, err := getUserID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing user ID")
		return
	}

	incident, err := h.admin.AcknowledgeIncident(c.Request.Context(), incidentID, userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, incident)
}

// toRuleInputs converts HTTP rule requests into the application form
func toRuleInputs(rules []RuleRequest) []policyapp.RuleInput {
	inputs := make([]policyapp.RuleInput, 0, len(rules))
	for _, r := range rules {
		inputs = append(inputs, policyapp.RuleInput{
			Description: r.Description,
			Effect:      policy.Effect(r.Effect),
			FieldPath:   r.FieldPath,
			Op:          policy.Operator(r.Op),
			Value:       r.Value,
		})
	}
	return inputs
}
