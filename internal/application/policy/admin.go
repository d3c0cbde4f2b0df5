package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
)

// RuleInput is the operator-facing shape of a policy rule
type RuleInput struct {
	Description string          `json:"description"`
	Effect      policy.Effect   `json:"effect"`
	FieldPath   string          `json:"field_path"`
	Op          policy.Operator `json:"op"`
	Value       policy.Value    `json:"value"`
}

// CreatePolicyRequest creates a policy with an initial rule set.
// Policies start inactive; activation is a separate deliberate step.
type CreatePolicyRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Scope       policy.Scope `json:"scope"`
	ScopeRef    string       `json:"scope_ref"`
	Rules       []RuleInput  `json:"rules"`
}

// Admin manages the policy catalog and operator review queues. The
// Governor evaluates; Admin is how humans change what gets evaluated.
type Admin struct {
	policyRepo   policy.Repository
	approvalRepo policy.ApprovalRepository
	incidentRepo policy.IncidentRepository
	logger       *zap.Logger
}

// NewAdmin creates a policy Admin
func NewAdmin(
	policyRepo policy.Repository,
	approvalRepo policy.ApprovalRepository,
	incidentRepo policy.IncidentRepository,
	logger *zap.Logger,
) *Admin {
	return &Admin{
		policyRepo:   policyRepo,
		approvalRepo: approvalRepo,
		incidentRepo: incidentRepo,
		logger:       logger,
	}
}

// log returns the admin logger enriched with the trace and request
// correlation fields carried by ctx.
func (a *Admin) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, a.logger)
}

// CreatePolicy registers a new inactive policy with its rules
func (a *Admin) CreatePolicy(ctx context.Context, req CreatePolicyRequest) (*policy.Policy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "policy", "create_policy")
	defer span.End()

	p, err := policy.NewPolicy(req.Name, req.Description, req.Scope, req.ScopeRef)
	if err != nil {
		return nil, err
	}

	for _, in := range req.Rules {
		rule, err := policy.NewRule(in.Description, in.Effect, in.FieldPath, in.Op, in.Value)
		if err != nil {
			return nil, err
		}
		p.AddRule(rule)
	}
	// Operator-created policies take effect only on explicit activation.
	p.Deactivate()

	if err := a.policyRepo.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}

	a.log(ctx).Info("policy created",
		zap.String("policy_id", p.ID.String()),
		zap.String("name", p.Name),
		zap.Int("rules", len(p.Rules)),
	)
	return p, nil
}

// UpdateRules replaces the rule set of a policy under optimistic locking
func (a *Admin) UpdateRules(ctx context.Context, policyID uuid.UUID, inputs []RuleInput) (*policy.Policy, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "policy", "update_rules")
	defer span.End()

	p, err := a.getPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	rules := make([]policy.Rule, 0, len(inputs))
	for _, in := range inputs {
		rule, err := policy.NewRule(in.Description, in.Effect, in.FieldPath, in.Op, in.Value)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	p.ReplaceRules(rules)

	if err := a.policyRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}

	a.log(ctx).Info("policy rules replaced",
		zap.String("policy_id", p.ID.String()),
		zap.Int("rules", len(p.Rules)),
	)
	return p, nil
}

// ActivatePolicy puts a policy into enforcement
func (a *Admin) ActivatePolicy(ctx context.Context, policyID uuid.UUID) (*policy.Policy, error) {
	return a.setActive(ctx, policyID, true)
}

// DeactivatePolicy removes a policy from enforcement without deleting it
func (a *Admin) DeactivatePolicy(ctx context.Context, policyID uuid.UUID) (*policy.Policy, error) {
	return a.setActive(ctx, policyID, false)
}

func (a *Admin) setActive(ctx context.Context, policyID uuid.UUID, active bool) (*policy.Policy, error) {
	p, err := a.getPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	if active {
		p.Activate()
	} else {
		p.Deactivate()
	}

	if err := a.policyRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save policy: %w", err)
	}

	a.log(ctx).Info("policy activation changed",
		zap.String("policy_id", p.ID.String()),
		zap.Bool("active", p.Active),
	)
	return p, nil
}

// GetPolicy returns a policy by ID
func (a *Admin) GetPolicy(ctx context.Context, policyID uuid.UUID) (*policy.Policy, error) {
	return a.getPolicy(ctx, policyID)
}

// ListPolicies returns policies with pagination
func (a *Admin) ListPolicies(ctx context.Context, filter shared.Filter) ([]*policy.Policy, error) {
	return a.policyRepo.FindAll(ctx, filter)
}

// ListPendingApprovals returns the operator review queue
func (a *Admin) ListPendingApprovals(ctx context.Context, filter shared.Filter) ([]*policy.Approval, error) {
	return a.approvalRepo.FindPending(ctx, filter)
}

// ListIncidents returns incidents, optionally only unacknowledged ones
func (a *Admin) ListIncidents(ctx context.Context, filter shared.Filter, unacknowledgedOnly bool) ([]*policy.Incident, error) {
	if unacknowledgedOnly {
		return a.incidentRepo.FindUnacknowledged(ctx, filter)
	}
	return a.incidentRepo.FindAll(ctx, filter)
}

// AcknowledgeIncident records the operator who took ownership
func (a *Admin) AcknowledgeIncident(ctx context.Context, incidentID, userID uuid.UUID) (*policy.Incident, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "policy", "acknowledge_incident")
	defer span.End()

	inc, err := a.incidentRepo.FindByID(ctx, incidentID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("INCIDENT_NOT_FOUND", "Incident not found")
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	if err := inc.Acknowledge(userID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := a.incidentRepo.Save(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to save incident: %w", err)
	}
	return inc, nil
}

func (a *Admin) getPolicy(ctx context.Context, policyID uuid.UUID) (*policy.Policy, error) {
	p, err := a.policyRepo.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("POLICY_NOT_FOUND", "Policy not found")
		}
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}
