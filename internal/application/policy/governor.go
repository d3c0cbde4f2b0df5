package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Outcome is the result class of a policy check
type Outcome string

const (
	OutcomeAllowed          Outcome = "ALLOWED"
	OutcomeDenied           Outcome = "DENIED"
	OutcomeRequiresApproval Outcome = "REQUIRES_APPROVAL"
)

// Decision is the first-class result of a policy check. Denial and
// approval-pending are not errors; the caller branches on Outcome.
type Decision struct {
	Outcome    Outcome    `json:"outcome"`
	Reason     string     `json:"reason,omitempty"`
	PolicyID   *uuid.UUID `json:"policy_id,omitempty"`
	RuleID     *uuid.UUID `json:"rule_id,omitempty"`
	ApprovalID *uuid.UUID `json:"approval_id,omitempty"`
}

// Allowed reports whether the action may proceed now
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllowed
}

// Governor gate-checks sensitive actions against active policies.
// Every evaluation failure is treated as a denial, never an implicit
// allow.
type Governor struct {
	policyRepo   policy.Repository
	approvalRepo policy.ApprovalRepository
	incidentRepo policy.IncidentRepository
	approvalTTL  time.Duration
	logger       *zap.Logger
}

// NewGovernor creates a Governor
func NewGovernor(
	policyRepo policy.Repository,
	approvalRepo policy.ApprovalRepository,
	incidentRepo policy.IncidentRepository,
	approvalTTL time.Duration,
	logger *zap.Logger,
) *Governor {
	if approvalTTL <= 0 {
		approvalTTL = 24 * time.Hour
	}
	return &Governor{
		policyRepo:   policyRepo,
		approvalRepo: approvalRepo,
		incidentRepo: incidentRepo,
		approvalTTL:  approvalTTL,
		logger:       logger,
	}
}

// log returns the governor logger enriched with the trace and request
// correlation fields carried by ctx.
func (g *Governor) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, g.logger)
}

// CheckPolicy evaluates every rule of every applicable active policy
// against the action context. Any matching deny rule short-circuits to
// denial and raises an incident before any require-approval rule is
// considered; if no deny matches but a require-approval rule does, a
// pending approval is created with an expiry.
func (g *Governor) CheckPolicy(ctx context.Context, action string, actionCtx policy.Context) (*Decision, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "policy", "check_policy")
	defer span.End()
	telemetry.SetAttribute(span, "action", action)

	if action == "" {
		return nil, shared.NewDomainError("INVALID_ACTION", "Policy check requires an action")
	}
	if actionCtx == nil {
		actionCtx = policy.Context{}
	}
	actionCtx["action"] = action

	policies, err := g.policyRepo.FindActive(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return g.failClosed(ctx, action, actionCtx, nil, nil,
			fmt.Sprintf("failed to load active policies: %v", err)), nil
	}

	applicable := make([]*policy.Policy, 0, len(policies))
	for _, p := range policies {
		if p.AppliesTo(actionCtx) {
			applicable = append(applicable, p)
		}
	}

	// Deny rules first, across all applicable policies
	for _, p := range applicable {
		for _, rule := range p.Rules {
			if rule.Effect != policy.EffectDeny {
				continue
			}
			matched, err := rule.Matches(actionCtx)
			if err != nil {
				telemetry.RecordError(span, err)
				return g.failClosed(ctx, action, actionCtx, &p.ID, &rule.ID,
					fmt.Sprintf("rule evaluation failed: %v", err)), nil
			}
			if matched {
				return g.deny(ctx, action, actionCtx, p, rule), nil
			}
		}
	}

	// Then require-approval rules
	for _, p := range applicable {
		for _, rule := range p.Rules {
			if rule.Effect != policy.EffectRequireApproval {
				continue
			}
			matched, err := rule.Matches(actionCtx)
			if err != nil {
				telemetry.RecordError(span, err)
				return g.failClosed(ctx, action, actionCtx, &p.ID, &rule.ID,
					fmt.Sprintf("rule evaluation failed: %v", err)), nil
			}
			if matched {
				return g.requireApproval(ctx, action, actionCtx, p, rule)
			}
		}
	}

	telemetry.AddEvent(span, "policy_allowed")
	return &Decision{Outcome: OutcomeAllowed}, nil
}

func (g *Governor) deny(ctx context.Context, action string, actionCtx policy.Context, p *policy.Policy, rule policy.Rule) *Decision {
	reason := rule.Description
	if reason == "" {
		reason = fmt.Sprintf("denied by policy %s", p.Name)
	}

	inc, err := policy.NewIncident(policy.IncidentPolicyViolation, policy.IncidentSeverityWarning,
		action, reason, marshalContext(actionCtx))
	if err == nil {
		inc.WithPolicy(p.ID, rule.ID)
		if err := g.incidentRepo.Save(ctx, inc); err != nil {
			g.log(ctx).Error("failed to record policy violation incident",
				zap.String("action", action), zap.Error(err))
		}
	}

	g.log(ctx).Warn("policy denied action",
		zap.String("action", action),
		zap.String("policy", p.Name),
		zap.String("reason", reason))

	return &Decision{
		Outcome:  OutcomeDenied,
		Reason:   reason,
		PolicyID: &p.ID,
		RuleID:   &rule.ID,
	}
}

func (g *Governor) requireApproval(ctx context.Context, action string, actionCtx policy.Context, p *policy.Policy, rule policy.Rule) (*Decision, error) {
	approval, err := policy.NewApproval(action, p.ID, rule.ID, nil,
		marshalContext(actionCtx), time.Now().UTC().Add(g.approvalTTL))
	if err != nil {
		return g.failClosed(ctx, action, actionCtx, &p.ID, &rule.ID,
			fmt.Sprintf("failed to create approval: %v", err)), nil
	}
	if err := g.approvalRepo.Save(ctx, approval); err != nil {
		return g.failClosed(ctx, action, actionCtx, &p.ID, &rule.ID,
			fmt.Sprintf("failed to persist approval: %v", err)), nil
	}

	reason := rule.Description
	if reason == "" {
		reason = fmt.Sprintf("approval required by policy %s", p.Name)
	}

	return &Decision{
		Outcome:    OutcomeRequiresApproval,
		Reason:     reason,
		PolicyID:   &p.ID,
		RuleID:     &rule.ID,
		ApprovalID: &approval.ID,
	}, nil
}

// failClosed records an evaluation failure incident and returns a denial
func (g *Governor) failClosed(ctx context.Context, action string, actionCtx policy.Context, policyID, ruleID *uuid.UUID, reason string) *Decision {
	inc, err := policy.NewIncident(policy.IncidentEvaluationFailure, policy.IncidentSeverityCritical,
		action, reason, marshalContext(actionCtx))
	if err == nil {
		if policyID != nil && ruleID != nil {
			inc.WithPolicy(*policyID, *ruleID)
		}
		if err := g.incidentRepo.Save(ctx, inc); err != nil {
			g.log(ctx).Error("failed to record evaluation failure incident",
				zap.String("action", action), zap.Error(err))
		}
	}

	g.log(ctx).Error("policy evaluation failed closed",
		zap.String("action", action),
		zap.String("reason", reason))

	return &Decision{
		Outcome:  OutcomeDenied,
		Reason:   reason,
		PolicyID: policyID,
		RuleID:   ruleID,
	}
}

// GrantApproval records a human grant. The governed action does not
// resume automatically; the caller re-runs the policy check and then
// consumes the grant.
func (g *Governor) GrantApproval(ctx context.Context, approvalID, decidedBy uuid.UUID) (*policy.Approval, error) {
	approval, err := g.approvalRepo.FindByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("APPROVAL_NOT_FOUND", "Approval not found")
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	if err := approval.Grant(decidedBy, time.Now().UTC()); err != nil {
		// an expired grant attempt mutates the record to EXPIRED; persist it
		if saveErr := g.approvalRepo.SaveWithLock(ctx, approval); saveErr != nil {
			g.log(ctx).Error("failed to persist expired approval",
				zap.String("approval_id", approvalID.String()), zap.Error(saveErr))
		}
		return nil, err
	}
	if err := g.approvalRepo.SaveWithLock(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}
	return approval, nil
}

// RejectApproval records a human rejection with a reason
func (g *Governor) RejectApproval(ctx context.Context, approvalID, decidedBy uuid.UUID, reason string) (*policy.Approval, error) {
	approval, err := g.approvalRepo.FindByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("APPROVAL_NOT_FOUND", "Approval not found")
		}
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	if err := approval.Reject(decidedBy, reason, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := g.approvalRepo.SaveWithLock(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}
	return approval, nil
}

// ConsumeApproval marks a granted approval as used. Each grant backs at
// most one execution of the governed action.
func (g *Governor) ConsumeApproval(ctx context.Context, approvalID uuid.UUID) error {
	approval, err := g.approvalRepo.FindByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("APPROVAL_NOT_FOUND", "Approval not found")
		}
		return fmt.Errorf("failed to get approval: %w", err)
	}

	if err := approval.Consume(time.Now().UTC()); err != nil {
		return err
	}
	if err := g.approvalRepo.SaveWithLock(ctx, approval); err != nil {
		return fmt.Errorf("failed to save approval: %w", err)
	}
	return nil
}

// RecordIncident writes an incident on behalf of another service, e.g.
// a detected ledger imbalance
func (g *Governor) RecordIncident(ctx context.Context, kind policy.IncidentKind, severity policy.IncidentSeverity, action, reason string, subjectID *uuid.UUID) (*policy.Incident, error) {
	inc, err := policy.NewIncident(kind, severity, action, reason, "{}")
	if err != nil {
		return nil, err
	}
	if subjectID != nil {
		inc.WithSubject(*subjectID)
	}
	if err := g.incidentRepo.Save(ctx, inc); err != nil {
		return nil, fmt.Errorf("failed to save incident: %w", err)
	}

	g.log(ctx).Error("incident recorded",
		zap.String("kind", string(kind)),
		zap.String("severity", string(severity)),
		zap.String("action", action),
		zap.String("reason", reason))

	return inc, nil
}

func marshalContext(actionCtx policy.Context) string {
	data, err := json.Marshal(actionCtx)
	if err != nil {
		return "{}"
	}
	return string(data)
}
