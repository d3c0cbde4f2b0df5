package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Built-in policy names. These exist as ordinary policy rows so they can
// be listed, audited and versioned, but they are seeded at boot and
// start active.
const (
	BuiltinReconciliationGuard = "payout-reconciliation-guard"
	BuiltinRiskGuard           = "payout-risk-guard"
	BuiltinApprovalThreshold   = "amount-approval-threshold"
)

// BuiltinConfig carries the operator-tunable operands of the built-in
// policies
type BuiltinConfig struct {
	ApprovalAmountCents int64
	MaxRiskScore        float64
}

type builtinSpec struct {
	name        string
	description string
	rule        func(cfg BuiltinConfig) (policy.Rule, error)
}

var builtinSpecs = []builtinSpec{
	{
		name:        BuiltinReconciliationGuard,
		description: "Payouts post only when their period is fully reconciled",
		rule: func(BuiltinConfig) (policy.Rule, error) {
			return policy.NewRule("Period is not fully reconciled",
				policy.EffectDeny, "reconciled", policy.OpEquals, policy.BoolValue(false))
		},
	},
	{
		name:        BuiltinRiskGuard,
		description: "Payouts scoring above the configured risk ceiling are denied",
		rule: func(cfg BuiltinConfig) (policy.Rule, error) {
			return policy.NewRule("Risk score exceeds the configured ceiling",
				policy.EffectDeny, "risk_score", policy.OpAtLeast,
				policy.NumberValue(decimal.NewFromFloat(cfg.MaxRiskScore)))
		},
	},
	{
		name:        BuiltinApprovalThreshold,
		description: "Amounts at or above the configured threshold require human approval",
		rule: func(cfg BuiltinConfig) (policy.Rule, error) {
			return policy.NewRule("Amount is at or above the approval threshold",
				policy.EffectRequireApproval, "amount_cents", policy.OpAtLeast,
				policy.NumberValueFromInt(cfg.ApprovalAmountCents))
		},
	},
}

// EnsureBuiltinPolicies seeds the built-in policies on a fresh store.
// An existing row wins, even when an operator has deactivated or edited
// it, so reboots never fight operator changes.
func (a *Admin) EnsureBuiltinPolicies(ctx context.Context, cfg BuiltinConfig) error {
	for _, spec := range builtinSpecs {
		existing, err := a.policyRepo.FindByName(ctx, spec.name)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("failed to look up policy %s: %w", spec.name, err)
		}
		if existing != nil {
			continue
		}

		p, err := policy.NewPolicy(spec.name, spec.description, policy.ScopeGlobal, "")
		if err != nil {
			return err
		}
		rule, err := spec.rule(cfg)
		if err != nil {
			return err
		}
		p.AddRule(rule)

		if err := a.policyRepo.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to seed policy %s: %w", spec.name, err)
		}
		a.log(ctx).Info("built-in policy seeded",
			zap.String("policy_id", p.ID.String()),
			zap.String("name", p.Name))
	}
	return nil
}
