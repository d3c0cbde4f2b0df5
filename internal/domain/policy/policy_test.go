package policy_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireDomainError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func mustRule(t *testing.T, effect policy.Effect, field string, op policy.Operator, value policy.Value) policy.Rule {
	t.Helper()
	rule, err := policy.NewRule("", effect, field, op, value)
	require.NoError(t, err)
	return rule
}

func TestRuleMatches(t *testing.T) {
	tests := []struct {
		name    string
		rule    policy.Rule
		ctx     policy.Context
		want    bool
		wantErr bool
	}{
		{
			name: "number at least matches",
			rule: mustRule(t, policy.EffectRequireApproval, "amount_cents", policy.OpAtLeast, policy.NumberValueFromInt(500000)),
			ctx:  policy.Context{"amount_cents": int64(750000)},
			want: true,
		},
		{
			name: "number below threshold does not match",
			rule: mustRule(t, policy.EffectRequireApproval, "amount_cents", policy.OpAtLeast, policy.NumberValueFromInt(500000)),
			ctx:  policy.Context{"amount_cents": int64(499999)},
			want: false,
		},
		{
			name: "bool equality matches",
			rule: mustRule(t, policy.EffectDeny, "reconciled", policy.OpEquals, policy.BoolValue(false)),
			ctx:  policy.Context{"reconciled": false},
			want: true,
		},
		{
			name: "missing field never matches",
			rule: mustRule(t, policy.EffectDeny, "reconciled", policy.OpEquals, policy.BoolValue(false)),
			ctx:  policy.Context{"action": "payout"},
			want: false,
		},
		{
			name: "string in list",
			rule: mustRule(t, policy.EffectRequireApproval, "action", policy.OpIn, policy.ListValue("refund", "payout")),
			ctx:  policy.Context{"action": "refund"},
			want: true,
		},
		{
			name:    "type mismatch is an error",
			rule:    mustRule(t, policy.EffectDeny, "amount_cents", policy.OpAtLeast, policy.NumberValueFromInt(100)),
			ctx:     policy.Context{"amount_cents": struct{}{}},
			wantErr: true,
		},
		{
			name:    "operator not applicable to bool",
			rule:    mustRule(t, policy.EffectDeny, "reconciled", policy.OpGreaterThan, policy.BoolValue(true)),
			ctx:     policy.Context{"reconciled": true},
			wantErr: true,
		},
		{
			name: "float context value compares numerically",
			rule: mustRule(t, policy.EffectDeny, "risk_score", policy.OpGreaterThan, policy.NumberValueFromInt(0)),
			ctx:  policy.Context{"risk_score": 0.82},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Matches(tt.ctx)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPolicy(t *testing.T) {
	t.Run("global policy", func(t *testing.T) {
		p, err := policy.NewPolicy("payout-reconciliation-gate", "", policy.ScopeGlobal, "")
		require.NoError(t, err)
		assert.True(t, p.Active)
		assert.True(t, p.AppliesTo(policy.Context{"action": "payout"}))
	})

	t.Run("scoped policy requires scope ref", func(t *testing.T) {
		_, err := policy.NewPolicy("agent-limits", "", policy.ScopeAgent, "")
		requireDomainError(t, err, "INVALID_SCOPE_REF")
	})

	t.Run("scoped policy applies only to its ref", func(t *testing.T) {
		p, err := policy.NewPolicy("workflow-limits", "", policy.ScopeWorkflow, "payout-run")
		require.NoError(t, err)
		assert.True(t, p.AppliesTo(policy.Context{"workflow": "payout-run"}))
		assert.False(t, p.AppliesTo(policy.Context{"workflow": "dispute-run"}))
		assert.False(t, p.AppliesTo(policy.Context{}))
	})

	t.Run("inactive policy never applies", func(t *testing.T) {
		p, err := policy.NewPolicy("old-gate", "", policy.ScopeGlobal, "")
		require.NoError(t, err)
		p.Deactivate()
		assert.False(t, p.AppliesTo(policy.Context{"action": "payout"}))
	})
}

func TestApproval(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	expiry := now.Add(24 * time.Hour)

	newApproval := func(t *testing.T) *policy.Approval {
		t.Helper()
		a, err := policy.NewApproval("payout", uuid.New(), uuid.New(), nil, `{"amount_cents":750000}`, expiry)
		require.NoError(t, err)
		return a
	}

	t.Run("grant then consume once", func(t *testing.T) {
		a := newApproval(t)
		require.NoError(t, a.Grant(uuid.New(), now))
		assert.Equal(t, policy.ApprovalStatusGranted, a.Status)

		require.NoError(t, a.Consume(now.Add(time.Hour)))
		err := a.Consume(now.Add(2 * time.Hour))
		requireDomainError(t, err, "APPROVAL_CONSUMED")
	})

	t.Run("grant after expiry is a denial", func(t *testing.T) {
		a := newApproval(t)
		err := a.Grant(uuid.New(), expiry.Add(time.Minute))
		requireDomainError(t, err, "APPROVAL_EXPIRED")
		assert.Equal(t, policy.ApprovalStatusExpired, a.Status)
	})

	t.Run("consume after expiry is a denial", func(t *testing.T) {
		a := newApproval(t)
		require.NoError(t, a.Grant(uuid.New(), now))
		err := a.Consume(expiry.Add(time.Minute))
		requireDomainError(t, err, "APPROVAL_EXPIRED")
	})

	t.Run("reject requires reason", func(t *testing.T) {
		a := newApproval(t)
		requireDomainError(t, a.Reject(uuid.New(), "", now), "INVALID_REASON")
		require.NoError(t, a.Reject(uuid.New(), "amount not justified", now))
		assert.Equal(t, policy.ApprovalStatusRejected, a.Status)
	})

	t.Run("decided approval cannot be re-decided", func(t *testing.T) {
		a := newApproval(t)
		require.NoError(t, a.Grant(uuid.New(), now))
		requireDomainError(t, a.Reject(uuid.New(), "changed my mind", now), "INVALID_STATE")
	})

	t.Run("expire only past the deadline", func(t *testing.T) {
		a := newApproval(t)
		requireDomainError(t, a.Expire(now), "NOT_EXPIRED")
		require.NoError(t, a.Expire(expiry))
		assert.Equal(t, policy.ApprovalStatusExpired, a.Status)
	})
}

func TestIncident(t *testing.T) {
	now := time.Now().UTC()

	t.Run("acknowledge once", func(t *testing.T) {
		inc, err := policy.NewIncident(policy.IncidentLedgerImbalance, policy.IncidentSeverityCritical,
			"postTransaction", "entries sum to -150 cents for USD", `{}`)
		require.NoError(t, err)

		require.NoError(t, inc.Acknowledge(uuid.New(), now))
		err = inc.Acknowledge(uuid.New(), now)
		requireDomainError(t, err, "ALREADY_ACKNOWLEDGED")
	})

	t.Run("reason required", func(t *testing.T) {
		_, err := policy.NewIncident(policy.IncidentPolicyViolation, policy.IncidentSeverityWarning, "payout", "", `{}`)
		requireDomainError(t, err, "INVALID_REASON")
	})
}
