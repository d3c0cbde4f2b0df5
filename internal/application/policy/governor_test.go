package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	domainpolicy "github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) FindByID(ctx context.Context, id uuid.UUID) (*domainpolicy.Policy, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainpolicy.Policy), args.Error(1)
}

func (m *MockPolicyRepository) FindByName(ctx context.Context, name string) (*domainpolicy.Policy, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainpolicy.Policy), args.Error(1)
}

func (m *MockPolicyRepository) FindActive(ctx context.Context) ([]*domainpolicy.Policy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainpolicy.Policy), args.Error(1)
}

func (m *MockPolicyRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*domainpolicy.Policy, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainpolicy.Policy), args.Error(1)
}

func (m *MockPolicyRepository) Save(ctx context.Context, p *domainpolicy.Policy) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPolicyRepository) SaveWithLock(ctx context.Context, p *domainpolicy.Policy) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockApprovalRepository struct {
	mock.Mock
}

func (m *MockApprovalRepository) FindByID(ctx context.Context, id uuid.UUID) (*domainpolicy.Approval, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainpolicy.Approval), args.Error(1)
}

func (m *MockApprovalRepository) FindPending(ctx context.Context, filter shared.Filter) ([]*domainpolicy.Approval, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainpolicy.Approval), args.Error(1)
}

func (m *MockApprovalRepository) Save(ctx context.Context, a *domainpolicy.Approval) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockApprovalRepository) SaveWithLock(ctx context.Context, a *domainpolicy.Approval) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type MockIncidentRepository struct {
	mock.Mock
}

func (m *MockIncidentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domainpolicy.Incident, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainpolicy.Incident), args.Error(1)
}

func (m *MockIncidentRepository) FindAll(ctx context.Context, filter shared.Filter) ([]*domainpolicy.Incident, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainpolicy.Incident), args.Error(1)
}

func (m *MockIncidentRepository) FindUnacknowledged(ctx context.Context, filter shared.Filter) ([]*domainpolicy.Incident, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domainpolicy.Incident), args.Error(1)
}

func (m *MockIncidentRepository) Save(ctx context.Context, i *domainpolicy.Incident) error {
	args := m.Called(ctx, i)
	return args.Error(0)
}

// =============================================================================
// Helpers
// =============================================================================

func newTestGovernor(policyRepo *MockPolicyRepository, approvalRepo *MockApprovalRepository, incidentRepo *MockIncidentRepository) *Governor {
	return NewGovernor(policyRepo, approvalRepo, incidentRepo, 24*time.Hour, zap.NewNop())
}

func mustPolicy(t *testing.T, name string, rules ...domainpolicy.Rule) *domainpolicy.Policy {
	t.Helper()
	p, err := domainpolicy.NewPolicy(name, "", domainpolicy.ScopeGlobal, "")
	require.NoError(t, err)
	for _, r := range rules {
		p.AddRule(r)
	}
	return p
}

func denyRule(t *testing.T, description, field string, op domainpolicy.Operator, value domainpolicy.Value) domainpolicy.Rule {
	t.Helper()
	r, err := domainpolicy.NewRule(description, domainpolicy.EffectDeny, field, op, value)
	require.NoError(t, err)
	return r
}

func approvalRule(t *testing.T, description, field string, op domainpolicy.Operator, value domainpolicy.Value) domainpolicy.Rule {
	t.Helper()
	r, err := domainpolicy.NewRule(description, domainpolicy.EffectRequireApproval, field, op, value)
	require.NoError(t, err)
	return r
}

// =============================================================================
// Tests
// =============================================================================

func TestCheckPolicy_Allowed(t *testing.T) {
	policyRepo := new(MockPolicyRepository)
	approvalRepo := new(MockApprovalRepository)
	incidentRepo := new(MockIncidentRepository)
	gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

	p := mustPolicy(t, "payout-reconciliation-gate",
		denyRule(t, "payouts require reconciled ledger entries", "reconciled",
			domainpolicy.OpEquals, domainpolicy.BoolValue(false)))
	policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{p}, nil)

	decision, err := gov.CheckPolicy(context.Background(), "payout", domainpolicy.Context{
		"amount_cents": int64(5000),
		"reconciled":   true,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, decision.Outcome)
	assert.True(t, decision.Allowed())
	incidentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestCheckPolicy_DenyShortCircuits(t *testing.T) {
	policyRepo := new(MockPolicyRepository)
	approvalRepo := new(MockApprovalRepository)
	incidentRepo := new(MockIncidentRepository)
	gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

	// both a deny and a require-approval rule match; deny must win
	p := mustPolicy(t, "payout-gates",
		denyRule(t, "payouts require reconciled ledger entries", "reconciled",
			domainpolicy.OpEquals, domainpolicy.BoolValue(false)),
		approvalRule(t, "large payouts require approval", "amount_cents",
			domainpolicy.OpAtLeast, domainpolicy.NumberValueFromInt(100000)))
	policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{p}, nil)
	incidentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	decision, err := gov.CheckPolicy(context.Background(), "payout", domainpolicy.Context{
		"amount_cents": int64(500000),
		"reconciled":   false,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, decision.Outcome)
	assert.Equal(t, "payouts require reconciled ledger entries", decision.Reason)
	approvalRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	incidentRepo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(inc *domainpolicy.Incident) bool {
		return inc.Kind == domainpolicy.IncidentPolicyViolation
	}))
}

func TestCheckPolicy_RequiresApproval(t *testing.T) {
	policyRepo := new(MockPolicyRepository)
	approvalRepo := new(MockApprovalRepository)
	incidentRepo := new(MockIncidentRepository)
	gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

	p := mustPolicy(t, "payout-approval",
		approvalRule(t, "large payouts require approval", "amount_cents",
			domainpolicy.OpAtLeast, domainpolicy.NumberValueFromInt(100000)))
	policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{p}, nil)
	approvalRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	decision, err := gov.CheckPolicy(context.Background(), "payout", domainpolicy.Context{
		"amount_cents": int64(250000),
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeRequiresApproval, decision.Outcome)
	require.NotNil(t, decision.ApprovalID)
	approvalRepo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(a *domainpolicy.Approval) bool {
		return a.Action == "payout" && a.Status == domainpolicy.ApprovalStatusPending
	}))
}

func TestCheckPolicy_FailClosed(t *testing.T) {
	t.Run("policy load failure denies", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		policyRepo.On("FindActive", mock.Anything).Return(nil, errors.New("connection refused"))
		incidentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		decision, err := gov.CheckPolicy(context.Background(), "payout", nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDenied, decision.Outcome)
		incidentRepo.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(inc *domainpolicy.Incident) bool {
			return inc.Kind == domainpolicy.IncidentEvaluationFailure
		}))
	})

	t.Run("rule evaluation error denies", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		p := mustPolicy(t, "bad-rule",
			denyRule(t, "", "amount_cents", domainpolicy.OpAtLeast, domainpolicy.NumberValueFromInt(100)))
		policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{p}, nil)
		incidentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

		// amount_cents carries a non-numeric value
		decision, err := gov.CheckPolicy(context.Background(), "payout", domainpolicy.Context{
			"amount_cents": struct{}{},
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDenied, decision.Outcome)
	})

	t.Run("incident write failure still denies", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		policyRepo.On("FindActive", mock.Anything).Return(nil, errors.New("connection refused"))
		incidentRepo.On("Save", mock.Anything, mock.Anything).Return(errors.New("also down"))

		decision, err := gov.CheckPolicy(context.Background(), "payout", nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeDenied, decision.Outcome)
	})
}

func TestCheckPolicy_ScopedPolicyIgnored(t *testing.T) {
	policyRepo := new(MockPolicyRepository)
	approvalRepo := new(MockApprovalRepository)
	incidentRepo := new(MockIncidentRepository)
	gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

	scoped, err := domainpolicy.NewPolicy("workflow-gate", "", domainpolicy.ScopeWorkflow, "dispute-run")
	require.NoError(t, err)
	scoped.AddRule(denyRule(t, "block everything", "action",
		domainpolicy.OpEquals, domainpolicy.StringValue("payout")))
	policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{scoped}, nil)

	decision, err := gov.CheckPolicy(context.Background(), "payout", domainpolicy.Context{
		"workflow": "payout-run",
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeAllowed, decision.Outcome)
}

func TestApprovalLifecycle(t *testing.T) {
	t.Run("grant and consume", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		approval, err := domainpolicy.NewApproval("payout", uuid.New(), uuid.New(), nil, "{}",
			time.Now().UTC().Add(time.Hour))
		require.NoError(t, err)

		approvalRepo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil)
		approvalRepo.On("SaveWithLock", mock.Anything, approval).Return(nil)

		granted, err := gov.GrantApproval(context.Background(), approval.ID, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, domainpolicy.ApprovalStatusGranted, granted.Status)

		require.NoError(t, gov.ConsumeApproval(context.Background(), approval.ID))
		assert.True(t, approval.Consumed)

		err = gov.ConsumeApproval(context.Background(), approval.ID)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "APPROVAL_CONSUMED", domainErr.Code)
	})

	t.Run("grant of expired approval fails and persists expiry", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		approval, err := domainpolicy.NewApproval("payout", uuid.New(), uuid.New(), nil, "{}",
			time.Now().UTC().Add(-time.Hour))
		require.NoError(t, err)

		approvalRepo.On("FindByID", mock.Anything, approval.ID).Return(approval, nil)
		approvalRepo.On("SaveWithLock", mock.Anything, approval).Return(nil)

		_, err = gov.GrantApproval(context.Background(), approval.ID, uuid.New())
		require.Error(t, err)
		assert.Equal(t, domainpolicy.ApprovalStatusExpired, approval.Status)
		approvalRepo.AssertCalled(t, "SaveWithLock", mock.Anything, approval)
	})

	t.Run("missing approval", func(t *testing.T) {
		policyRepo := new(MockPolicyRepository)
		approvalRepo := new(MockApprovalRepository)
		incidentRepo := new(MockIncidentRepository)
		gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

		approvalRepo.On("FindByID", mock.Anything, mock.Anything).Return(nil, shared.ErrNotFound)

		_, err := gov.GrantApproval(context.Background(), uuid.New(), uuid.New())
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "APPROVAL_NOT_FOUND", domainErr.Code)
	})
}

func TestRecordIncident(t *testing.T) {
	policyRepo := new(MockPolicyRepository)
	approvalRepo := new(MockApprovalRepository)
	incidentRepo := new(MockIncidentRepository)
	gov := newTestGovernor(policyRepo, approvalRepo, incidentRepo)

	incidentRepo.On("Save", mock.Anything, mock.Anything).Return(nil)

	subject := uuid.New()
	inc, err := gov.RecordIncident(context.Background(), domainpolicy.IncidentLedgerImbalance,
		domainpolicy.IncidentSeverityCritical, "postTransaction", "entries sum to -150 cents for USD", &subject)

	require.NoError(t, err)
	assert.Equal(t, domainpolicy.IncidentLedgerImbalance, inc.Kind)
	require.NotNil(t, inc.SubjectID)
	assert.Equal(t, subject, *inc.SubjectID)
}
