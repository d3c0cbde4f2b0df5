package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/dispute"
	"github.com/streamcart/backend/internal/domain/ledger"
	domainpolicy "github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockDisputeRepository struct {
	mock.Mock
}

func (m *MockDisputeRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispute.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) FindByProviderCase(ctx context.Context, channel, provider, providerCaseID string) (*dispute.Dispute, error) {
	args := m.Called(ctx, channel, provider, providerCaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispute.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) FindAll(ctx context.Context, filter dispute.Filter) ([]*dispute.Dispute, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dispute.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) FindApproachingDeadline(ctx context.Context, cutoff time.Time) ([]*dispute.Dispute, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*dispute.Dispute), args.Error(1)
}

func (m *MockDisputeRepository) Count(ctx context.Context, filter dispute.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDisputeRepository) Save(ctx context.Context, d *dispute.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDisputeRepository) SaveWithLock(ctx context.Context, d *dispute.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

type MockPackRepository struct {
	mock.Mock
}

func (m *MockPackRepository) FindByID(ctx context.Context, id uuid.UUID) (*dispute.EvidencePack, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispute.EvidencePack), args.Error(1)
}

func (m *MockPackRepository) FindByDisputeID(ctx context.Context, disputeID uuid.UUID) (*dispute.EvidencePack, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispute.EvidencePack), args.Error(1)
}

func (m *MockPackRepository) Save(ctx context.Context, p *dispute.EvidencePack) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) FindByTxnID(ctx context.Context, txnID uuid.UUID) (*ledger.Transaction, error) {
	args := m.Called(ctx, txnID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ExistsByTxnID(ctx context.Context, txnID uuid.UUID) (bool, error) {
	args := m.Called(ctx, txnID)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransactionRepository) FindAll(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) FindEntriesBySource(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) ([]ledger.Entry, error) {
	args := m.Called(ctx, sourceType, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockTransactionRepository) FindTxnIDsBySource(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, sourceType, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockTransactionRepository) FindEntriesForAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]ledger.Entry, error) {
	args := m.Called(ctx, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Entry), args.Error(1)
}

func (m *MockTransactionRepository) SumForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) (int64, error) {
	args := m.Called(ctx, accountID, asOf)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) Save(ctx context.Context, txn *ledger.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) Count(ctx context.Context, filter ledger.TransactionFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

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
// Test doubles for ports
// =============================================================================

type stubDeduper struct {
	seen    bool
	err     error
	forgets *int
}

func (s stubDeduper) Seen(_ context.Context, _, _, _ string) (bool, error) {
	return s.seen, s.err
}

func (s stubDeduper) Forget(_ context.Context, _, _, _ string) error {
	if s.forgets != nil {
		*s.forgets++
	}
	return nil
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, key, contentType string, body []byte) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitEvidence(ctx context.Context, req dispute.SubmissionRequest) (*dispute.SubmissionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispute.SubmissionResult), args.Error(1)
}

// =============================================================================
// Fixture
// =============================================================================

type fixture struct {
	disputeRepo  *MockDisputeRepository
	packRepo     *MockPackRepository
	txnRepo      *MockTransactionRepository
	policyRepo   *MockPolicyRepository
	approvalRepo *MockApprovalRepository
	incidentRepo *MockIncidentRepository
	storage      *MockStorage
	submitter    *MockSubmitter
	svc          *Service
}

func newFixture(deduper stubDeduper) *fixture {
	f := &fixture{
		disputeRepo:  new(MockDisputeRepository),
		packRepo:     new(MockPackRepository),
		txnRepo:      new(MockTransactionRepository),
		policyRepo:   new(MockPolicyRepository),
		approvalRepo: new(MockApprovalRepository),
		incidentRepo: new(MockIncidentRepository),
		storage:      new(MockStorage),
		submitter:    new(MockSubmitter),
	}
	governor := policyapp.NewGovernor(f.policyRepo, f.approvalRepo, f.incidentRepo, 24*time.Hour, zap.NewNop())
	f.svc = NewService(f.disputeRepo, f.packRepo, f.txnRepo, governor, deduper, f.storage, f.submitter, zap.NewNop())
	return f
}

func ingestRequest() IngestRequest {
	return IngestRequest{
		EventID:          "evt-1",
		Channel:          "shop_live",
		Provider:         "stripe",
		ProviderCaseID:   "case-42",
		ProviderStatus:   "needs_response",
		AmountCents:      8500,
		Currency:         valueobject.USD,
		ReasonCode:       dispute.ReasonProductNotReceived,
		EvidenceDeadline: time.Now().UTC().Add(10 * 24 * time.Hour),
	}
}

func openDispute(t *testing.T, reason dispute.ReasonCode, deadline time.Time) *dispute.Dispute {
	t.Helper()
	d, err := dispute.NewDispute("shop_live", "stripe", "case-42", 8500, valueobject.USD, reason, deadline)
	require.NoError(t, err)
	return d
}

func readyDispute(t *testing.T, deadline time.Time) (*dispute.Dispute, *dispute.EvidencePack) {
	t.Helper()
	d := openDispute(t, dispute.ReasonProductNotReceived, deadline)
	pack, err := dispute.NewEvidencePack(d.ID, d.ReasonCode)
	require.NoError(t, err)
	require.NoError(t, pack.SetOrderSummary("Order #881, two items, shipped"))
	require.NoError(t, pack.SetShipment("UPS", "1Z999", "signed POD scan", nil))
	require.NoError(t, pack.Finalize())
	require.NoError(t, d.RequireEvidence(nil))
	require.NoError(t, d.BeginEvidence(pack.ID, nil))
	require.NoError(t, d.MarkEvidenceReady(nil))
	return d, pack
}

func requireDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, shared.AsDomainError(err, &domainErr), "expected domain error, got %v", err)
	assert.Equal(t, code, domainErr.Code)
}

// =============================================================================
// Ingestion
// =============================================================================

func TestIngestCase_OpensNewCaseAndAttachesOrder(t *testing.T) {
	f := newFixture(stubDeduper{})
	req := ingestRequest()
	orderID := uuid.New()
	req.OrderID = &orderID
	txnID := uuid.New()

	f.disputeRepo.On("FindByProviderCase", mock.Anything, req.Channel, req.Provider, req.ProviderCaseID).Return(nil, shared.ErrNotFound)
	f.txnRepo.On("FindTxnIDsBySource", mock.Anything, ledger.SourceTypeOrder, orderID).Return([]uuid.UUID{txnID}, nil)
	f.disputeRepo.On("Save", mock.Anything, mock.AnythingOfType("*dispute.Dispute")).Return(nil)

	d, created, err := f.svc.IngestCase(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, dispute.StatusOpen, d.Status)
	assert.Equal(t, "needs_response", d.ProviderStatus)
	require.NotNil(t, d.OrderID)
	assert.Equal(t, orderID, *d.OrderID)
	require.NotNil(t, d.LedgerTxnID)
	assert.Equal(t, txnID, *d.LedgerTxnID)
}

func TestIngestCase_RedeliveredEventIsDropped(t *testing.T) {
	f := newFixture(stubDeduper{seen: true})
	req := ingestRequest()
	existing := openDispute(t, req.ReasonCode, req.EvidenceDeadline)

	f.disputeRepo.On("FindByProviderCase", mock.Anything, req.Channel, req.Provider, req.ProviderCaseID).Return(existing, nil)

	d, created, err := f.svc.IngestCase(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, existing.ID, d.ID)
	f.disputeRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	f.disputeRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestIngestCase_SaveFailureReleasesDedupMark(t *testing.T) {
	forgets := 0
	f := newFixture(stubDeduper{forgets: &forgets})
	req := ingestRequest()

	f.disputeRepo.On("FindByProviderCase", mock.Anything, req.Channel, req.Provider, req.ProviderCaseID).Return(nil, shared.ErrNotFound)
	f.disputeRepo.On("Save", mock.Anything, mock.AnythingOfType("*dispute.Dispute")).Return(errors.New("connection reset"))

	_, _, err := f.svc.IngestCase(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 1, forgets, "a failed ingest must release the dedup mark")
}

func TestIngestCase_SuccessKeepsDedupMark(t *testing.T) {
	forgets := 0
	f := newFixture(stubDeduper{forgets: &forgets})
	req := ingestRequest()

	f.disputeRepo.On("FindByProviderCase", mock.Anything, req.Channel, req.Provider, req.ProviderCaseID).Return(nil, shared.ErrNotFound)
	f.disputeRepo.On("Save", mock.Anything, mock.AnythingOfType("*dispute.Dispute")).Return(nil)

	_, created, err := f.svc.IngestCase(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Zero(t, forgets)
}

func TestIngestCase_KnownCaseGetsProviderUpdate(t *testing.T) {
	f := newFixture(stubDeduper{})
	req := ingestRequest()
	req.EventID = "evt-2"
	req.ProviderStatus = "under_review"
	existing := openDispute(t, req.ReasonCode, req.EvidenceDeadline)
	timelineBefore := len(existing.Timeline)

	f.disputeRepo.On("FindByProviderCase", mock.Anything, req.Channel, req.Provider, req.ProviderCaseID).Return(existing, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, existing).Return(nil)

	d, created, err := f.svc.IngestCase(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, "under_review", d.ProviderStatus)
	assert.Equal(t, dispute.StatusOpen, d.Status)
	assert.Len(t, d.Timeline, timelineBefore+1)
}

// =============================================================================
// Evidence assembly
// =============================================================================

func TestBuildEvidence_IncompleteReportsMissingFields(t *testing.T) {
	f := newFixture(stubDeduper{})
	d := openDispute(t, dispute.ReasonProductNotReceived, time.Now().UTC().Add(240*time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.packRepo.On("FindByDisputeID", mock.Anything, d.ID).Return(nil, shared.ErrNotFound)
	f.packRepo.On("Save", mock.Anything, mock.AnythingOfType("*dispute.EvidencePack")).Return(nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)

	result, err := f.svc.BuildEvidence(context.Background(), d.ID, EvidenceInput{
		OrderSummary: "Order #881, two items, shipped",
	}, nil)
	require.NoError(t, err)

	assert.False(t, result.Ready)
	assert.ElementsMatch(t, []string{dispute.FieldTracking, dispute.FieldDeliveryProof}, result.Missing)
	assert.Equal(t, dispute.StatusEvidenceBuilding, d.Status)
	assert.Equal(t, dispute.PackStatusBuilding, result.Pack.Status)
}

func TestBuildEvidence_CompletePackBecomesReady(t *testing.T) {
	f := newFixture(stubDeduper{})
	d := openDispute(t, dispute.ReasonProductNotReceived, time.Now().UTC().Add(240*time.Hour))
	pack, err := dispute.NewEvidencePack(d.ID, d.ReasonCode)
	require.NoError(t, err)
	require.NoError(t, pack.SetOrderSummary("Order #881"))
	require.NoError(t, d.RequireEvidence(nil))
	require.NoError(t, d.BeginEvidence(pack.ID, nil))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.packRepo.On("FindByDisputeID", mock.Anything, d.ID).Return(pack, nil)
	f.storage.On("Put", mock.Anything, mock.Anything, "application/pdf", mock.Anything).Return(nil)
	f.packRepo.On("Save", mock.Anything, pack).Return(nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)

	result, err := f.svc.BuildEvidence(context.Background(), d.ID, EvidenceInput{
		Carrier:        "UPS",
		TrackingNumber: "1Z999",
		DeliveryProof:  "signed POD scan",
		Attachments: []AttachmentInput{
			{Filename: "pod.pdf", ContentType: "application/pdf", Body: []byte("%PDF-1.4")},
		},
	}, nil)
	require.NoError(t, err)

	assert.True(t, result.Ready)
	assert.Empty(t, result.Missing)
	assert.Equal(t, dispute.StatusEvidenceReady, d.Status)
	assert.Equal(t, dispute.PackStatusReady, pack.Status)
	require.Len(t, pack.Attachments, 1)
	assert.Contains(t, pack.Attachments[0].StorageKey, "pod.pdf")
	f.storage.AssertExpectations(t)
}

// =============================================================================
// Submission
// =============================================================================

func TestSubmit_DeliversEvidenceAndMarksSubmitted(t *testing.T) {
	f := newFixture(stubDeduper{})
	d, pack := readyDispute(t, time.Now().UTC().Add(72*time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.packRepo.On("FindByID", mock.Anything, pack.ID).Return(pack, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)
	f.submitter.On("SubmitEvidence", mock.Anything, mock.MatchedBy(func(req dispute.SubmissionRequest) bool {
		return req.DisputeID == d.ID && req.ProviderCaseID == d.ProviderCaseID
	})).Return(&dispute.SubmissionResult{ProviderRef: "sub-77"}, nil)
	f.packRepo.On("Save", mock.Anything, pack).Return(nil)

	result, err := f.svc.Submit(context.Background(), d.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, dispute.StatusSubmitted, result.Status)
	assert.NotNil(t, result.SubmittedAt)
	assert.Equal(t, dispute.PackStatusSubmitted, pack.Status)
	f.submitter.AssertExpectations(t)
}

func TestSubmit_PastDeadlineFailsClosedAndFlagsManual(t *testing.T) {
	f := newFixture(stubDeduper{})
	d, pack := readyDispute(t, time.Now().UTC().Add(-time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.packRepo.On("FindByID", mock.Anything, pack.ID).Return(pack, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)
	f.incidentRepo.On("Save", mock.Anything, mock.MatchedBy(func(inc *domainpolicy.Incident) bool {
		return inc.Kind == domainpolicy.IncidentInvalidTransition
	})).Return(nil)

	_, err := f.svc.Submit(context.Background(), d.ID, nil)
	requireDomainErrorCode(t, err, "DEADLINE_PASSED")

	assert.Equal(t, dispute.StatusNeedsManual, d.Status)
	assert.True(t, d.NeedsManual)
	f.submitter.AssertNotCalled(t, "SubmitEvidence", mock.Anything, mock.Anything)
	f.incidentRepo.AssertExpectations(t)
}

func TestSubmit_ProviderFailureFlagsManualWithoutError(t *testing.T) {
	f := newFixture(stubDeduper{})
	d, pack := readyDispute(t, time.Now().UTC().Add(72*time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.packRepo.On("FindByID", mock.Anything, pack.ID).Return(pack, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)
	f.submitter.On("SubmitEvidence", mock.Anything, mock.Anything).Return(nil, errors.New("provider 503"))

	result, err := f.svc.Submit(context.Background(), d.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, dispute.StatusNeedsManual, result.Status)
	assert.True(t, result.NeedsManual)
	f.packRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestSubmit_RequiresReadyPack(t *testing.T) {
	f := newFixture(stubDeduper{})
	d := openDispute(t, dispute.ReasonGeneral, time.Now().UTC().Add(72*time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)

	_, err := f.svc.Submit(context.Background(), d.ID, nil)
	requireDomainErrorCode(t, err, "NO_EVIDENCE_PACK")
}

// =============================================================================
// Resolution and cancellation
// =============================================================================

func TestResolve_WonFromSubmitted(t *testing.T) {
	f := newFixture(stubDeduper{})
	d, pack := readyDispute(t, time.Now().UTC().Add(72*time.Hour))
	require.NoError(t, d.Submit(time.Now().UTC(), nil))
	require.NoError(t, pack.MarkSubmitted(time.Now().UTC()))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)

	result, err := f.svc.Resolve(context.Background(), d.ID, true, nil)
	require.NoError(t, err)

	assert.Equal(t, dispute.StatusWon, result.Status)
	assert.NotNil(t, result.ResolvedAt)

	closed, err := f.svc.Close(context.Background(), d.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, dispute.StatusClosed, closed.Status)
}

func TestCancel_DeniedByPolicyLeavesDisputeUntouched(t *testing.T) {
	f := newFixture(stubDeduper{})
	d := openDispute(t, dispute.ReasonGeneral, time.Now().UTC().Add(72*time.Hour))

	rule, err := domainpolicy.NewRule("No walking away from large disputes", domainpolicy.EffectDeny,
		"amount_cents", domainpolicy.OpAtLeast, domainpolicy.NumberValueFromInt(5000))
	require.NoError(t, err)
	pol, err := domainpolicy.NewPolicy("dispute-cancel-gate", "", domainpolicy.ScopeGlobal, "")
	require.NoError(t, err)
	pol.AddRule(rule)
	pol.Activate()

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{pol}, nil)
	f.incidentRepo.On("Save", mock.Anything, mock.AnythingOfType("*policy.Incident")).Return(nil)

	result, err := f.svc.Cancel(context.Background(), d.ID, "not worth contesting", nil)
	require.NoError(t, err)

	assert.Equal(t, policyapp.OutcomeDenied, result.Decision.Outcome)
	assert.Equal(t, dispute.StatusOpen, result.Dispute.Status)
	f.disputeRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCancel_Allowed(t *testing.T) {
	f := newFixture(stubDeduper{})
	d := openDispute(t, dispute.ReasonGeneral, time.Now().UTC().Add(72*time.Hour))

	f.disputeRepo.On("FindByID", mock.Anything, d.ID).Return(d, nil)
	f.policyRepo.On("FindActive", mock.Anything).Return([]*domainpolicy.Policy{}, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, d).Return(nil)

	result, err := f.svc.Cancel(context.Background(), d.ID, "duplicate case", nil)
	require.NoError(t, err)

	assert.Equal(t, dispute.StatusCanceled, result.Dispute.Status)
}

// =============================================================================
// Deadline sweep
// =============================================================================

func TestSweepDeadlines_FlagsUnsubmittedCases(t *testing.T) {
	f := newFixture(stubDeduper{})
	deadline := time.Now().UTC().Add(24 * time.Hour)
	stale := openDispute(t, dispute.ReasonGeneral, deadline)

	submitted, pack := readyDispute(t, deadline)
	require.NoError(t, submitted.Submit(time.Now().UTC(), nil))
	require.NoError(t, pack.MarkSubmitted(time.Now().UTC()))

	alreadyFlagged := openDispute(t, dispute.ReasonGeneral, deadline)
	require.NoError(t, alreadyFlagged.FlagManual("ops request", nil))

	f.disputeRepo.On("FindApproachingDeadline", mock.Anything, mock.Anything).
		Return([]*dispute.Dispute{stale, submitted, alreadyFlagged}, nil)
	f.disputeRepo.On("SaveWithLock", mock.Anything, stale).Return(nil)

	report, err := f.svc.SweepDeadlines(context.Background(), 48*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Examined)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, dispute.StatusNeedsManual, stale.Status)
	f.disputeRepo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}
