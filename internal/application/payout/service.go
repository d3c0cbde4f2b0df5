package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	ledgerapp "github.com/streamcart/backend/internal/application/ledger"
	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/payout"
	domainpolicy "github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconciliationChecker reports whether a business object's ledger
// transactions are reconciled against the external feed
type ReconciliationChecker interface {
	IsSourceReconciled(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) (bool, error)
}

// RiskScorer produces a risk score in [0,1] for a payout. The scoring
// model itself lives outside the core; only its output contract matters
// here.
type RiskScorer interface {
	ScorePayout(ctx context.Context, p *payout.Payout) (float64, error)
}

// Config tunes the payout pipeline
type Config struct {
	// CashAccountCode is the ledger account debited when payouts clear
	CashAccountCode string
	// CreatorAccountPrefix prefixes per-creator payable account codes
	CreatorAccountPrefix string
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		CashAccountCode:      "1000",
		CreatorAccountPrefix: "2100-creator-",
	}
}

// Service runs the payout pipeline: draft computation, approval
// gating, and dispatch through the payment rail.
type Service struct {
	payoutRepo  payout.Repository
	accountRepo ledger.AccountRepository
	ledgerTxns  ledger.TransactionRepository
	ledgerSvc   *ledgerapp.Service
	governor    *policyapp.Governor
	recon       ReconciliationChecker
	scorer      RiskScorer
	rail        payout.Rail
	cfg         Config
	logger      *zap.Logger
}

// NewService creates a payout Service
func NewService(
	payoutRepo payout.Repository,
	accountRepo ledger.AccountRepository,
	ledgerTxns ledger.TransactionRepository,
	ledgerSvc *ledgerapp.Service,
	governor *policyapp.Governor,
	recon ReconciliationChecker,
	scorer RiskScorer,
	rail payout.Rail,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.CashAccountCode == "" {
		cfg = DefaultConfig()
	}
	return &Service{
		payoutRepo:  payoutRepo,
		accountRepo: accountRepo,
		ledgerTxns:  ledgerTxns,
		ledgerSvc:   ledgerSvc,
		governor:    governor,
		recon:       recon,
		scorer:      scorer,
		rail:        rail,
		cfg:         cfg,
		logger:      logger,
	}
}

// log returns the service logger enriched with the trace and request
// correlation fields carried by ctx.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.logger)
}

// publishEvents emits the domain events drained from a persisted
// aggregate. There is no broker yet; events go to the log where the
// audit trail picks them up.
func (s *Service) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	for _, ev := range events {
		s.log(ctx).Debug("domain event",
			zap.String("event_type", ev.EventType()),
			zap.String("aggregate_type", ev.AggregateType()),
			zap.String("aggregate_id", ev.AggregateID().String()))
	}
}

// CreatorAccountCode derives the payable account code for a creator
func (s *Service) CreatorAccountCode(creatorID uuid.UUID) string {
	return s.cfg.CreatorAccountPrefix + creatorID.String()
}

// CreateDraft computes a draft payout from the ledger entries tagged to
// the creator's payable account for the period. Idempotent per creator
// and period: a second call returns the existing draft.
func (s *Service) CreateDraft(ctx context.Context, creatorID uuid.UUID, periodStart, periodEnd time.Time, destinationRef string) (*payout.Payout, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payout", "create_draft")
	defer span.End()
	telemetry.SetAttribute(span, "creator_id", creatorID.String())

	existing, err := s.payoutRepo.FindByCreatorAndPeriod(ctx, creatorID, periodStart, periodEnd)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing payout: %w", err)
	}
	if existing != nil && existing.Status != payout.StatusCanceled {
		telemetry.AddEvent(span, "existing_draft_returned")
		return existing, nil
	}

	account, err := s.accountRepo.FindByCode(ctx, s.CreatorAccountCode(creatorID))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("CREATOR_ACCOUNT_NOT_FOUND",
				"No payable account exists for this creator")
		}
		return nil, fmt.Errorf("failed to get creator account: %w", err)
	}

	p, err := payout.NewDraft(creatorID, periodStart, periodEnd, account.Currency, destinationRef)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerTxns.FindEntriesForAccount(ctx, account.ID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entries: %w", err)
	}
	for _, e := range entries {
		// Credits to the payable account are negative; a creator earning
		// therefore contributes a positive gross.
		switch e.SourceType {
		case ledger.SourceTypeOrder:
			err = p.AddItem(string(e.SourceType), e.SourceID, e.Memo, -e.AmountCents, 0, 0)
		case ledger.SourceTypeFee:
			err = p.AddItem(string(e.SourceType), e.SourceID, e.Memo, 0, e.AmountCents, 0)
		case ledger.SourceTypeAdjustment, ledger.SourceTypeRefund, ledger.SourceTypeDispute:
			err = p.AddItem(string(e.SourceType), e.SourceID, e.Memo, 0, 0, -e.AmountCents)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	if err := s.payoutRepo.Save(ctx, p); err != nil {
		// A concurrent call won the insert race; return its draft to keep
		// the operation idempotent per creator and period.
		if errors.Is(err, shared.ErrAlreadyExists) {
			winner, findErr := s.payoutRepo.FindByCreatorAndPeriod(ctx, creatorID, periodStart, periodEnd)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load concurrent payout: %w", findErr)
			}
			telemetry.AddEvent(span, "existing_draft_returned")
			return winner, nil
		}
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}

	s.publishEvents(ctx, p.DrainEvents())
	s.log(ctx).Info("payout draft created",
		zap.String("payout_id", p.ID.String()),
		zap.String("creator_id", creatorID.String()),
		zap.Int64("net_cents", p.NetCents))

	return p, nil
}

// SubmitResult carries the payout together with the policy decision
type SubmitResult struct {
	Payout   *payout.Payout      `json:"payout"`
	Decision *policyapp.Decision `json:"decision"`
}

// SubmitForApproval gate-checks the draft. Allowed drafts advance to
// APPROVED, denials stay DRAFT with the reason recorded, and an
// approval requirement parks the payout in PENDING_APPROVAL.
func (s *Service) SubmitForApproval(ctx context.Context, payoutID uuid.UUID) (*SubmitResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payout", "submit_for_approval")
	defer span.End()

	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != payout.StatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot submit payout in %s status", p.Status))
	}

	reconciled, err := s.itemsReconciled(ctx, p)
	if err != nil {
		return nil, err
	}
	riskScore, err := s.scorer.ScorePayout(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to score payout: %w", err)
	}

	decision, err := s.governor.CheckPolicy(ctx, "payout", domainpolicy.Context{
		"amount_cents": p.NetCents,
		"reconciled":   reconciled,
		"risk_score":   riskScore,
		"creator_id":   p.CreatorID.String(),
	})
	if err != nil {
		return nil, err
	}

	switch decision.Outcome {
	case policyapp.OutcomeAllowed:
		if err := p.MarkApproved(); err != nil {
			return nil, err
		}
	case policyapp.OutcomeDenied:
		if err := p.MarkDenied(decision.Reason); err != nil {
			return nil, err
		}
	case policyapp.OutcomeRequiresApproval:
		if err := p.MarkPendingApproval(*decision.ApprovalID); err != nil {
			return nil, err
		}
	}

	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return &SubmitResult{Payout: p, Decision: decision}, nil
}

// itemsReconciled reports whether every contributing source is reconciled
func (s *Service) itemsReconciled(ctx context.Context, p *payout.Payout) (bool, error) {
	for _, item := range p.Items {
		ok, err := s.recon.IsSourceReconciled(ctx, ledger.SourceType(item.SourceType), item.SourceID)
		if err != nil {
			return false, fmt.Errorf("failed to check reconciliation: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return len(p.Items) > 0, nil
}

// Resume advances a PENDING_APPROVAL payout after its approval was
// granted. The grant is consumed and the policy check re-runs, so a
// deny rule added since submission still blocks the payout.
func (s *Service) Resume(ctx context.Context, payoutID uuid.UUID) (*SubmitResult, error) {
	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != payout.StatusPendingApproval || p.ApprovalID == nil {
		return nil, shared.NewDomainError("INVALID_STATE",
			"Payout is not awaiting approval")
	}

	if err := s.governor.ConsumeApproval(ctx, *p.ApprovalID); err != nil {
		return nil, err
	}

	reconciled, err := s.itemsReconciled(ctx, p)
	if err != nil {
		return nil, err
	}
	riskScore, err := s.scorer.ScorePayout(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to score payout: %w", err)
	}

	decision, err := s.governor.CheckPolicy(ctx, "payout", domainpolicy.Context{
		"amount_cents": p.NetCents,
		"reconciled":   reconciled,
		"risk_score":   riskScore,
		"creator_id":   p.CreatorID.String(),
	})
	if err != nil {
		return nil, err
	}

	// The consumed grant satisfies a renewed approval requirement; only
	// a deny outcome blocks.
	if decision.Outcome == policyapp.OutcomeDenied {
		if err := p.MarkDenied(decision.Reason); err != nil {
			return nil, err
		}
	} else {
		if err := p.MarkApproved(); err != nil {
			return nil, err
		}
	}

	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return &SubmitResult{Payout: p, Decision: decision}, nil
}

// Process executes an APPROVED payout: the clearing transaction posts
// through the idempotency store, the payout moves to PROCESSING, and
// only then is the rail called, outside any database transaction. The
// rail outcome is recorded afterwards as PAID or FAILED.
func (s *Service) Process(ctx context.Context, payoutID uuid.UUID, idempotencyKey string) (*payout.Payout, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payout", "process")
	defer span.End()

	if idempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY",
			"Payout processing requires an idempotency key")
	}

	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != payout.StatusApproved {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot process payout in %s status", p.Status))
	}
	if p.IsHeld() {
		return nil, shared.NewDomainError("PAYOUT_HELD", "Cannot process a held payout")
	}
	if p.NetCents <= 0 {
		return nil, shared.NewDomainError("NON_POSITIVE_NET",
			"Payout net amount must be positive")
	}

	creatorAccount, err := s.accountRepo.FindByCode(ctx, s.CreatorAccountCode(p.CreatorID))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND",
				"Payout clearing accounts are not configured")
		}
		return nil, fmt.Errorf("failed to get creator account: %w", err)
	}
	cashAccount, err := s.accountRepo.FindByCode(ctx, s.cfg.CashAccountCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND",
				"Payout clearing accounts are not configured")
		}
		return nil, fmt.Errorf("failed to get cash account: %w", err)
	}

	txnID := uuid.New()
	postResult, err := s.ledgerSvc.PostTransaction(ctx, ledgerapp.PostTransactionRequest{
		TxnID:          txnID,
		IdempotencyKey: idempotencyKey,
		Description:    fmt.Sprintf("Payout %s to creator %s", p.ID, p.CreatorID),
		Entries: []ledgerapp.EntryInput{
			{
				AccountID:   creatorAccount.ID,
				AmountCents: p.NetCents,
				Currency:    p.Currency,
				SourceType:  ledger.SourceTypePayout,
				SourceID:    p.ID,
				Memo:        "creator liability cleared",
			},
			{
				AccountID:   cashAccount.ID,
				AmountCents: -p.NetCents,
				Currency:    p.Currency,
				SourceType:  ledger.SourceTypePayout,
				SourceID:    p.ID,
				Memo:        "payout dispatched",
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if postResult.Transaction == nil {
		return nil, shared.NewDomainError("POSTING_BLOCKED",
			fmt.Sprintf("Ledger posting blocked: %s", postResult.Decision.Reason))
	}

	if err := p.BeginProcessing(postResult.Transaction.TxnID); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}

	// Rail call happens after the state transition is committed and
	// outside any database transaction.
	dispatch, railErr := s.rail.Dispatch(ctx, payout.DispatchRequest{
		PayoutID:       p.ID,
		DestinationRef: p.DestinationRef,
		AmountCents:    p.NetCents,
		Currency:       string(p.Currency),
		IdempotencyKey: idempotencyKey,
	})
	if railErr != nil {
		telemetry.RecordError(span, railErr)
		if err := p.MarkFailed(railErr.Error()); err != nil {
			return nil, err
		}
		if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
			return nil, fmt.Errorf("failed to save payout: %w", err)
		}
		s.publishEvents(ctx, p.DrainEvents())
		s.log(ctx).Warn("payout dispatch failed",
			zap.String("payout_id", p.ID.String()),
			zap.Error(railErr))
		return p, nil
	}

	if err := p.MarkPaid(dispatch.ProviderRef); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}

	s.publishEvents(ctx, p.DrainEvents())
	s.log(ctx).Info("payout paid",
		zap.String("payout_id", p.ID.String()),
		zap.String("provider_ref", dispatch.ProviderRef))

	return p, nil
}

// Retry returns a FAILED payout to APPROVED. The caller then processes
// it again with a fresh idempotency key; the failed attempt's key is
// never reused.
func (s *Service) Retry(ctx context.Context, payoutID uuid.UUID) (*payout.Payout, error) {
	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if err := p.Retry(); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return p, nil
}

// ApplyHold suspends payout processing
func (s *Service) ApplyHold(ctx context.Context, payoutID uuid.UUID, holdType payout.HoldType, reason string, appliedBy uuid.UUID) (*payout.Hold, error) {
	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	hold, err := p.ApplyHold(holdType, reason, appliedBy)
	if err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return hold, nil
}

// ReleaseHold lifts a hold; the releasing user must differ from the one
// that applied it
func (s *Service) ReleaseHold(ctx context.Context, payoutID, holdID, releasedBy uuid.UUID, reason string) (*payout.Payout, error) {
	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if err := p.ReleaseHold(holdID, releasedBy, reason); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return p, nil
}

// CancelResult carries the payout together with the policy decision
type CancelResult struct {
	Payout   *payout.Payout      `json:"payout"`
	Decision *policyapp.Decision `json:"decision"`
}

// Cancel terminates a non-terminal payout. Cancellation is itself a
// governed action.
func (s *Service) Cancel(ctx context.Context, payoutID uuid.UUID, reason string, approvalID *uuid.UUID) (*CancelResult, error) {
	p, err := s.getPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}

	decision, err := s.governor.CheckPolicy(ctx, "payout.cancel", domainpolicy.Context{
		"amount_cents": p.NetCents,
		"status":       p.Status.String(),
	})
	if err != nil {
		return nil, err
	}
	if decision.Outcome == policyapp.OutcomeRequiresApproval && approvalID != nil {
		if err := s.governor.ConsumeApproval(ctx, *approvalID); err != nil {
			return nil, err
		}
	} else if !decision.Allowed() {
		return &CancelResult{Payout: p, Decision: decision}, nil
	}

	if err := p.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.payoutRepo.SaveWithLock(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}
	return &CancelResult{Payout: p, Decision: decision}, nil
}

// Get returns one payout
func (s *Service) Get(ctx context.Context, payoutID uuid.UUID) (*payout.Payout, error) {
	return s.getPayout(ctx, payoutID)
}

// List returns payouts matching the filter
func (s *Service) List(ctx context.Context, filter payout.Filter) ([]*payout.Payout, int64, error) {
	payouts, err := s.payoutRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payouts: %w", err)
	}
	count, err := s.payoutRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}
	return payouts, count, nil
}

func (s *Service) getPayout(ctx context.Context, payoutID uuid.UUID) (*payout.Payout, error) {
	p, err := s.payoutRepo.FindByID(ctx, payoutID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("PAYOUT_NOT_FOUND", "Payout not found")
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// FixedRiskScorer returns a constant score, for deployments without an
// external scoring model
type FixedRiskScorer struct {
	Score float64
}

// ScorePayout implements RiskScorer
func (f FixedRiskScorer) ScorePayout(_ context.Context, _ *payout.Payout) (float64, error) {
	return f.Score, nil
}

var _ RiskScorer = FixedRiskScorer{}
