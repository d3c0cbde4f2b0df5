package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	policyapp "github.com/streamcart/backend/internal/application/policy"
	"github.com/streamcart/backend/internal/domain/idempotency"
	"github.com/streamcart/backend/internal/domain/ledger"
	domainpolicy "github.com/streamcart/backend/internal/domain/policy"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const idempotencyScopePost = "ledger.post"

// Service coordinates account management and double-entry posting
type Service struct {
	accountRepo ledger.AccountRepository
	txnRepo     ledger.TransactionRepository
	idemStore   idempotency.Store
	governor    *policyapp.Governor
	logger      *zap.Logger
}

// NewService creates a ledger Service
func NewService(
	accountRepo ledger.AccountRepository,
	txnRepo ledger.TransactionRepository,
	idemStore idempotency.Store,
	governor *policyapp.Governor,
	logger *zap.Logger,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		txnRepo:     txnRepo,
		idemStore:   idemStore,
		governor:    governor,
		logger:      logger,
	}
}

// log returns the service logger enriched with the trace and request
// correlation fields carried by ctx.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.logger)
}

// CreateAccountRequest carries the fields of a new account
type CreateAccountRequest struct {
	Code     string
	Name     string
	Type     ledger.AccountType
	Currency valueobject.Currency
}

// CreateAccount registers a chart-of-accounts entry
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (*ledger.Account, error) {
	existing, err := s.accountRepo.FindByCode(ctx, req.Code)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check account code: %w", err)
	}
	if existing != nil {
		return nil, shared.NewDomainError("ACCOUNT_CODE_EXISTS",
			fmt.Sprintf("Account code %s is already in use", req.Code))
	}

	account, err := ledger.NewAccount(req.Code, req.Name, req.Type, req.Currency)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	s.publishEvents(ctx, account.DrainEvents())
	return account, nil
}

// GetAccount returns one account by ID
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	account, err := s.accountRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND", "Account not found")
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns accounts matching the filter
func (s *Service) ListAccounts(ctx context.Context, filter shared.Filter) ([]ledger.Account, error) {
	return s.accountRepo.FindAll(ctx, filter)
}

// DeactivateAccount closes an account to new postings
func (s *Service) DeactivateAccount(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	account.Deactivate()
	if err := s.accountRepo.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	s.publishEvents(ctx, account.DrainEvents())
	return account, nil
}

// EntryInput is one debit or credit line of a posting request
type EntryInput struct {
	AccountID   uuid.UUID
	AmountCents int64
	Currency    valueobject.Currency
	SourceType  ledger.SourceType
	SourceID    uuid.UUID
	Memo        string
}

// PostTransactionRequest carries a posting request through the
// idempotency store
type PostTransactionRequest struct {
	TxnID          uuid.UUID
	IdempotencyKey string
	Description    string
	Entries        []EntryInput
	ApprovalID     *uuid.UUID
}

// PostTransactionResult is the outcome of a posting attempt. When the
// policy check does not allow the posting, Decision carries the denial
// or pending approval and Transaction is nil.
type PostTransactionResult struct {
	Transaction  *ledger.Transaction `json:"transaction,omitempty"`
	Decision     *policyapp.Decision `json:"decision,omitempty"`
	Deduplicated bool                `json:"deduplicated"`
}

// PostTransaction validates, gate-checks, and atomically persists a
// balanced group of entries. Repeat deliveries with the same idempotency
// key return the first outcome without re-posting.
func (s *Service) PostTransaction(ctx context.Context, req PostTransactionRequest) (*PostTransactionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "post_transaction")
	defer span.End()
	telemetry.SetAttribute(span, "txn_id", req.TxnID.String())

	if req.IdempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY",
			"Ledger posting requires an idempotency key")
	}
	if req.TxnID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TXN_ID", "Transaction ID cannot be empty")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	begin, err := s.idemStore.Begin(ctx, idempotencyScopePost, req.IdempotencyKey, idempotency.HashRequest(payload))
	if err != nil {
		return nil, err
	}
	if begin.Outcome == idempotency.OutcomeCompleted {
		var cached PostTransactionResult
		if err := json.Unmarshal(begin.Result, &cached); err != nil {
			return nil, fmt.Errorf("failed to decode stored result: %w", err)
		}
		cached.Deduplicated = true
		telemetry.AddEvent(span, "idempotent_replay")
		return &cached, nil
	}

	result, err := s.postTransaction(ctx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		if failErr := s.idemStore.Fail(ctx, idempotencyScopePost, req.IdempotencyKey, err); failErr != nil {
			s.log(ctx).Error("failed to mark idempotency key failed",
				zap.String("key", req.IdempotencyKey), zap.Error(failErr))
		}
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	if err := s.idemStore.Complete(ctx, idempotencyScopePost, req.IdempotencyKey, encoded); err != nil {
		return nil, fmt.Errorf("failed to complete idempotency key: %w", err)
	}

	return result, nil
}

func (s *Service) postTransaction(ctx context.Context, req PostTransactionRequest) (*PostTransactionResult, error) {
	var total int64
	for _, e := range req.Entries {
		if e.AmountCents > 0 {
			total += e.AmountCents
		}
	}
	decision, err := s.governor.CheckPolicy(ctx, "ledger.post", domainpolicy.Context{
		"amount_cents": total,
		"txn_id":       req.TxnID.String(),
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed() {
		if decision.Outcome == policyapp.OutcomeRequiresApproval && req.ApprovalID != nil {
			if err := s.governor.ConsumeApproval(ctx, *req.ApprovalID); err != nil {
				return nil, err
			}
		} else {
			return &PostTransactionResult{Decision: decision}, nil
		}
	}

	// The unique index on txn_id backs this check under concurrency;
	// it exists to return a clean error instead of a constraint failure.
	exists, err := s.txnRepo.ExistsByTxnID(ctx, req.TxnID)
	if err != nil {
		return nil, fmt.Errorf("failed to check transaction: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError("TXN_EXISTS",
			fmt.Sprintf("Transaction %s is already posted", req.TxnID))
	}

	entries := make([]ledger.Entry, 0, len(req.Entries))
	for _, in := range req.Entries {
		account, err := s.accountRepo.FindByID(ctx, in.AccountID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				s.raiseIncident(ctx, req.TxnID,
					fmt.Sprintf("posting references missing account %s", in.AccountID))
				return nil, shared.NewDomainError("ACCOUNT_NOT_FOUND",
					fmt.Sprintf("Account %s not found", in.AccountID))
			}
			return nil, fmt.Errorf("failed to get account: %w", err)
		}
		if !account.Active {
			return nil, shared.ErrAccountInactive
		}

		entry, err := ledger.NewEntry(in.AccountID, in.AmountCents, in.Currency, in.SourceType, in.SourceID, in.Memo)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	txn, err := ledger.NewTransaction(req.TxnID, req.Description, entries)
	if err != nil {
		var domainErr *shared.DomainError
		if shared.AsDomainError(err, &domainErr) && domainErr.Code == ledger.ErrImbalance.Code {
			s.raiseIncident(ctx, req.TxnID, domainErr.Message)
		}
		return nil, err
	}

	if err := s.txnRepo.Save(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	s.publishEvents(ctx, txn.DrainEvents())

	s.log(ctx).Info("transaction posted",
		zap.String("txn_id", txn.TxnID.String()),
		zap.Int("entries", len(txn.Entries)))

	return &PostTransactionResult{Transaction: txn}, nil
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

// ReverseTransaction posts a compensating transaction that negates every
// entry of the original. The original rows are never modified.
func (s *Service) ReverseTransaction(ctx context.Context, txnID uuid.UUID, idempotencyKey, reason string) (*PostTransactionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse_transaction")
	defer span.End()

	if idempotencyKey == "" {
		return nil, shared.NewDomainError("MISSING_IDEMPOTENCY_KEY",
			"Ledger reversal requires an idempotency key")
	}

	original, err := s.txnRepo.FindByTxnID(ctx, txnID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("TXN_NOT_FOUND", "Transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	reversal, err := original.Reverse(uuid.New(), reason)
	if err != nil {
		return nil, err
	}

	entries := make([]EntryInput, 0, len(reversal.Entries))
	for _, e := range reversal.Entries {
		entries = append(entries, EntryInput{
			AccountID:   e.AccountID,
			AmountCents: e.AmountCents,
			Currency:    e.Currency,
			SourceType:  e.SourceType,
			SourceID:    e.SourceID,
			Memo:        e.Memo,
		})
	}

	result, err := s.PostTransaction(ctx, PostTransactionRequest{
		TxnID:          reversal.TxnID,
		IdempotencyKey: idempotencyKey,
		Description:    reversal.Description,
		Entries:        entries,
	})
	if err != nil {
		return nil, err
	}
	if result.Transaction != nil && !result.Deduplicated {
		result.Transaction.ReversalOf = &original.TxnID
		if err := s.txnRepo.Save(ctx, result.Transaction); err != nil {
			return nil, fmt.Errorf("failed to link reversal: %w", err)
		}
	}
	return result, nil
}

// GetTransaction returns one posted transaction with its entries
func (s *Service) GetTransaction(ctx context.Context, txnID uuid.UUID) (*ledger.Transaction, error) {
	txn, err := s.txnRepo.FindByTxnID(ctx, txnID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("TXN_NOT_FOUND", "Transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListTransactions returns the audit-queryable posting log
func (s *Service) ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, int64, error) {
	txns, err := s.txnRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	count, err := s.txnRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return txns, count, nil
}

// Balance sums all posted entries for an account up to a timestamp.
// No running-balance field is trusted as ground truth.
func (s *Service) Balance(ctx context.Context, accountID uuid.UUID, asOf time.Time) (valueobject.Money, error) {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return valueobject.Money{}, err
	}

	sum, err := s.txnRepo.SumForAccount(ctx, accountID, asOf)
	if err != nil {
		return valueobject.Money{}, fmt.Errorf("failed to sum entries: %w", err)
	}
	return valueobject.NewMoneyFromCents(sum, account.Currency), nil
}

func (s *Service) raiseIncident(ctx context.Context, txnID uuid.UUID, reason string) {
	if _, err := s.governor.RecordIncident(ctx, domainpolicy.IncidentLedgerImbalance,
		domainpolicy.IncidentSeverityCritical, "ledger.post", reason, &txnID); err != nil {
		s.log(ctx).Error("failed to record ledger incident",
			zap.String("txn_id", txnID.String()), zap.Error(err))
	}
}
