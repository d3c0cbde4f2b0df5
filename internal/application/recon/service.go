package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streamcart/backend/internal/domain/ledger"
	"github.com/streamcart/backend/internal/domain/recon"
	"github.com/streamcart/backend/internal/domain/shared"
	"github.com/streamcart/backend/internal/domain/shared/valueobject"
	"github.com/streamcart/backend/internal/infrastructure/logger"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Service runs reconciliation: feed ingestion, automatic matching,
// manual overrides, and the aging sweep.
type Service struct {
	externalRepo    recon.ExternalTransactionRepository
	matchRepo       recon.MatchRepository
	discrepancyRepo recon.DiscrepancyRepository
	ledgerTxnRepo   ledger.TransactionRepository
	matcher         *recon.Matcher
	windowDays      int
	logger          *zap.Logger
}

// NewService creates a reconciliation Service
func NewService(
	externalRepo recon.ExternalTransactionRepository,
	matchRepo recon.MatchRepository,
	discrepancyRepo recon.DiscrepancyRepository,
	ledgerTxnRepo ledger.TransactionRepository,
	matcherCfg recon.MatcherConfig,
	logger *zap.Logger,
) *Service {
	matcher := recon.NewMatcher(matcherCfg)
	windowDays := matcherCfg.WindowDays
	if windowDays <= 0 {
		windowDays = recon.DefaultMatcherConfig().WindowDays
	}
	return &Service{
		externalRepo:    externalRepo,
		matchRepo:       matchRepo,
		discrepancyRepo: discrepancyRepo,
		ledgerTxnRepo:   ledgerTxnRepo,
		matcher:         matcher,
		windowDays:      windowDays,
		logger:          logger,
	}
}

// log returns the service logger enriched with the trace and request
// correlation fields carried by ctx.
func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.WithTrace(ctx, s.logger)
}

// RecordExternalTransactionRequest carries one feed event
type RecordExternalTransactionRequest struct {
	Source      string
	ExternalID  string
	AmountCents int64
	Currency    valueobject.Currency
	OccurredAt  time.Time
	Reference   string
	Raw         string
}

// RecordExternalTransaction ingests one bank or processor event. A
// re-delivered event is a no-op on the (source, externalID) identity.
func (s *Service) RecordExternalTransaction(ctx context.Context, req RecordExternalTransactionRequest) (*recon.ExternalTransaction, bool, error) {
	txn, err := recon.NewExternalTransaction(req.Source, req.ExternalID, req.AmountCents,
		req.Currency, req.OccurredAt, req.Reference, req.Raw)
	if err != nil {
		return nil, false, err
	}

	stored, inserted, err := s.externalRepo.Upsert(ctx, txn)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert external transaction: %w", err)
	}
	if !inserted {
		s.log(ctx).Debug("duplicate external transaction ignored",
			zap.String("source", req.Source),
			zap.String("external_id", req.ExternalID))
	}
	return stored, inserted, nil
}

// ImportReport summarizes one settlement file import
type ImportReport struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
}

// ImportFeed ingests a batch of feed events, typically parsed from a
// settlement file. Rows are upserted independently; a redelivered row
// counts as a duplicate, not an error.
func (s *Service) ImportFeed(ctx context.Context, reqs []RecordExternalTransactionRequest) (*ImportReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "recon", "import_feed")
	defer span.End()

	report := &ImportReport{Received: len(reqs)}
	for _, req := range reqs {
		_, inserted, err := s.RecordExternalTransaction(ctx, req)
		if err != nil {
			return report, fmt.Errorf("row (source=%s, external_id=%s): %w", req.Source, req.ExternalID, err)
		}
		if inserted {
			report.Inserted++
		} else {
			report.Duplicates++
		}
	}

	s.log(ctx).Info("settlement feed imported",
		zap.Int("received", report.Received),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates))
	return report, nil
}

// RunReport summarizes one matching run
type RunReport struct {
	Evaluated     int `json:"evaluated"`
	Matched       int `json:"matched"`
	Discrepancies int `json:"discrepancies"`
	Unmatched     int `json:"unmatched"`
	Skipped       int `json:"skipped"`
}

// RunMatching evaluates unmatched external transactions against ledger
// candidates inside the date window. Transactions already matched (in
// particular manually) or carrying an open discrepancy are skipped.
func (s *Service) RunMatching(ctx context.Context, limit int) (*RunReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "recon", "run_matching")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	unmatched, err := s.externalRepo.FindUnmatched(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched transactions: %w", err)
	}

	report := &RunReport{}
	for i := range unmatched {
		ext := &unmatched[i]
		report.Evaluated++

		existing, err := s.matchRepo.FindByExternalTxn(ctx, ext.ID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("failed to check existing match: %w", err)
		}
		if existing != nil {
			report.Skipped++
			continue
		}
		open, err := s.discrepancyRepo.FindOpenByExternalTxn(ctx, ext.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check open discrepancies: %w", err)
		}
		if len(open) > 0 {
			report.Skipped++
			continue
		}

		candidates, err := s.candidatesFor(ctx, ext)
		if err != nil {
			return nil, err
		}

		outcome, err := s.matcher.Evaluate(ext, candidates)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate transaction %s: %w", ext.ID, err)
		}

		switch {
		case outcome.Match != nil:
			if err := s.matchRepo.Save(ctx, outcome.Match); err != nil {
				return nil, fmt.Errorf("failed to save match: %w", err)
			}
			report.Matched++
		case outcome.Discrepancy != nil:
			if err := s.discrepancyRepo.Save(ctx, outcome.Discrepancy); err != nil {
				return nil, fmt.Errorf("failed to save discrepancy: %w", err)
			}
			report.Discrepancies++
		default:
			report.Unmatched++
		}
	}

	s.log(ctx).Info("matching run complete",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("matched", report.Matched),
		zap.Int("discrepancies", report.Discrepancies),
		zap.Int("unmatched", report.Unmatched))

	return report, nil
}

// candidatesFor selects ledger transactions within the date window around
// the external transaction's occurrence time
func (s *Service) candidatesFor(ctx context.Context, ext *recon.ExternalTransaction) ([]recon.Candidate, error) {
	window := time.Duration(s.windowDays) * 24 * time.Hour
	from := ext.OccurredAt.Add(-window)
	to := ext.OccurredAt.Add(window)

	txns, err := s.ledgerTxnRepo.FindAll(ctx, ledger.TransactionFilter{
		FromDate: &from,
		ToDate:   &to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate transactions: %w", err)
	}

	candidates := make([]recon.Candidate, 0, len(txns))
	for i := range txns {
		txn := &txns[i]
		amount := txn.TotalDebitsCents(ext.Currency)
		if amount == 0 {
			continue
		}
		if ext.AmountCents < 0 {
			amount = -amount
		}
		candidates = append(candidates, recon.Candidate{
			LedgerTxnID: txn.TxnID,
			AmountCents: amount,
			Currency:    string(ext.Currency),
			PostedAt:    txn.PostedAt,
			Description: txn.Description,
		})
	}
	return candidates, nil
}

// ManualMatch overrides automatic matching. The resulting match is
// recorded with the acting user and is never re-evaluated by the
// automatic matcher. Open discrepancies for the transaction are resolved.
func (s *Service) ManualMatch(ctx context.Context, externalTxnID, ledgerTxnID, userID uuid.UUID) (*recon.Match, error) {
	_, err := s.externalRepo.FindByID(ctx, externalTxnID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("EXTERNAL_TXN_NOT_FOUND", "External transaction not found")
		}
		return nil, fmt.Errorf("failed to get external transaction: %w", err)
	}

	if _, err := s.ledgerTxnRepo.FindByTxnID(ctx, ledgerTxnID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("TXN_NOT_FOUND", "Ledger transaction not found")
		}
		return nil, fmt.Errorf("failed to get ledger transaction: %w", err)
	}

	existing, err := s.matchRepo.FindByExternalTxn(ctx, externalTxnID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing match: %w", err)
	}
	if existing != nil {
		if err := s.matchRepo.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to remove previous match: %w", err)
		}
	}

	match, err := recon.NewManualMatch(externalTxnID, ledgerTxnID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.matchRepo.Save(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to save match: %w", err)
	}

	open, err := s.discrepancyRepo.FindOpenByExternalTxn(ctx, externalTxnID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open discrepancies: %w", err)
	}
	for i := range open {
		d := &open[i]
		if err := d.Resolve(userID, "resolved by manual match"); err != nil {
			return nil, err
		}
		if err := s.discrepancyRepo.Save(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save discrepancy: %w", err)
		}
	}

	s.log(ctx).Info("manual match recorded",
		zap.String("external_txn_id", externalTxnID.String()),
		zap.String("ledger_txn_id", ledgerTxnID.String()),
		zap.String("matched_by", userID.String()))

	return match, nil
}

// SweepReport summarizes one aging sweep
type SweepReport struct {
	Examined  int `json:"examined"`
	Created   int `json:"created"`
	Escalated int `json:"escalated"`
}

// SweepAging turns unmatched external transactions older than maxAge into
// discrepancies. A transaction already carrying an open aging discrepancy
// has its severity escalated instead.
func (s *Service) SweepAging(ctx context.Context, maxAge time.Duration, limit int) (*SweepReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "recon", "sweep_aging")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	cutoff := time.Now().UTC().Add(-maxAge)

	aged, err := s.externalRepo.FindUnmatchedOlderThan(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list aged transactions: %w", err)
	}

	report := &SweepReport{}
	for i := range aged {
		ext := &aged[i]
		report.Examined++

		open, err := s.discrepancyRepo.FindOpenByExternalTxn(ctx, ext.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list open discrepancies: %w", err)
		}

		escalated := false
		for j := range open {
			if open[j].Kind != recon.DiscrepancyKindAgedUnmatched {
				continue
			}
			open[j].EscalateSeverity()
			if err := s.discrepancyRepo.Save(ctx, &open[j]); err != nil {
				return nil, fmt.Errorf("failed to save discrepancy: %w", err)
			}
			escalated = true
		}
		if escalated {
			report.Escalated++
			continue
		}

		d, err := recon.NewDiscrepancy(ext.ID, recon.DiscrepancyKindAgedUnmatched, ext.AmountCents,
			fmt.Sprintf("unmatched since %s", ext.OccurredAt.Format(time.RFC3339)))
		if err != nil {
			return nil, err
		}
		if err := s.discrepancyRepo.Save(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save discrepancy: %w", err)
		}
		report.Created++
	}

	s.log(ctx).Info("aging sweep complete",
		zap.Int("examined", report.Examined),
		zap.Int("created", report.Created),
		zap.Int("escalated", report.Escalated))

	return report, nil
}

// IsSourceReconciled reports whether every ledger transaction tagged to a
// business object has a reconciliation match. An object with no ledger
// entries at all counts as unreconciled.
func (s *Service) IsSourceReconciled(ctx context.Context, sourceType ledger.SourceType, sourceID uuid.UUID) (bool, error) {
	txnIDs, err := s.ledgerTxnRepo.FindTxnIDsBySource(ctx, sourceType, sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to find transactions for source: %w", err)
	}
	if len(txnIDs) == 0 {
		return false, nil
	}

	matched, err := s.matchRepo.CountForLedgerTxns(ctx, txnIDs)
	if err != nil {
		return false, fmt.Errorf("failed to count matches: %w", err)
	}
	return matched == int64(len(txnIDs)), nil
}

// ResolveDiscrepancy closes a discrepancy with a human explanation
func (s *Service) ResolveDiscrepancy(ctx context.Context, id, userID uuid.UUID, resolution string) (*recon.Discrepancy, error) {
	d, err := s.discrepancyRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("DISCREPANCY_NOT_FOUND", "Discrepancy not found")
		}
		return nil, fmt.Errorf("failed to get discrepancy: %w", err)
	}

	if err := d.Resolve(userID, resolution); err != nil {
		return nil, err
	}
	if err := s.discrepancyRepo.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to save discrepancy: %w", err)
	}
	return d, nil
}

// ListDiscrepancies returns discrepancies matching the filter
func (s *Service) ListDiscrepancies(ctx context.Context, filter recon.DiscrepancyFilter) ([]recon.Discrepancy, error) {
	return s.discrepancyRepo.FindAll(ctx, filter)
}

// ListExternalTransactions returns feed rows matching the filter
func (s *Service) ListExternalTransactions(ctx context.Context, filter recon.ExternalTransactionFilter) ([]recon.ExternalTransaction, error) {
	return s.externalRepo.FindAll(ctx, filter)
}
