// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the financial core.
// It tracks ledger postings, payout activity, dispute flow, and
// reconciliation health.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	ledgerPostedTotal  *Counter
	ledgerAmountTotal  *Counter
	payoutTotal        *Counter
	payoutAmountTotal  *Counter
	disputeTotal       *Counter
	reconMatchTotal    *Counter
	policyDenialsTotal *Counter

	// Gauge metrics (point-in-time values)
	reconUnmatchedCount  *Gauge
	disputesAwaitingWork *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	reconProvider ReconMetricsProvider
}

// ReconMetricsProvider provides reconciliation and dispute backlog data for
// periodic metrics collection. This interface allows the telemetry layer to
// query state without depending on the domain packages directly.
type ReconMetricsProvider interface {
	// GetUnmatchedExternalCount returns the number of external transactions
	// still awaiting a ledger match.
	GetUnmatchedExternalCount(ctx context.Context) (int64, error)

	// GetDisputesAwaitingEvidence returns the number of open disputes whose
	// evidence pack has not been submitted yet.
	GetDisputesAwaitingEvidence(ctx context.Context) (int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	ReconProvider   ReconMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		reconProvider: cfg.ReconProvider,
	}

	var err error

	// Ledger metrics
	bm.ledgerPostedTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_ledger_posted_total",
		"Total number of ledger transactions posted",
		"{transactions}",
	)
	if err != nil {
		return nil, err
	}

	bm.ledgerAmountTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_ledger_amount_total",
		"Total absolute debit volume posted, in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	// Payout metrics
	bm.payoutTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_payout_total",
		"Total number of payout state transitions",
		"{payouts}",
	)
	if err != nil {
		return nil, err
	}

	bm.payoutAmountTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_payout_amount_total",
		"Total net payout amount dispatched, in cents",
		"{cents}",
	)
	if err != nil {
		return nil, err
	}

	// Dispute metrics
	bm.disputeTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_dispute_total",
		"Total number of dispute state transitions",
		"{disputes}",
	)
	if err != nil {
		return nil, err
	}

	// Reconciliation metrics
	bm.reconMatchTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_recon_match_total",
		"Total number of reconciliation matches recorded",
		"{matches}",
	)
	if err != nil {
		return nil, err
	}

	// Policy metrics
	bm.policyDenialsTotal, err = NewCounter(
		cfg.Meter,
		"streamcart_policy_denials_total",
		"Total number of actions denied by policy",
		"{denials}",
	)
	if err != nil {
		return nil, err
	}

	// Backlog gauge metrics
	bm.reconUnmatchedCount, err = NewGauge(
		cfg.Meter,
		"streamcart_recon_unmatched_count",
		"External transactions currently without a ledger match",
		"{transactions}",
	)
	if err != nil {
		return nil, err
	}

	bm.disputesAwaitingWork, err = NewGauge(
		cfg.Meter,
		"streamcart_disputes_awaiting_evidence",
		"Open disputes whose evidence has not been submitted",
		"{disputes}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Ledger Metrics
// =============================================================================

// RecordLedgerPosted records a posted ledger transaction together with its
// absolute debit volume. Amount should be in the smallest currency unit.
func (bm *BusinessMetrics) RecordLedgerPosted(ctx context.Context, sourceType, currency string, debitCents int64) {
	bm.ledgerPostedTotal.Inc(ctx,
		AttrSourceType.String(sourceType),
		AttrCurrency.String(currency),
	)
	bm.ledgerAmountTotal.Add(ctx, debitCents,
		AttrSourceType.String(sourceType),
		AttrCurrency.String(currency),
	)
}

// =============================================================================
// Payout Metrics
// =============================================================================

// RecordPayoutTransition records a payout moving into the given status.
func (bm *BusinessMetrics) RecordPayoutTransition(ctx context.Context, status string) {
	bm.payoutTotal.Inc(ctx,
		AttrPayoutStatus.String(status),
	)
}

// RecordPayoutDispatched records a payout handed to the rail, with its net
// amount in cents.
func (bm *BusinessMetrics) RecordPayoutDispatched(ctx context.Context, currency string, netCents int64) {
	bm.RecordPayoutTransition(ctx, "PAID")
	bm.payoutAmountTotal.Add(ctx, netCents,
		AttrCurrency.String(currency),
	)
}

// =============================================================================
// Dispute Metrics
// =============================================================================

// RecordDisputeTransition records a dispute moving into the given status.
func (bm *BusinessMetrics) RecordDisputeTransition(ctx context.Context, provider, status string) {
	bm.disputeTotal.Inc(ctx,
		AttrProvider.String(provider),
		AttrDisputeStatus.String(status),
	)
}

// =============================================================================
// Reconciliation Metrics
// =============================================================================

// MatchKind labels how a reconciliation match was produced.
type MatchKind string

const (
	MatchKindExact     MatchKind = "exact"
	MatchKindHeuristic MatchKind = "heuristic"
	MatchKindManual    MatchKind = "manual"
)

// RecordReconMatch records a reconciliation match.
func (bm *BusinessMetrics) RecordReconMatch(ctx context.Context, kind MatchKind) {
	bm.reconMatchTotal.Inc(ctx,
		AttrSourceType.String(string(kind)),
	)
}

// =============================================================================
// Policy Metrics
// =============================================================================

// RecordPolicyDenial records an action denied by the policy governor.
func (bm *BusinessMetrics) RecordPolicyDenial(ctx context.Context, action string) {
	bm.policyDenialsTotal.Inc(ctx,
		AttrPolicyAction.String(action),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of backlog gauges.
// It collects every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectBacklogMetrics(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectBacklogMetrics(ctx)
		}
	}
}

// collectBacklogMetrics collects reconciliation and dispute backlog gauges.
func (bm *BusinessMetrics) collectBacklogMetrics(ctx context.Context) {
	if bm.reconProvider == nil {
		bm.logger.Debug("No recon provider configured, skipping backlog metrics collection")
		return
	}

	unmatched, err := bm.reconProvider.GetUnmatchedExternalCount(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get unmatched external count", zap.Error(err))
	} else {
		bm.reconUnmatchedCount.Record(ctx, unmatched)
	}

	awaiting, err := bm.reconProvider.GetDisputesAwaitingEvidence(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get disputes awaiting evidence", zap.Error(err))
	} else {
		bm.disputesAwaitingWork.Record(ctx, awaiting)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
