package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	disputeapp "github.com/streamcart/backend/internal/application/dispute"
	reconapp "github.com/streamcart/backend/internal/application/recon"
	"github.com/streamcart/backend/internal/infrastructure/telemetry"
)

// ReconSweepRunner runs reconciliation matching and aging sweeps
type ReconSweepRunner interface {
	RunMatching(ctx context.Context, limit int) (*reconapp.RunReport, error)
	SweepAging(ctx context.Context, maxAge time.Duration, limit int) (*reconapp.SweepReport, error)
}

// DisputeSweepRunner flags disputes approaching their evidence deadline
type DisputeSweepRunner interface {
	SweepDeadlines(ctx context.Context, within time.Duration) (*disputeapp.DeadlineReport, error)
}

// FinanceSweepConfig tunes the individual sweep runs
type FinanceSweepConfig struct {
	// BatchLimit caps external rows per matching or aging run
	BatchLimit int
	// MaxUnmatchedAge is the age at which an unmatched feed row escalates
	MaxUnmatchedAge time.Duration
	// DeadlineWarning is how far ahead the dispute sweep looks
	DeadlineWarning time.Duration
}

// FinanceSweepExecutor dispatches sweeps to the owning service
type FinanceSweepExecutor struct {
	recon    ReconSweepRunner
	disputes DisputeSweepRunner
	config   FinanceSweepConfig
	logger   *zap.Logger
}

// NewFinanceSweepExecutor creates a new finance sweep executor
func NewFinanceSweepExecutor(
	recon ReconSweepRunner,
	disputes DisputeSweepRunner,
	config FinanceSweepConfig,
	logger *zap.Logger,
) *FinanceSweepExecutor {
	return &FinanceSweepExecutor{
		recon:    recon,
		disputes: disputes,
		config:   config,
		logger:   logger,
	}
}

// Execute runs the sweep for its kind. Sweeps are the heaviest
// background work in the process, so each run is labeled for the
// continuous profiler under its sweep kind.
func (e *FinanceSweepExecutor) Execute(ctx context.Context, sweep *Sweep) error {
	var err error
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(string(sweep.Kind), nil), func(ctx context.Context) {
		err = e.execute(ctx, sweep)
	})
	return err
}

func (e *FinanceSweepExecutor) execute(ctx context.Context, sweep *Sweep) error {
	switch sweep.Kind {
	case SweepKindReconMatching:
		report, err := e.recon.RunMatching(ctx, e.config.BatchLimit)
		if err != nil {
			return fmt.Errorf("recon matching sweep: %w", err)
		}
		e.logger.Info("Recon matching sweep finished",
			zap.String("sweep_id", sweep.ID.String()),
			zap.Int("evaluated", report.Evaluated),
			zap.Int("matched", report.Matched),
			zap.Int("discrepancies", report.Discrepancies),
		)
		return nil

	case SweepKindReconAging:
		report, err := e.recon.SweepAging(ctx, e.config.MaxUnmatchedAge, e.config.BatchLimit)
		if err != nil {
			return fmt.Errorf("recon aging sweep: %w", err)
		}
		e.logger.Info("Recon aging sweep finished",
			zap.String("sweep_id", sweep.ID.String()),
			zap.Int("examined", report.Examined),
			zap.Int("created", report.Created),
			zap.Int("escalated", report.Escalated),
		)
		return nil

	case SweepKindDisputeDeadline:
		report, err := e.disputes.SweepDeadlines(ctx, e.config.DeadlineWarning)
		if err != nil {
			return fmt.Errorf("dispute deadline sweep: %w", err)
		}
		e.logger.Info("Dispute deadline sweep finished",
			zap.String("sweep_id", sweep.ID.String()),
			zap.Int("flagged", report.Flagged),
		)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrInvalidSweepKind, sweep.Kind)
	}
}
