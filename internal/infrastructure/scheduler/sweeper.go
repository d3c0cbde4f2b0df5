package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SweepStatus represents the status of a scheduled sweep
type SweepStatus string

const (
	SweepStatusPending SweepStatus = "PENDING"
	SweepStatusRunning SweepStatus = "RUNNING"
	SweepStatusSuccess SweepStatus = "SUCCESS"
	SweepStatusFailed  SweepStatus = "FAILED"
)

// SweepKind represents the kind of background sweep to run
type SweepKind string

const (
	SweepKindReconMatching   SweepKind = "RECON_MATCHING"
	SweepKindReconAging      SweepKind = "RECON_AGING"
	SweepKindDisputeDeadline SweepKind = "DISPUTE_DEADLINE"
)

// AllSweepKinds returns all available sweep kinds
func AllSweepKinds() []SweepKind {
	return []SweepKind{
		SweepKindReconMatching,
		SweepKindReconAging,
		SweepKindDisputeDeadline,
	}
}

// Sweep represents a scheduled background sweep run
type Sweep struct {
	ID          uuid.UUID
	Kind        SweepKind
	Status      SweepStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewSweep creates a new sweep instance
func NewSweep(kind SweepKind, maxRetries int) *Sweep {
	return &Sweep{
		ID:         uuid.New(),
		Kind:       kind,
		Status:     SweepStatusPending,
		MaxRetries: maxRetries,
	}
}

// Start marks the sweep as running
func (s *Sweep) Start() {
	now := time.Now()
	s.Status = SweepStatusRunning
	s.StartedAt = &now
	s.Error = ""
}

// Complete marks the sweep as successful
func (s *Sweep) Complete() {
	now := time.Now()
	s.Status = SweepStatusSuccess
	s.CompletedAt = &now
}

// Fail marks the sweep as failed
func (s *Sweep) Fail(err string) {
	now := time.Now()
	s.Status = SweepStatusFailed
	s.CompletedAt = &now
	s.Error = err
}

// ShouldRetry returns true if the sweep should be retried
func (s *Sweep) ShouldRetry() bool {
	return s.Status == SweepStatusFailed && s.RetryCount < s.MaxRetries
}

// ScheduleRetry schedules the sweep for retry
func (s *Sweep) ScheduleRetry(delay time.Duration) {
	s.RetryCount++
	s.Status = SweepStatusPending
	nextRetry := time.Now().Add(delay)
	s.NextRetryAt = &nextRetry
	s.Error = ""
}

// SweepExecutor is the interface for executing sweeps
type SweepExecutor interface {
	Execute(ctx context.Context, sweep *Sweep) error
}

// SweeperConfig holds sweeper configuration
type SweeperConfig struct {
	MaxConcurrentSweeps int
	SweepTimeout        time.Duration
	RetryAttempts       int
	RetryDelay          time.Duration
}

// DefaultSweeperConfig returns default sweeper configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		MaxConcurrentSweeps: 2,
		SweepTimeout:        10 * time.Minute,
		RetryAttempts:       3,
		RetryDelay:          time.Minute,
	}
}

// Sweeper manages background sweep execution with a bounded worker pool
type Sweeper struct {
	config   SweeperConfig
	executor SweepExecutor
	logger   *zap.Logger

	sweeps    chan *Sweep
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSweeper creates a new sweeper instance
func NewSweeper(config SweeperConfig, executor SweepExecutor, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		config:   config,
		executor: executor,
		logger:   logger,
		sweeps:   make(chan *Sweep, 100),
	}
}

// Start starts the sweeper
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentSweeps; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sweep scheduler started",
		zap.Int("workers", s.config.MaxConcurrentSweeps),
		zap.Duration("sweep_timeout", s.config.SweepTimeout),
	)

	return nil
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	close(s.sweeps)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit submits a sweep for execution
func (s *Sweeper) Submit(sweep *Sweep) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSweeperNotRunning
	}
	s.mu.Unlock()

	select {
	case s.sweeps <- sweep:
		s.logger.Debug("Sweep submitted",
			zap.String("sweep_id", sweep.ID.String()),
			zap.String("kind", string(sweep.Kind)),
		)
		return nil
	default:
		return ErrSweepQueueFull
	}
}

// SubmitKind creates and submits a sweep of the given kind
func (s *Sweeper) SubmitKind(kind SweepKind) error {
	return s.Submit(NewSweep(kind, s.config.RetryAttempts))
}

// worker processes sweeps from the queue
func (s *Sweeper) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sweep worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep worker stopping", zap.Int("worker_id", workerID))
			return
		case sweep, ok := <-s.sweeps:
			if !ok {
				s.logger.Debug("Sweep channel closed", zap.Int("worker_id", workerID))
				return
			}
			s.processSweep(ctx, sweep, workerID)
		}
	}
}

// processSweep executes a single sweep
func (s *Sweeper) processSweep(ctx context.Context, sweep *Sweep, workerID int) {
	// Check if the sweep is ready to run (for retries)
	if sweep.NextRetryAt != nil && time.Now().Before(*sweep.NextRetryAt) {
		select {
		case s.sweeps <- sweep:
		default:
			s.logger.Warn("Failed to re-queue sweep for retry",
				zap.String("sweep_id", sweep.ID.String()),
			)
		}
		return
	}

	sweep.Start()
	s.logger.Info("Processing sweep",
		zap.Int("worker_id", workerID),
		zap.String("sweep_id", sweep.ID.String()),
		zap.String("kind", string(sweep.Kind)),
	)

	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	err := s.executor.Execute(sweepCtx, sweep)
	if err != nil {
		sweep.Fail(err.Error())
		s.logger.Error("Sweep failed",
			zap.Int("worker_id", workerID),
			zap.String("sweep_id", sweep.ID.String()),
			zap.String("kind", string(sweep.Kind)),
			zap.Error(err),
		)

		if sweep.ShouldRetry() {
			sweep.ScheduleRetry(s.config.RetryDelay)
			s.logger.Info("Sweep scheduled for retry",
				zap.String("sweep_id", sweep.ID.String()),
				zap.Int("retry_count", sweep.RetryCount),
				zap.Int("max_retries", sweep.MaxRetries),
			)
			select {
			case s.sweeps <- sweep:
			default:
				s.logger.Warn("Failed to re-queue sweep for retry",
					zap.String("sweep_id", sweep.ID.String()),
				)
			}
		}
		return
	}

	sweep.Complete()
	s.logger.Info("Sweep completed successfully",
		zap.Int("worker_id", workerID),
		zap.String("sweep_id", sweep.ID.String()),
		zap.String("kind", string(sweep.Kind)),
	)
}
