package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntervalTriggerConfig holds configuration for the interval trigger
type IntervalTriggerConfig struct {
	// ReconInterval is how often the matching and aging sweeps run.
	// Zero disables the recon sweeps.
	ReconInterval time.Duration

	// DisputeInterval is how often the deadline sweep runs.
	// Zero disables the dispute sweep.
	DisputeInterval time.Duration
}

// DefaultIntervalTriggerConfig returns default interval trigger configuration
func DefaultIntervalTriggerConfig() IntervalTriggerConfig {
	return IntervalTriggerConfig{
		ReconInterval:   15 * time.Minute,
		DisputeInterval: time.Hour,
	}
}

// IntervalTrigger submits recurring sweeps on fixed intervals
type IntervalTrigger struct {
	config  IntervalTriggerConfig
	sweeper *Sweeper
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, sweeper *Sweeper, logger *zap.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start starts the interval trigger
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	if t.config.ReconInterval > 0 {
		t.wg.Add(1)
		go t.runLoop(ctx, t.config.ReconInterval, SweepKindReconMatching, SweepKindReconAging)
	}
	if t.config.DisputeInterval > 0 {
		t.wg.Add(1)
		go t.runLoop(ctx, t.config.DisputeInterval, SweepKindDisputeDeadline)
	}

	t.logger.Info("Sweep trigger started",
		zap.Duration("recon_interval", t.config.ReconInterval),
		zap.Duration("dispute_interval", t.config.DisputeInterval),
	)

	return nil
}

// Stop stops the interval trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop submits the given sweep kinds every interval
func (t *IntervalTrigger) runLoop(ctx context.Context, interval time.Duration, kinds ...SweepKind) {
	defer t.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range kinds {
				if err := t.sweeper.SubmitKind(kind); err != nil {
					t.logger.Warn("Failed to submit scheduled sweep",
						zap.String("kind", string(kind)),
						zap.Error(err),
					)
				}
			}
		}
	}
}
