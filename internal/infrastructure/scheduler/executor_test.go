package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	disputeapp "github.com/streamcart/backend/internal/application/dispute"
	reconapp "github.com/streamcart/backend/internal/application/recon"
)

type fakeReconRunner struct {
	matchingCalls int
	agingCalls    int
	lastLimit     int
	lastMaxAge    time.Duration
	err           error
}

func (f *fakeReconRunner) RunMatching(_ context.Context, limit int) (*reconapp.RunReport, error) {
	f.matchingCalls++
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &reconapp.RunReport{Evaluated: 5, Matched: 3}, nil
}

func (f *fakeReconRunner) SweepAging(_ context.Context, maxAge time.Duration, limit int) (*reconapp.SweepReport, error) {
	f.agingCalls++
	f.lastMaxAge = maxAge
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &reconapp.SweepReport{Examined: 2, Created: 1}, nil
}

type fakeDisputeRunner struct {
	calls      int
	lastWithin time.Duration
	err        error
}

func (f *fakeDisputeRunner) SweepDeadlines(_ context.Context, within time.Duration) (*disputeapp.DeadlineReport, error) {
	f.calls++
	f.lastWithin = within
	if f.err != nil {
		return nil, f.err
	}
	return &disputeapp.DeadlineReport{Examined: 4, Flagged: 1}, nil
}

func newTestExecutor(recon *fakeReconRunner, disputes *fakeDisputeRunner) *FinanceSweepExecutor {
	return NewFinanceSweepExecutor(recon, disputes, FinanceSweepConfig{
		BatchLimit:      50,
		MaxUnmatchedAge: 48 * time.Hour,
		DeadlineWarning: 72 * time.Hour,
	}, zap.NewNop())
}

func TestFinanceSweepExecutorDispatch(t *testing.T) {
	recon := &fakeReconRunner{}
	disputes := &fakeDisputeRunner{}
	executor := newTestExecutor(recon, disputes)

	require.NoError(t, executor.Execute(context.Background(), NewSweep(SweepKindReconMatching, 0)))
	assert.Equal(t, 1, recon.matchingCalls)
	assert.Equal(t, 50, recon.lastLimit)

	require.NoError(t, executor.Execute(context.Background(), NewSweep(SweepKindReconAging, 0)))
	assert.Equal(t, 1, recon.agingCalls)
	assert.Equal(t, 48*time.Hour, recon.lastMaxAge)

	require.NoError(t, executor.Execute(context.Background(), NewSweep(SweepKindDisputeDeadline, 0)))
	assert.Equal(t, 1, disputes.calls)
	assert.Equal(t, 72*time.Hour, disputes.lastWithin)
}

func TestFinanceSweepExecutorPropagatesErrors(t *testing.T) {
	reconErr := errors.New("feed unavailable")
	executor := newTestExecutor(&fakeReconRunner{err: reconErr}, &fakeDisputeRunner{})

	err := executor.Execute(context.Background(), NewSweep(SweepKindReconMatching, 0))
	assert.ErrorIs(t, err, reconErr)
}

func TestFinanceSweepExecutorRejectsUnknownKind(t *testing.T) {
	executor := newTestExecutor(&fakeReconRunner{}, &fakeDisputeRunner{})

	err := executor.Execute(context.Background(), NewSweep(SweepKind("NOPE"), 0))
	assert.ErrorIs(t, err, ErrInvalidSweepKind)
}
