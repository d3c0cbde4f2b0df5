package telemetry_test

import (
	"context"
	"runtime/pprof"
	"strings"
	"sync"
	"testing"

	"github.com/streamcart/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelFromContext(ctx context.Context, key string) (string, bool) {
	return pprof.Label(ctx, key)
}

func TestWithProfilingLabels_EmptyLabels(t *testing.T) {
	called := false
	telemetry.WithProfilingLabels(context.Background(), nil, func(ctx context.Context) {
		called = true
		_, ok := labelFromContext(ctx, telemetry.ProfilingLabelOperation)
		assert.False(t, ok)
	})
	assert.True(t, called)
}

func TestWithProfilingLabels_AttachesLabels(t *testing.T) {
	labels := map[string]string{
		telemetry.ProfilingLabelOperation: "recon_matching",
		telemetry.ProfilingLabelRegion:    "db_query",
	}

	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		op, ok := labelFromContext(ctx, telemetry.ProfilingLabelOperation)
		require.True(t, ok)
		assert.Equal(t, "recon_matching", op)

		region, ok := labelFromContext(ctx, telemetry.ProfilingLabelRegion)
		require.True(t, ok)
		assert.Equal(t, "db_query", region)
	})
}

func TestWithProfilingLabels_DropsIdentifierKeys(t *testing.T) {
	labels := map[string]string{
		"payout_id":                       "b2f6a1c4-0000-4000-8000-000000000001",
		"txn_id":                          "b2f6a1c4-0000-4000-8000-000000000002",
		"idempotency_key":                 "checkout-7781",
		telemetry.ProfilingLabelOperation: "payout_process",
	}

	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		_, ok := labelFromContext(ctx, "payout_id")
		assert.False(t, ok)
		_, ok = labelFromContext(ctx, "txn_id")
		assert.False(t, ok)
		_, ok = labelFromContext(ctx, "idempotency_key")
		assert.False(t, ok)

		op, ok := labelFromContext(ctx, telemetry.ProfilingLabelOperation)
		require.True(t, ok)
		assert.Equal(t, "payout_process", op)
	})
}

func TestWithProfilingLabels_OnlyDroppedKeysRunsUnlabeled(t *testing.T) {
	called := false
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		"trace_id": "deadbeef",
	}, func(ctx context.Context) {
		called = true
	})
	assert.True(t, called)
}

func TestWithProfilingLabels_TruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", telemetry.MaxLabelValueLength+40)

	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		telemetry.ProfilingLabelRoute: long,
	}, func(ctx context.Context) {
		route, ok := labelFromContext(ctx, telemetry.ProfilingLabelRoute)
		require.True(t, ok)
		assert.Len(t, route, telemetry.MaxLabelValueLength)
	})
}

func TestWithProfilingLabels_SkipsEmptyValues(t *testing.T) {
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		telemetry.ProfilingLabelChannelID: "",
		telemetry.ProfilingLabelMethod:    "POST",
	}, func(ctx context.Context) {
		_, ok := labelFromContext(ctx, telemetry.ProfilingLabelChannelID)
		assert.False(t, ok)

		method, ok := labelFromContext(ctx, telemetry.ProfilingLabelMethod)
		require.True(t, ok)
		assert.Equal(t, "POST", method)
	})
}

func TestWithProfilingLabels_NormalizesKeys(t *testing.T) {
	telemetry.WithProfilingLabels(context.Background(), map[string]string{
		"Sweep-Kind":   "RECON_AGING",
		"batch window": "7d",
		"!!":           "dropped entirely",
	}, func(ctx context.Context) {
		kind, ok := labelFromContext(ctx, "sweep_kind")
		require.True(t, ok)
		assert.Equal(t, "RECON_AGING", kind)

		window, ok := labelFromContext(ctx, "batch_window")
		require.True(t, ok)
		assert.Equal(t, "7d", window)
	})
}

func TestWithProfilingLabels_CallerMayReuseMap(t *testing.T) {
	labels := map[string]string{telemetry.ProfilingLabelOperation: "dispute_deadline_sweep"}

	telemetry.WithProfilingLabels(context.Background(), labels, func(ctx context.Context) {
		labels[telemetry.ProfilingLabelOperation] = "mutated"
		op, _ := labelFromContext(ctx, telemetry.ProfilingLabelOperation)
		assert.Equal(t, "dispute_deadline_sweep", op)
	})
}

func TestWithProfilingLabels_Nested(t *testing.T) {
	outer := map[string]string{telemetry.ProfilingLabelOperation: "recon_matching"}
	inner := map[string]string{telemetry.ProfilingLabelRegion: "candidate_scan"}

	telemetry.WithProfilingLabels(context.Background(), outer, func(outerCtx context.Context) {
		telemetry.WithProfilingLabels(outerCtx, inner, func(innerCtx context.Context) {
			op, ok := labelFromContext(innerCtx, telemetry.ProfilingLabelOperation)
			require.True(t, ok)
			assert.Equal(t, "recon_matching", op)

			region, ok := labelFromContext(innerCtx, telemetry.ProfilingLabelRegion)
			require.True(t, ok)
			assert.Equal(t, "candidate_scan", region)
		})
	})
}

func TestWithProfilingLabels_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for _, op := range []string{"recon_matching", "recon_aging", "dispute_deadline"} {
		wg.Add(1)
		go func(op string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				telemetry.WithProfilingLabels(context.Background(),
					telemetry.OperationLabels(op, nil),
					func(ctx context.Context) {
						got, ok := labelFromContext(ctx, telemetry.ProfilingLabelOperation)
						assert.True(t, ok)
						assert.Equal(t, op, got)
					})
			}
		}(op)
	}
	wg.Wait()
}

func TestOperationLabels(t *testing.T) {
	labels := telemetry.OperationLabels("payout_sweep", map[string]string{
		telemetry.ProfilingLabelChannelID: "web",
	})
	assert.Equal(t, "payout_sweep", labels[telemetry.ProfilingLabelOperation])
	assert.Equal(t, "web", labels[telemetry.ProfilingLabelChannelID])

	bare := telemetry.OperationLabels("recon_matching", nil)
	assert.Len(t, bare, 1)
}

func TestRegionLabels(t *testing.T) {
	labels := telemetry.RegionLabels("provider_call", map[string]string{
		telemetry.ProfilingLabelOperation: "payout_process",
	})
	assert.Equal(t, "provider_call", labels[telemetry.ProfilingLabelRegion])
	assert.Equal(t, "payout_process", labels[telemetry.ProfilingLabelOperation])
}
