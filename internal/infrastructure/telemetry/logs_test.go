package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	provider, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:4317",
		ServiceName:       "finance-core",
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, provider)

	assert.False(t, provider.IsEnabled())
	assert.NoError(t, provider.ForceFlush(ctx))
	assert.NoError(t, provider.Shutdown(ctx))
}

func TestAttachOTELCore_DisabledReturnsBaseLogger(t *testing.T) {
	provider, err := NewLoggerProvider(context.Background(), LogsConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	base := zap.NewNop()
	assert.Same(t, base, AttachOTELCore(base, provider, "finance-core", zapcore.InfoLevel))
	assert.Same(t, base, AttachOTELCore(base, nil, "finance-core", zapcore.InfoLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}
	log := zap.New(filtered)

	log.Debug("posting accepted")
	log.Info("payout drafted")
	log.Warn("reconciliation drift")
	log.Error("ledger unbalanced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "reconciliation drift", entries[0].Message)
	assert.Equal(t, "ledger unbalanced", entries[1].Message)
}

func TestLevelFilterCore_WithKeepsFilter(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	filtered := &levelFilterCore{Core: inner, minLevel: zapcore.ErrorLevel}
	log := zap.New(filtered).With(zap.String("payout_id", "po-1"))

	log.Warn("dropped")
	log.Error("kept")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "po-1", entries[0].ContextMap()["payout_id"])
}
