package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamcart/backend/internal/infrastructure/telemetry"
)

// installTestTracer swaps the global tracer provider for one backed by
// an in-memory recorder and restores it when the test ends.
func installTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, a := range span.Attributes() {
		if a.Key == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartServiceSpan(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "recon", "run_matching")
	require.NotNil(t, span)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "recon.run_matching", spans[0].Name())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestSetAttributes(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "dispute", "ingest")
	telemetry.SetAttributes(span,
		"dispute_id", uuid.New(),
		"currency", "USD",
		"amount_cents", int64(8500),
		42, "non-string key is skipped",
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)

	currency, ok := spanAttr(spans[0], "currency")
	require.True(t, ok)
	assert.Equal(t, "USD", currency.AsString())

	// The uuid carries through fmt.Stringer as a string attribute.
	id, ok := spanAttr(spans[0], "dispute_id")
	require.True(t, ok)
	assert.Len(t, id.AsString(), 36)
}

func TestSetAttributesNilSpanIsSafe(t *testing.T) {
	telemetry.SetAttributes(nil, "key", "value")
	telemetry.SetAttribute(nil, "key", "value")
	telemetry.AddEvent(nil, "ignored")
}

func TestRecordError(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "post_transaction")
	telemetry.RecordError(span, errors.New("transaction entries do not balance"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "transaction entries do not balance", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordErrorNilValuesAreSafe(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "ledger", "noop")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(nil, errors.New("dropped"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())
}

func TestAddEvent(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "payout", "release")
	telemetry.AddEvent(span, "hold_applied",
		"payout_id", "po-9",
		"risk_score", 0.87,
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 1)

	event := spans[0].Events()[0]
	assert.Equal(t, "hold_applied", event.Name)

	var score float64
	for _, a := range event.Attributes {
		if a.Key == "risk_score" {
			score = a.Value.AsFloat64()
		}
	}
	assert.Equal(t, 0.87, score)
}

func TestNestedSpans(t *testing.T) {
	sr := installTestTracer(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "payout", "run")
	_, child := telemetry.StartServiceSpan(ctx, "ledger", "post_transaction")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)

	// Children end first; both share the trace and the child points at
	// the parent.
	assert.Equal(t, "ledger.post_transaction", spans[0].Name())
	assert.Equal(t, "payout.run", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestAttributeConversion(t *testing.T) {
	sr := installTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "telemetry", "attrs")
	telemetry.SetAttributes(span,
		"str", "v",
		"int", 7,
		"int64", int64(9),
		"float", 1.5,
		"bool", true,
		"strings", []string{"a", "b"},
		"fallback", struct{ X int }{X: 1},
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)

	expect := map[attribute.Key]attribute.Type{
		"str":      attribute.STRING,
		"int":      attribute.INT64,
		"int64":    attribute.INT64,
		"float":    attribute.FLOAT64,
		"bool":     attribute.BOOL,
		"strings":  attribute.STRINGSLICE,
		"fallback": attribute.STRING,
	}
	for key, typ := range expect {
		v, ok := spanAttr(spans[0], key)
		require.True(t, ok, "missing %s", key)
		assert.Equal(t, typ, v.Type(), "wrong type for %s", key)
	}
}
