package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys. Kept low-cardinality on purpose: a label value
// set that grows with traffic (ids, keys) blows up Pyroscope memory.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelChannelID  = "channel_id"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelRegion     = "region"
)

// MaxLabelValueLength caps label values before they reach the profiler.
const MaxLabelValueLength = 128

// highCardinalityLabels lists keys that are per-entity identifiers in
// this system and must never become profiling labels. channel_id stays
// allowed: channels are a small, slowly changing set.
var highCardinalityLabels = map[string]bool{
	"txn_id":          true,
	"payout_id":       true,
	"dispute_id":      true,
	"creator_id":      true,
	"idempotency_key": true,
	"request_id":      true,
	"trace_id":        true,
	"span_id":         true,
}

// WithProfilingLabels runs fn with the given labels attached to the
// profiling context, so flame graphs can be sliced by handler, batch
// operation, or channel. Labels are sanitized: identifier-like keys are
// dropped, values truncated, keys normalized to snake_case. The map is
// copied, so the caller may reuse it.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels builds the label set for a named background operation
// such as a matching run or a payout sweep.
func OperationLabels(operation string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	labels[ProfilingLabelOperation] = operation
	maps.Copy(labels, extra)
	return labels
}

// RegionLabels marks a code region inside an operation, e.g. "db_query"
// or "provider_call".
func RegionLabels(region string, extra map[string]string) map[string]string {
	labels := make(map[string]string, len(extra)+1)
	labels[ProfilingLabelRegion] = region
	maps.Copy(labels, extra)
	return labels
}

// sanitizeLabels converts the map into the flat, deterministic pair
// slice the profiler expects, dropping unsafe entries along the way.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || highCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		if key = sanitizeLabelKey(key); key == "" {
			continue
		}
		pairs = append(pairs, key, value)
	}
	return pairs
}

// sanitizeLabelKey normalizes a key to lowercase snake_case and strips
// everything that is not alphanumeric or underscore.
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		}
	}
	return string(out)
}
