package engine

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/shelfgate/shelfgate/internal/core"
	"github.com/shelfgate/shelfgate/internal/core/state"
)

// DefaultMetricsWindow bounds sample retention when no window is
// configured.
const DefaultMetricsWindow = 5 * time.Minute

const (
	endpointSamplesKey = "metrics:endpoint:samples"
	endpointCallsKey   = "metrics:endpoint:calls"
	upstreamSamplesKey = "metrics:upstream:samples"
	upstreamCallsKey   = "metrics:upstream:calls"
)

// Aggregator tracks latency and call counts over a rolling TTL window
// in the state store. Samples and counters for a window share one TTL,
// re-armed on every write, so an idle window self-expires as a unit.
//
// Delivery is best effort: a recording that races a crash is lost, and
// store errors degrade reads to a zeroed snapshot instead of failing
// the caller.
type Aggregator struct {
	Store  state.Store
	Window time.Duration
	Clock  func() time.Time
	Logger *logging.Logger
}

func (a *Aggregator) window() time.Duration {
	if a.Window > 0 {
		return a.Window
	}
	return DefaultMetricsWindow
}

func (a *Aggregator) now() time.Time {
	if a.Clock != nil {
		return a.Clock()
	}
	return time.Now().UTC()
}

// RecordEndpointCall appends a local endpoint latency sample.
func (a *Aggregator) RecordEndpointCall(ctx context.Context, elapsed time.Duration) {
	a.record(ctx, endpointSamplesKey, endpointCallsKey, elapsed)
}

// RecordUpstreamCall appends an upstream call latency sample.
func (a *Aggregator) RecordUpstreamCall(ctx context.Context, elapsed time.Duration) {
	a.record(ctx, upstreamSamplesKey, upstreamCallsKey, elapsed)
}

func (a *Aggregator) record(ctx context.Context, samplesKey, callsKey string, elapsed time.Duration) {
	sample := core.MetricSample{
		ResponseTimeMs: elapsed.Milliseconds(),
		Timestamp:      a.now(),
	}

	data, err := json.Marshal(sample)
	if err != nil {
		a.warn("metric sample dropped", err)
		return
	}

	if err := a.Store.ListPush(ctx, samplesKey, data); err != nil {
		a.warn("metric sample dropped", err)
		return
	}
	if _, err := a.Store.Increment(ctx, callsKey); err != nil {
		a.warn("metric counter dropped", err)
	}

	// Samples and counter expire together; each write re-arms the
	// whole window.
	if err := a.Store.Expire(ctx, samplesKey, a.window()); err != nil {
		a.warn("metric window refresh dropped", err)
	}
	if err := a.Store.Expire(ctx, callsKey, a.window()); err != nil {
		a.warn("metric window refresh dropped", err)
	}
}

// Snapshot computes aggregate stats fresh from the currently retained
// samples and counters. Store errors yield a zeroed snapshot.
func (a *Aggregator) Snapshot(ctx context.Context) core.MetricsSnapshot {
	var snapshot core.MetricsSnapshot

	average, maxMs, minMs := a.sampleStats(ctx, endpointSamplesKey)
	snapshot.Endpoint = core.EndpointStats{
		AverageMs:  average,
		MaxMs:      maxMs,
		MinMs:      minMs,
		TotalCalls: a.counter(ctx, endpointCallsKey),
	}

	average, _, _ = a.sampleStats(ctx, upstreamSamplesKey)
	snapshot.Upstream = core.UpstreamStats{
		AverageMs:  average,
		TotalCalls: a.counter(ctx, upstreamCallsKey),
	}

	return snapshot
}

// Reset clears all samples and counters for both windows.
func (a *Aggregator) Reset(ctx context.Context) error {
	return a.Store.Delete(ctx,
		endpointSamplesKey, endpointCallsKey,
		upstreamSamplesKey, upstreamCallsKey,
	)
}

func (a *Aggregator) sampleStats(ctx context.Context, key string) (average, maxMs, minMs int64) {
	values, err := a.Store.ListRange(ctx, key)
	if err != nil {
		a.warn("metric snapshot degraded to zeros", err)
		return 0, 0, 0
	}
	if len(values) == 0 {
		return 0, 0, 0
	}

	var sum int64
	count := 0
	for _, raw := range values {
		var sample core.MetricSample
		if err := json.Unmarshal(raw, &sample); err != nil {
			continue
		}
		ms := sample.ResponseTimeMs
		if count == 0 {
			maxMs, minMs = ms, ms
		} else {
			if ms > maxMs {
				maxMs = ms
			}
			if ms < minMs {
				minMs = ms
			}
		}
		sum += ms
		count++
	}
	if count == 0 {
		return 0, 0, 0
	}

	average = int64(math.Round(float64(sum) / float64(count)))
	return average, maxMs, minMs
}

func (a *Aggregator) counter(ctx context.Context, key string) int64 {
	raw, err := a.Store.Get(ctx, key)
	if err != nil {
		a.warn("metric snapshot degraded to zeros", err)
		return 0
	}
	if len(raw) == 0 {
		return 0
	}

	value, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		a.warn("metric counter unreadable", err)
		return 0
	}
	return value
}

func (a *Aggregator) warn(msg string, err error) {
	if a.Logger == nil {
		return
	}
	a.Logger.Warn(msg, zap.Error(err))
}
