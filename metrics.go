package eventtracker

import (
	"context"

	"github.com/flowmetric/eventtracker/internal/metrics"
)

// metricsRecorder adapts internal/metrics.Instruments to the handful of
// call sites inside the Tracker pipeline, and is nil-safe so a Client built
// without metrics enabled pays no instrumentation cost beyond a nil check.
type metricsRecorder struct {
	instruments *metrics.Instruments
}

func (m *metricsRecorder) backlogDepthDelta(delta int64) {
	if m == nil || m.instruments == nil {
		return
	}
	m.instruments.BacklogDepth.Add(context.Background(), delta)
}

func (m *metricsRecorder) batchSubmitted(stream string, size int) {
	if m == nil || m.instruments == nil {
		return
	}
	ctx := context.Background()
	m.instruments.BatchesSubmitted.Add(ctx, 1)
	m.instruments.BatchSize.Record(ctx, int64(size))
}

func (m *metricsRecorder) batchSent(stream string, size int) {
	if m == nil || m.instruments == nil {
		return
	}
	m.instruments.BatchesSent.Add(context.Background(), 1)
}

func (m *metricsRecorder) batchFailed(stream string) {
	if m == nil || m.instruments == nil {
		return
	}
	m.instruments.BatchesFailed.Add(context.Background(), 1)
}

func (m *metricsRecorder) retryAttempted(stream string) {
	if m == nil || m.instruments == nil {
		return
	}
	m.instruments.RetryAttempts.Add(context.Background(), 1)
}
