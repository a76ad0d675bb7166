package eventtracker

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// debugMilestoneInterval is how often a successful send logs a debug
// milestone, a low-volume heartbeat for long-running trackers.
const debugMilestoneInterval = 1000

// retryPolicy executes one send-task's full retry loop: invoke the Sender,
// classify the response, and either return, or back off and try again.
// Attempt count and delay bounds are pinned exactly; they are not open for
// "idiomatic" reinterpretation.
type retryPolicy struct {
	sender  Sender
	cfg     *Config
	metrics *metricsRecorder

	// running is read after each server-error response; once it reports
	// false the policy surrenders on that server error instead of retrying
	// further, per the shutdown-surrender termination condition.
	running func() bool

	// successCount is shared across every worker goroutine driving this
	// policy, logging a milestone every debugMilestoneInterval successes.
	successCount atomic.Int64
}

// run drives task through the retry loop until a terminal outcome, logging
// and reporting every failure via cfg.Callback.
func (p *retryPolicy) run(ctx context.Context, task sendTask) {
	batchID := uuid.New().String()
	logger := p.cfg.Logger.With("component", "retry", "stream", task.stream, "batch_id", batchID)

	attempt := 1
	for {
		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		resp, err := p.sendAttempt(reqCtx, task)
		cancel()

		if err != nil {
			// Transport-level failure: treated as a client fault, no
			// retry.
			p.fail(logger, attempt, 400, err.Error(), task)
			return
		}

		if attempt == 1 {
			logger.Debug("got response", "status", resp.Status)
		}

		if resp.Status >= 200 && resp.Status < 400 {
			p.metrics.batchSent(task.stream, len(task.batch))
			p.logMilestone(logger)
			return
		}

		if resp.Status >= 400 && resp.Status < 500 {
			p.fail(logger, attempt, resp.Status, resp.Error, task)
			return
		}

		// Server error (>= 500): retry with full-jitter exponential
		// backoff, unless a terminal condition below fires first.
		if !p.cfg.retryForever() && attempt == p.cfg.RetryMaxCount {
			p.fail(logger, attempt, 500, "retry max count reached", task)
			return
		}

		if !p.running() {
			p.fail(logger, attempt, 500, "server error during shutdown", task)
			return
		}

		delay := fullJitterDelay(attempt, p.cfg.RetryMaxTime)
		logger.Warn("server error, retrying",
			"status", resp.Status, "error", resp.Error, "attempt", attempt, "delay", delay)
		p.metrics.retryAttempted(task.stream)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			p.fail(logger, attempt, 500, "server error during shutdown", task)
			return
		}
		attempt++
	}
}

// logMilestone logs a debug-level line every debugMilestoneInterval
// successful sends, so long-running trackers still have a low-volume
// heartbeat signal in their logs.
func (p *retryPolicy) logMilestone(logger *slog.Logger) {
	count := p.successCount.Add(1)
	if count%debugMilestoneInterval == 0 {
		logger.Debug("delivery milestone reached", "total_successful_batches", count)
	}
}

func (p *retryPolicy) sendAttempt(ctx context.Context, task sendTask) (*Response, error) {
	start := time.Now()
	resp, err := p.sender.SendBatch(ctx, task.stream, task.batch, task.authKey)
	if p.metrics != nil && p.metrics.instruments != nil {
		p.metrics.instruments.SendLatency.Record(context.Background(),
			float64(time.Since(start))/float64(time.Millisecond))
	}
	return resp, err
}

// fail reports a terminal failure to the user callback, then logs it.
func (p *retryPolicy) fail(logger *slog.Logger, attempt, status int, errMsg string, task sendTask) {
	now := float64(time.Now().UnixNano()) / 1e9
	p.cfg.Callback(now, status, errMsg, task.batch, task.stream)
	p.metrics.batchFailed(task.stream)
	logger.Error("delivery failed", "status", status, "attempt", attempt, "error", errMsg)
}

// fullJitterDelay computes delay = uniform(0, min(retryMaxTime, 2^attempt *
// retryBackoffBase)), a full-jitter exponential backoff.
func fullJitterDelay(attempt int, retryMaxTime time.Duration) time.Duration {
	capDelay := math.Min(float64(retryMaxTime), math.Pow(2, float64(attempt))*float64(retryBackoffBase))
	if capDelay <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * capDelay)
}
