package eventtracker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	gojson "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/flowmetric/eventtracker/internal/metrics"
)

// Client is the asynchronous Tracker: the public surface wiring together
// the Event Backlog, the Tracker Handler, the Periodic Flusher, the Batch
// Worker Pool, and the Retry/Backoff policy. Its Track/Flush/Stop methods
// run atop a small set of goroutines coordinated with an errgroup.Group.
type Client struct {
	cfg Config

	backlog EventBacklog
	pool    *batchWorkerPool
	handler *trackerHandler
	flusher *periodicFlusher
	retry   *retryPolicy
	dedup   *dedupGate

	streamKeys *streamKeyMap

	running  atomic.Bool
	flushAll atomic.Bool
	alive    atomic.Bool

	cancelSignals func()

	eg     *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
}

// New validates cfg, substituting documented defaults for any invalid or
// unset option, and starts the Tracker Handler and Periodic Flusher
// goroutines. Unless Config.DisableSignalHandling is set, SIGINT and
// SIGTERM are wired to a graceful Stop (see DESIGN.md Open Question OQ-1
// for why this is configurable rather than unconditional).
func New(cfg Config) (*Client, error) {
	cfg = withDefaults(cfg)

	c := &Client{
		cfg:        cfg,
		streamKeys: newStreamKeyMap(),
	}
	c.running.Store(true)
	c.alive.Store(true)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if cfg.Backlog != nil {
		c.backlog = cfg.Backlog
	} else {
		c.backlog = newMemoryBacklog(cfg.BacklogSize)
	}

	var instruments *metrics.Instruments
	if cfg.Meter != nil {
		var err error
		instruments, err = metrics.New(cfg.Meter)
		if err != nil {
			cfg.Logger.Warn("failed to create metric instruments, continuing without them",
				"component", "tracker", "error", err)
			instruments = nil
		}
	}
	recorder := &metricsRecorder{instruments: instruments}

	sender := cfg.Sender
	if sender == nil {
		sender = newHTTPSender(cfg.Endpoint, cfg.RequestTimeout, cfg.MaxRequestsPerSecond)
	}

	c.retry = &retryPolicy{
		sender:  sender,
		cfg:     &c.cfg,
		metrics: recorder,
		running: c.running.Load,
	}

	c.pool = newBatchWorkerPool(cfg.BatchWorkerCount, cfg.BatchPoolSize, func(task sendTask) {
		c.retry.run(c.ctx, task)
	})

	c.handler = newTrackerHandler(&c.cfg, c.backlog, c.pool, recorder, c.streamKeys, &c.running, &c.flushAll, &c.alive)
	c.flusher = newPeriodicFlusher(&c.cfg, &c.running, &c.flushAll)

	if cfg.Dedup != nil {
		c.dedup = newDedupGate(*cfg.Dedup, instruments, cfg.Logger)
		c.dedup.start(c.ctx)
	}

	c.eg, _ = errgroup.WithContext(c.ctx)
	c.eg.Go(func() error { c.handler.run(); return nil })
	c.eg.Go(func() error { c.flusher.run(); return nil })

	if !cfg.DisableSignalHandling {
		c.cancelSignals = installSignalHandling(func() { c.Stop() })
	}

	return c, nil
}

// Track submits one event for stream, encoding data to JSON if it is not
// already a string. Input errors (encode failure, empty stream, a full
// non-blocking backlog) never propagate synchronously — every failure
// visible after Track returns is reported through Config.Callback, keeping
// producers decoupled from delivery outcomes.
func (c *Client) Track(stream string, data any, authKey string) {
	if stream == "" {
		c.reportInputError(data, stream, ErrEmptyStream.Error())
		return
	}

	if authKey == "" {
		authKey = c.cfg.AuthKey
	}

	payload, err := toJSONString(data)
	if err != nil {
		c.reportInputError(data, stream, err.Error())
		return
	}

	if c.dedup != nil && c.dedup.isDuplicate(dedupKey(stream, payload)) {
		return
	}

	c.streamKeys.upsert(stream, authKey)

	if err := c.backlog.Add(Event{Stream: stream, Data: payload}, c.cfg.isBlocking(), c.cfg.BacklogTimeout); err != nil {
		c.reportBacklogFull(payload, stream)
		return
	}
	c.getMetrics().backlogDepthDelta(1)
}

// Flush requests an out-of-band batch flush for every stream with
// buffered content.
func (c *Client) Flush() {
	c.flushAll.Store(true)
}

// Stop performs graceful shutdown: request a final flush, mark the tracker
// no longer alive (so the handler's final sweep does not re-clear
// flushAll), poll up to 5 seconds for the backlog and worker pool to
// drain, then stop every goroutine. Stop is idempotent.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.cfg.Logger.Info("flushing all data and stopping the tracker", "component", "tracker")
		c.flushAll.Store(true)
		c.alive.Store(false)

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if c.pool.IsEmpty() && c.backlog.IsEmpty() {
				break
			}
			time.Sleep(1 * time.Second)
		}

		c.running.Store(false)
		c.pool.Stop()
		c.cancel()
		_ = c.eg.Wait()

		if c.dedup != nil {
			c.dedup.stop()
		}
		if c.cancelSignals != nil {
			c.cancelSignals()
		}
	})
}

func (c *Client) getMetrics() *metricsRecorder {
	return c.retry.metrics
}

func (c *Client) reportInputError(data any, stream, msg string) {
	c.cfg.Logger.Error("input error", "component", "tracker", "stream", stream, "error", msg)
	c.cfg.Callback(nowUnix(), 400, msg, data, stream)
}

func (c *Client) reportBacklogFull(data any, stream string) {
	msg := "tracker backlog is full, can't enqueue events"
	c.cfg.Logger.Error(msg, "component", "tracker", "stream", stream)
	c.cfg.Callback(nowUnix(), 400, msg, data, stream)
}

func nowUnix() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// toJSONString returns data unchanged if it is already a string, otherwise
// marshals it to JSON, matching track()'s "serialize non-string data"
// behavior.
func toJSONString(data any) (string, error) {
	if s, ok := data.(string); ok {
		return s, nil
	}
	b, err := gojson.Marshal(data)
	if err != nil {
		return "", errors.New("failed to encode event data: " + err.Error())
	}
	return string(b), nil
}

// dedupKey forms the bloom-filter key for a Track call: stream and payload
// joined by the ASCII unit-separator byte (0x1f). Stream names are not
// checked for that byte.
func dedupKey(stream, payload string) string {
	return stream + "\x1f" + payload
}
