package eventtracker

import (
	"log/slog"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"
)

// Default configuration values and validation minimums, matching the
// collection service's documented contract.
const (
	DefaultEndpoint = "http://track.atom-data.io/"

	DefaultBatchSize     = 500
	BatchSizeLimit       = 100_000
	DefaultBatchBytes    = 64 * 1024
	BatchBytesLimit      = 10 * 1024 * 1024
	MinBatchBytes        = 1024
	DefaultBacklogSize   = 500
	DefaultWorkerCount   = 1
	DefaultPoolSize      = 1
	DefaultFlushInterval = 10 * time.Second
	MinFlushInterval     = 1 * time.Second
	DefaultRetryMaxTime  = 1800 * time.Second
	MinRetryMaxTime      = 120 * time.Second
	DefaultRetryMaxCount = 12
	DefaultRetryForever  = true
	DefaultIsBlocking    = true
	DefaultBacklogWait   = 1 * time.Second
	DefaultRequestTO     = 60 * time.Second

	retryBackoffBase = 3 * time.Second
)

// ErrorCallback receives every delivery failure a Client cannot resolve on
// its own, keeping producers decoupled from transmission outcomes as
// required by the error-handling design: track() never blocks on, or
// propagates, a network failure.
type ErrorCallback func(unixTime float64, status int, errMsg string, data any, stream string)

// Config holds the Tracker's configuration. New validates every numeric
// field with a documented minimum or range, substituting the default and
// logging a warning rather than failing construction; the other numeric
// fields take their defaults silently when unset or out of range.
type Config struct {
	// Endpoint is the collection service base URL. The batch path is
	// Endpoint + "bulk".
	Endpoint string

	// AuthKey is the default HMAC key used for a stream's batches when
	// Track is called without a stream-specific key.
	AuthKey string

	// FlushInterval is the periodic flush-all cadence. Minimum 1s.
	FlushInterval time.Duration

	// BatchSize is the count trigger: a stream's buffer flushes once it
	// holds at least this many events. Range [1, BatchSizeLimit].
	BatchSize int

	// BatchBytesSize is the size trigger in UTF-8 bytes. Range
	// [MinBatchBytes, BatchBytesLimit].
	BatchBytesSize int

	// BacklogSize is each stream's FIFO capacity in the backlog.
	BacklogSize int

	// BatchWorkerCount is the number of workers serving the batch pool
	// queue. Minimum 1.
	BatchWorkerCount int

	// BatchPoolSize is the batch-pool queue capacity.
	BatchPoolSize int

	// RetryMaxTime caps the per-attempt backoff delay. Minimum 120s.
	RetryMaxTime time.Duration

	// RetryMaxCount is the number of attempts before giving up, when
	// RetryForever is false. Minimum 1.
	RetryMaxCount int

	// RetryForever, when true (the default), retries server errors
	// indefinitely until shutdown instead of giving up after
	// RetryMaxCount attempts. A nil value defaults to true; set an
	// explicit false to opt into the bounded-retry, lossy-discard path.
	RetryForever *bool

	// IsBlocking controls the backlog-full policy: block until a slot is
	// free (optionally bounded by BacklogTimeout) versus fail immediately.
	// A nil value defaults to true.
	IsBlocking *bool

	// BacklogTimeout bounds a blocking add_event wait. Only consulted when
	// IsBlocking is true. Zero means wait indefinitely; negative values
	// fall back to DefaultBacklogWait.
	BacklogTimeout time.Duration

	// RequestTimeout bounds each HTTP attempt.
	RequestTimeout time.Duration

	// Callback receives every asynchronous delivery failure. A nil
	// Callback is replaced with a no-op.
	Callback ErrorCallback

	// Logger receives structured lifecycle and error logs. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// DisableSignalHandling skips installing SIGINT/SIGTERM handlers in
	// New, leaving shutdown wiring to the embedding application. See
	// DESIGN.md Open Question OQ-1.
	DisableSignalHandling bool

	// MaxRequestsPerSecond rate-limits outbound batch requests across all
	// workers. Zero (the default) disables rate limiting.
	MaxRequestsPerSecond float64

	// Dedup, when non-nil, enables client-side suppression of exact
	// duplicate Track calls via a sliding-window bloom filter before the
	// event ever reaches the backlog. See internal/dedup.
	Dedup *DedupConfig

	// Backlog overrides the default in-memory EventBacklog implementation,
	// e.g. with a Redis-backed one for durability across restarts. Most
	// callers should leave this nil.
	Backlog EventBacklog

	// Sender overrides the default HTTP sender. Exposed for testing and
	// for swapping transports; most callers should leave this nil.
	Sender Sender

	// Meter, when non-nil, is used to create the OpenTelemetry instruments
	// in internal/metrics: backlog depth, batch counts, retry attempts,
	// and send latency. A nil Meter (the default) disables instrumentation
	// entirely rather than recording into a noop meter, so the hot path
	// never pays for metrics it cannot export.
	Meter otelmetric.Meter
}

// validate checks every numeric option that has a documented minimum or
// range, logging a warning and substituting the default rather than failing
// construction. Options without a documented minimum fall back to their
// defaults without a warning.
func (c *Config) validate() {
	logger := c.Logger

	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}

	if c.FlushInterval < MinFlushInterval {
		logger.Warn("flush interval below minimum, using default",
			"given", c.FlushInterval, "minimum", MinFlushInterval, "default", DefaultFlushInterval)
		c.FlushInterval = DefaultFlushInterval
	}

	if c.BatchSize < 1 || c.BatchSize > BatchSizeLimit {
		logger.Warn("invalid batch size, using default",
			"given", c.BatchSize, "max", BatchSizeLimit, "default", DefaultBatchSize)
		c.BatchSize = DefaultBatchSize
	}

	if c.BatchBytesSize < MinBatchBytes || c.BatchBytesSize > BatchBytesLimit {
		logger.Warn("invalid batch byte size, using default",
			"given", c.BatchBytesSize, "min", MinBatchBytes, "max", BatchBytesLimit, "default", DefaultBatchBytes)
		c.BatchBytesSize = DefaultBatchBytes
	}

	if c.BacklogSize <= 0 {
		c.BacklogSize = DefaultBacklogSize
	}

	if c.BatchWorkerCount < 1 {
		logger.Warn("batch worker count below minimum, using default",
			"given", c.BatchWorkerCount, "minimum", 1, "default", DefaultWorkerCount)
		c.BatchWorkerCount = DefaultWorkerCount
	}

	if c.BatchPoolSize <= 0 {
		c.BatchPoolSize = DefaultPoolSize
	}

	if c.RetryMaxTime < MinRetryMaxTime {
		logger.Warn("retry max time below minimum, using default",
			"given", c.RetryMaxTime, "minimum", MinRetryMaxTime, "default", DefaultRetryMaxTime)
		c.RetryMaxTime = DefaultRetryMaxTime
	}

	if c.RetryMaxCount < 1 {
		logger.Warn("retry max count below minimum, using default",
			"given", c.RetryMaxCount, "minimum", 1, "default", DefaultRetryMaxCount)
		c.RetryMaxCount = DefaultRetryMaxCount
	}

	if c.BacklogTimeout < 0 {
		c.BacklogTimeout = DefaultBacklogWait
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTO
	}

	if c.Callback == nil {
		c.Callback = func(float64, int, string, any, string) {}
	}

	if c.RetryForever == nil {
		forever := DefaultRetryForever
		c.RetryForever = &forever
	}

	if c.IsBlocking == nil {
		blocking := DefaultIsBlocking
		c.IsBlocking = &blocking
	}
}

// retryForever reports the effective RetryForever setting after defaults
// have been applied.
func (c *Config) retryForever() bool {
	return c.RetryForever != nil && *c.RetryForever
}

// isBlocking reports the effective IsBlocking setting after defaults have
// been applied.
func (c *Config) isBlocking() bool {
	return c.IsBlocking != nil && *c.IsBlocking
}

// withDefaults returns a validated copy of cfg with every unset or
// out-of-range field replaced by its documented default.
func withDefaults(cfg Config) Config {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.validate()
	return cfg
}
