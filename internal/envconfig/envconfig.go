// Package envconfig loads eventtracker.Config from environment variables
// for standalone deployments (CLI tools, sidecars) that want the SDK
// configured declaratively via github.com/caarlos0/env/v10 struct tags
// instead of hand-wired Config literals.
package envconfig

import (
	"time"

	"github.com/caarlos0/env/v10"

	eventtracker "github.com/flowmetric/eventtracker"
)

// TrackerConfig mirrors eventtracker.Config's tunables as env-tagged fields.
// Load populates an eventtracker.Config from these values; the optional
// Dedup and Redis backlog sections are nested structs parsed the same way,
// each turned into Config.Dedup or Config.Backlog only when its Enabled
// flag is set.
type TrackerConfig struct {
	Endpoint string `env:"TRACKER_ENDPOINT" envDefault:"http://track.atom-data.io/"`
	AuthKey  string `env:"TRACKER_AUTH_KEY"`

	FlushInterval  time.Duration `env:"TRACKER_FLUSH_INTERVAL" envDefault:"10s"`
	BatchSize      int           `env:"TRACKER_BATCH_SIZE" envDefault:"500"`
	BatchBytesSize int           `env:"TRACKER_BATCH_BYTES" envDefault:"65536"`
	BacklogSize    int           `env:"TRACKER_BACKLOG_SIZE" envDefault:"500"`

	BatchWorkerCount int `env:"TRACKER_WORKER_COUNT" envDefault:"1"`
	BatchPoolSize    int `env:"TRACKER_POOL_SIZE" envDefault:"1"`

	RetryMaxTime  time.Duration `env:"TRACKER_RETRY_MAX_TIME" envDefault:"1800s"`
	RetryMaxCount int           `env:"TRACKER_RETRY_MAX_COUNT" envDefault:"12"`
	RetryForever  bool          `env:"TRACKER_RETRY_FOREVER" envDefault:"true"`

	IsBlocking     bool          `env:"TRACKER_IS_BLOCKING" envDefault:"true"`
	BacklogTimeout time.Duration `env:"TRACKER_BACKLOG_TIMEOUT" envDefault:"1s"`
	RequestTimeout time.Duration `env:"TRACKER_REQUEST_TIMEOUT" envDefault:"60s"`

	MaxRequestsPerSecond float64 `env:"TRACKER_MAX_RPS" envDefault:"0"`

	DisableSignalHandling bool `env:"TRACKER_DISABLE_SIGNAL_HANDLING" envDefault:"false"`

	Dedup DedupConfig `envPrefix:"TRACKER_DEDUP_"`
	Redis RedisConfig `envPrefix:"TRACKER_REDIS_"`
}

// DedupConfig is TrackerConfig's nested env-tagged dedup section. Enabled
// must be set explicitly; eventtracker.Config.Dedup stays nil otherwise, so
// an all-defaults environment never pays for a bloom filter it didn't ask
// for.
type DedupConfig struct {
	Enabled  bool          `env:"ENABLED" envDefault:"false"`
	Window   time.Duration `env:"WINDOW" envDefault:"10m"`
	Capacity uint          `env:"CAPACITY" envDefault:"100000"`
	FPRate   float64       `env:"FP_RATE" envDefault:"0.0001"`
}

// RedisConfig is TrackerConfig's nested env-tagged Redis backlog section.
// Enabled must be set explicitly; the in-memory backlog remains the default
// otherwise.
type RedisConfig struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	URL       string `env:"URL" envDefault:"redis://localhost:6379"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"eventtracker:backlog:"`
	Capacity  int64  `env:"CAPACITY" envDefault:"0"`
}

// Load parses environment variables into a TrackerConfig and converts it
// into an eventtracker.Config. It does not set Logger, Callback, or Sender —
// callers fill those in after Load returns, before passing the result to
// eventtracker.New.
func Load() (eventtracker.Config, error) {
	var raw TrackerConfig
	if err := env.Parse(&raw); err != nil {
		return eventtracker.Config{}, err
	}
	return raw.ToTrackerConfig()
}

// ToTrackerConfig converts an already-populated TrackerConfig into an
// eventtracker.Config, constructing the optional Dedup and Redis backlog
// wiring only when their respective Enabled flags are set.
func (c TrackerConfig) ToTrackerConfig() (eventtracker.Config, error) {
	retryForever := c.RetryForever
	isBlocking := c.IsBlocking

	cfg := eventtracker.Config{
		Endpoint:              c.Endpoint,
		AuthKey:               c.AuthKey,
		FlushInterval:         c.FlushInterval,
		BatchSize:             c.BatchSize,
		BatchBytesSize:        c.BatchBytesSize,
		BacklogSize:           c.BacklogSize,
		BatchWorkerCount:      c.BatchWorkerCount,
		BatchPoolSize:         c.BatchPoolSize,
		RetryMaxTime:          c.RetryMaxTime,
		RetryMaxCount:         c.RetryMaxCount,
		RetryForever:          &retryForever,
		IsBlocking:            &isBlocking,
		BacklogTimeout:        c.BacklogTimeout,
		RequestTimeout:        c.RequestTimeout,
		MaxRequestsPerSecond:  c.MaxRequestsPerSecond,
		DisableSignalHandling: c.DisableSignalHandling,
	}

	if c.Dedup.Enabled {
		cfg.Dedup = &eventtracker.DedupConfig{
			Window:   c.Dedup.Window,
			Capacity: c.Dedup.Capacity,
			FPRate:   c.Dedup.FPRate,
		}
	}

	if c.Redis.Enabled {
		backlog, err := eventtracker.NewRedisBacklog(eventtracker.RedisBacklogConfig{
			URL:       c.Redis.URL,
			KeyPrefix: c.Redis.KeyPrefix,
			Capacity:  c.Redis.Capacity,
		})
		if err != nil {
			return eventtracker.Config{}, err
		}
		cfg.Backlog = backlog
	}

	return cfg, nil
}
