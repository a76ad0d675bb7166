package eventtracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/flowmetric/eventtracker/internal/dedup"
	"github.com/flowmetric/eventtracker/internal/metrics"
)

// DedupConfig enables optional client-side suppression of duplicate Track
// calls via a sliding-window bloom filter, absorbing accidental
// re-submission from a flaky producer before an event ever reaches the
// backlog. This has no effect on the collection service's own
// at-least-once contract — see DESIGN.md for the rationale.
type DedupConfig struct {
	// Window is how long a (stream, data) pair is remembered. Defaults to
	// 10 minutes.
	Window time.Duration

	// Capacity is the expected number of distinct Track calls per Window,
	// sizing the underlying bloom filter. Defaults to 100,000.
	Capacity uint

	// FPRate is the bloom filter's target false-positive rate: the
	// fraction of genuinely-new events that may be wrongly suppressed as
	// duplicates. Defaults to 0.0001.
	FPRate float64
}

func (d DedupConfig) withDefaults() dedup.Config {
	cfg := dedup.Config{Window: d.Window, Capacity: d.Capacity, FPRate: d.FPRate}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = 100_000
	}
	if cfg.FPRate <= 0 {
		cfg.FPRate = 0.0001
	}
	return cfg
}

// dedupGate wraps an internal/dedup Module with the Start/Stop lifecycle a
// Client drives alongside its handler and flusher goroutines.
type dedupGate struct {
	module *dedup.Module
}

func newDedupGate(cfg DedupConfig, instruments *metrics.Instruments, logger *slog.Logger) *dedupGate {
	return &dedupGate{module: dedup.New(cfg.withDefaults(), instruments, logger)}
}

func (g *dedupGate) start(ctx context.Context) { g.module.Start(ctx) }
func (g *dedupGate) stop()                     { g.module.Stop() }

// isDuplicate reports whether key has already been Tracked within the
// configured window.
func (g *dedupGate) isDuplicate(key string) bool {
	return g.module.CheckDuplicate(key)
}
