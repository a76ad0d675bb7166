package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/flowmetric/eventtracker/internal/metrics"
)

// Config sizes the sliding-window bloom filter backing a Module.
//
// The env tags below (DEDUP_WINDOW, DEDUP_CAPACITY, DEDUP_FP_RATE) are not
// parsed by any loader in this module: internal/envconfig reads the
// TRACKER_DEDUP_* variables into its own DedupConfig, and the root
// package's DedupConfig supplies the defaults actually used by a Client.
type Config struct {
	Window   time.Duration `env:"DEDUP_WINDOW"   envDefault:"10m"`
	Capacity uint          `env:"DEDUP_CAPACITY" envDefault:"1000000"`
	FPRate   float64       `env:"DEDUP_FP_RATE"  envDefault:"0.0001"`
}

// DefaultConfig returns the default dedup configuration with a 10 minute
// sliding window, 1M Track-call capacity, and 0.01% false positive rate.
func DefaultConfig() Config {
	return Config{
		Window:   10 * time.Minute,
		Capacity: 1_000_000,
		FPRate:   0.0001,
	}
}

// Module suppresses duplicate Track-call keys within a sliding time window.
// It holds two bloom filters, current and previous: a key is checked
// against both and, if absent from either, added to current. Every
// window/2 the rotation goroutine discards previous and demotes current to
// previous, so a key stays suppressible for between window/2 and window
// after it was first recorded — a repeat sighting reported as a duplicate
// does not record it again, so it does not extend that time. This is the
// standard two-generation sliding-window trick for a data structure with
// no native expiry.
type Module struct {
	mu       sync.RWMutex
	current  *bloom.BloomFilter
	previous *bloom.BloomFilter
	capacity uint
	fpRate   float64
	window   time.Duration

	instruments *metrics.Instruments
	logger      *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Module sized per cfg. instruments is optional (nil
// disables the DedupDropped counter).
func New(cfg Config, instruments *metrics.Instruments, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.Default()
	}
	return &Module{
		current:     bloom.NewWithEstimates(cfg.Capacity, cfg.FPRate),
		previous:    bloom.NewWithEstimates(cfg.Capacity, cfg.FPRate),
		capacity:    cfg.Capacity,
		fpRate:      cfg.FPRate,
		window:      cfg.Window,
		instruments: instruments,
		logger:      logger.With("module", "dedup"),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// IsDuplicate reports whether key has been seen within the configured
// window. An empty key always returns false — a Track call with no
// dedup-eligible payload simply passes through. The first sighting of a
// key records it and returns false; every sighting after that, until the
// key ages out of both generations, returns true and counts toward the
// DedupDropped metric when instruments are configured.
func (m *Module) IsDuplicate(key string) bool {
	if key == "" {
		return false
	}
	data := []byte(key)

	m.mu.RLock()
	seen := m.current.Test(data) || m.previous.Test(data)
	m.mu.RUnlock()
	if seen {
		m.recordDrop(key)
		return true
	}

	m.mu.Lock()
	// Re-check under the write lock: another goroutine may have added key
	// between the RUnlock above and this Lock.
	if m.current.Test(data) || m.previous.Test(data) {
		m.mu.Unlock()
		m.recordDrop(key)
		return true
	}
	m.current.Add(data)
	m.mu.Unlock()

	return false
}

func (m *Module) recordDrop(key string) {
	if m.instruments != nil {
		m.instruments.DedupDropped.Add(context.Background(), 1)
	}
	m.logger.Debug("duplicate track call dropped", "key", key)
}

// rotate demotes current to previous and starts a fresh current filter.
func (m *Module) rotate() {
	m.mu.Lock()
	m.previous = m.current
	m.current = bloom.NewWithEstimates(m.capacity, m.fpRate)
	m.mu.Unlock()
}

// Start launches the background rotation goroutine, firing every
// window/2. The goroutine stops when ctx is cancelled or Stop is called.
func (m *Module) Start(ctx context.Context) {
	rotateInterval := m.window / 2
	m.logger.Info("dedup module started", "window", m.window, "rotate_interval", rotateInterval)

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(rotateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.rotate()
				m.logger.Debug("dedup filter rotated")
			case <-ctx.Done():
				m.logger.Info("dedup module stopping", "reason", "context cancelled")
				return
			case <-m.stopCh:
				m.logger.Info("dedup module stopping", "reason", "stop requested")
				return
			}
		}
	}()
}

// Stop signals the rotation goroutine to stop and waits for it to finish.
func (m *Module) Stop() {
	close(m.stopCh)
	<-m.doneCh
}
