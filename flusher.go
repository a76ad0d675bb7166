package eventtracker

import (
	"sync/atomic"
	"time"
)

// periodicFlusher sets flushAll every flushInterval using absolute
// wall-clock targets (nextCall += interval) so scheduling jitter does not
// accumulate drift across intervals, matching _flush_peroidcly's
// next_call-based loop exactly; if a sleep target has already passed (the
// clock jumped, or the previous iteration overran), the target resets to
// now instead of issuing a negative sleep.
type periodicFlusher struct {
	cfg      *Config
	running  *atomic.Bool
	flushAll *atomic.Bool
	done     chan struct{}
}

func newPeriodicFlusher(cfg *Config, running, flushAll *atomic.Bool) *periodicFlusher {
	return &periodicFlusher{
		cfg:      cfg,
		running:  running,
		flushAll: flushAll,
		done:     make(chan struct{}),
	}
}

func (f *periodicFlusher) run() {
	defer close(f.done)
	logger := f.cfg.Logger.With("component", "flusher")

	nextCall := time.Now()
	for f.running.Load() {
		nextCall = nextCall.Add(f.cfg.FlushInterval)

		wait := time.Until(nextCall)
		if wait < 0 {
			logger.Debug("flush target already elapsed, resetting", "overshoot", -wait)
			nextCall = time.Now()
			wait = 0
		}

		time.Sleep(wait)
		f.flushAll.Store(true)
	}
}
