package eventtracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// streamBuffer accumulates one stream's events between backlog drains and
// pool submissions: an ordered slice of data strings plus a running UTF-8
// byte count.
type streamBuffer struct {
	data  []string
	bytes int
}

// trackerHandler is the control loop that transforms a stream of single
// events into size/time/count-bounded batches. It uses a flag-polled loop
// (running/flushAll/alive) rather than a channel selector, since the exact
// per-iteration batching behavior needs to be deterministic and
// reproducible across retries.
type trackerHandler struct {
	cfg     *Config
	backlog EventBacklog
	pool    *batchWorkerPool
	metrics *metricsRecorder

	// running, flushAll, and alive are single-writer, multi-reader flags.
	// running is written only by stop(); flushAll is written by
	// flush()/the periodic flusher and cleared here; alive is written
	// only by stop().
	running  *atomic.Bool
	flushAll *atomic.Bool
	alive    *atomic.Bool

	streamKeys *streamKeyMap

	buffers map[string]*streamBuffer

	done chan struct{}
}

// streamKeyMap is the mutex-protected stream -> default-auth-key map,
// populated by track() and iterated by the handler in map order every
// pass — sufficient fairness for a single-consumer batching loop.
type streamKeyMap struct {
	mu   sync.Mutex
	keys map[string]string
}

func newStreamKeyMap() *streamKeyMap {
	return &streamKeyMap{keys: make(map[string]string)}
}

// upsert records authKey as stream's default if this is the first time
// stream has been seen; it never overwrites an existing entry.
func (s *streamKeyMap) upsert(stream, authKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[stream]; !ok {
		s.keys[stream] = authKey
	}
}

// snapshot returns a copy of the current stream -> auth key entries, safe
// to range over without holding the lock.
func (s *streamKeyMap) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}

func newTrackerHandler(cfg *Config, backlog EventBacklog, pool *batchWorkerPool, recorder *metricsRecorder, streamKeys *streamKeyMap, running, flushAll, alive *atomic.Bool) *trackerHandler {
	return &trackerHandler{
		cfg:        cfg,
		backlog:    backlog,
		pool:       pool,
		metrics:    recorder,
		running:    running,
		flushAll:   flushAll,
		alive:      alive,
		streamKeys: streamKeys,
		buffers:    make(map[string]*streamBuffer),
		done:       make(chan struct{}),
	}
}

// run is the handler's per-iteration loop. It exits once running reports
// false, without draining what remains — draining is stop()'s job.
func (h *trackerHandler) run() {
	defer close(h.done)
	logger := h.cfg.Logger.With("component", "handler")
	logger.Info("tracker handler started")

	for h.running.Load() {
		if h.backlog.IsEmpty() {
			time.Sleep(2 * time.Second)
		}

		if h.flushAll.Load() {
			for stream, authKey := range h.streamKeys.snapshot() {
				h.emit(stream, authKey)
			}
			if h.alive.Load() {
				h.flushAll.Store(false)
			}
			continue
		}

		for stream, authKey := range h.streamKeys.snapshot() {
			event, ok := h.backlog.Get(stream)
			if !ok {
				continue
			}
			h.metrics.backlogDepthDelta(-1)

			buf := h.buffers[stream]
			if buf == nil {
				buf = &streamBuffer{}
				h.buffers[stream] = buf
			}
			buf.data = append(buf.data, event.Data)
			buf.bytes += len(event.Data)

			if buf.bytes >= h.cfg.BatchBytesSize || len(buf.data) >= h.cfg.BatchSize {
				h.emit(stream, authKey)
			}
		}
	}

	logger.Info("tracker handler stopped")
}

// emit snapshots and clears stream's buffer, submitting one send-task to
// the Batch Worker Pool. A stream with no accumulated data is a no-op,
// covering the flush-all sweep over streams that never buffered anything.
func (h *trackerHandler) emit(stream, authKey string) {
	buf := h.buffers[stream]
	if buf == nil || len(buf.data) == 0 {
		return
	}

	task := sendTask{stream: stream, authKey: authKey, batch: buf.data, bytes: buf.bytes}
	buf.data = nil
	buf.bytes = 0

	h.metrics.batchSubmitted(stream, len(task.batch))

	if err := h.pool.Submit(task, h.cfg.isBlocking()); err != nil {
		h.cfg.Logger.Error("failed to submit batch to worker pool",
			"component", "handler", "stream", stream, "error", err)
		if h.cfg.Callback != nil {
			h.cfg.Callback(nowUnix(), 400, err.Error(), task.batch, stream)
		}
	}
}
